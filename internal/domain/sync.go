package domain

import (
	"encoding/json"
	"time"
)

// Logical tables of the hosted store.
const (
	TableHealthRecords = "health_records"
	TableProfiles      = "profiles"
)

// SyncType tags a queued write.
type SyncType string

const (
	SyncHealthRecord SyncType = "health_record"
	SyncUserProfile  SyncType = "user_profile"
)

// SyncItem is one write deferred until connectivity returns.
type SyncItem struct {
	ID        string          `json:"id"`
	Type      SyncType        `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
