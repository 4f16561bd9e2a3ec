package dto

import (
	"time"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/state"
)

// ScanResultResponse renders a scan result with its display strings.
type ScanResultResponse struct {
	StudentID          string           `json:"student_id"`
	TemperatureCelsius float64          `json:"temperature_celsius"`
	Temperature        string           `json:"temperature"`
	Symptoms           []domain.Symptom `json:"symptoms"`
	SymptomsLabel      string           `json:"symptoms_label"`
	Status             string           `json:"status"`
	StatusLabel        string           `json:"status_label"`
	Timestamp          time.Time        `json:"timestamp"`
}

// NewScanResultResponse maps a result.
func NewScanResultResponse(r domain.ScanResult) ScanResultResponse {
	return ScanResultResponse{
		StudentID:          r.StudentID,
		TemperatureCelsius: r.TemperatureCelsius,
		Temperature:        r.TemperatureLabel(),
		Symptoms:           r.Symptoms,
		SymptomsLabel:      r.SymptomsLabel(),
		Status:             string(r.Status),
		StatusLabel:        r.Status.Label(),
		Timestamp:          r.Timestamp,
	}
}

// StateResponse is the full render state of the kiosk.
type StateResponse struct {
	state.Snapshot
	Notification *notify.Toast `json:"notification,omitempty"`
}
