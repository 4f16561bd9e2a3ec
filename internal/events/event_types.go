package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// EventType enumerates the user actions the controller routes.
type EventType string

const (
	EventOpenModal    EventType = "open_modal"
	EventCloseModal   EventType = "close_modal"
	EventStartScan    EventType = "start_scan"
	EventCapture      EventType = "capture"
	EventSwitchCamera EventType = "switch_camera"
	EventStopScan     EventType = "stop_scan"
	EventLogin        EventType = "login"
	EventRegister     EventType = "register"
	EventLogout       EventType = "logout"
	EventOAuth        EventType = "oauth"
	EventContact      EventType = "contact"
	EventOnline       EventType = "online"
	EventOffline      EventType = "offline"
)

// Event represents one user action.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with an id and the current time.
func New(t EventType, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ModalPayload names the modal to open or close.
type ModalPayload struct {
	Modal string `json:"modal"`
}

// LoginPayload payload.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPayload payload.
type RegisterPayload = domain.RegistrationProfile

// OAuthPayload payload.
type OAuthPayload struct {
	Provider string `json:"provider"`
}

// ContactPayload payload.
type ContactPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}
