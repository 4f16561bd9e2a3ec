// Package state holds the application state record and the transitions of
// the scan lifecycle. It has no rendering or device dependencies so the
// machine can be driven directly from tests.
package state

import (
	"errors"
	"fmt"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// ScanPhase is the position in the scan lifecycle.
type ScanPhase string

const (
	PhaseIdle      ScanPhase = "idle"
	PhaseStarting  ScanPhase = "starting"
	PhaseStreaming ScanPhase = "streaming"
	PhaseAnalyzing ScanPhase = "analyzing"
)

// Modal names a modal channel.
type Modal string

const (
	ModalLogin    Modal = "login"
	ModalRegister Modal = "register"
	ModalCamera   Modal = "camera"
)

// ParseModal validates a modal name.
func ParseModal(s string) (Modal, error) {
	switch m := Modal(s); m {
	case ModalLogin, ModalRegister, ModalCamera:
		return m, nil
	}
	return "", fmt.Errorf("unknown modal %q", s)
}

// ErrInvalidTransition is returned when an action does not apply to the
// current scan phase.
var ErrInvalidTransition = errors.New("invalid scan transition")

// StreamInfo describes the live capture stream.
type StreamInfo struct {
	ID       string            `json:"id"`
	DeviceID string            `json:"device_id"`
	Facing   domain.FacingMode `json:"facing"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
}

// Controls is the enablement of the scan buttons derived from state.
type Controls struct {
	StartScan bool `json:"start_scan"`
	Capture   bool `json:"capture"`
	Switch    bool `json:"switch"`
}

// ApplicationState is the one mutable record the controller coordinates.
// It is not safe for concurrent use; the owner serializes access.
type ApplicationState struct {
	IsAuthenticated  bool
	CurrentUser      *domain.UserRecord
	CameraStream     *StreamInfo
	IsScanning       bool
	AvailableCameras []domain.CameraDescriptor
	ScanResult       *domain.ScanResult

	Phase  ScanPhase
	Facing domain.FacingMode
	Online bool

	modals map[Modal]bool
	epoch  uint64
}

// New returns the start-up state.
func New(facing domain.FacingMode) *ApplicationState {
	return &ApplicationState{
		Phase:  PhaseIdle,
		Facing: facing,
		Online: true,
		modals: make(map[Modal]bool, 3),
	}
}

// SetCameras records the devices enumerated at start-up, keeping only
// video inputs.
func (s *ApplicationState) SetCameras(devices []domain.CameraDescriptor) {
	cams := make([]domain.CameraDescriptor, 0, len(devices))
	for _, d := range devices {
		if d.IsVideoInput() {
			cams = append(cams, d)
		}
	}
	s.AvailableCameras = cams
}

// SignIn marks user as the authenticated user.
func (s *ApplicationState) SignIn(user domain.UserRecord) {
	s.IsAuthenticated = true
	s.CurrentUser = &user
}

// SignOut clears the authenticated user.
func (s *ApplicationState) SignOut() {
	s.IsAuthenticated = false
	s.CurrentUser = nil
}

// OpenModal opens a modal channel; other channels are left untouched.
func (s *ApplicationState) OpenModal(m Modal) {
	s.modals[m] = true
}

// CloseModal closes a modal channel. It reports whether the camera must be
// stopped as a consequence.
func (s *ApplicationState) CloseModal(m Modal) bool {
	s.modals[m] = false
	return m == ModalCamera && (s.CameraStream != nil || s.Phase != PhaseIdle)
}

// ModalOpen reports whether m is open.
func (s *ApplicationState) ModalOpen(m Modal) bool {
	return s.modals[m]
}

// OpenModals lists the open channels in a stable order.
func (s *ApplicationState) OpenModals() []Modal {
	var open []Modal
	for _, m := range []Modal{ModalLogin, ModalRegister, ModalCamera} {
		if s.modals[m] {
			open = append(open, m)
		}
	}
	return open
}

// BeginStart moves idle to starting while the camera is acquired. The
// returned epoch identifies this acquisition.
func (s *ApplicationState) BeginStart() (uint64, error) {
	if s.Phase != PhaseIdle {
		return 0, fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.Phase)
	}
	s.Phase = PhaseStarting
	s.epoch++
	return s.epoch, nil
}

// BeginSwitch moves streaming to starting while the stream is replaced.
func (s *ApplicationState) BeginSwitch() (uint64, error) {
	if s.Phase != PhaseStreaming {
		return 0, fmt.Errorf("%w: switch from %s", ErrInvalidTransition, s.Phase)
	}
	s.Phase = PhaseStarting
	s.epoch++
	return s.epoch, nil
}

// StreamOpened records the stream acquired under epoch. It reports false and
// changes nothing when that acquisition has been overtaken.
func (s *ApplicationState) StreamOpened(epoch uint64, info StreamInfo) bool {
	if !s.acquiring(epoch) {
		return false
	}
	s.CameraStream = &info
	s.Facing = info.Facing
	s.Phase = PhaseStreaming
	s.IsScanning = false
	return true
}

// AcquireFailed returns a failed acquisition to idle, provided it is still
// current.
func (s *ApplicationState) AcquireFailed(epoch uint64) bool {
	if !s.acquiring(epoch) {
		return false
	}
	s.StreamClosed()
	return true
}

func (s *ApplicationState) acquiring(epoch uint64) bool {
	return epoch == s.epoch && s.Phase == PhaseStarting
}

// StreamClosed returns to idle. Any analysis in flight becomes stale.
func (s *ApplicationState) StreamClosed() {
	s.CameraStream = nil
	s.Phase = PhaseIdle
	s.IsScanning = false
	s.epoch++
}

// BeginAnalysis moves streaming to analyzing and returns the epoch the
// result must present to FinishAnalysis.
func (s *ApplicationState) BeginAnalysis() (uint64, error) {
	if s.Phase != PhaseStreaming || s.CameraStream == nil {
		return 0, fmt.Errorf("%w: capture from %s", ErrInvalidTransition, s.Phase)
	}
	s.Phase = PhaseAnalyzing
	s.IsScanning = true
	return s.epoch, nil
}

// FinishAnalysis stores the result. The phase only advances when the scan
// that produced it is still current; it reports whether that was the case.
func (s *ApplicationState) FinishAnalysis(epoch uint64, result domain.ScanResult) bool {
	s.ScanResult = &result
	if epoch != s.epoch || s.Phase != PhaseAnalyzing {
		return false
	}
	s.Phase = PhaseStreaming
	s.IsScanning = false
	return true
}

// AbortAnalysis returns a failed scan to idle, provided the scan is still
// current. It reports whether the stream must be released.
func (s *ApplicationState) AbortAnalysis(epoch uint64) bool {
	if epoch != s.epoch || s.Phase != PhaseAnalyzing {
		return false
	}
	s.StreamClosed()
	return true
}

// Controls derives button enablement from the phase. Switching also needs a
// second camera.
func (s *ApplicationState) Controls() Controls {
	return Controls{
		StartScan: s.Phase == PhaseIdle,
		Capture:   s.Phase == PhaseStreaming,
		Switch:    s.Phase == PhaseStreaming && len(s.AvailableCameras) >= 2,
	}
}

// Snapshot is a read-only copy for rendering.
type Snapshot struct {
	IsAuthenticated  bool                      `json:"is_authenticated"`
	CurrentUser      *domain.UserRecord        `json:"current_user,omitempty"`
	CameraStream     *StreamInfo               `json:"camera_stream,omitempty"`
	IsScanning       bool                      `json:"is_scanning"`
	AvailableCameras []domain.CameraDescriptor `json:"available_cameras"`
	ScanResult       *domain.ScanResult        `json:"scan_result,omitempty"`
	Phase            ScanPhase                 `json:"phase"`
	Facing           domain.FacingMode         `json:"facing"`
	Online           bool                      `json:"online"`
	Modals           []Modal                   `json:"modals"`
	Controls         Controls                  `json:"controls"`
}

// Snapshot copies the state.
func (s *ApplicationState) Snapshot() Snapshot {
	snap := Snapshot{
		IsAuthenticated:  s.IsAuthenticated,
		IsScanning:       s.IsScanning,
		AvailableCameras: append([]domain.CameraDescriptor{}, s.AvailableCameras...),
		Phase:            s.Phase,
		Facing:           s.Facing,
		Online:           s.Online,
		Modals:           s.OpenModals(),
		Controls:         s.Controls(),
	}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		snap.CurrentUser = &u
	}
	if s.CameraStream != nil {
		info := *s.CameraStream
		snap.CameraStream = &info
	}
	if s.ScanResult != nil {
		r := *s.ScanResult
		r.Symptoms = append([]domain.Symptom(nil), r.Symptoms...)
		snap.ScanResult = &r
	}
	return snap
}
