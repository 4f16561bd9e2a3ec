// Package camera acquires and releases capture streams and turns the
// current frame into an encoded still.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/spec-kit/vitalwarrior/internal/config"
	"github.com/spec-kit/vitalwarrior/internal/domain"
)

var (
	// ErrPermissionDenied is returned when the platform refuses access.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDeviceUnavailable is returned when no device matches the request.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrStreamInactive is returned when a still is requested without a live stream.
	ErrStreamInactive = errors.New("camera stream not active")
	// ErrNoAdditionalCamera is returned by a switch with fewer than two devices.
	ErrNoAdditionalCamera = errors.New("no additional cameras available")
	// ErrSuperseded is returned by an acquisition overtaken by Close or a
	// newer acquisition; the stream it opened has already been stopped.
	ErrSuperseded = errors.New("camera acquisition superseded")
)

// Preferred capture resolution; devices may negotiate down.
const (
	PreferredWidth  = 1280
	PreferredHeight = 720
)

// Constraints describe the requested stream. Capture is video only.
type Constraints struct {
	Facing domain.FacingMode
	Width  int
	Height int
}

// DefaultConstraints requests 1280x720 at the given facing mode.
func DefaultConstraints(facing domain.FacingMode) Constraints {
	return Constraints{Facing: facing, Width: PreferredWidth, Height: PreferredHeight}
}

// Device is the platform capture API.
type Device interface {
	// Enumerate lists the media devices the platform knows about.
	Enumerate(ctx context.Context) ([]domain.CameraDescriptor, error)
	// Open requests a stream matching c.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live video capture. Stop releases every underlying track and
// is safe to call more than once.
type Stream interface {
	ID() string
	DeviceID() string
	Facing() domain.FacingMode
	Size() (width, height int)
	Active() bool
	Frame() (image.Image, error)
	Stop()
}

// Driver names accepted by NewDevice.
const (
	DriverSynthetic = "synthetic"
	DriverNone      = "none"
)

// NewDevice builds the capture device selected by configuration.
func NewDevice(cfg config.CameraConfig) (Device, error) {
	switch cfg.Driver {
	case DriverSynthetic, "":
		return NewSyntheticDevice(SyntheticOptions{
			Devices:        cfg.Devices,
			Width:          cfg.Width,
			Height:         cfg.Height,
			DenyPermission: cfg.DenyPermission,
		}), nil
	case DriverNone:
		return NoDevice{}, nil
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.Driver)
	}
}

// NoDevice is a platform without cameras.
type NoDevice struct{}

// Enumerate returns no devices.
func (NoDevice) Enumerate(context.Context) ([]domain.CameraDescriptor, error) {
	return nil, nil
}

// Open always fails.
func (NoDevice) Open(context.Context, Constraints) (Stream, error) {
	return nil, ErrDeviceUnavailable
}
