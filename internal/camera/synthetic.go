package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// SyntheticOptions configures the test-pattern camera.
type SyntheticOptions struct {
	Devices        int
	Width          int
	Height         int
	DenyPermission bool
}

// SyntheticDevice emulates a platform with a number of cameras producing a
// moving test pattern. The first camera faces the user, the others face the
// environment.
type SyntheticDevice struct {
	opts   SyntheticOptions
	mu     sync.Mutex
	opened int
}

// NewSyntheticDevice builds the device.
func NewSyntheticDevice(opts SyntheticOptions) *SyntheticDevice {
	if opts.Width <= 0 {
		opts.Width = PreferredWidth
	}
	if opts.Height <= 0 {
		opts.Height = PreferredHeight
	}
	if opts.Devices < 0 {
		opts.Devices = 0
	}
	return &SyntheticDevice{opts: opts}
}

// Enumerate lists the cameras plus a microphone, as real platforms do.
func (d *SyntheticDevice) Enumerate(context.Context) ([]domain.CameraDescriptor, error) {
	devices := make([]domain.CameraDescriptor, 0, d.opts.Devices+1)
	for i := 0; i < d.opts.Devices; i++ {
		devices = append(devices, domain.CameraDescriptor{
			DeviceID: deviceID(i),
			Label:    fmt.Sprintf("Synthetic %s Camera", facingOf(i).Label()),
			Kind:     domain.DeviceKindVideoInput,
		})
	}
	devices = append(devices, domain.CameraDescriptor{
		DeviceID: "synthetic-mic-0",
		Label:    "Synthetic Microphone",
		Kind:     domain.DeviceKindAudioInput,
	})
	return devices, nil
}

// Open picks the camera matching the facing mode, or the first camera when
// none matches, and negotiates the resolution down to what it supports.
func (d *SyntheticDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.opts.DenyPermission {
		return nil, ErrPermissionDenied
	}
	if d.opts.Devices == 0 {
		return nil, ErrDeviceUnavailable
	}

	index := 0
	for i := 0; i < d.opts.Devices; i++ {
		if facingOf(i) == c.Facing {
			index = i
			break
		}
	}

	width, height := negotiate(c.Width, d.opts.Width), negotiate(c.Height, d.opts.Height)

	d.mu.Lock()
	d.opened++
	d.mu.Unlock()

	s := &syntheticStream{
		id:       uuid.NewString(),
		deviceID: deviceID(index),
		facing:   facingOf(index),
		width:    width,
		height:   height,
	}
	s.active.Store(true)
	return s, nil
}

// Opened counts the streams handed out so far.
func (d *SyntheticDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func negotiate(requested, native int) int {
	if requested <= 0 || requested > native {
		return native
	}
	return requested
}

func deviceID(i int) string {
	return fmt.Sprintf("synthetic-cam-%d", i)
}

func facingOf(i int) domain.FacingMode {
	if i == 0 {
		return domain.FacingUser
	}
	return domain.FacingEnvironment
}

type syntheticStream struct {
	id       string
	deviceID string
	facing   domain.FacingMode
	width    int
	height   int
	active   atomic.Bool
	seq      atomic.Uint64
}

func (s *syntheticStream) ID() string                { return s.id }
func (s *syntheticStream) DeviceID() string          { return s.deviceID }
func (s *syntheticStream) Facing() domain.FacingMode { return s.facing }
func (s *syntheticStream) Size() (int, int)          { return s.width, s.height }
func (s *syntheticStream) Active() bool              { return s.active.Load() }
func (s *syntheticStream) Stop()                     { s.active.Store(false) }

// Frame renders colour bars shifted by the frame sequence number.
func (s *syntheticStream) Frame() (image.Image, error) {
	if !s.Active() {
		return nil, ErrStreamInactive
	}
	shift := int(s.seq.Add(1) % 8)
	bars := []color.RGBA{
		{R: 255, G: 255, B: 255, A: 255},
		{R: 255, G: 255, A: 255},
		{G: 255, B: 255, A: 255},
		{G: 255, A: 255},
		{R: 255, B: 255, A: 255},
		{R: 255, A: 255},
		{B: 255, A: 255},
		{A: 255},
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	barWidth := s.width / len(bars)
	if barWidth == 0 {
		barWidth = 1
	}
	for x := 0; x < s.width; x++ {
		c := bars[(x/barWidth+shift)%len(bars)]
		for y := 0; y < s.height; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}
