package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// DefaultJPEGQuality matches a 0.8 lossy encode.
const DefaultJPEGQuality = 80

// Controller owns the single active stream. Acquiring a new stream always
// releases the previous one first. The device is opened without holding the
// lock; a Close or a newer acquisition issued meanwhile supersedes it.
type Controller struct {
	mu      sync.Mutex
	device  Device
	logger  *zap.Logger
	quality int
	facing  domain.FacingMode
	cameras []domain.CameraDescriptor
	stream  Stream
	gen     uint64
}

// NewController builds a controller over device.
func NewController(device Device, facing domain.FacingMode, quality int, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Controller{
		device:  device,
		logger:  logger.Named("camera"),
		quality: quality,
		facing:  facing,
	}
}

// Enumerate lists the video inputs once; later calls return the cached list.
func (c *Controller) Enumerate(ctx context.Context) ([]domain.CameraDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cameras != nil {
		return append([]domain.CameraDescriptor(nil), c.cameras...), nil
	}

	devices, err := c.device.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	cams := make([]domain.CameraDescriptor, 0, len(devices))
	for _, d := range devices {
		if d.IsVideoInput() {
			cams = append(cams, d)
		}
	}
	c.cameras = cams
	c.logger.Info("cameras enumerated", zap.Int("count", len(cams)))
	return append([]domain.CameraDescriptor(nil), cams...), nil
}

// Facing returns the remembered facing mode.
func (c *Controller) Facing() domain.FacingMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

// Open acquires a stream at facing, closing any current stream first.
func (c *Controller) Open(ctx context.Context, facing domain.FacingMode) (Stream, error) {
	c.mu.Lock()
	c.closeLocked()
	c.facing = facing
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	return c.acquire(ctx, gen, facing)
}

// Close stops the current stream and supersedes any acquisition in flight.
// It is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.closeLocked()
}

// Release stops s, forgetting it when it is still the current stream.
func (c *Controller) Release(s Stream) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == s {
		c.closeLocked()
		return
	}
	s.Stop()
}

// SwitchFacing closes the stream, flips the facing mode and reopens. With
// fewer than two enumerated cameras it leaves everything untouched.
func (c *Controller) SwitchFacing(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	if len(c.cameras) < 2 {
		c.mu.Unlock()
		return nil, ErrNoAdditionalCamera
	}
	c.closeLocked()
	c.facing = c.facing.Flip()
	c.gen++
	gen, facing := c.gen, c.facing
	c.mu.Unlock()
	return c.acquire(ctx, gen, facing)
}

// CaptureStill encodes the current frame at native resolution as JPEG.
func (c *Controller) CaptureStill() (domain.ImageBuffer, error) {
	c.mu.Lock()
	stream := c.stream
	quality := c.quality
	c.mu.Unlock()

	if stream == nil || !stream.Active() {
		return domain.ImageBuffer{}, apperrors.NewStreamInactive("Camera not initialized.")
	}
	frame, err := stream.Frame()
	if err != nil {
		if errors.Is(err, ErrStreamInactive) {
			return domain.ImageBuffer{}, apperrors.NewStreamInactive("Camera not initialized.")
		}
		return domain.ImageBuffer{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return domain.ImageBuffer{}, err
	}
	bounds := frame.Bounds()
	return domain.ImageBuffer{
		ID:       uuid.NewString(),
		MIMEType: "image/jpeg",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Data:     buf.Bytes(),
	}, nil
}

func (c *Controller) acquire(ctx context.Context, gen uint64, facing domain.FacingMode) (Stream, error) {
	stream, err := c.device.Open(ctx, DefaultConstraints(facing))

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		if stream != nil {
			stream.Stop()
		}
		c.logger.Info("camera acquisition superseded", zap.String("facing", string(facing)))
		return nil, ErrSuperseded
	}
	if err != nil {
		c.logger.Warn("camera open failed", zap.String("facing", string(facing)), zap.Error(err))
		return nil, classify(err)
	}
	c.stream = stream
	w, h := stream.Size()
	c.logger.Info("camera stream started",
		zap.String("stream_id", stream.ID()),
		zap.String("device_id", stream.DeviceID()),
		zap.String("facing", string(stream.Facing())),
		zap.Int("width", w),
		zap.Int("height", h))
	return stream, nil
}

func (c *Controller) closeLocked() {
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.logger.Info("camera stream stopped", zap.String("stream_id", c.stream.ID()))
	c.stream = nil
}

func classify(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return apperrors.NewPermissionDenied("camera permission denied", err)
	}
	return apperrors.NewDeviceUnavailable("camera unavailable", err)
}
