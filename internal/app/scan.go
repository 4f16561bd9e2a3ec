package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/camera"
	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/state"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// User-facing scan messages.
const (
	MsgCameraAccessFailed = "Failed to access camera. Please check permissions."
	MsgCameraNotReady     = "Camera not initialized."
	MsgAnalysisFailed     = "Health analysis failed. Please try again."
	MsgNoAdditionalCamera = "No additional cameras available."
	MsgSwitchCameraFailed = "Failed to switch camera."
	msgSwitchedCameraFmt  = "Switched to %s Camera"
	scanStatusFailed      = "failed"
)

// StartHealthScan opens the camera modal and acquires a stream.
func (c *Controller) StartHealthScan(ctx context.Context) error {
	c.mu.Lock()
	c.state.OpenModal(state.ModalCamera)
	epoch, err := c.state.BeginStart()
	if err != nil {
		c.mu.Unlock()
		return apperrors.NewConflict("scan already started", err)
	}
	facing := c.state.Facing
	c.mu.Unlock()

	stream, err := c.camera.Open(ctx, facing)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !c.state.AcquireFailed(epoch) || errors.Is(err, camera.ErrSuperseded) {
			// Closed while the camera was being acquired.
			return nil
		}
		c.logger.Warn("start health scan failed", zap.Error(err))
		c.state.CloseModal(state.ModalCamera)
		c.notifier.Show(MsgCameraAccessFailed, notify.KindError, 0)
		return err
	}
	if !c.state.StreamOpened(epoch, streamInfo(stream)) {
		c.camera.Release(stream)
	}
	return nil
}

// CaptureAndAnalyze captures a still from the live stream and runs the
// analysis on it. Authenticated results are saved, or queued when offline.
func (c *Controller) CaptureAndAnalyze(ctx context.Context) (*domain.ScanResult, error) {
	c.mu.Lock()
	if c.state.CameraStream == nil {
		c.mu.Unlock()
		c.notifier.Show(MsgCameraNotReady, notify.KindError, 0)
		return nil, apperrors.NewStreamInactive(MsgCameraNotReady)
	}
	epoch, err := c.state.BeginAnalysis()
	if err != nil {
		c.mu.Unlock()
		return nil, apperrors.NewConflict("analysis already running", err)
	}
	var user *domain.UserRecord
	if c.state.CurrentUser != nil {
		u := *c.state.CurrentUser
		user = &u
	}
	c.mu.Unlock()

	frame, err := c.camera.CaptureStill()
	if err != nil {
		msg := MsgAnalysisFailed
		if apperrors.HasCode(err, apperrors.CodeStreamInactive) {
			msg = MsgCameraNotReady
		}
		c.failScan(epoch, msg, err)
		return nil, err
	}

	c.mu.Lock()
	c.lastFrame = frame
	c.mu.Unlock()

	start := time.Now()
	result, err := c.analyzer.Analyze(ctx, frame, user)
	took := time.Since(start)
	if err != nil {
		c.failScan(epoch, MsgAnalysisFailed, err)
		return nil, err
	}
	c.metrics.RecordScan(string(result.Status), took)

	c.mu.Lock()
	current := c.state.FinishAnalysis(epoch, result)
	authenticated := c.state.IsAuthenticated && c.state.CurrentUser != nil
	var userID string
	if authenticated {
		userID = c.state.CurrentUser.ID
	}
	c.mu.Unlock()

	c.logger.Info("health scan finished",
		zap.String("frame_id", frame.ID),
		zap.String("status", string(result.Status)),
		zap.Float64("temperature", result.TemperatureCelsius),
		zap.Bool("current", current),
		zap.Duration("took", took))

	if authenticated {
		c.saveHealthRecord(ctx, domain.HealthRecordFor(userID, result))
	}
	return &result, nil
}

// SwitchCamera replaces the stream with one at the opposite facing mode.
func (c *Controller) SwitchCamera(ctx context.Context) error {
	c.mu.Lock()
	if len(c.state.AvailableCameras) < 2 {
		c.mu.Unlock()
		c.notifier.Show(MsgNoAdditionalCamera, notify.KindWarning, 0)
		return apperrors.NewConflict(MsgNoAdditionalCamera, camera.ErrNoAdditionalCamera)
	}
	epoch, err := c.state.BeginSwitch()
	if err != nil {
		c.mu.Unlock()
		return apperrors.NewConflict("camera not streaming", err)
	}
	c.mu.Unlock()

	stream, err := c.camera.SwitchFacing(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(err, camera.ErrNoAdditionalCamera) {
		// The current stream was left running.
		if live := c.state.CameraStream; live != nil {
			c.state.StreamOpened(epoch, *live)
		}
		c.notifier.Show(MsgNoAdditionalCamera, notify.KindWarning, 0)
		return apperrors.NewConflict(MsgNoAdditionalCamera, err)
	}
	if err != nil {
		if !c.state.AcquireFailed(epoch) || errors.Is(err, camera.ErrSuperseded) {
			return nil
		}
		c.logger.Warn("switch camera failed", zap.Error(err))
		c.notifier.Show(MsgSwitchCameraFailed, notify.KindError, 0)
		return err
	}
	if !c.state.StreamOpened(epoch, streamInfo(stream)) {
		c.camera.Release(stream)
		return nil
	}
	c.notifier.Show(fmt.Sprintf(msgSwitchedCameraFmt, c.camera.Facing().Label()), notify.KindInfo, 0)
	return nil
}

// StopScan closes the camera modal, which releases the stream.
func (c *Controller) StopScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.CloseModal(state.ModalCamera) {
		c.stopCameraLocked()
	}
}

func (c *Controller) failScan(epoch uint64, msg string, err error) {
	c.logger.Warn("health scan failed", zap.Error(err))
	c.metrics.RecordScan(scanStatusFailed, 0)
	c.mu.Lock()
	if c.state.AbortAnalysis(epoch) {
		c.camera.Close()
	}
	c.mu.Unlock()
	c.notifier.Show(msg, notify.KindError, 0)
}

func (c *Controller) stopCameraLocked() {
	c.camera.Close()
	c.state.StreamClosed()
}

// saveHealthRecord writes the record, queueing it while offline or when the
// write fails for lack of connectivity.
func (c *Controller) saveHealthRecord(ctx context.Context, rec domain.HealthRecord) {
	if c.records == nil {
		c.logger.Debug("demo mode, health record not persisted")
		return
	}
	if c.online() {
		err := c.records.Insert(ctx, domain.TableHealthRecords, rec)
		if err == nil {
			c.logger.Info("health record saved", zap.String("user_id", rec.UserID))
			return
		}
		if !apperrors.IsOffline(err) {
			c.logger.Error("failed to save health record", zap.Error(err))
			return
		}
	}
	if _, err := c.queue.Enqueue(ctx, domain.SyncHealthRecord, rec); err != nil {
		c.logger.Error("queue health record failed", zap.Error(err))
		return
	}
	c.metrics.RecordQueued()
}

func streamInfo(s camera.Stream) state.StreamInfo {
	w, h := s.Size()
	return state.StreamInfo{
		ID:       s.ID(),
		DeviceID: s.DeviceID(),
		Facing:   s.Facing(),
		Width:    w,
		Height:   h,
	}
}
