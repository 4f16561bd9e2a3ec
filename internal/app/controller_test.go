package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spec-kit/vitalwarrior/internal/analysis"
	"github.com/spec-kit/vitalwarrior/internal/backend"
	"github.com/spec-kit/vitalwarrior/internal/camera"
	"github.com/spec-kit/vitalwarrior/internal/config"
	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/events"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/notify/notifytest"
	"github.com/spec-kit/vitalwarrior/internal/observability"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
	"github.com/spec-kit/vitalwarrior/internal/state"
	"github.com/spec-kit/vitalwarrior/internal/syncqueue"
	"github.com/spec-kit/vitalwarrior/internal/validation"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend signs everyone in and records writes.
type fakeBackend struct {
	mu       sync.Mutex
	listener backend.AuthListener
	signIns  int
	signUps  int
	inserts  []json.RawMessage
	offline  bool
}

func (b *fakeBackend) Insert(_ context.Context, _ string, record any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return apperrors.NewNetworkOffline(nil)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if rm, ok := record.(json.RawMessage); ok {
		raw = rm
	}
	b.inserts = append(b.inserts, raw)
	return nil
}

func (b *fakeBackend) Upsert(context.Context, string, any) error { return nil }

func (b *fakeBackend) GetSession(context.Context) (*domain.Session, error) { return nil, nil }

func (b *fakeBackend) OnAuthStateChange(l backend.AuthListener) { b.listener = l }

func (b *fakeBackend) SignIn(_ context.Context, email, _ string) (*domain.Session, error) {
	b.mu.Lock()
	b.signIns++
	b.mu.Unlock()
	return &domain.Session{AccessToken: "t", User: domain.UserRecord{ID: "u-1", Email: email, StudentID: "UE-00000001"}}, nil
}

func (b *fakeBackend) SignUp(_ context.Context, p domain.RegistrationProfile) (*backend.SignUpResult, error) {
	b.mu.Lock()
	b.signUps++
	b.mu.Unlock()
	return &backend.SignUpResult{User: p.User("u-2")}, nil
}

func (b *fakeBackend) SignOut(context.Context) error { return nil }

func (b *fakeBackend) OAuthURL(context.Context, string, string) (string, error) {
	return "https://auth.example/authorize", nil
}

func (b *fakeBackend) insertCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inserts)
}

func (b *fakeBackend) setOffline(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = v
}

// gatedAnalyzer blocks until released so a test can act mid-analysis.
type gatedAnalyzer struct {
	started chan struct{}
	release chan struct{}
	inner   *analysis.MockAnalyzer
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, frame domain.ImageBuffer, user *domain.UserRecord) (domain.ScanResult, error) {
	close(g.started)
	<-g.release
	return g.inner.Analyze(ctx, frame, user)
}

type harness struct {
	ctrl    *Controller
	rec     *notifytest.Recorder
	queue   *syncqueue.Queue
	device  *camera.SyntheticDevice
	metrics *observability.Metrics
}

func newHarness(t *testing.T, opts camera.SyntheticOptions, b backend.Backend, analyzer analysis.HealthAnalyzer) *harness {
	t.Helper()
	dev := camera.NewSyntheticDevice(opts)
	return newHarnessWithDevice(t, dev, dev, b, analyzer)
}

// newHarnessWithDevice drives the controller through dev; synthetic is the
// device that ends up producing the streams.
func newHarnessWithDevice(t *testing.T, dev camera.Device, synthetic *camera.SyntheticDevice, b backend.Backend, analyzer analysis.HealthAnalyzer) *harness {
	t.Helper()
	var cfg config.Config
	cfg.Camera.DefaultFacing = string(domain.FacingUser)

	if analyzer == nil {
		analyzer = analysis.NewMockAnalyzer(analysis.WithDelay(0), analysis.WithSeed(7))
	}
	h := &harness{
		rec:     &notifytest.Recorder{},
		queue:   syncqueue.New(persistence.NewMemorySlots(), nil),
		device:  synthetic,
		metrics: observability.NewMetrics(),
	}
	h.ctrl = New(cfg, Dependencies{
		Camera:   camera.NewController(dev, domain.FacingUser, 0, nil),
		Analyzer: analyzer,
		Backend:  b,
		Queue:    h.queue,
		Notifier: h.rec,
		Metrics:  h.metrics,
	})
	h.ctrl.Start(context.Background())
	t.Cleanup(h.ctrl.Stop)
	return h
}

func (h *harness) last(t *testing.T) notify.Toast {
	t.Helper()
	toast, ok := h.rec.Last()
	require.True(t, ok, "expected a notification")
	return toast
}

func TestScanLifecycle(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, nil, nil)
	ctx := context.Background()

	require.NoError(t, h.ctrl.StartHealthScan(ctx))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseStreaming, snap.Phase)
	assert.Contains(t, snap.Modals, state.ModalCamera)
	require.NotNil(t, snap.CameraStream)
	assert.Equal(t, 1280, snap.CameraStream.Width)
	assert.Equal(t, state.Controls{Capture: true}, snap.Controls)

	result, err := h.ctrl.CaptureAndAnalyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PlaceholderStudentID, result.StudentID)
	assert.Equal(t, result.HasSymptom(domain.SymptomFever), result.Status == domain.HealthStatusWarning)

	snap = h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseStreaming, snap.Phase)
	assert.False(t, snap.IsScanning)
	require.NotNil(t, snap.ScanResult)

	frame, ok := h.ctrl.LastFrame()
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", frame.MIMEType)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Scans[string(result.Status)])

	h.ctrl.StopScan()
	snap = h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.CameraStream)
	assert.NotContains(t, snap.Modals, state.ModalCamera)
}

func TestStartScanPermissionDenied(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 1, DenyPermission: true}, nil, nil)

	err := h.ctrl.StartHealthScan(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))

	toast := h.last(t)
	assert.Equal(t, MsgCameraAccessFailed, toast.Message)
	assert.Equal(t, notify.KindError, toast.Kind)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Modals)
}

func TestCaptureWithoutStream(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, nil, nil)

	_, err := h.ctrl.CaptureAndAnalyze(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStreamInactive))
	assert.Equal(t, MsgCameraNotReady, h.last(t).Message)
}

func TestSwitchWithSingleCameraLeavesStream(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, nil, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartHealthScan(ctx))
	before := h.ctrl.Snapshot().CameraStream

	require.Error(t, h.ctrl.SwitchCamera(ctx))
	toast := h.last(t)
	assert.Equal(t, MsgNoAdditionalCamera, toast.Message)
	assert.Equal(t, notify.KindWarning, toast.Kind)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseStreaming, snap.Phase)
	assert.Equal(t, before, snap.CameraStream)
	assert.Equal(t, 1, h.device.Opened())
}

func TestSwitchToBackCamera(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 2}, nil, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartHealthScan(ctx))
	assert.True(t, h.ctrl.Snapshot().Controls.Switch)

	require.NoError(t, h.ctrl.SwitchCamera(ctx))
	toast := h.last(t)
	assert.Equal(t, "Switched to Back Camera", toast.Message)
	assert.Equal(t, notify.KindInfo, toast.Kind)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, domain.FacingEnvironment, snap.Facing)
	assert.Equal(t, domain.FacingEnvironment, snap.CameraStream.Facing)
	assert.Equal(t, state.PhaseStreaming, snap.Phase)
}

// gatedCamera holds every Open until the test releases its gate.
type gatedCamera struct {
	*camera.SyntheticDevice
	gates chan chan struct{}
}

func newGatedCamera(opts camera.SyntheticOptions) *gatedCamera {
	return &gatedCamera{SyntheticDevice: camera.NewSyntheticDevice(opts), gates: make(chan chan struct{}, 4)}
}

func (d *gatedCamera) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	gate := make(chan struct{})
	d.gates <- gate
	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.SyntheticDevice.Open(ctx, c)
}

func TestRestartWhileCameraOpening(t *testing.T) {
	for _, staleFirst := range []bool{true, false} {
		name := "new start finishes first"
		if staleFirst {
			name = "abandoned start finishes first"
		}
		t.Run(name, func(t *testing.T) {
			dev := newGatedCamera(camera.SyntheticOptions{Devices: 1})
			h := newHarnessWithDevice(t, dev, dev.SyntheticDevice, nil, nil)
			ctx := context.Background()

			abandoned := make(chan error, 1)
			go func() { abandoned <- h.ctrl.StartHealthScan(ctx) }()
			abandonedGate := <-dev.gates

			h.ctrl.StopScan()
			assert.Equal(t, state.PhaseIdle, h.ctrl.Snapshot().Phase)

			restarted := make(chan error, 1)
			go func() { restarted <- h.ctrl.StartHealthScan(ctx) }()
			restartedGate := <-dev.gates

			if staleFirst {
				close(abandonedGate)
				require.NoError(t, <-abandoned)
				assert.Equal(t, state.PhaseStarting, h.ctrl.Snapshot().Phase)
				close(restartedGate)
				require.NoError(t, <-restarted)
			} else {
				close(restartedGate)
				require.NoError(t, <-restarted)
				close(abandonedGate)
				require.NoError(t, <-abandoned)
			}

			snap := h.ctrl.Snapshot()
			require.Equal(t, state.PhaseStreaming, snap.Phase)
			require.NotNil(t, snap.CameraStream)
			assert.Contains(t, snap.Modals, state.ModalCamera)
			assert.Equal(t, 2, h.device.Opened())

			_, err := h.ctrl.CaptureAndAnalyze(ctx)
			require.NoError(t, err)
			assert.Equal(t, state.PhaseStreaming, h.ctrl.Snapshot().Phase)
		})
	}
}

func TestStopDuringSwitchReleasesNewStream(t *testing.T) {
	dev := newGatedCamera(camera.SyntheticOptions{Devices: 2})
	h := newHarnessWithDevice(t, dev, dev.SyntheticDevice, nil, nil)
	ctx := context.Background()

	started := make(chan error, 1)
	go func() { started <- h.ctrl.StartHealthScan(ctx) }()
	close(<-dev.gates)
	require.NoError(t, <-started)

	switched := make(chan error, 1)
	go func() { switched <- h.ctrl.SwitchCamera(ctx) }()
	switchGate := <-dev.gates

	h.ctrl.StopScan()
	close(switchGate)
	require.NoError(t, <-switched)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.CameraStream)
	_, err := h.ctrl.CaptureAndAnalyze(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStreamInactive))
}

// userOnlyCamera ignores the requested facing mode.
type userOnlyCamera struct {
	*camera.SyntheticDevice
}

func (d userOnlyCamera) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	c.Facing = domain.FacingUser
	return d.SyntheticDevice.Open(ctx, c)
}

func TestSwitchToastNamesRequestedFacing(t *testing.T) {
	dev := userOnlyCamera{camera.NewSyntheticDevice(camera.SyntheticOptions{Devices: 2})}
	h := newHarnessWithDevice(t, dev, dev.SyntheticDevice, nil, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartHealthScan(ctx))

	require.NoError(t, h.ctrl.SwitchCamera(ctx))
	assert.Equal(t, "Switched to Back Camera", h.last(t).Message)
}

func TestClosingCameraModalMidAnalysis(t *testing.T) {
	gate := &gatedAnalyzer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		inner:   analysis.NewMockAnalyzer(analysis.WithDelay(0), analysis.WithSeed(3)),
	}
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, nil, gate)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartHealthScan(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.CaptureAndAnalyze(ctx)
		done <- err
	}()
	<-gate.started
	assert.Equal(t, state.PhaseAnalyzing, h.ctrl.Snapshot().Phase)

	require.NoError(t, h.ctrl.CloseModal("camera"))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.CameraStream)

	close(gate.release)
	require.NoError(t, <-done)

	snap = h.ctrl.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	assert.False(t, snap.IsScanning)
	assert.NotNil(t, snap.ScanResult)
}

func TestLoginShortPasswordRejectedLocally(t *testing.T) {
	b := &fakeBackend{}
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, b, nil)

	_, err := h.ctrl.SubmitLogin(context.Background(), "ana@uni.edu", "12345")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	assert.Equal(t, validation.MsgLoginPasswordShort, h.last(t).Message)
	assert.Zero(t, b.signIns)
}

func TestRegisterMismatchRejectedLocally(t *testing.T) {
	b := &fakeBackend{}
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, b, nil)

	_, err := h.ctrl.SubmitRegister(context.Background(), domain.RegistrationProfile{
		FirstName:       "Bo",
		LastName:        "Chen",
		StudentID:       "UE-00000002",
		Email:           "bo@uni.edu",
		Password:        "password1",
		ConfirmPassword: "password2",
	})
	require.Error(t, err)
	assert.Equal(t, validation.MsgPasswordMismatch, h.last(t).Message)
	assert.Zero(t, b.signUps)
}

func TestLoginClosesModal(t *testing.T) {
	b := &fakeBackend{}
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, b, nil)
	require.NoError(t, h.ctrl.OpenModal("login"))

	user, err := h.ctrl.SubmitLogin(context.Background(), "ana@uni.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Modals)
}

func TestOfflineHealthRecordsQueueAndDrain(t *testing.T) {
	b := &fakeBackend{}
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, b, nil)
	ctx := context.Background()

	_, err := h.ctrl.SubmitLogin(ctx, "ana@uni.edu", "secret1")
	require.NoError(t, err)

	h.ctrl.HandleOffline()
	toast := h.last(t)
	assert.Equal(t, MsgOffline, toast.Message)
	assert.Equal(t, 3*time.Second, toast.Duration)

	require.NoError(t, h.ctrl.StartHealthScan(ctx))
	first, err := h.ctrl.CaptureAndAnalyze(ctx)
	require.NoError(t, err)
	second, err := h.ctrl.CaptureAndAnalyze(ctx)
	require.NoError(t, err)

	pending, err := h.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Zero(t, b.insertCount())
	assert.Equal(t, int64(2), h.metrics.Snapshot().Queued)

	h.ctrl.HandleOnline()
	assert.Equal(t, MsgConnectionRestored, h.last(t).Message)
	require.Eventually(t, func() bool { return b.insertCount() == 2 }, time.Second, 5*time.Millisecond)

	var rows [2]domain.HealthRecord
	b.mu.Lock()
	require.NoError(t, json.Unmarshal(b.inserts[0], &rows[0]))
	require.NoError(t, json.Unmarshal(b.inserts[1], &rows[1]))
	b.mu.Unlock()
	assert.Equal(t, first.TemperatureLabel(), rows[0].Temperature)
	assert.Equal(t, second.TemperatureLabel(), rows[1].Temperature)
	assert.Equal(t, "u-1", rows[0].UserID)

	require.Eventually(t, func() bool {
		p, err := h.queue.Pending(ctx)
		return err == nil && len(p) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestNetworkFailureQueuesHealthRecord(t *testing.T) {
	b := &fakeBackend{}
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, b, nil)
	ctx := context.Background()
	_, err := h.ctrl.SubmitLogin(ctx, "ana@uni.edu", "secret1")
	require.NoError(t, err)
	require.NoError(t, h.ctrl.StartHealthScan(ctx))

	b.setOffline(true)
	_, err = h.ctrl.CaptureAndAnalyze(ctx)
	require.NoError(t, err)

	pending, err := h.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	b.setOffline(false)
	n, err := h.ctrl.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestContactForm(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, nil, nil)
	ctx := context.Background()

	require.Error(t, h.ctrl.SubmitContact(ctx, "Ana", "ana@uni.edu", ""))
	assert.Equal(t, validation.MsgContactFieldsMissing, h.last(t).Message)

	require.NoError(t, h.ctrl.SubmitContact(ctx, "Ana", "ana@uni.edu", "Hello"))
	assert.Equal(t, MsgContactSent, h.last(t).Message)
}

func TestContactConfirmsWithoutWaiting(t *testing.T) {
	var cfg config.Config
	cfg.Auth.DemoDelay = time.Hour
	rec := &notifytest.Recorder{}
	ctrl := New(cfg, Dependencies{
		Camera:   camera.NewController(camera.NoDevice{}, domain.FacingUser, 0, nil),
		Analyzer: analysis.NewMockAnalyzer(),
		Queue:    syncqueue.New(persistence.NewMemorySlots(), nil),
		Notifier: rec,
		Metrics:  observability.NewMetrics(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ctrl.SubmitContact(ctx, "Ana", "ana@uni.edu", "Hello"))
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, MsgContactSent, last.Message)
}

func TestEventTableRoutesActions(t *testing.T) {
	h := newHarness(t, camera.SyntheticOptions{Devices: 1}, nil, nil)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventOpenModal, events.ModalPayload{Modal: "register"})))
	assert.Equal(t, []state.Modal{state.ModalRegister}, h.ctrl.Snapshot().Modals)

	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventCloseModal, json.RawMessage(`{"modal":"register"}`))))
	assert.Empty(t, h.ctrl.Snapshot().Modals)

	err := h.ctrl.Handle(ctx, events.New(events.EventLogin, "not a payload"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	err = h.ctrl.Handle(ctx, events.New(events.EventOpenModal, events.ModalPayload{Modal: "settings"}))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventStartScan, nil)))
	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventCapture, nil)))
	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventStopScan, nil)))
	assert.Equal(t, state.PhaseIdle, h.ctrl.Snapshot().Phase)

	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventOffline, nil)))
	assert.False(t, h.ctrl.Snapshot().Online)
	require.NoError(t, h.ctrl.Handle(ctx, events.New(events.EventOnline, nil)))
	assert.True(t, h.ctrl.Snapshot().Online)
}
