// Package app coordinates the camera, the analysis engine, the auth façade
// and the sync queue around the single application state.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/analysis"
	"github.com/spec-kit/vitalwarrior/internal/backend"
	"github.com/spec-kit/vitalwarrior/internal/camera"
	"github.com/spec-kit/vitalwarrior/internal/config"
	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/events"
	"github.com/spec-kit/vitalwarrior/internal/notify"
	"github.com/spec-kit/vitalwarrior/internal/observability"
	"github.com/spec-kit/vitalwarrior/internal/service"
	"github.com/spec-kit/vitalwarrior/internal/state"
	"github.com/spec-kit/vitalwarrior/internal/syncqueue"
	"github.com/spec-kit/vitalwarrior/internal/worker"
	apperrors "github.com/spec-kit/vitalwarrior/pkg/util"
)

// Dependencies wires the controller.
type Dependencies struct {
	Camera   *camera.Controller
	Analyzer analysis.HealthAnalyzer
	// Backend is nil in demo mode.
	Backend  backend.Backend
	Queue    *syncqueue.Queue
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// Controller routes user actions to the subsystems. State mutation is
// serialized behind mu; slow work (camera acquisition, analysis, network)
// runs with mu released.
type Controller struct {
	mu        sync.Mutex
	state     *state.ApplicationState
	lastFrame domain.ImageBuffer

	camera     *camera.Controller
	analyzer   analysis.HealthAnalyzer
	auth       *service.AuthService
	records    backend.RecordStore
	queue      *syncqueue.Queue
	sync       *worker.SyncWorker
	notifier   notify.Notifier
	metrics    *observability.Metrics
	logger     *zap.Logger
	dispatcher events.Dispatcher
}

// New builds the controller and its event table.
func New(cfg config.Config, deps Dependencies) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	c := &Controller{
		state:      state.New(domain.ParseFacingMode(cfg.Camera.DefaultFacing)),
		camera:     deps.Camera,
		analyzer:   deps.Analyzer,
		queue:      deps.Queue,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger.Named("app"),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	var writer syncqueue.Writer
	if deps.Backend != nil {
		c.records = deps.Backend
		writer = deps.Backend
	}
	c.sync = worker.NewSyncWorker(deps.Queue, writer, deps.Metrics, deps.Logger)
	c.auth = service.NewAuthService(cfg, service.AuthDependencies{
		Backend:  deps.Backend,
		Queue:    deps.Queue,
		Notifier: deps.Notifier,
		State:    authState{c},
		Online:   c.online,
		Logger:   deps.Logger,
	})
	for t, h := range c.routes() {
		c.dispatcher.Subscribe(t, h)
	}
	return c
}

// Start enumerates cameras, restores the persisted session and starts the
// background sync worker. Failures are logged; nothing here is fatal.
func (c *Controller) Start(ctx context.Context) {
	cams, err := c.camera.Enumerate(ctx)
	if err != nil {
		c.logger.Warn("camera enumeration failed", zap.Error(err))
	}
	c.mu.Lock()
	c.state.SetCameras(cams)
	c.mu.Unlock()

	if _, err := c.auth.RestoreSession(ctx); err != nil {
		c.logger.Warn("session restore failed", zap.Error(err))
	}
	c.sync.Start(ctx)
	c.logger.Info("controller started",
		zap.Int("cameras", len(cams)),
		zap.Bool("demo_mode", c.auth.DemoMode()))
}

// Stop releases the camera and stops the sync worker.
func (c *Controller) Stop() {
	c.sync.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCameraLocked()
}

// Snapshot returns a copy of the application state.
func (c *Controller) Snapshot() state.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// LastFrame returns the most recent captured still.
func (c *Controller) LastFrame() (domain.ImageBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFrame, !c.lastFrame.Empty()
}

// Handle routes one user action through the event table.
func (c *Controller) Handle(ctx context.Context, e events.Event) error {
	c.logger.Debug("event", zap.String("id", e.ID), zap.String("type", string(e.Type)))
	return c.dispatcher.Publish(ctx, e)
}

// routes is the event-to-handler table.
func (c *Controller) routes() map[events.EventType]events.EventHandler {
	return map[events.EventType]events.EventHandler{
		events.EventOpenModal: func(_ context.Context, e events.Event) error {
			p, err := payload[events.ModalPayload](e)
			if err != nil {
				return err
			}
			return c.OpenModal(p.Modal)
		},
		events.EventCloseModal: func(_ context.Context, e events.Event) error {
			p, err := payload[events.ModalPayload](e)
			if err != nil {
				return err
			}
			return c.CloseModal(p.Modal)
		},
		events.EventStartScan: func(ctx context.Context, _ events.Event) error {
			return c.StartHealthScan(ctx)
		},
		events.EventCapture: func(ctx context.Context, _ events.Event) error {
			_, err := c.CaptureAndAnalyze(ctx)
			return err
		},
		events.EventSwitchCamera: func(ctx context.Context, _ events.Event) error {
			return c.SwitchCamera(ctx)
		},
		events.EventStopScan: func(context.Context, events.Event) error {
			c.StopScan()
			return nil
		},
		events.EventLogin: func(ctx context.Context, e events.Event) error {
			p, err := payload[events.LoginPayload](e)
			if err != nil {
				return err
			}
			_, err = c.SubmitLogin(ctx, p.Email, p.Password)
			return err
		},
		events.EventRegister: func(ctx context.Context, e events.Event) error {
			p, err := payload[events.RegisterPayload](e)
			if err != nil {
				return err
			}
			_, err = c.SubmitRegister(ctx, p)
			return err
		},
		events.EventLogout: func(ctx context.Context, _ events.Event) error {
			return c.Logout(ctx)
		},
		events.EventOAuth: func(ctx context.Context, e events.Event) error {
			p, err := payload[events.OAuthPayload](e)
			if err != nil {
				return err
			}
			_, err = c.SignInWithOAuth(ctx, p.Provider)
			return err
		},
		events.EventContact: func(ctx context.Context, e events.Event) error {
			p, err := payload[events.ContactPayload](e)
			if err != nil {
				return err
			}
			return c.SubmitContact(ctx, p.Name, p.Email, p.Message)
		},
		events.EventOnline: func(context.Context, events.Event) error {
			c.HandleOnline()
			return nil
		},
		events.EventOffline: func(context.Context, events.Event) error {
			c.HandleOffline()
			return nil
		},
	}
}

// payload extracts a typed payload, accepting the value, a pointer to it or
// its JSON encoding.
func payload[T any](e events.Event) (T, error) {
	var zero T
	switch p := e.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	case json.RawMessage:
		var v T
		if err := json.Unmarshal(p, &v); err == nil {
			return v, nil
		}
	}
	return zero, apperrors.NewValidationError(fmt.Sprintf("invalid payload for %s", e.Type), nil)
}

// OpenModal opens a modal channel.
func (c *Controller) OpenModal(name string) error {
	m, err := state.ParseModal(name)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"modal": name})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.OpenModal(m)
	return nil
}

// CloseModal closes a modal channel. Closing the camera modal always stops
// the stream.
func (c *Controller) CloseModal(name string) error {
	m, err := state.ParseModal(name)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"modal": name})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.CloseModal(m) {
		c.stopCameraLocked()
	}
	return nil
}

func (c *Controller) online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Online
}

// authState applies auth transitions to the application state.
type authState struct {
	c *Controller
}

func (a authState) SignedIn(user domain.UserRecord) {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	a.c.state.SignIn(user)
}

func (a authState) SignedOut() {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	a.c.state.SignOut()
}
