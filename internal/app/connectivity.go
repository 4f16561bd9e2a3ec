package app

import (
	"context"
	"time"

	"github.com/spec-kit/vitalwarrior/internal/notify"
)

// Connectivity messages and how long they stay up.
const (
	MsgConnectionRestored = "Connection restored"
	MsgOffline            = "You are offline. Some features may be limited."

	onlineToastDuration  = 2 * time.Second
	offlineToastDuration = 3 * time.Second
)

// HandleOnline marks the kiosk online and replays the pending-sync queue in
// the background.
func (c *Controller) HandleOnline() {
	c.mu.Lock()
	c.state.Online = true
	c.mu.Unlock()

	c.logger.Info("application is online")
	c.notifier.Show(MsgConnectionRestored, notify.KindSuccess, onlineToastDuration)
	c.sync.Trigger()
}

// HandleOffline marks the kiosk offline.
func (c *Controller) HandleOffline() {
	c.mu.Lock()
	c.state.Online = false
	c.mu.Unlock()

	c.logger.Info("application is offline")
	c.notifier.Show(MsgOffline, notify.KindWarning, offlineToastDuration)
}

// SyncNow drains the pending-sync queue on the caller's goroutine.
func (c *Controller) SyncNow(ctx context.Context) (int, error) {
	return c.sync.DrainNow(ctx)
}
