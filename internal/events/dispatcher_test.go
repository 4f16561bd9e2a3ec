package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	var calls []string
	d.Subscribe(EventLogin, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.Payload.(LoginPayload).Email)
		return boom
	})
	d.Subscribe(EventLogin, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Publish(context.Background(), New(EventLogin, LoginPayload{Email: "ana@uni.edu"}))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:ana@uni.edu", "second"}, calls)
}

func TestPublishWithoutHandler(t *testing.T) {
	err := NewInMemoryDispatcher().Publish(context.Background(), New(EventOffline, nil))
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestNewStampsEvent(t *testing.T) {
	e := New(EventOnline, nil)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventOnline, e.Type)
}
