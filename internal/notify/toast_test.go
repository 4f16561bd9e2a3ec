package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSinkShowsAndAutoHides(t *testing.T) {
	s := NewSink(nil, time.Second)
	s.Show("Connection restored", KindSuccess, 20*time.Millisecond)

	toast, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "Connection restored", toast.Message)
	assert.Equal(t, KindSuccess, toast.Kind)

	assert.Eventually(t, func() bool {
		_, visible := s.Current()
		return !visible
	}, time.Second, 5*time.Millisecond)
}

func TestSinkReplacesVisibleToast(t *testing.T) {
	s := NewSink(nil, time.Second)
	defer s.Hide()

	s.Show("first", KindInfo, 30*time.Millisecond)
	s.Show("second", KindError, time.Hour)

	time.Sleep(60 * time.Millisecond)
	toast, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "second", toast.Message)
	assert.Equal(t, uint64(2), toast.ID)
}

func TestSinkDefaultDuration(t *testing.T) {
	s := NewSink(nil, 0)
	defer s.Hide()

	s.Show("hello", KindInfo, 0)
	toast, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, toast.Duration)
}

func TestSinkHideClearsToast(t *testing.T) {
	s := NewSink(nil, time.Hour)
	s.Show("You are offline. Some features may be limited.", KindWarning, 0)
	_, ok := s.Current()
	require.True(t, ok)

	s.Hide()
	_, ok = s.Current()
	assert.False(t, ok)
}
