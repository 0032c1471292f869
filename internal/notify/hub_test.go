package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordlechain/internal/types"
)

func TestNotifyBroadcasts(t *testing.T) {
	h := NewHub(5)
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Notify(types.LevelSuccess, "Your guess was correct!!")

	select {
	case ev := <-ch:
		assert.Equal(t, KindToast, ev.Kind)
		assert.Equal(t, types.LevelSuccess, ev.Notification.Level)
		assert.Equal(t, "Your guess was correct!!", ev.Notification.Message)
		assert.NotEmpty(t, ev.Notification.ID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestRefreshEvent(t *testing.T) {
	h := NewHub(5)
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Refresh()
	ev := <-ch
	assert.Equal(t, KindRefresh, ev.Kind)
}

func TestBacklogIsBounded(t *testing.T) {
	h := NewHub(2)
	start := time.Now().Add(-time.Second)
	h.Notify(types.LevelInfo, "one")
	h.Notify(types.LevelInfo, "two")
	h.Notify(types.LevelInfo, "three")

	got := h.Since(start)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Message)
	assert.Equal(t, "three", got[1].Message)
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(0)
	_, unsubscribe := h.Subscribe()
	assert.Equal(t, 1, h.SubscriberCount())
	unsubscribe()
	assert.Equal(t, 0, h.SubscriberCount())
	h.Notify(types.LevelError, "nobody listening")
}
