// Package notify fans toast notifications out to every open page.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"wordlechain/internal/types"
)

// Notifier is what the controllers push toasts and board refreshes into.
type Notifier interface {
	Notify(level types.Level, message string)
	Refresh()
}

// Event is what subscribers receive. Kind is "toast" for a notification or
// "refresh" when confirmed chain state changed and the board should reload.
type Event struct {
	Kind         string
	Notification types.Notification
}

const (
	KindToast   = "toast"
	KindRefresh = "refresh"

	subscriberBuffer = 16
	sendTimeout      = 2 * time.Second
)

// Hub keeps a bounded backlog of recent notifications and broadcasts new
// ones to subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	backlog     []types.Notification
	maxBacklog  int
}

func NewHub(maxBacklog int) *Hub {
	if maxBacklog <= 0 {
		maxBacklog = 20
	}
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
		maxBacklog:  maxBacklog,
	}
}

// Notify records a toast and broadcasts it.
func (h *Hub) Notify(level types.Level, message string) {
	n := types.Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		At:      time.Now(),
	}
	h.mu.Lock()
	h.backlog = append(h.backlog, n)
	if len(h.backlog) > h.maxBacklog {
		h.backlog = h.backlog[len(h.backlog)-h.maxBacklog:]
	}
	h.mu.Unlock()
	h.broadcast(Event{Kind: KindToast, Notification: n})
}

// Refresh tells open pages to re-render the board.
func (h *Hub) Refresh() {
	h.broadcast(Event{Kind: KindRefresh})
}

// Since returns backlog entries newer than t, oldest first.
func (h *Hub) Since(t time.Time) []types.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.Notification, 0, len(h.backlog))
	for _, n := range h.backlog {
		if n.At.After(t) {
			out = append(out, n)
		}
	}
	return out
}

// Subscribe registers a channel; call the returned func to unsubscribe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	clients := make([]chan Event, 0, len(h.subscribers))
	for ch := range h.subscribers {
		clients = append(clients, ch)
	}
	h.mu.RUnlock()

	// send without holding the lock; slow clients are skipped
	for _, ch := range clients {
		select {
		case ch <- ev:
		case <-time.After(sendTimeout):
		}
	}
}
