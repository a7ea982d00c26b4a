package notify

import (
	"context"
	"sync"
)

// =============================================================================
// Broadcaster
// =============================================================================

// Broadcaster fans events out to live subscribers such as websocket clients.
// A subscriber that falls behind misses events rather than stalling others.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	ch        chan Event
	projectID string
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]subscription)}
}

// Subscribe registers a subscriber with the given buffer size. A non-empty
// projectID filters events to that project. The returned function
// unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int, projectID string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = subscription{ch: ch, projectID: projectID}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Notify implements Notifier.
func (b *Broadcaster) Notify(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		if s.projectID != "" && s.projectID != event.ProjectID {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
	return nil
}

// Close unsubscribes everyone.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
