package session

import "sync"

// Event is a session lifecycle signal.
type Event int

const (
	// EventLoggedIn fires after a callback stored fresh credentials.
	EventLoggedIn Event = iota + 1

	// EventRefreshed fires after a refresh stored a new token pair.
	EventRefreshed

	// EventLoggedOut fires once when a session ends, whatever the cause.
	EventLoggedOut
)

func (e Event) String() string {
	switch e {
	case EventLoggedIn:
		return "logged_in"
	case EventRefreshed:
		return "refreshed"
	case EventLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Notifier fans session events out to subscribers. Handlers run
// synchronously on the publishing goroutine and must not block.
type Notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func(Event)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) publish(e Event) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
