package session

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

// CreateParams holds the inputs for a new session.
type CreateParams struct {
	Topic    string
	Category string

	// Checkpoints is the ranked snapshot, highest composite score first.
	Checkpoints     []model.RankedCheckpoint
	RecommendedPath []string
	HighValue       []string
}

// Registry owns every in-memory session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	seq      uint64
	latest   *Session // most recently created active session

	now   func() time.Time
	newID func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new active session.
func (r *Registry) Create(p CreateParams) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	s := newSession(r.newID(), r.seq, p, r.now)
	r.sessions[s.id] = s
	r.latest = s
	return s
}

// Find resolves a session. A non-empty id is an exact lookup and may return
// a completed session. An empty id returns the most recently created session
// that is still active; creation order, not start time, breaks ties.
func (r *Registry) Find(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id != "" {
		s, ok := r.sessions[id]
		if !ok {
			return nil, ErrNoSession
		}
		return s, nil
	}

	if r.latest != nil && r.latest.Status() == model.StatusActive {
		return r.latest, nil
	}
	var best *Session
	for _, s := range r.sessions {
		if s.Status() != model.StatusActive {
			continue
		}
		if best == nil || s.seq > best.seq {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNoSession
	}
	return best, nil
}

// Active returns the number of active sessions.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.Status() == model.StatusActive {
			n++
		}
	}
	return n
}
