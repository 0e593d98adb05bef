package session

import (
	"sync"
	"time"
)

// Factory builds the controller for a new session key.
type Factory func(key string) *Controller

type entry struct {
	ctrl         *Controller
	LastActivity time.Time
}

// Registry keeps one Controller per key (a web session id or a chat id)
// and forgets the ones that have been idle for too long.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	now      func() time.Time
}

func NewRegistry(factory Factory) *Registry {
	if factory == nil {
		factory = func(string) *Controller { return New(Options{}) }
	}
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		now:      time.Now,
	}
}

// Get returns the controller for key and marks it active.
func (r *Registry) Get(key string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	e.LastActivity = r.now()
	return e.ctrl, true
}

func (r *Registry) GetOrCreate(key string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[key]; ok {
		e.LastActivity = r.now()
		return e.ctrl
	}
	return r.createLocked(key)
}

// Create replaces whatever session key had with a fresh one.
func (r *Registry) Create(key string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(key)
}

func (r *Registry) createLocked(key string) *Controller {
	e := &entry{ctrl: r.factory(key), LastActivity: r.now()}
	r.sessions[key] = e
	return e.ctrl
}

func (r *Registry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Evict drops sessions idle for longer than idle. Sessions with a call in
// flight are kept. It returns the number removed.
func (r *Registry) Evict(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.sessions {
		if !e.LastActivity.Before(cutoff) {
			continue
		}
		if generating, enhancing := e.ctrl.Busy(); generating || enhancing {
			continue
		}
		delete(r.sessions, key)
		removed++
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
