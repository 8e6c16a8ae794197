package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/mbolis/quick-survey/log"
)

var ErrFormNotFound = errors.New("form session not found")

type entry struct {
	engine *Engine
	seen   time.Time
}

// Registry keeps the open forms. Forms left idle longer than the TTL are
// closed and dropped.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	engines map[string]*entry
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, now: time.Now, engines: map[string]*entry{}}
}

func (r *Registry) Add(e *Engine) string {
	id := uuid.Must(uuid.NewV4()).String()

	r.mu.Lock()
	r.engines[id] = &entry{engine: e, seen: r.now()}
	r.mu.Unlock()
	return id
}

func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	en, ok := r.engines[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	en.seen = r.now()
	return en.engine, nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	en, ok := r.engines[id]
	delete(r.engines, id)
	r.mu.Unlock()

	if !ok {
		return ErrFormNotFound
	}
	en.engine.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Evict closes every form idle for longer than the TTL.
func (r *Registry) Evict() int {
	deadline := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*Engine
	for id, en := range r.engines {
		if en.seen.Before(deadline) {
			stale = append(stale, en.engine)
			delete(r.engines, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.Close()
	}
	return len(stale)
}

// Run evicts idle forms until ctx is done, then closes the rest.
func (r *Registry) Run(ctx context.Context) {
	every := r.ttl / 2
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				log.Debugf("form: evicted %d idle sessions", n)
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	engines := r.engines
	r.engines = map[string]*entry{}
	r.mu.Unlock()

	for _, en := range engines {
		en.engine.Close()
	}
}
