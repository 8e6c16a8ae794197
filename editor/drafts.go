package editor

import (
	"errors"
	"sync"

	"github.com/gofrs/uuid"
)

var ErrDraftNotFound = errors.New("draft not found")

// Drafts are the open drafts of one owner session.
type Drafts struct {
	mu     sync.Mutex
	drafts map[string]*Draft
}

func NewDrafts() *Drafts {
	return &Drafts{drafts: map[string]*Draft{}}
}

func (ds *Drafts) Add(d *Draft) string {
	id := uuid.Must(uuid.NewV4()).String()

	ds.mu.Lock()
	ds.drafts[id] = d
	ds.mu.Unlock()
	return id
}

func (ds *Drafts) Get(id string) (*Draft, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	d, ok := ds.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

func (ds *Drafts) Remove(id string) {
	ds.mu.Lock()
	delete(ds.drafts, id)
	ds.mu.Unlock()
}
