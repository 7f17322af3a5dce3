package storage

import (
	"context"
	"sync"

	"orderdesk/internal/domain"
)

type memoryRepo struct {
	mu       sync.RWMutex
	values   map[string]map[string][]byte
	watchers map[string]map[chan Change]struct{}
}

// NewMemory returns a process-local Repository. Changes are only visible inside this process.
func NewMemory() Repository {
	return &memoryRepo{
		values:   make(map[string]map[string][]byte),
		watchers: make(map[string]map[chan Change]struct{}),
	}
}

func (r *memoryRepo) Get(_ context.Context, profileID, key string) ([]byte, error) {
	if err := validate(profileID, key); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[profileID][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (r *memoryRepo) Set(_ context.Context, profileID, key string, value []byte) error {
	if err := validate(profileID, key); err != nil {
		return err
	}
	r.mu.Lock()
	if r.values[profileID] == nil {
		r.values[profileID] = make(map[string][]byte)
	}
	r.values[profileID][key] = append([]byte(nil), value...)
	r.mu.Unlock()

	r.broadcast(Change{ProfileID: profileID, Key: key, Value: append([]byte(nil), value...)})
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, profileID, key string) error {
	if err := validate(profileID, key); err != nil {
		return err
	}
	r.mu.Lock()
	_, existed := r.values[profileID][key]
	delete(r.values[profileID], key)
	r.mu.Unlock()

	if existed {
		r.broadcast(Change{ProfileID: profileID, Key: key, Deleted: true})
	}
	return nil
}

func (r *memoryRepo) Watch(ctx context.Context, profileID string) (<-chan Change, error) {
	if profileID == "" {
		return nil, errEmptyProfile
	}
	ch := make(chan Change, 16)
	r.mu.Lock()
	if r.watchers[profileID] == nil {
		r.watchers[profileID] = make(map[chan Change]struct{})
	}
	r.watchers[profileID][ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers[profileID], ch)
		if len(r.watchers[profileID]) == 0 {
			delete(r.watchers, profileID)
		}
		close(ch)
		r.mu.Unlock()
	}()
	return ch, nil
}

// broadcast drops the change for watchers whose buffer is full.
func (r *memoryRepo) broadcast(c Change) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ch := range r.watchers[c.ProfileID] {
		select {
		case ch <- c:
		default:
		}
	}
}
