package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"orderdesk/internal/identity"
	"orderdesk/internal/metrics"
	"orderdesk/internal/repository/storage"
	"orderdesk/internal/service/credential"
	"orderdesk/internal/service/lineitem"
	"orderdesk/internal/service/session"

	"github.com/google/uuid"
)

// CookieName carries the profile id in the browser.
const CookieName = "orderdesk_profile"

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("profile registry closed")

// NewID returns a fresh profile id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type Config struct {
	Identity      identity.Config
	CredentialTTL time.Duration
	// IdleTimeout evicts workspaces not used for this long. Zero disables eviction.
	IdleTimeout time.Duration
}

// Registry keeps one Workspace per active profile.
type Registry struct {
	parent   context.Context
	repo     storage.Repository
	verifier identity.Verifier
	cfg      Config
	logger   *log.Logger
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	closed     bool
}

// NewRegistry builds a registry whose workspaces live until ctx ends or they are evicted.
func NewRegistry(ctx context.Context, repo storage.Repository, verifier identity.Verifier, cfg Config, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		parent:     ctx,
		repo:       repo,
		verifier:   verifier,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Get returns the workspace for id, creating and starting it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Workspace, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid profile id %q", id)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if ws, ok := r.workspaces[id]; ok {
		ws.touch(r.now())
		r.mu.Unlock()
		return ws, nil
	}
	r.mu.Unlock()

	// storage I/O happens outside the lock; a concurrent creator may win the race
	ws, err := r.build(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if existing, ok := r.workspaces[id]; ok {
		existing.touch(r.now())
		r.mu.Unlock()
		return existing, nil
	}
	ws.touch(r.now())
	ws.start(r.parent)
	r.workspaces[id] = ws
	n := len(r.workspaces)
	r.mu.Unlock()

	metrics.SetActiveProfiles(n)
	r.logger.Printf("profile: workspace started id=%s", id)
	return ws, nil
}

func (r *Registry) build(ctx context.Context, id string) (*Workspace, error) {
	store := storage.Scope(r.repo, id)
	cache := credential.New(store,
		credential.WithTTL(r.cfg.CredentialTTL),
		credential.WithClock(r.now),
		credential.WithLogger(r.logger),
	)
	if err := cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	client := identity.NewClient(r.cfg.Identity, r.verifier,
		identity.WithPersistence(store),
		identity.WithLogger(r.logger),
	)
	if err := client.Restore(ctx); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	return &Workspace{
		ID:          id,
		Identity:    client,
		Credentials: cache,
		Session:     session.NewContext(),
		Draft:       lineitem.New(),
		logger:      r.logger,
	}, nil
}

// Evict stops and forgets the workspace for id. Persisted storage is kept.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	ws, ok := r.workspaces[id]
	delete(r.workspaces, id)
	n := len(r.workspaces)
	r.mu.Unlock()
	if !ok {
		return
	}
	ws.stop()
	metrics.SetActiveProfiles(n)
	r.logger.Printf("profile: workspace evicted id=%s", id)
}

// Sweep evicts idle workspaces and drops expired credentials from the rest.
// It returns the number of evicted workspaces.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.now()
	var idle []string
	var live []*Workspace
	r.mu.Lock()
	for id, ws := range r.workspaces {
		if r.cfg.IdleTimeout > 0 && now.Sub(ws.LastSeen()) > r.cfg.IdleTimeout {
			idle = append(idle, id)
			continue
		}
		live = append(live, ws)
	}
	r.mu.Unlock()

	for _, id := range idle {
		r.Evict(id)
	}
	for _, ws := range live {
		pruned, err := ws.Credentials.Prune(ctx)
		if err != nil {
			r.logger.Printf("profile: prune id=%s error=%v", ws.ID, err)
			continue
		}
		if pruned {
			// re-resolve so the session drops the expired fallback
			ws.Reload()
		}
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx ends.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				r.logger.Printf("profile: swept %d idle workspaces", n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close stops every workspace and rejects further Gets.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Workspace, 0, len(r.workspaces))
	for id, ws := range r.workspaces {
		all = append(all, ws)
		delete(r.workspaces, id)
	}
	r.mu.Unlock()

	for _, ws := range all {
		ws.stop()
	}
	metrics.SetActiveProfiles(0)
}
