package profile

import (
	"context"
	"log"
	"sync"
	"time"

	"orderdesk/internal/identity"
	"orderdesk/internal/service/credential"
	"orderdesk/internal/service/lineitem"
	"orderdesk/internal/service/session"
)

// Workspace is the server-side state of one browser profile.
type Workspace struct {
	ID          string
	Identity    *identity.Client
	Credentials *credential.Cache
	Session     *session.Context
	Draft       *lineitem.List

	logger *log.Logger

	mu       sync.Mutex
	parent   context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	lastSeen time.Time
}

// Reload restarts session resolution the way a page load does.
func (w *Workspace) Reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.halt()
	w.run()
}

func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) start(parent context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parent = parent
	w.run()
}

func (w *Workspace) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.halt()
	w.cancel = nil
}

// run and halt expect w.mu to be held.
func (w *Workspace) run() {
	ctx, cancel := context.WithCancel(w.parent)
	done := make(chan struct{})
	resolver := session.NewResolver(w.Identity, w.Credentials, w.Session, w.logger)
	// guarded requests on a fresh or reloaded workspace see the restored user at once
	resolver.Prime(ctx)
	go func() {
		defer close(done)
		if err := resolver.Run(ctx); err != nil {
			w.logger.Printf("profile: resolver id=%s error=%v", w.ID, err)
		}
	}()
	w.cancel = cancel
	w.done = done
}

func (w *Workspace) halt() {
	w.cancel()
	<-w.done
}
