package session

import (
	"context"
	"io"
	"log"

	"orderdesk/internal/domain"

	"golang.org/x/sync/errgroup"
)

// AuthProvider is the part of the identity client the resolver listens to.
type AuthProvider interface {
	CurrentUser() *domain.AuthenticatedUser
	RedirectResult(ctx context.Context) (*domain.AuthenticatedUser, error)
	OnAuthStateChanged(fn func(*domain.AuthenticatedUser)) func()
}

// CredentialCache is the fallback used when the provider reports no user.
type CredentialCache interface {
	Store(ctx context.Context, user *domain.AuthenticatedUser) (*domain.CachedCredential, error)
	Peek() *domain.CachedCredential
	Prune(ctx context.Context) (bool, error)
}

type eventKind int

const (
	redirectResolved eventKind = iota
	authStateChanged
)

type event struct {
	kind eventKind
	user *domain.AuthenticatedUser
}

// Resolver decides which user the Context publishes by combining the redirect
// sign-in result, the provider's auth state and the credential cache.
type Resolver struct {
	provider AuthProvider
	cache    CredentialCache
	session  *Context
	logger   *log.Logger
}

func NewResolver(provider AuthProvider, cache CredentialCache, session *Context, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{provider: provider, cache: cache, session: session, logger: logger}
}

// Prime publishes what is already known, the provider's restored user or
// else the cached credential, without waiting for Run's first event.
func (r *Resolver) Prime(ctx context.Context) {
	r.session.publish(r.resolve(ctx, r.provider.CurrentUser()))
}

// Run resolves the session until ctx ends. It returns once the provider
// subscription has been released.
func (r *Resolver) Run(ctx context.Context) error {
	events := make(chan event)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := r.provider.RedirectResult(gctx)
		if err != nil {
			if gctx.Err() == nil {
				r.logger.Printf("session: redirect result rejected: %v", err)
			}
			return nil
		}
		if user != nil {
			send(gctx, events, event{kind: redirectResolved, user: user})
		}
		return nil
	})

	g.Go(func() error {
		unsubscribe := r.provider.OnAuthStateChanged(func(user *domain.AuthenticatedUser) {
			send(gctx, events, event{kind: authStateChanged, user: user})
		})
		<-gctx.Done()
		unsubscribe()
		return nil
	})

	var providerUser *domain.AuthenticatedUser
	for {
		select {
		case <-gctx.Done():
			return g.Wait()
		case ev := <-events:
			switch ev.kind {
			case redirectResolved:
				if _, err := r.cache.Store(gctx, ev.user); err != nil {
					r.logger.Printf("session: store credential uid=%s error=%v", ev.user.ID, err)
				}
			case authStateChanged:
				providerUser = ev.user
			}
			r.session.publish(r.resolve(gctx, providerUser))
		}
	}
}

// resolve prefers the provider's user and falls back to the cached credential.
func (r *Resolver) resolve(ctx context.Context, providerUser *domain.AuthenticatedUser) *domain.AuthenticatedUser {
	if providerUser != nil {
		return providerUser
	}
	if cred := r.cache.Peek(); cred != nil {
		user := cred.User
		return &user
	}
	if _, err := r.cache.Prune(ctx); err != nil && ctx.Err() == nil {
		r.logger.Printf("session: prune credential error=%v", err)
	}
	return nil
}

func send(ctx context.Context, ch chan<- event, ev event) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
