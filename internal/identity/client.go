package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"sync"

	"orderdesk/internal/domain"
)

// SessionKey is the profile storage key the provider session is persisted under.
const SessionKey = "orderdesk-identity-session"

// Store persists the provider session between workspace lifetimes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Config holds the redirect sign-in endpoints.
type Config struct {
	// SignInURL is the provider page the browser is sent to.
	SignInURL string
	// CallbackURL is where the provider returns with an ID token.
	CallbackURL string
}

type persistedSession struct {
	IDToken string `json:"idToken"`
}

// Client is one profile's view of the identity provider: the signed-in user,
// their ID token, and the outcome of the last redirect sign-in.
type Client struct {
	cfg      Config
	verifier Verifier
	store    Store
	logger   *log.Logger

	mu           sync.Mutex
	user         *domain.AuthenticatedUser
	idToken      string
	redirectUser *domain.AuthenticatedUser
	redirectErr  error
	listeners    map[int]func(*domain.AuthenticatedUser)
	nextListener int
}

type ClientOption func(*Client)

// WithPersistence keeps the provider session in store so it survives eviction.
func WithPersistence(store Store) ClientOption {
	return func(c *Client) { c.store = store }
}

func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(cfg Config, verifier Verifier, opts ...ClientOption) *Client {
	c := &Client{
		cfg:       cfg,
		verifier:  verifier,
		logger:    log.New(io.Discard, "", 0),
		listeners: make(map[int]func(*domain.AuthenticatedUser)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore reloads a persisted session. A token that no longer verifies is dropped.
func (c *Client) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	raw, err := c.store.Get(ctx, SessionKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore identity session: %w", err)
	}
	var sess persistedSession
	if err := json.Unmarshal(raw, &sess); err != nil || sess.IDToken == "" {
		return c.forget(ctx)
	}
	user, err := c.verifier.Verify(ctx, sess.IDToken)
	if err != nil {
		c.logger.Printf("identity: persisted session rejected: %v", err)
		return c.forget(ctx)
	}

	c.mu.Lock()
	c.user = user
	c.idToken = sess.IDToken
	c.mu.Unlock()
	c.notify(user)
	return nil
}

// SignInURL returns the provider URL that starts a redirect sign-in.
// state is echoed back to the callback.
func (c *Client) SignInURL(state string) (string, error) {
	if c.cfg.SignInURL == "" {
		return "", errors.New("identity: sign-in url not configured")
	}
	u, err := url.Parse(c.cfg.SignInURL)
	if err != nil {
		return "", fmt.Errorf("identity: parse sign-in url: %w", err)
	}
	q := u.Query()
	if c.cfg.CallbackURL != "" {
		q.Set("redirect_uri", c.cfg.CallbackURL)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CompleteRedirect finishes a redirect sign-in with the ID token the provider
// returned. The outcome, success or failure, becomes the redirect result.
func (c *Client) CompleteRedirect(ctx context.Context, idToken string) (*domain.AuthenticatedUser, error) {
	user, err := c.verifier.Verify(ctx, idToken)
	if err != nil {
		c.mu.Lock()
		c.redirectUser = nil
		c.redirectErr = err
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.user = user
	c.idToken = idToken
	c.redirectUser = user
	c.redirectErr = nil
	c.mu.Unlock()

	if c.store != nil {
		raw, err := json.Marshal(persistedSession{IDToken: idToken})
		if err == nil {
			err = c.store.Set(ctx, SessionKey, raw)
		}
		if err != nil {
			c.logger.Printf("identity: persist session uid=%s error=%v", user.ID, err)
		}
	}
	c.notify(user)
	return cloneUser(user), nil
}

// RedirectResult reports the outcome of the last redirect sign-in: the user,
// nil when no redirect completed, or the verification error. The outcome is
// handed out once; later reads return nil until the next redirect completes.
func (c *Client) RedirectResult(ctx context.Context) (*domain.AuthenticatedUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	user, err := cloneUser(c.redirectUser), c.redirectErr
	c.redirectUser = nil
	c.redirectErr = nil
	return user, err
}

// OnAuthStateChanged registers fn for every sign-in state change and calls it
// once with the current state. The returned func unsubscribes.
func (c *Client) OnAuthStateChanged(fn func(*domain.AuthenticatedUser)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	current := cloneUser(c.user)
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// CurrentUser returns the provider's signed-in user, or nil.
func (c *Client) CurrentUser() *domain.AuthenticatedUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneUser(c.user)
}

// IDToken returns the bearer token for backend calls, or "" when the provider
// has no signed-in user.
func (c *Client) IDToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return "", nil
	}
	return c.idToken, nil
}

// SignOut drops the provider session and the redirect result.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.user = nil
	c.idToken = ""
	c.redirectUser = nil
	c.redirectErr = nil
	c.mu.Unlock()

	var err error
	if c.store != nil {
		err = c.store.Delete(ctx, SessionKey)
	}
	c.notify(nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (c *Client) forget(ctx context.Context) error {
	if err := c.store.Delete(ctx, SessionKey); err != nil {
		return fmt.Errorf("drop identity session: %w", err)
	}
	return nil
}

// notify runs listeners outside the lock so they may call back into the client.
func (c *Client) notify(user *domain.AuthenticatedUser) {
	c.mu.Lock()
	fns := make([]func(*domain.AuthenticatedUser), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(cloneUser(user))
	}
}

func cloneUser(u *domain.AuthenticatedUser) *domain.AuthenticatedUser {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}
