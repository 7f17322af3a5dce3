package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"orderdesk/internal/domain"
)

// StorageKey is the profile storage key holding the cached credential blob.
const StorageKey = "orderdesk-user-credentials"

// DefaultTTL is how long a stored credential stays usable. The value the
// sign-in flow was written against is two hours.
const DefaultTTL = 2 * time.Hour

var errNilUser = errors.New("credential: user required")

// Store is the persistence a Cache writes through to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Cache memoizes the last successful sign-in of one profile so a returning
// user does not have to go through the redirect flow again.
type Cache struct {
	mu      sync.RWMutex
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger
	current *domain.CachedCredential
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds an empty Cache. Call Load to pick up a persisted credential.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL reports the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Load reads the persisted credential. Unparseable or expired records are
// discarded and removed from storage.
func (c *Cache) Load(ctx context.Context) error {
	raw, err := c.store.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.set(nil)
			return nil
		}
		return fmt.Errorf("load credential: %w", err)
	}

	cred, err := c.decode(raw)
	if err != nil {
		c.logger.Printf("credential cache: discarding stored credential: %v", err)
		c.set(nil)
		if err := c.store.Delete(ctx, StorageKey); err != nil {
			return fmt.Errorf("remove stored credential: %w", err)
		}
		return nil
	}
	c.set(cred)
	return nil
}

// Store records user as freshly signed in and persists it. The in-memory
// value is replaced even when persisting fails.
func (c *Cache) Store(ctx context.Context, user *domain.AuthenticatedUser) (*domain.CachedCredential, error) {
	if user == nil || user.ID == "" {
		return nil, errNilUser
	}
	cred := &domain.CachedCredential{User: *user, Expiry: c.now().UTC()}
	c.set(cred)

	raw, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	if err := c.store.Set(ctx, StorageKey, raw); err != nil {
		return cloneCredential(cred), fmt.Errorf("persist credential: %w", err)
	}
	return cloneCredential(cred), nil
}

// Clear forgets the credential in memory and in storage.
func (c *Cache) Clear(ctx context.Context) error {
	c.set(nil)
	if err := c.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Peek returns the cached credential if it has not expired. It never touches storage.
func (c *Cache) Peek() *domain.CachedCredential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.expired(c.current.Expiry) {
		return nil
	}
	return cloneCredential(c.current)
}

// Prune drops an expired credential from memory and deletes the persisted
// record if it is expired or unreadable. It reports whether storage was changed.
func (c *Cache) Prune(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.current != nil {
		if !c.expired(c.current.Expiry) {
			c.mu.Unlock()
			return false, nil
		}
		c.current = nil
	}
	c.mu.Unlock()

	raw, err := c.store.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("prune credential: %w", err)
	}
	if _, err := c.decode(raw); err == nil {
		// written by another process after our copy expired
		return false, nil
	}
	if err := c.store.Delete(ctx, StorageKey); err != nil {
		return false, fmt.Errorf("prune credential: %w", err)
	}
	return true, nil
}

func (c *Cache) decode(raw []byte) (*domain.CachedCredential, error) {
	var cred domain.CachedCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if cred.User.ID == "" {
		return nil, errors.New("missing user")
	}
	if c.expired(cred.Expiry) {
		return nil, fmt.Errorf("expired at %s", cred.Expiry.Add(c.ttl).Format(time.RFC3339))
	}
	return &cred, nil
}

func (c *Cache) expired(storedAt time.Time) bool {
	return c.now().Sub(storedAt) > c.ttl
}

func (c *Cache) set(cred *domain.CachedCredential) {
	c.mu.Lock()
	c.current = cred
	c.mu.Unlock()
}

func cloneCredential(cred *domain.CachedCredential) *domain.CachedCredential {
	if cred == nil {
		return nil
	}
	out := *cred
	return &out
}
