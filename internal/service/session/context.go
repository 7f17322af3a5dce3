package session

import (
	"sync"

	"orderdesk/internal/domain"
)

// Context holds the user the rest of the workspace treats as signed in.
// Only the Resolver publishes to it.
type Context struct {
	mu      sync.RWMutex
	user    *domain.AuthenticatedUser
	subs    map[int]func(*domain.AuthenticatedUser)
	nextSub int
	changed chan struct{}
}

// NewContext returns a Context with no user.
func NewContext() *Context {
	return &Context{
		subs:    make(map[int]func(*domain.AuthenticatedUser)),
		changed: make(chan struct{}),
	}
}

// Current returns the published user, or nil.
func (c *Context) Current() *domain.AuthenticatedUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyUser(c.user)
}

// Subscribe calls fn after every change of the published user.
func (c *Context) Subscribe(fn func(*domain.AuthenticatedUser)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Changed returns a channel closed at the next change.
func (c *Context) Changed() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

func (c *Context) publish(user *domain.AuthenticatedUser) {
	c.mu.Lock()
	if sameUser(c.user, user) {
		c.mu.Unlock()
		return
	}
	c.user = copyUser(user)
	close(c.changed)
	c.changed = make(chan struct{})
	fns := make([]func(*domain.AuthenticatedUser), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(copyUser(user))
	}
}

func sameUser(a, b *domain.AuthenticatedUser) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyUser(u *domain.AuthenticatedUser) *domain.AuthenticatedUser {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}
