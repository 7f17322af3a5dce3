package guard

import (
	"context"
	"sync"

	"orderdesk/internal/domain"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// RedirectChecker reports the outcome of a redirect sign-in.
type RedirectChecker interface {
	RedirectResult(ctx context.Context) (*domain.AuthenticatedUser, error)
}

type Outcome int

const (
	// Content means the protected page may be rendered.
	Content Outcome = iota
	// Redirect means the visitor must sign in first.
	Redirect
	// Loading means the decision is not known yet.
	Loading
)

func (o Outcome) String() string {
	switch o {
	case Content:
		return "content"
	case Redirect:
		return "redirect"
	default:
		return "loading"
	}
}

// LoginLocation is the redirect target; From is the page that was requested.
type LoginLocation struct {
	Path string `json:"path"`
	From string `json:"from"`
}

type Decision struct {
	Outcome Outcome
	State   domain.AuthenticationState
	Login   LoginLocation
}

// Guard decides whether one protected page view may proceed.
type Guard struct {
	location string
	settled  chan struct{}

	mu    sync.Mutex
	state domain.AuthenticationState
}

// New starts a guard for the page at location. A present user is let through
// at once; otherwise the guard starts logged out and asks checker whether a
// redirect sign-in just completed.
func New(ctx context.Context, user *domain.AuthenticatedUser, checker RedirectChecker, location string) *Guard {
	g := &Guard{location: location, settled: make(chan struct{})}
	if user != nil {
		g.state = domain.LoggedIn
		close(g.settled)
		return g
	}
	// never starts Pending, so Loading is only reachable for a zero Guard
	g.state = domain.LoggedOut
	if checker == nil {
		close(g.settled)
		return g
	}
	go g.check(ctx, checker)
	return g
}

func (g *Guard) check(ctx context.Context, checker RedirectChecker) {
	defer close(g.settled)
	user, err := checker.RedirectResult(ctx)
	if err != nil || user == nil {
		return
	}
	g.mu.Lock()
	g.state = domain.LoggedIn
	g.mu.Unlock()
}

// Settled is closed once the redirect check has finished.
func (g *Guard) Settled() <-chan struct{} {
	return g.settled
}

func (g *Guard) State() domain.AuthenticationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Decide maps the current state to what the page should do.
func (g *Guard) Decide() Decision {
	state := g.State()
	d := Decision{State: state, Login: LoginLocation{Path: LoginPath, From: g.location}}
	switch state {
	case domain.LoggedIn:
		d.Outcome = Content
	case domain.LoggedOut:
		d.Outcome = Redirect
	default:
		d.Outcome = Loading
	}
	return d
}
