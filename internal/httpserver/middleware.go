package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"orderdesk/internal/metrics"
	"orderdesk/internal/service/guard"
	"orderdesk/internal/service/profile"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ctxKey string

const profileCtxKey ctxKey = "profile"

const profileCookieMaxAge = 365 * 24 * 60 * 60

// profileMiddleware attaches the caller's workspace, issuing a profile cookie on first visit.
func profileMiddleware(profiles Profiles, secure bool, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(profile.CookieName)
		if err != nil || !profile.ValidID(id) {
			id = profile.NewID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(profile.CookieName, id, profileCookieMaxAge, "/", "", secure, true)
		}

		ws, err := profiles.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, profile.ErrClosed) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
				return
			}
			logger.Printf("http: profile id=%s error=%v", id, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), profileCtxKey, ws)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func workspaceFrom(c *gin.Context) *profile.Workspace {
	ws, _ := c.Request.Context().Value(profileCtxKey).(*profile.Workspace)
	return ws
}

// requireSession runs the route guard for every protected request.
func requireSession(wait time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := workspaceFrom(c)
		if ws == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile missing"})
			return
		}

		g := guard.New(c.Request.Context(), ws.Session.Current(), ws.Identity, c.Request.URL.RequestURI())
		timer := time.NewTimer(wait)
		select {
		case <-g.Settled():
		case <-timer.C:
		case <-c.Request.Context().Done():
		}
		timer.Stop()

		d := g.Decide()
		metrics.RecordGuardDecision(d.Outcome.String())
		switch d.Outcome {
		case guard.Content:
			c.Next()
		case guard.Loading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": d.Outcome.String()})
		default:
			if wantsHTML(c) {
				c.Redirect(http.StatusFound, loginURL(d.Login))
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "login": d.Login})
		}
	}
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

func loginURL(l guard.LoginLocation) string {
	if l.From == "" {
		return l.Path
	}
	return l.Path + "?from=" + url.QueryEscape(l.From)
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles each client IP separately.
type rateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*ipLimiter
	rate        rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

func newRateLimiter(r rate.Limit, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters:    make(map[string]*ipLimiter),
		rate:        r,
		burst:       burst,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	// stale entries are dropped inline every few minutes
	if now.Sub(rl.lastCleanup) > 3*time.Minute {
		for key, l := range rl.limiters {
			if now.Sub(l.lastSeen) > 5*time.Minute {
				delete(rl.limiters, key)
			}
		}
		rl.lastCleanup = now
	}

	if l, ok := rl.limiters[ip]; ok {
		l.lastSeen = now
		return l.limiter
	}
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &ipLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(c.ClientIP()).Allow() {
			retryAfter := max(int(1.0/float64(rl.rate)), 1)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
