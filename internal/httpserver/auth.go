package httpserver

import (
	"net/http"
	"strings"
	"time"

	"orderdesk/internal/domain"
	"orderdesk/internal/metrics"
	"orderdesk/internal/service/profile"

	"github.com/gin-gonic/gin"
)

const maxSessionWait = 30 * time.Second

// login sends the browser to the identity provider. The requested page rides
// along as state so the callback can return there.
func (h *handlers) login(c *gin.Context) {
	ws := workspaceFrom(c)
	from := safeReturnPath(c.Query("from"))
	signIn, err := ws.Identity.SignInURL(from)
	if err != nil {
		h.logger.Printf("http: sign-in url error=%v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sign-in unavailable"})
		return
	}
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, signIn)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signInUrl": signIn, "from": from})
}

func (h *handlers) authCallback(c *gin.Context) {
	ws := workspaceFrom(c)
	token := c.Query("id_token")
	if token == "" {
		token = c.PostForm("id_token")
	}
	state := c.Query("state")
	if state == "" {
		state = c.PostForm("state")
	}
	if token == "" {
		metrics.RecordSignIn("missing_token")
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token is required"})
		return
	}

	user, err := ws.Identity.CompleteRedirect(c.Request.Context(), token)
	if err != nil {
		metrics.RecordSignIn("rejected")
		h.logger.Printf("http: sign-in profile=%s error=%v", ws.ID, err)
		if wantsHTML(c) {
			c.Redirect(http.StatusFound, "/login?error=sign_in_failed")
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign-in failed"})
		return
	}
	metrics.RecordSignIn("success")
	// a fresh resolver run picks up the redirect result and caches it
	ws.Reload()

	target := safeReturnPath(state)
	if target == "" {
		target = "/"
	}
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, target)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "redirect": target})
}

// logout clears the cached credential before signing out so the resolver
// has nothing to fall back on.
func (h *handlers) logout(c *gin.Context) {
	ws := workspaceFrom(c)
	ctx := c.Request.Context()
	if err := ws.Credentials.Clear(ctx); err != nil {
		h.logger.Printf("http: clear credential profile=%s error=%v", ws.ID, err)
	}
	if err := ws.Identity.SignOut(ctx); err != nil {
		h.logger.Printf("http: sign-out profile=%s error=%v", ws.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-out failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionResponse struct {
	State               string                    `json:"state"`
	User                *domain.AuthenticatedUser `json:"user"`
	CredentialExpiresAt *time.Time                `json:"credentialExpiresAt,omitempty"`
}

// session reports the resolved user. With ?wait=<duration> it long-polls
// until the session changes or the wait elapses.
func (h *handlers) session(c *gin.Context) {
	ws := workspaceFrom(c)
	if raw := c.Query("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait"})
			return
		}
		wait = min(wait, maxSessionWait)
		changed := ws.Session.Changed()
		timer := time.NewTimer(wait)
		select {
		case <-changed:
		case <-timer.C:
		case <-c.Request.Context().Done():
		}
		timer.Stop()
	}
	c.JSON(http.StatusOK, buildSessionResponse(ws))
}

func buildSessionResponse(ws *profile.Workspace) sessionResponse {
	resp := sessionResponse{State: domain.LoggedOut.String(), User: ws.Session.Current()}
	if resp.User != nil {
		resp.State = domain.LoggedIn.String()
	}
	if cred := ws.Credentials.Peek(); cred != nil {
		expires := cred.Expiry.Add(ws.Credentials.TTL())
		resp.CredentialExpiresAt = &expires
	}
	return resp
}

// currentUser prefers the resolved session and falls back to the provider.
func currentUser(ws *profile.Workspace) *domain.AuthenticatedUser {
	if u := ws.Session.Current(); u != nil {
		return u
	}
	return ws.Identity.CurrentUser()
}

func creatorEmail(ws *profile.Workspace) string {
	if u := currentUser(ws); u != nil {
		return u.Email
	}
	return ""
}

// safeReturnPath accepts only same-site absolute paths.
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
