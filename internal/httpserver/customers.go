package httpserver

import (
	"io"
	"net/http"

	"orderdesk/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *handlers) listUsers(c *gin.Context) {
	ws := workspaceFrom(c)
	users, err := h.deps.Customers.List(c.Request.Context(), ws.ID, ws.Identity)
	if err != nil {
		h.writeError(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(users))
}

func (h *handlers) createUser(c *gin.Context) {
	ws := workspaceFrom(c)
	var in domain.CustomerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	saved, err := h.deps.Customers.Create(c.Request.Context(), ws.ID, ws.Identity, creatorEmail(ws), in)
	if err != nil {
		h.writeError(c, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"customer": saved, "message": "Success"})
}

func (h *handlers) getUser(c *gin.Context) {
	ws := workspaceFrom(c)
	user, err := h.deps.Customers.Get(c.Request.Context(), ws.Identity, c.Param("id"))
	if err != nil {
		h.writeError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) recentCustomers(c *gin.Context) {
	ws := workspaceFrom(c)
	recent, err := h.deps.Customers.Recent(c.Request.Context(), ws.ID)
	if err != nil {
		h.writeError(c, "recent customers", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(recent))
}

func (h *handlers) resetRecentCustomers(c *gin.Context) {
	ws := workspaceFrom(c)
	if err := h.deps.Customers.ResetRecent(c.Request.Context(), ws.ID); err != nil {
		h.writeError(c, "reset recent customers", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// streamRecentCustomers pushes the recent list as server-sent events whenever
// another tab of the same profile creates or clears customers.
func (h *handlers) streamRecentCustomers(c *gin.Context) {
	ws := workspaceFrom(c)
	updates, err := h.deps.Customers.WatchRecent(c.Request.Context(), ws.ID)
	if err != nil {
		h.writeError(c, "watch recent customers", err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		list, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("recent", nonNil(list))
		return true
	})
}
