package httpserver

import (
	"net/http"
	"strings"

	"orderdesk/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *handlers) listBooks(c *gin.Context) {
	ws := workspaceFrom(c)
	books, err := h.deps.Catalog.ListBooks(c.Request.Context(), ws.Identity)
	if err != nil {
		h.writeError(c, "list books", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(books))
}

// listItems returns catalog items, optionally narrowed to one ?type=.
func (h *handlers) listItems(c *gin.Context) {
	ws := workspaceFrom(c)
	items, err := h.deps.Catalog.ListBookItems(c.Request.Context(), ws.Identity)
	if err != nil {
		h.writeError(c, "list items", err)
		return
	}
	if category := strings.TrimSpace(c.Query("type")); category != "" {
		filtered := make([]domain.CatalogItem, 0, len(items))
		for _, it := range items {
			if strings.EqualFold(it.Category, category) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	c.JSON(http.StatusOK, nonNil(items))
}

func (h *handlers) listChannels(c *gin.Context) {
	ws := workspaceFrom(c)
	channels, err := h.deps.Catalog.ListChannels(c.Request.Context(), ws.Identity)
	if err != nil {
		h.writeError(c, "list channels", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(channels))
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
