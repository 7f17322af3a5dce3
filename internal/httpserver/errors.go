package httpserver

import (
	"errors"
	"net/http"

	"orderdesk/internal/backend"
	"orderdesk/internal/domain"
	"orderdesk/internal/identity"
	customersvc "orderdesk/internal/service/customer"
	ordersvc "orderdesk/internal/service/order"
	"orderdesk/internal/validation"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors to responses. Backend details stay in the log.
func (h *handlers) writeError(c *gin.Context, op string, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "errors": verr.Fields})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, identity.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.logger.Printf("http: %s error=%v", op, err)

	var serr *backend.StatusError
	if errors.As(err, &serr) {
		switch serr.StatusCode {
		case http.StatusNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		case http.StatusUnauthorized, http.StatusForbidden:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	switch {
	case errors.Is(err, ordersvc.ErrSubmitFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": ordersvc.ErrSubmitFailed.Error()})
	case errors.Is(err, customersvc.ErrCreateFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": customersvc.ErrCreateFailed.Error()})
	case serr != nil, errors.Is(err, backend.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend request failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
