package httpserver

import (
	"net/http"

	"orderdesk/internal/domain"
	ordersvc "orderdesk/internal/service/order"

	"github.com/gin-gonic/gin"
)

type draftResponse struct {
	Products []domain.SelectedItemQuantity `json:"products"`
}

type addItemRequest struct {
	Product  domain.CatalogItem `json:"product"`
	Quantity int                `json:"quantity" binding:"required,min=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *handlers) getDraft(c *gin.Context) {
	ws := workspaceFrom(c)
	c.JSON(http.StatusOK, draftResponse{Products: ws.Draft.Items()})
}

func (h *handlers) resetDraft(c *gin.Context) {
	workspaceFrom(c).Draft.Reset()
	c.Status(http.StatusNoContent)
}

// addDraftItem adds a line; re-adding an item sums the quantities.
func (h *handlers) addDraftItem(c *gin.Context) {
	ws := workspaceFrom(c)
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Product.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product with id and quantity >= 1 required"})
		return
	}
	ws.Draft.Add(req.Product, req.Quantity)
	c.JSON(http.StatusOK, draftResponse{Products: ws.Draft.Items()})
}

func (h *handlers) updateDraftItem(c *gin.Context) {
	ws := workspaceFrom(c)
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity >= 1 required"})
		return
	}
	if !ws.Draft.UpdateQuantity(c.Param("id"), req.Quantity) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, draftResponse{Products: ws.Draft.Items()})
}

func (h *handlers) removeDraftItem(c *gin.Context) {
	ws := workspaceFrom(c)
	ws.Draft.Remove(c.Param("id"))
	c.JSON(http.StatusOK, draftResponse{Products: ws.Draft.Items()})
}

// submitOrder posts the draft with the form values. The draft is cleared
// only when the backend accepts the order.
func (h *handlers) submitOrder(c *gin.Context) {
	ws := workspaceFrom(c)
	var in ordersvc.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	order, err := h.deps.Orders.Submit(c.Request.Context(), ws.Draft, ws.Identity, creatorEmail(ws), in)
	if err != nil {
		h.writeError(c, "submit order", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order, "message": "Success"})
}
