package backend

import "orderdesk/internal/domain"

// UserRequest is the body of POST /user: the form values plus the creator's email.
type UserRequest struct {
	Creator string `json:"creator,omitempty"`
	domain.CustomerInput
}

type OrderProduct struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Code       string `json:"code,omitempty"`
	StartCount int    `json:"startCount"`
}

// Recipient names who receives the order. The misspelt JSON key below is what the backend expects.
type Recipient struct {
	CustomerID    *string `json:"customerId,omitempty"`
	AnonymousUser *string `json:"anonymousUser,omitempty"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Products          []OrderProduct `json:"products"`
	Recipient         Recipient      `json:"recepient"`
	AnonymousCustomer *string        `json:"anonymousCustomer"`
	Delivery          bool           `json:"delivery"`
	Channel           string         `json:"channel"`
	AdditionalNotes   string         `json:"additionalNotes"`
	DeliveryNotes     string         `json:"deliveryNotes"`
	Creator           *string        `json:"creator"`
}

// NewOrderRequest flattens an order into the backend's wire shape.
func NewOrderRequest(o domain.Order) OrderRequest {
	products := make([]OrderProduct, 0, len(o.Items))
	for _, it := range o.Items {
		products = append(products, OrderProduct{
			ID:         it.Item.ID,
			Title:      it.Item.Title,
			Type:       it.Item.Category,
			Code:       it.Item.Code,
			StartCount: it.StartCount,
		})
	}
	req := OrderRequest{
		Products:          products,
		AnonymousCustomer: o.AnonymousCustomer,
		Delivery:          o.Delivery,
		Channel:           o.Channel,
		AdditionalNotes:   o.AdditionalNotes,
		DeliveryNotes:     o.DeliveryNotes,
		Creator:           o.Creator,
	}
	if o.Customer != nil {
		id := o.Customer.ID
		req.Recipient.CustomerID = &id
	}
	req.Recipient.AnonymousUser = o.AnonymousCustomer
	return req
}
