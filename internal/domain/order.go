package domain

// Order is built fresh for every submission attempt and never mutated afterwards.
// Exactly one of Customer and AnonymousCustomer is set.
type Order struct {
	Items             []SelectedItemQuantity `json:"products" validate:"required,min=1,max=25,dive"`
	Customer          *Customer              `json:"customer" validate:"-"`
	AnonymousCustomer *string                `json:"anonymousCustomer"`
	Delivery          bool                   `json:"delivery"`
	DeliveryNotes     string                 `json:"deliveryNotes"`
	AdditionalNotes   string                 `json:"additionalNotes"`
	Channel           string                 `json:"channel" validate:"required"`
	Creator           *string                `json:"creator"`
}
