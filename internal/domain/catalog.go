package domain

// CatalogItem is a sellable unit (book or product) listed by the backend.
type CatalogItem struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Category string `json:"type" validate:"required"`
	Code     string `json:"code,omitempty"`
}

// SelectedItemQuantity is one line of an order being composed.
type SelectedItemQuantity struct {
	Item       CatalogItem `json:"product" validate:"required"`
	StartCount int         `json:"startCount" validate:"gte=1"`
	EndCount   *int        `json:"endCount"`
	NetCount   *int        `json:"netCount"`
}
