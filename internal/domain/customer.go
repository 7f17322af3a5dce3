package domain

// Customer is a registered customer as returned by the backend user endpoints.
type Customer struct {
	ID         string          `json:"id"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	PostalCode string          `json:"postalCode,omitempty"`
	Email      string          `json:"email"`
	Address    CustomerAddress `json:"address"`
	CellPhone  string          `json:"cellPhone,omitempty"`
	HomePhone  string          `json:"homePhone,omitempty"`
	Creator    string          `json:"creator,omitempty"`
}

// CustomerAddress stores the postal address captured by the customer form.
type CustomerAddress struct {
	Line       string `json:"line" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postalCode" validate:"required"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// CustomerInput holds the values submitted through the customer form.
type CustomerInput struct {
	FirstName string          `json:"firstName" validate:"required"`
	LastName  string          `json:"lastName" validate:"required"`
	Address   CustomerAddress `json:"address"`
	Email     string          `json:"email" validate:"required,email"`
	CellPhone string          `json:"cellPhone,omitempty"`
	HomePhone string          `json:"homePhone,omitempty"`
}
