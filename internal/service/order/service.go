package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"orderdesk/internal/backend"
	"orderdesk/internal/domain"
	"orderdesk/internal/metrics"
	"orderdesk/internal/service/lineitem"
	"orderdesk/internal/validation"

	"github.com/go-playground/validator/v10"
)

// MaxItems is the largest number of distinct line items one order may carry.
const MaxItems = 25

// ErrSubmitFailed wraps any backend failure while posting an order.
var ErrSubmitFailed = errors.New("failed to submit order")

// Submitter posts orders to the backend.
type Submitter interface {
	CreateOrder(ctx context.Context, ts backend.TokenSource, req backend.OrderRequest) error
}

// SubmitInput is everything on the order form besides the line items.
type SubmitInput struct {
	CustomerID        *string `json:"customerId"`
	AnonymousCustomer *string `json:"anonymousCustomer"`
	Delivery          bool    `json:"delivery"`
	DeliveryNotes     string  `json:"deliveryNotes"`
	AdditionalNotes   string  `json:"additionalNotes"`
	Channel           string  `json:"channel"`
}

type Service struct {
	backend   Submitter
	validator *validation.Validator
	logger    *log.Logger
}

func NewService(b Submitter, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	v := validation.New()
	v.RegisterStructRule(recipientRule, domain.Order{}, "recipient", "choose a customer or enter an anonymous customer, not both")
	return &Service{backend: b, validator: v, logger: logger}
}

// Build assembles a fresh Order from the draft and the form values.
func Build(items []domain.SelectedItemQuantity, creator string, in SubmitInput) domain.Order {
	o := domain.Order{
		Items:             items,
		AnonymousCustomer: trimmed(in.AnonymousCustomer),
		Delivery:          in.Delivery,
		DeliveryNotes:     in.DeliveryNotes,
		AdditionalNotes:   in.AdditionalNotes,
		Channel:           strings.TrimSpace(in.Channel),
	}
	if id := trimmed(in.CustomerID); id != nil {
		o.Customer = &domain.Customer{ID: *id}
	}
	if creator != "" {
		o.Creator = &creator
	}
	return o
}

// Validate reports every problem with o as a *validation.Error.
func (s *Service) Validate(o domain.Order) error {
	return s.validator.Struct(o)
}

// Submit validates and posts the draft. An invalid order is never sent. The
// draft is emptied once the backend accepts the order.
func (s *Service) Submit(ctx context.Context, draft *lineitem.List, ts backend.TokenSource, creator string, in SubmitInput) (*domain.Order, error) {
	o := Build(draft.Items(), creator, in)
	if err := s.Validate(o); err != nil {
		metrics.RecordOrderSubmission("invalid")
		return nil, err
	}

	if err := s.backend.CreateOrder(ctx, ts, backend.NewOrderRequest(o)); err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			metrics.RecordOrderSubmission("unauthenticated")
			return nil, err
		}
		metrics.RecordOrderSubmission("failed")
		s.logger.Printf("order service: submit items=%d channel=%s error=%v", len(o.Items), o.Channel, err)
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	metrics.RecordOrderSubmission("success")
	draft.Reset()
	return &o, nil
}

func recipientRule(sl validator.StructLevel) {
	o := sl.Current().Interface().(domain.Order)
	hasCustomer := o.Customer != nil && o.Customer.ID != ""
	hasAnonymous := o.AnonymousCustomer != nil
	if hasCustomer == hasAnonymous {
		sl.ReportError(o.Customer, "customerId", "Customer", "recipient", "")
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
