package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"orderdesk/internal/backend"
	"orderdesk/internal/domain"
	"orderdesk/internal/service/lineitem"
	"orderdesk/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct {
	err   error
	calls int
	last  backend.OrderRequest
}

func (s *stubSubmitter) CreateOrder(_ context.Context, _ backend.TokenSource, req backend.OrderRequest) error {
	s.calls++
	s.last = req
	return s.err
}

type token string

func (t token) IDToken(context.Context) (string, error) { return string(t), nil }

func strPtr(s string) *string { return &s }

func draftWith(n int) *lineitem.List {
	l := lineitem.New()
	for i := 0; i < n; i++ {
		l.Add(domain.CatalogItem{ID: fmt.Sprintf("B%d", i), Title: "Book", Category: "book"}, 1)
	}
	return l
}

func validInput() SubmitInput {
	return SubmitInput{CustomerID: strPtr("c1"), Channel: "web"}
}

func TestSubmit_Success(t *testing.T) {
	sub := &stubSubmitter{}
	svc := NewService(sub, nil)
	draft := draftWith(2)

	o, err := svc.Submit(context.Background(), draft, token("t"), "a@b.com", validInput())
	require.NoError(t, err)
	assert.Equal(t, 1, sub.calls)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "a@b.com", *o.Creator)
	assert.Equal(t, "c1", *sub.last.Recipient.CustomerID)
	assert.Nil(t, sub.last.Recipient.AnonymousUser)
	assert.Equal(t, 0, draft.Len(), "draft is reset after a successful submission")
}

func TestSubmit_ItemBounds(t *testing.T) {
	tests := []struct {
		name  string
		items int
		ok    bool
	}{
		{"empty", 0, false},
		{"one", 1, true},
		{"max", MaxItems, true},
		{"over max", MaxItems + 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &stubSubmitter{}
			_, err := NewService(sub, nil).Submit(context.Background(), draftWith(tt.items), token("t"), "", validInput())
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "products")
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 0, sub.calls, "invalid orders are never sent")
		})
	}
}

func TestSubmit_RecipientMustBeExactlyOne(t *testing.T) {
	tests := []struct {
		name string
		in   SubmitInput
		ok   bool
	}{
		{"customer", SubmitInput{CustomerID: strPtr("c1"), Channel: "web"}, true},
		{"anonymous", SubmitInput{AnonymousCustomer: strPtr("walk-in"), Channel: "web"}, true},
		{"both", SubmitInput{CustomerID: strPtr("c1"), AnonymousCustomer: strPtr("walk-in"), Channel: "web"}, false},
		{"neither", SubmitInput{Channel: "web"}, false},
		{"blank anonymous", SubmitInput{AnonymousCustomer: strPtr("  "), Channel: "web"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(&stubSubmitter{}, nil).Submit(context.Background(), draftWith(1), token("t"), "", tt.in)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "customerId")
		})
	}
}

func TestSubmit_ChannelRequired(t *testing.T) {
	in := validInput()
	in.Channel = " "
	_, err := NewService(&stubSubmitter{}, nil).Submit(context.Background(), draftWith(1), token("t"), "", in)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["channel"])
}

func TestSubmit_QuantityMustBePositive(t *testing.T) {
	draft := draftWith(1)
	draft.UpdateQuantity("B0", 0)
	_, err := NewService(&stubSubmitter{}, nil).Submit(context.Background(), draft, token("t"), "", validInput())
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "products[0].startCount")
}

func TestSubmit_BackendFailureKeepsDraft(t *testing.T) {
	sub := &stubSubmitter{err: &backend.StatusError{StatusCode: 500}}
	draft := draftWith(1)

	_, err := NewService(sub, nil).Submit(context.Background(), draft, token("t"), "", validInput())
	assert.ErrorIs(t, err, ErrSubmitFailed)
	var se *backend.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 1, draft.Len())
}

func TestSubmit_NotAuthenticatedPassesThrough(t *testing.T) {
	sub := &stubSubmitter{err: domain.ErrNotAuthenticated}
	_, err := NewService(sub, nil).Submit(context.Background(), draftWith(1), token(""), "", validInput())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.False(t, errors.Is(err, ErrSubmitFailed))
}

func TestBuild_FreshOrderPerCall(t *testing.T) {
	items := []domain.SelectedItemQuantity{{Item: domain.CatalogItem{ID: "B1"}, StartCount: 1}}
	a := Build(items, "x@y.z", validInput())
	b := Build(items, "", SubmitInput{AnonymousCustomer: strPtr(" walk-in ")})
	assert.Equal(t, "c1", a.Customer.ID)
	assert.Nil(t, b.Customer)
	assert.Equal(t, "walk-in", *b.AnonymousCustomer)
	assert.Nil(t, b.Creator)
}
