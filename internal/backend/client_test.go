package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orderdesk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) IDToken(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) IDToken(context.Context) (string, error) { return "", errors.New("refresh failed") }

func TestClient_RefusesWithoutToken(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()
	c := New(srv.URL, time.Second, nil)

	_, err := c.ListUsers(context.Background(), staticToken(""))
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.EqualError(t, err, "user not authenticated")

	_, err = c.ListChannels(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = c.ListBooks(context.Background(), failingToken{})
	assert.Error(t, err)

	assert.Equal(t, 0, hits, "no request may leave without a token")
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/books/items", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"B1","title":"Gospel of John","type":"book","code":"GJ"}]`)
	}))
	defer srv.Close()

	items, err := New(srv.URL+"/", time.Second, nil).ListBookItems(context.Background(), staticToken("tok-1"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.CatalogItem{ID: "B1", Title: "Gospel of John", Category: "book", Code: "GJ"}, items[0])
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, nil).GetUser(context.Background(), staticToken("t"), "c 1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "/user/c%201", se.Path)
	assert.Contains(t, se.Body, "boom")
}

func TestClient_CreateOrderPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	creator := "a@b.com"
	order := domain.Order{
		Items: []domain.SelectedItemQuantity{
			{Item: domain.CatalogItem{ID: "B1", Title: "John", Category: "book"}, StartCount: 5},
		},
		Customer: &domain.Customer{ID: "c1"},
		Channel:  "web",
		Delivery: true,
		Creator:  &creator,
	}
	require.NoError(t, New(srv.URL, time.Second, nil).CreateOrder(context.Background(), staticToken("t"), NewOrderRequest(order)))

	products := got["products"].([]any)
	require.Len(t, products, 1)
	first := products[0].(map[string]any)
	assert.Equal(t, "B1", first["id"])
	assert.Equal(t, "book", first["type"])
	assert.EqualValues(t, 5, first["startCount"])
	assert.Equal(t, map[string]any{"customerId": "c1"}, got["recepient"])
	assert.Equal(t, "a@b.com", got["creator"])
	assert.Equal(t, "web", got["channel"])
	assert.Equal(t, true, got["delivery"])
}

func TestClient_CreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["creator"])
		assert.Equal(t, "Ann", body["firstName"])
		_, _ = io.WriteString(w, `{"id":"c9","firstName":"Ann","lastName":"Lee","email":"ann@x.io"}`)
	}))
	defer srv.Close()

	saved, err := New(srv.URL, time.Second, nil).CreateUser(context.Background(), staticToken("t"), UserRequest{
		Creator:       "a@b.com",
		CustomerInput: domain.CustomerInput{FirstName: "Ann", LastName: "Lee", Email: "ann@x.io"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c9", saved.ID)
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	assert.NoError(t, New(srv.URL, time.Second, nil).Ping(context.Background()), "reachable even when unauthenticated")

	srv.Close()
	assert.Error(t, New(srv.URL, time.Second, nil).Ping(context.Background()))
}
