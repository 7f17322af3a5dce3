package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"orderdesk/internal/backend"
	"orderdesk/internal/domain"
	"orderdesk/internal/repository/storage"
	"orderdesk/internal/validation"
)

// RecentKey is the profile storage key listing customers created in this
// browser profile, oldest first.
const RecentKey = "latestCustomer"

// ErrCreateFailed wraps backend failures while saving a customer.
var ErrCreateFailed = errors.New("failed to submit")

// Backend is the subset of the REST client the customer form uses.
type Backend interface {
	CreateUser(ctx context.Context, ts backend.TokenSource, req backend.UserRequest) (*domain.Customer, error)
	ListUsers(ctx context.Context, ts backend.TokenSource) ([]domain.Customer, error)
	GetUser(ctx context.Context, ts backend.TokenSource, id string) (*domain.Customer, error)
}

// Service handles the customer form and the recently created customers list.
type Service struct {
	backend   Backend
	storage   storage.Repository
	validator *validation.Validator
	logger    *log.Logger

	// serializes read-modify-write of RecentKey within this process
	mu sync.Mutex
}

func New(b Backend, repo storage.Repository, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: b, storage: repo, validator: validation.New(), logger: logger}
}

// Create validates the form, saves the customer and remembers it as recent.
func (s *Service) Create(ctx context.Context, profileID string, ts backend.TokenSource, creator string, in domain.CustomerInput) (*domain.Customer, error) {
	in = normalize(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	saved, err := s.backend.CreateUser(ctx, ts, backend.UserRequest{Creator: creator, CustomerInput: in})
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			return nil, err
		}
		s.logger.Printf("customer service: create email=%s error=%v", in.Email, err)
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	if err := s.appendRecent(ctx, profileID, *saved); err != nil {
		// the customer exists on the backend; only the shortcut list is stale
		s.logger.Printf("customer service: remember recent id=%s error=%v", saved.ID, err)
	}
	return saved, nil
}

// Get fetches one customer from the backend.
func (s *Service) Get(ctx context.Context, ts backend.TokenSource, id string) (*domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.backend.GetUser(ctx, ts, id)
}

// List returns recently created customers, newest first, followed by the
// backend's customers. Each id appears once.
func (s *Service) List(ctx context.Context, profileID string, ts backend.TokenSource) ([]domain.Customer, error) {
	remote, err := s.backend.ListUsers(ctx, ts)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return merge(newestFirst(recent), remote), nil
}

// Recent returns the stored recent customers in creation order.
func (s *Service) Recent(ctx context.Context, profileID string) ([]domain.Customer, error) {
	raw, err := s.storage.Get(ctx, profileID, RecentKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Customer{}, nil
		}
		return nil, fmt.Errorf("read recent customers: %w", err)
	}
	return s.decode(raw), nil
}

// ResetRecent clears the recent list. The order form does this when opened.
func (s *Service) ResetRecent(ctx context.Context, profileID string) error {
	if err := s.storage.Delete(ctx, profileID, RecentKey); err != nil {
		return fmt.Errorf("reset recent customers: %w", err)
	}
	return nil
}

// WatchRecent streams the recent list, newest first, each time another
// session of the profile changes it. The channel closes when ctx ends.
func (s *Service) WatchRecent(ctx context.Context, profileID string) (<-chan []domain.Customer, error) {
	changes, err := s.storage.Watch(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("watch recent customers: %w", err)
	}
	out := make(chan []domain.Customer, 1)
	go func() {
		defer close(out)
		for change := range changes {
			if change.Key != RecentKey {
				continue
			}
			list := []domain.Customer{}
			if !change.Deleted {
				list = newestFirst(s.decode(change.Value))
			}
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Service) appendRecent(ctx context.Context, profileID string, c domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.Recent(ctx, profileID)
	if err != nil {
		return err
	}
	list = append(list, c)
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, profileID, RecentKey, raw)
}

func (s *Service) decode(raw []byte) []domain.Customer {
	var list []domain.Customer
	if err := json.Unmarshal(raw, &list); err != nil {
		s.logger.Printf("customer service: discarding unreadable recent list: %v", err)
		return []domain.Customer{}
	}
	return list
}

func normalize(in domain.CustomerInput) domain.CustomerInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.CellPhone = strings.TrimSpace(in.CellPhone)
	in.HomePhone = strings.TrimSpace(in.HomePhone)
	in.Address.Line = strings.TrimSpace(in.Address.Line)
	in.Address.Line2 = strings.TrimSpace(in.Address.Line2)
	in.Address.PostalCode = strings.TrimSpace(in.Address.PostalCode)
	in.Address.City = strings.TrimSpace(in.Address.City)
	in.Address.Country = strings.TrimSpace(in.Address.Country)
	return in
}

func newestFirst(list []domain.Customer) []domain.Customer {
	out := make([]domain.Customer, len(list))
	for i, c := range list {
		out[len(list)-1-i] = c
	}
	return out
}

func merge(first, rest []domain.Customer) []domain.Customer {
	seen := make(map[string]struct{}, len(first)+len(rest))
	out := make([]domain.Customer, 0, len(first)+len(rest))
	for _, group := range [][]domain.Customer{first, rest} {
		for _, c := range group {
			if c.ID != "" {
				if _, dup := seen[c.ID]; dup {
					continue
				}
				seen[c.ID] = struct{}{}
			}
			out = append(out, c)
		}
	}
	return out
}
