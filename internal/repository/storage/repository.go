package storage

import (
	"context"
	"errors"
	"strings"
)

// Change describes one write or removal observed on a profile's storage.
type Change struct {
	ProfileID string
	Key       string
	Value     []byte
	Deleted   bool
}

// Repository is a per-profile key/value store, the server-side stand-in for browser local storage.
type Repository interface {
	// Get returns domain.ErrNotFound when the key is absent.
	Get(ctx context.Context, profileID, key string) ([]byte, error)
	Set(ctx context.Context, profileID, key string, value []byte) error
	// Delete removes the key; a missing key is not an error.
	Delete(ctx context.Context, profileID, key string) error
	// Watch streams changes for the profile until ctx ends.
	Watch(ctx context.Context, profileID string) (<-chan Change, error)
}

var errEmptyProfile = errors.New("profile id required")

// Scoped binds a Repository to a single profile.
type Scoped struct {
	repo      Repository
	profileID string
}

// Scope returns a view of repo restricted to profileID.
func Scope(repo Repository, profileID string) *Scoped {
	return &Scoped{repo: repo, profileID: profileID}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.repo.Get(ctx, s.profileID, key)
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.repo.Set(ctx, s.profileID, key, value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.profileID, key)
}

func (s *Scoped) Watch(ctx context.Context) (<-chan Change, error) {
	return s.repo.Watch(ctx, s.profileID)
}

func validate(profileID, key string) error {
	if strings.TrimSpace(profileID) == "" {
		return errEmptyProfile
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("key required")
	}
	return nil
}
