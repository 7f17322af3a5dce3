package storage

import (
	"context"
	"testing"

	"orderdesk/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, nil), mr
}

func TestRedis_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRedis(t)

	_, err := repo.Get(ctx, "p1", "k")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "p1", "k", []byte("value")))
	assert.Equal(t, "value", mr.HGet("orderdesk:profile:p1", "k"))

	got, err := repo.Get(ctx, "p1", "k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))

	require.NoError(t, repo.Delete(ctx, "p1", "k"))
	require.NoError(t, repo.Delete(ctx, "p1", "k"))
	_, err = repo.Get(ctx, "p1", "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedis_WatchReceivesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo, _ := newTestRedis(t)

	changes, err := repo.Watch(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, repo.Set(ctx, "p1", "latestCustomer", []byte(`[{"id":"c1"}]`)))
	c := receive(t, changes)
	assert.Equal(t, "latestCustomer", c.Key)
	assert.JSONEq(t, `[{"id":"c1"}]`, string(c.Value))

	require.NoError(t, repo.Delete(ctx, "p1", "latestCustomer"))
	c = receive(t, changes)
	assert.True(t, c.Deleted)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not-a-url")
	assert.Error(t, err)
}
