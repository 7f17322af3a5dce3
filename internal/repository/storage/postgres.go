package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"orderdesk/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the LISTEN channel fed by the profile_storage trigger.
const NotifyChannel = "profile_storage_changes"

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

type postgresRepo struct {
	pool   pgxQuerier
	listen func(ctx context.Context) (listenConn, error)
	logger *log.Logger

	mu       sync.Mutex
	listener *pgListener
}

// NewPostgres returns a Repository backed by the profile_storage table.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	repo := newPostgres(pool, logger)
	repo.listen = func(ctx context.Context) (listenConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return poolListenConn{conn}, nil
	}
	return repo
}

func newPostgres(pool pgxQuerier, logger *log.Logger) *postgresRepo {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

type poolListenConn struct {
	*pgxpool.Conn
}

func (c poolListenConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.Conn.Conn().WaitForNotification(ctx)
}

func (r *postgresRepo) Get(ctx context.Context, profileID, key string) ([]byte, error) {
	if err := validate(profileID, key); err != nil {
		return nil, err
	}
	const q = `
SELECT value
FROM profile_storage
WHERE profile_id = $1 AND key = $2
`
	var value string
	if err := r.pool.QueryRow(ctx, q, profileID, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("storage repo: get profile_id=%s key=%s error=%v", profileID, key, err)
		return nil, err
	}
	return []byte(value), nil
}

func (r *postgresRepo) Set(ctx context.Context, profileID, key string, value []byte) error {
	if err := validate(profileID, key); err != nil {
		return err
	}
	const q = `
INSERT INTO profile_storage (profile_id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (profile_id, key) DO UPDATE SET
    value = EXCLUDED.value,
    updated_at = now()
`
	if _, err := r.pool.Exec(ctx, q, profileID, key, string(value)); err != nil {
		r.logger.Printf("storage repo: set profile_id=%s key=%s error=%v", profileID, key, err)
		return err
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, profileID, key string) error {
	if err := validate(profileID, key); err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM profile_storage WHERE profile_id = $1 AND key = $2`, profileID, key); err != nil {
		r.logger.Printf("storage repo: delete profile_id=%s key=%s error=%v", profileID, key, err)
		return err
	}
	return nil
}

type notifyPayload struct {
	ProfileID string `json:"profileId"`
	Key       string `json:"key"`
	Deleted   bool   `json:"deleted"`
}

// Watch subscribes to the repository's shared listener. The first watcher
// acquires the single LISTEN connection and the last one to leave releases it.
func (r *postgresRepo) Watch(ctx context.Context, profileID string) (<-chan Change, error) {
	if profileID == "" {
		return nil, errEmptyProfile
	}
	if r.listen == nil {
		return nil, errors.New("storage repo: listen not supported")
	}
	l, sub, err := r.subscribe(ctx, profileID)
	if err != nil {
		return nil, err
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer r.unsubscribe(l, profileID, sub)
		for {
			var p notifyPayload
			select {
			case <-ctx.Done():
				return
			case n, ok := <-sub:
				if !ok {
					return
				}
				p = n
			}
			change := Change{ProfileID: p.ProfileID, Key: p.Key, Deleted: p.Deleted}
			if !p.Deleted {
				value, err := r.Get(ctx, p.ProfileID, p.Key)
				if err != nil {
					// overwritten or removed since the notification was sent
					continue
				}
				change.Value = value
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// pgListener owns the LISTEN connection and the subscribers it fans out to.
type pgListener struct {
	cancel context.CancelFunc
	subs   map[string]map[chan notifyPayload]struct{}
	count  int
}

func (r *postgresRepo) subscribe(ctx context.Context, profileID string) (*pgListener, chan notifyPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.listener
	if l == nil {
		conn, err := r.listen(ctx)
		if err != nil {
			return nil, nil, err
		}
		if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			conn.Release()
			return nil, nil, err
		}
		listenCtx, cancel := context.WithCancel(context.Background())
		l = &pgListener{cancel: cancel, subs: make(map[string]map[chan notifyPayload]struct{})}
		r.listener = l
		go r.dispatch(listenCtx, l, conn)
	}

	sub := make(chan notifyPayload, 16)
	if l.subs[profileID] == nil {
		l.subs[profileID] = make(map[chan notifyPayload]struct{})
	}
	l.subs[profileID][sub] = struct{}{}
	l.count++
	return l, sub, nil
}

func (r *postgresRepo) unsubscribe(l *pgListener, profileID string, sub chan notifyPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := l.subs[profileID][sub]; !ok {
		return
	}
	delete(l.subs[profileID], sub)
	if len(l.subs[profileID]) == 0 {
		delete(l.subs, profileID)
	}
	l.count--
	if l.count == 0 {
		l.cancel()
		if r.listener == l {
			r.listener = nil
		}
	}
}

// dispatch never blocks on a subscriber; a full buffer drops the notification.
// When the connection fails every subscriber channel is closed so their
// watches end, and the next Watch opens a fresh listener.
func (r *postgresRepo) dispatch(ctx context.Context, l *pgListener, conn listenConn) {
	defer func() {
		// the connection goes back to the pool, so stop listening first
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+NotifyChannel)
		conn.Release()
	}()
	defer func() {
		r.mu.Lock()
		if r.listener == l {
			r.listener = nil
		}
		for _, subs := range l.subs {
			for sub := range subs {
				close(sub)
			}
		}
		l.subs = map[string]map[chan notifyPayload]struct{}{}
		l.count = 0
		r.mu.Unlock()
		l.cancel()
	}()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Printf("storage repo: listen error=%v", err)
			}
			return
		}
		var p notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			r.logger.Printf("storage repo: decode notification payload=%q error=%v", n.Payload, err)
			continue
		}
		r.mu.Lock()
		for sub := range l.subs[p.ProfileID] {
			select {
			case sub <- p:
			default:
				r.logger.Printf("storage repo: watcher behind, dropped profile_id=%s key=%s", p.ProfileID, p.Key)
			}
		}
		r.mu.Unlock()
	}
}
