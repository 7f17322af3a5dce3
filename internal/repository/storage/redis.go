package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"orderdesk/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "orderdesk:profile:"

type redisRepo struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedis returns a Repository storing each profile as a Redis hash.
// Changes are announced on a per-profile pub/sub channel.
func NewRedis(client *redis.Client, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &redisRepo{client: client, logger: logger}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func hashKey(profileID string) string {
	return redisPrefix + profileID
}

func changesChannel(profileID string) string {
	return redisPrefix + profileID + ":changes"
}

func (r *redisRepo) Get(ctx context.Context, profileID, key string) ([]byte, error) {
	if err := validate(profileID, key); err != nil {
		return nil, err
	}
	v, err := r.client.HGet(ctx, hashKey(profileID), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("storage redis: get profile_id=%s key=%s error=%v", profileID, key, err)
		return nil, err
	}
	return v, nil
}

func (r *redisRepo) Set(ctx context.Context, profileID, key string, value []byte) error {
	if err := validate(profileID, key); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, hashKey(profileID), key, value).Err(); err != nil {
		r.logger.Printf("storage redis: set profile_id=%s key=%s error=%v", profileID, key, err)
		return err
	}
	r.publish(ctx, notifyPayload{ProfileID: profileID, Key: key})
	return nil
}

func (r *redisRepo) Delete(ctx context.Context, profileID, key string) error {
	if err := validate(profileID, key); err != nil {
		return err
	}
	n, err := r.client.HDel(ctx, hashKey(profileID), key).Result()
	if err != nil {
		r.logger.Printf("storage redis: delete profile_id=%s key=%s error=%v", profileID, key, err)
		return err
	}
	if n > 0 {
		r.publish(ctx, notifyPayload{ProfileID: profileID, Key: key, Deleted: true})
	}
	return nil
}

// publish is best effort; the stored value is already committed.
func (r *redisRepo) publish(ctx context.Context, p notifyPayload) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, changesChannel(p.ProfileID), payload).Err(); err != nil {
		r.logger.Printf("storage redis: publish profile_id=%s key=%s error=%v", p.ProfileID, p.Key, err)
	}
}

func (r *redisRepo) Watch(ctx context.Context, profileID string) (<-chan Change, error) {
	if profileID == "" {
		return nil, errEmptyProfile
	}
	sub := r.client.Subscribe(ctx, changesChannel(profileID))
	// wait for the subscription confirmation so no change published after Watch returns is lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var p notifyPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Printf("storage redis: decode payload=%q error=%v", msg.Payload, err)
					continue
				}
				change := Change{ProfileID: profileID, Key: p.Key, Deleted: p.Deleted}
				if !p.Deleted {
					value, err := r.Get(ctx, profileID, p.Key)
					if err != nil {
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
		}
	}()
	return out, nil
}
