package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// hashKey holds every flag as a field of one hash, so a listing is a single
// HGETALL and an upsert is a single HSET.
const hashKey = "tokenops:flags"

// DefaultCacheTTL bounds how stale IsEnabled may be after a change made by
// another process.
const DefaultCacheTTL = 2 * time.Second

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

type cached struct {
	value   bool
	fetched time.Time
}

// Store keeps runtime switches in Redis. The engine consults it before
// every submission through IsEnabled, which is served from a short local
// cache.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{
		client: client,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		cache:  make(map[string]cached),
	}, nil
}

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid flag key")
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}
	if err := s.client.HSet(ctx, hashKey, key, b).Err(); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}

	s.remember(key, value)
	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.HGet(ctx, hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}
	return decode(val)
}

// List returns every flag sorted by key. Undecodable entries are skipped.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	all, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	out := make([]*Flag, 0, len(all))
	for key, raw := range all {
		if ValidateKey(key) != nil {
			continue
		}
		f, err := decode(raw)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes a flag. Deleting a missing flag is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, hashKey, key).Err(); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// IsEnabled reports the value of a switch. A switch that was never set is on.
func (s *Store) IsEnabled(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	c, ok := s.cache[key]
	s.mu.Unlock()
	if ok && s.now().Sub(c.fetched) < s.ttl {
		return c.value, nil
	}

	f, err := s.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		s.remember(key, true)
		return true, nil
	case err != nil:
		return false, err
	}
	s.remember(key, f.Value)
	return f.Value, nil
}

func (s *Store) remember(key string, value bool) {
	s.mu.Lock()
	s.cache[key] = cached{value: value, fetched: s.now()}
	s.mu.Unlock()
}

func decode(raw string) (*Flag, error) {
	var f Flag
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag: %w", err)
	}
	return &f, nil
}
