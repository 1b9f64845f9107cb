package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// envelope is the stored shape of a Service entry.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch ms
	Expiry    int64           `json:"expiry"`    // epoch ms, 0 = never
}

// Service caches JSON values in a Store with an explicit expiry stamped on
// each entry, so staleness is detected even on stores without native TTLs.
type Service struct {
	store      Store
	defaultTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(store Store, defaultTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	now := s.now()
	env := envelope{Data: data, Timestamp: now.UnixMilli()}
	if ttl > 0 {
		env.Expiry = now.Add(ttl).UnixMilli()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return s.store.SetString(ctx, key, string(raw), ttl)
}

// Get loads key into dest and reports whether a fresh entry was found.
// Expired or corrupt entries are removed.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.store.GetString(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheNotFound) {
			return false, nil
		}
		return false, err
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.logger.WarnContext(ctx, "Dropping corrupt cache entry", "key", key, "error", err)
		SafeDelete(ctx, s.store, key)
		return false, nil
	}
	if env.Expiry > 0 && s.now().UnixMilli() >= env.Expiry {
		SafeDelete(ctx, s.store, key)
		return false, nil
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return true, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// Clear removes every entry of the service and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	keys, err := s.store.ScanKeys(ctx, "*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}
