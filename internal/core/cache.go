// Package core provides the business logic and service layer for the composerd job system.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/draftforge/composerd/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// SetTTL updates the TTL for an existing key.
	// Returns true if the key exists and TTL was updated.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// SourceContextService caches the source record that feeds generation
// prompts, so compose jobs do not hit the sources table on every attempt.
// A nil cache disables caching and every read goes to the source repository.
type SourceContextService struct {
	cache   CacheRepository
	sources SourceRepository
	ttl     time.Duration
}

// SourceContextConfig holds configuration for source context caching.
type SourceContextConfig struct {
	TTL time.Duration `json:"ttl"`
}

// SourceContextServiceOptions bundles dependencies for NewSourceContextService.
type SourceContextServiceOptions struct {
	Cache   CacheRepository
	Sources SourceRepository
	Config  SourceContextConfig
}

// DefaultSourceContextConfig returns a SourceContextConfig with sensible defaults.
func DefaultSourceContextConfig() SourceContextConfig {
	return SourceContextConfig{
		TTL: 30 * time.Minute,
	}
}

// NewSourceContextService creates a new SourceContextService.
func NewSourceContextService(opts SourceContextServiceOptions) *SourceContextService {
	return &SourceContextService{
		cache:   opts.Cache,
		sources: opts.Sources,
		ttl:     opts.Config.TTL,
	}
}

// GetContext returns the source record for prompt building, read through the
// cache. A cached entry that no longer unmarshals is treated as a miss and
// overwritten.
func (s *SourceContextService) GetContext(ctx context.Context, sourceID string) (*model.Source, error) {
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}

	key := s.sourceContextKey(sourceID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get cached source context: %w", err)
		}
		if len(cached) > 0 {
			var src model.Source
			if unmarshalErr := json.Unmarshal(cached, &src); unmarshalErr == nil && src.ID == sourceID {
				return &src, nil
			}
		}
	}

	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if s.cache == nil {
		return source, nil
	}

	encoded, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("marshal source context: %w", err)
	}
	if setErr := s.cache.Set(ctx, key, encoded, s.ttl); setErr != nil {
		return nil, fmt.Errorf("cache source context: %w", setErr)
	}

	return source, nil
}

// RefreshContext re-warms the cached context for a source from the database.
// If the cached value already matches, the write is skipped.
func (s *SourceContextService) RefreshContext(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return errors.New("source id is required")
	}

	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}

	encoded, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("marshal source context: %w", err)
	}

	key := s.sourceContextKey(sourceID)
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get cached source context: %w", err)
	}
	if len(cached) > 0 && string(cached) == string(encoded) {
		return nil
	}

	return s.cache.Set(ctx, key, encoded, s.ttl)
}

// InvalidateContext removes the cached context for a source ID.
// This should be called when a source is updated or deleted.
func (s *SourceContextService) InvalidateContext(ctx context.Context, sourceID string) error {
	if sourceID == "" || s.cache == nil {
		return nil
	}

	_, err := s.cache.Delete(ctx, s.sourceContextKey(sourceID))
	return err
}

// sourceContextKey generates a cache key for source context.
func (s *SourceContextService) sourceContextKey(sourceID string) string {
	return "source:context:" + sourceID
}
