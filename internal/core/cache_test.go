package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/composerd/internal/domain/model"
)

// stubCacheRepo is a function-field double for CacheRepository.
type stubCacheRepo struct {
	getFn    func(ctx context.Context, key string) ([]byte, error)
	setFn    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	deleteFn func(ctx context.Context, key string) (bool, error)

	setCalls    int
	deleteCalls int
}

func (s *stubCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getFn != nil {
		return s.getFn(ctx, key)
	}
	return nil, nil
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.setCalls++
	if s.setFn != nil {
		return s.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (s *stubCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	s.deleteCalls++
	if s.deleteFn != nil {
		return s.deleteFn(ctx, key)
	}
	return true, nil
}

func (s *stubCacheRepo) Exists(context.Context, string) (bool, error)                { return false, nil }
func (s *stubCacheRepo) SetTTL(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (s *stubCacheRepo) Health(context.Context) error                                { return nil }

// stubSourceRepo is a function-field double for SourceRepository; only GetByID
// is exercised by the context service.
type stubSourceRepo struct {
	getByIDFn    func(ctx context.Context, id string) (*model.Source, error)
	getByIDCalls int
}

func (s *stubSourceRepo) GetByID(ctx context.Context, id string) (*model.Source, error) {
	s.getByIDCalls++
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, errors.New("not stubbed")
}

func (s *stubSourceRepo) Create(context.Context, *model.CreateSourceRequest) (*model.Source, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubSourceRepo) GetByName(context.Context, string) (*model.Source, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubSourceRepo) List(context.Context, int, int) ([]*model.Source, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubSourceRepo) ListByNameContains(context.Context, string, int, int) ([]*model.Source, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubSourceRepo) Update(context.Context, string, model.UpdateSourceRequest) (*model.Source, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubSourceRepo) Delete(context.Context, string) (bool, error) {
	return false, errors.New("not stubbed")
}

func testSource(id string) *model.Source {
	return &model.Source{
		ID:         id,
		Name:       "alpine-trail-pack",
		Summary:    "35L hiking pack with external frame",
		Attributes: json.RawMessage(`{"capacity_l": 35}`),
	}
}

func newContextService(cache *stubCacheRepo, sources *stubSourceRepo) *SourceContextService {
	return NewSourceContextService(SourceContextServiceOptions{
		Cache:   cache,
		Sources: sources,
		Config:  DefaultSourceContextConfig(),
	})
}

func TestSourceContextService_GetContext(t *testing.T) {
	t.Parallel()

	t.Run("empty source id", func(t *testing.T) {
		t.Parallel()

		svc := newContextService(&stubCacheRepo{}, &stubSourceRepo{})
		_, err := svc.GetContext(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("cache hit skips repository", func(t *testing.T) {
		t.Parallel()

		src := testSource("source-123")
		encoded, err := json.Marshal(src)
		require.NoError(t, err)

		cache := &stubCacheRepo{
			getFn: func(_ context.Context, key string) ([]byte, error) {
				assert.Equal(t, "source:context:source-123", key)
				return encoded, nil
			},
		}
		sources := &stubSourceRepo{}

		got, err := newContextService(cache, sources).GetContext(context.Background(), "source-123")
		require.NoError(t, err)
		assert.Equal(t, src.Name, got.Name)
		assert.Equal(t, 0, sources.getByIDCalls)
		assert.Equal(t, 0, cache.setCalls)
	})

	t.Run("cache miss loads and caches", func(t *testing.T) {
		t.Parallel()

		src := testSource("source-123")
		var setKey string
		var setTTL time.Duration
		cache := &stubCacheRepo{
			setFn: func(_ context.Context, key string, value []byte, ttl time.Duration) error {
				setKey = key
				setTTL = ttl
				var cached model.Source
				require.NoError(t, json.Unmarshal(value, &cached))
				assert.Equal(t, src.ID, cached.ID)
				return nil
			},
		}
		sources := &stubSourceRepo{
			getByIDFn: func(_ context.Context, id string) (*model.Source, error) {
				assert.Equal(t, "source-123", id)
				return src, nil
			},
		}

		got, err := newContextService(cache, sources).GetContext(context.Background(), "source-123")
		require.NoError(t, err)
		assert.Equal(t, src, got)
		assert.Equal(t, "source:context:source-123", setKey)
		assert.Equal(t, 30*time.Minute, setTTL)
	})

	t.Run("corrupt cached entry reloads", func(t *testing.T) {
		t.Parallel()

		src := testSource("source-123")
		cache := &stubCacheRepo{
			getFn: func(context.Context, string) ([]byte, error) {
				return []byte("{not json"), nil
			},
		}
		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) {
				return src, nil
			},
		}

		got, err := newContextService(cache, sources).GetContext(context.Background(), "source-123")
		require.NoError(t, err)
		assert.Equal(t, src, got)
		assert.Equal(t, 1, sources.getByIDCalls)
		assert.Equal(t, 1, cache.setCalls)
	})

	t.Run("cached entry for different id reloads", func(t *testing.T) {
		t.Parallel()

		// A stale or mis-keyed entry must not masquerade as this source.
		other, err := json.Marshal(testSource("source-999"))
		require.NoError(t, err)

		cache := &stubCacheRepo{
			getFn: func(context.Context, string) ([]byte, error) { return other, nil },
		}
		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) {
				return testSource("source-123"), nil
			},
		}

		got, err := newContextService(cache, sources).GetContext(context.Background(), "source-123")
		require.NoError(t, err)
		assert.Equal(t, "source-123", got.ID)
		assert.Equal(t, 1, sources.getByIDCalls)
	})

	t.Run("cache get error surfaces", func(t *testing.T) {
		t.Parallel()

		cache := &stubCacheRepo{
			getFn: func(context.Context, string) ([]byte, error) {
				return nil, errors.New("redis error")
			},
		}

		_, err := newContextService(cache, &stubSourceRepo{}).GetContext(context.Background(), "source-123")
		assert.Error(t, err)
	})

	t.Run("source fetch error surfaces", func(t *testing.T) {
		t.Parallel()

		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) {
				return nil, errors.New("source not found")
			},
		}

		_, err := newContextService(&stubCacheRepo{}, sources).GetContext(context.Background(), "source-123")
		assert.Error(t, err)
	})

	t.Run("cache set error surfaces", func(t *testing.T) {
		t.Parallel()

		cache := &stubCacheRepo{
			setFn: func(context.Context, string, []byte, time.Duration) error {
				return errors.New("redis error")
			},
		}
		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) {
				return testSource("source-123"), nil
			},
		}

		_, err := newContextService(cache, sources).GetContext(context.Background(), "source-123")
		assert.Error(t, err)
	})
}

func TestSourceContextService_RefreshContext(t *testing.T) {
	t.Parallel()

	t.Run("cached value up-to-date skips set", func(t *testing.T) {
		t.Parallel()

		src := testSource("source-123")
		encoded, err := json.Marshal(src)
		require.NoError(t, err)

		cache := &stubCacheRepo{
			getFn: func(context.Context, string) ([]byte, error) { return encoded, nil },
		}
		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) { return src, nil },
		}

		require.NoError(t, newContextService(cache, sources).RefreshContext(context.Background(), "source-123"))
		assert.Equal(t, 0, cache.setCalls)
	})

	t.Run("stale cached value refreshed", func(t *testing.T) {
		t.Parallel()

		stale := testSource("source-123")
		stale.Summary = "old summary"
		encoded, err := json.Marshal(stale)
		require.NoError(t, err)

		cache := &stubCacheRepo{
			getFn: func(context.Context, string) ([]byte, error) { return encoded, nil },
		}
		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) {
				return testSource("source-123"), nil
			},
		}

		require.NoError(t, newContextService(cache, sources).RefreshContext(context.Background(), "source-123"))
		assert.Equal(t, 1, cache.setCalls)
	})

	t.Run("empty source id", func(t *testing.T) {
		t.Parallel()

		err := newContextService(&stubCacheRepo{}, &stubSourceRepo{}).RefreshContext(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("source fetch error surfaces", func(t *testing.T) {
		t.Parallel()

		sources := &stubSourceRepo{
			getByIDFn: func(context.Context, string) (*model.Source, error) {
				return nil, errors.New("source not found")
			},
		}

		err := newContextService(&stubCacheRepo{}, sources).RefreshContext(context.Background(), "source-123")
		assert.Error(t, err)
	})
}

func TestSourceContextService_InvalidateContext(t *testing.T) {
	t.Parallel()

	t.Run("empty source id is a no-op", func(t *testing.T) {
		t.Parallel()

		cache := &stubCacheRepo{}
		require.NoError(t, newContextService(cache, &stubSourceRepo{}).InvalidateContext(context.Background(), ""))
		assert.Equal(t, 0, cache.deleteCalls)
	})

	t.Run("deletes the context key", func(t *testing.T) {
		t.Parallel()

		var deletedKey string
		cache := &stubCacheRepo{
			deleteFn: func(_ context.Context, key string) (bool, error) {
				deletedKey = key
				return true, nil
			},
		}

		require.NoError(t, newContextService(cache, &stubSourceRepo{}).InvalidateContext(context.Background(), "source-123"))
		assert.Equal(t, "source:context:source-123", deletedKey)
	})

	t.Run("cache error surfaces", func(t *testing.T) {
		t.Parallel()

		cache := &stubCacheRepo{
			deleteFn: func(context.Context, string) (bool, error) {
				return false, errors.New("redis error")
			},
		}

		err := newContextService(cache, &stubSourceRepo{}).InvalidateContext(context.Background(), "source-123")
		assert.Error(t, err)
	})
}

func TestDefaultSourceContextConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultSourceContextConfig()
	assert.Equal(t, 30*time.Minute, cfg.TTL)
}

func TestSourceContextService_sourceContextKey(t *testing.T) {
	t.Parallel()

	svc := newContextService(&stubCacheRepo{}, &stubSourceRepo{})
	assert.Equal(t, "source:context:test-id", svc.sourceContextKey("test-id"))
}
