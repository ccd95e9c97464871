package compose

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/draftforge/composerd/internal/errors"

	"github.com/draftforge/composerd/internal/core"
	jobdomain "github.com/draftforge/composerd/internal/domain/job"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/generate"
)

// stubArtifactRepo is a function-field double for core.ArtifactRepository.
type stubArtifactRepo struct {
	upsertFn    func(ctx context.Context, params core.UpsertArtifactParams) (*model.Artifact, error)
	upsertCalls int
}

func (s *stubArtifactRepo) Upsert(ctx context.Context, params core.UpsertArtifactParams) (*model.Artifact, error) {
	s.upsertCalls++
	if s.upsertFn != nil {
		return s.upsertFn(ctx, params)
	}
	return &model.Artifact{ID: "artifact-1", SourceID: params.SourceID, Slot: params.Slot}, nil
}

func (s *stubArtifactRepo) GetBySourceSlot(context.Context, string, string) (*model.Artifact, error) {
	return nil, errors.New("not stubbed")
}

func (s *stubArtifactRepo) List(context.Context, model.ArtifactListOptions) ([]*model.Artifact, error) {
	return nil, errors.New("not stubbed")
}

// stubSourceRepo is a function-field double for core.SourceRepository; the
// compose path only reaches GetByID.
type stubSourceRepo struct {
	getByIDFn func(ctx context.Context, id string) (*model.Source, error)
}

func (s *stubSourceRepo) GetByID(ctx context.Context, id string) (*model.Source, error) {
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

// stubCacheRepo is a pass-through double for core.CacheRepository: every read
// misses, every write succeeds. calls records the operation order.
type stubCacheRepo struct {
	calls []string
}

func (s *stubCacheRepo) Set(_ context.Context, key string, _ []byte, _ time.Duration) error {
	s.calls = append(s.calls, "set "+key)
	return nil
}

func (s *stubCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	s.calls = append(s.calls, "get "+key)
	return nil, nil
}

func (s *stubCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	s.calls = append(s.calls, "delete "+key)
	return true, nil
}

func (s *stubCacheRepo) Exists(context.Context, string) (bool, error)                { return false, nil }
func (s *stubCacheRepo) SetTTL(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (s *stubCacheRepo) Health(context.Context) error                                { return nil }

// stubGenerator is a function-field double for generate.Generator.
type stubGenerator struct {
	generateFn    func(ctx context.Context, req generate.Request) (*generate.Result, error)
	generateCalls int
}

func (s *stubGenerator) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	s.generateCalls++
	if s.generateFn != nil {
		return s.generateFn(ctx, req)
	}
	return nil, errors.New("not stubbed")
}

type countingSink struct {
	counts map[string]int
	tags   map[string]map[string]string
}

func newCountingSink() *countingSink {
	return &countingSink{counts: map[string]int{}, tags: map[string]map[string]string{}}
}

func (s *countingSink) Count(name string, value int64, tags map[string]string) {
	s.counts[name] += int(value)
	s.tags[name] = tags
}

func (s *countingSink) Gauge(string, float64, map[string]string)        {}
func (s *countingSink) Timing(string, time.Duration, map[string]string) {}

type handlerDeps struct {
	artifacts *stubArtifactRepo
	sources   *stubSourceRepo
	cache     *stubCacheRepo
	generator *stubGenerator
	metrics   *countingSink
}

func newTestHandler(t *testing.T) (*Handler, *handlerDeps) {
	t.Helper()
	deps := &handlerDeps{
		artifacts: &stubArtifactRepo{},
		sources:   &stubSourceRepo{},
		cache:     &stubCacheRepo{},
		generator: &stubGenerator{},
		metrics:   newCountingSink(),
	}
	sourceContext := core.NewSourceContextService(core.SourceContextServiceOptions{
		Cache:   deps.cache,
		Sources: deps.sources,
		Config:  core.DefaultSourceContextConfig(),
	})
	handler, err := NewHandler(HandlerOptions{
		Artifacts:     deps.artifacts,
		SourceContext: sourceContext,
		Generator:     deps.generator,
		Metrics:       deps.metrics,
	})
	require.NoError(t, err)
	return handler, deps
}

func composeJob(t *testing.T, sourceID, slot string) *model.Job {
	t.Helper()
	payload, err := json.Marshal(model.ComposePayload{SourceID: sourceID, Slot: slot})
	require.NoError(t, err)
	return &model.Job{
		ID:      "job-1",
		JobType: model.JobTypeCompose,
		Payload: payload,
	}
}

func TestHandler_Handle_ComposesArtifact(t *testing.T) {
	handler, deps := newTestHandler(t)

	deps.sources.getByIDFn = func(_ context.Context, id string) (*model.Source, error) {
		return &model.Source{
			ID:         id,
			Name:       "Trail Blaze 2 Tent",
			Summary:    "Two-person backpacking tent.",
			Attributes: json.RawMessage(`{"weight_kg": 1.8}`),
		}, nil
	}

	var gotReq generate.Request
	deps.generator.generateFn = func(_ context.Context, req generate.Request) (*generate.Result, error) {
		gotReq = req
		return &generate.Result{
			Document: json.RawMessage(`{"title": "Trail Blaze 2", "summary": "Light and fast.", "tags": ["tents"]}`),
			Model:    "copywriter-small",
		}, nil
	}

	var gotParams core.UpsertArtifactParams
	deps.artifacts.upsertFn = func(_ context.Context, params core.UpsertArtifactParams) (*model.Artifact, error) {
		gotParams = params
		return &model.Artifact{ID: "artifact-1", SourceID: params.SourceID, Slot: params.Slot}, nil
	}

	ctx := jobdomain.WithTraceID(context.Background(), "trace-123")
	err := handler.Handle(ctx, composeJob(t, "src-1", "summary"))
	require.NoError(t, err)

	profile := builtinProfiles["summary"]
	assert.Equal(t, profile.SystemInstructions, gotReq.SystemInstructions)
	assert.JSONEq(t, string(profile.OutputSchema), string(gotReq.OutputSchema))
	assert.Contains(t, gotReq.UserContext, "Slot: summary")
	assert.Contains(t, gotReq.UserContext, "Name: Trail Blaze 2 Tent")
	assert.Contains(t, gotReq.UserContext, "- weight_kg: 1.8")

	assert.Equal(t, "src-1", gotParams.SourceID)
	assert.Equal(t, "summary", gotParams.Slot)
	assert.Equal(t, "Trail Blaze 2", gotParams.Content.Title)
	assert.Equal(t, "Light and fast.", gotParams.Content.Body)
	assert.Equal(t, []string{"tents"}, gotParams.Content.Tags)

	assert.Equal(t, "trace-123", gotParams.Meta.TraceID)
	assert.Equal(t, "job-1", gotParams.Meta.JobID)
	assert.Equal(t, "copywriter-small", gotParams.Meta.Model)
	assert.GreaterOrEqual(t, gotParams.Meta.TotalMS, gotParams.Meta.GenerateMS)

	assert.Equal(t, 1, deps.metrics.counts["generation.calls"])
	assert.Equal(t, "success", deps.metrics.tags["generation.calls"]["result"])
}

func TestHandler_Handle_PayloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "undecodable payload",
			payload: `{broken`,
			wantErr: "decode compose payload",
		},
		{
			name:    "missing slot",
			payload: `{"source_id": "src-1"}`,
			wantErr: "invalid compose payload",
		},
		{
			name:    "unknown slot",
			payload: `{"source_id": "src-1", "slot": "banner"}`,
			wantErr: `unknown slot "banner"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, deps := newTestHandler(t)
			job := &model.Job{ID: "job-1", JobType: model.JobTypeCompose, Payload: json.RawMessage(tc.payload)}

			err := handler.Handle(context.Background(), job)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Zero(t, deps.generator.generateCalls)
			assert.Zero(t, deps.artifacts.upsertCalls)
		})
	}
}

func TestHandler_Handle_SourceLookupFails(t *testing.T) {
	handler, deps := newTestHandler(t)
	deps.sources.getByIDFn = func(context.Context, string) (*model.Source, error) {
		return nil, apperrors.NotFound("source")
	}

	err := handler.Handle(context.Background(), composeJob(t, "src-1", "summary"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve source context")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Zero(t, deps.generator.generateCalls)
}

func TestHandler_Handle_GeneratorFails(t *testing.T) {
	handler, deps := newTestHandler(t)
	deps.sources.getByIDFn = func(_ context.Context, id string) (*model.Source, error) {
		return &model.Source{ID: id, Name: "Trail Blaze 2 Tent"}, nil
	}
	deps.generator.generateFn = func(context.Context, generate.Request) (*generate.Result, error) {
		return nil, &generate.RemoteError{Status: 503, Msg: "overloaded"}
	}

	err := handler.Handle(context.Background(), composeJob(t, "src-1", "summary"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate src-1/summary")

	var remote *generate.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 503, remote.Status)

	assert.Zero(t, deps.artifacts.upsertCalls)
	assert.Equal(t, 1, deps.metrics.counts["generation.calls"])
	assert.Equal(t, "error", deps.metrics.tags["generation.calls"]["result"])
}

func TestHandler_Handle_RejectsDocumentMissingFields(t *testing.T) {
	handler, deps := newTestHandler(t)
	deps.sources.getByIDFn = func(_ context.Context, id string) (*model.Source, error) {
		return &model.Source{ID: id, Name: "Trail Blaze 2 Tent"}, nil
	}
	deps.generator.generateFn = func(context.Context, generate.Request) (*generate.Result, error) {
		return &generate.Result{Document: json.RawMessage(`{"summary": "no title here", "tags": []}`)}, nil
	}

	err := handler.Handle(context.Background(), composeJob(t, "src-1", "summary"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract artifact fields")
	assert.Zero(t, deps.artifacts.upsertCalls)
}

func TestHandler_Handle_UpsertFails(t *testing.T) {
	handler, deps := newTestHandler(t)
	deps.sources.getByIDFn = func(_ context.Context, id string) (*model.Source, error) {
		return &model.Source{ID: id, Name: "Trail Blaze 2 Tent"}, nil
	}
	deps.generator.generateFn = func(context.Context, generate.Request) (*generate.Result, error) {
		return &generate.Result{
			Document: json.RawMessage(`{"title": "t", "summary": "s", "tags": []}`),
		}, nil
	}
	deps.artifacts.upsertFn = func(context.Context, core.UpsertArtifactParams) (*model.Artifact, error) {
		return nil, apperrors.ForeignKey("source does not exist")
	}

	err := handler.Handle(context.Background(), composeJob(t, "src-1", "summary"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist artifact")
}

func TestNewHandler_Validation(t *testing.T) {
	_, deps := newTestHandler(t)
	sourceContext := core.NewSourceContextService(core.SourceContextServiceOptions{
		Cache:   deps.cache,
		Sources: deps.sources,
	})

	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name:    "missing artifacts",
			opts:    HandlerOptions{SourceContext: sourceContext, Generator: deps.generator},
			wantErr: "artifact repository",
		},
		{
			name:    "missing source context",
			opts:    HandlerOptions{Artifacts: deps.artifacts, Generator: deps.generator},
			wantErr: "source context service",
		},
		{
			name:    "missing generator",
			opts:    HandlerOptions{Artifacts: deps.artifacts, SourceContext: sourceContext},
			wantErr: "generator",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewHandler(tc.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
