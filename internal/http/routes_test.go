package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/composerd/internal/domain/model"
)

// newTestRouter builds the full router over canned stub repositories so
// requests travel the real mux and middleware chain.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	jobs := &stubJobRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Job, error) {
			return &model.Job{ID: id, JobType: model.JobTypeCompose, Status: model.JobStatusQueued}, nil
		},
		statsFn: func(_ context.Context, _ model.JobType) (*model.JobStats, error) {
			return &model.JobStats{Queued: 3}, nil
		},
	}
	artifacts := &stubArtifactRepo{
		listFn: func(_ context.Context, _ model.ArtifactListOptions) ([]*model.Artifact, error) {
			return []*model.Artifact{{ID: "art-1", SourceID: "src-1", Slot: "summary"}}, nil
		},
		getBySourceSlotFn: func(_ context.Context, sourceID, slot string) (*model.Artifact, error) {
			return &model.Artifact{ID: "art-1", SourceID: sourceID, Slot: slot}, nil
		},
	}
	sources := &stubSourceRepo{
		listFn: func(_ context.Context, _, _ int) ([]*model.Source, error) {
			return []*model.Source{{ID: "src-1", Name: "Acme"}}, nil
		},
	}

	return NewRouter(RouterServices{
		Jobs:      newJobService(t, jobs),
		Artifacts: newArtifactService(t, artifacts),
		Sources:   newSourceService(t, sources),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestNewRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNewRouter_StatsBeatsJobWildcard(t *testing.T) {
	router := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.JobStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 3, got.Queued)
}

func TestNewRouter_GetJobByID(t *testing.T) {
	router := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/job-42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "job-42", got.ID)
}

func TestNewRouter_ArtifactRoutes(t *testing.T) {
	router := newTestRouter(t)

	t.Run("list", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("get by source and slot", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/artifacts/src-1/summary", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)

		var got model.Artifact
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "summary", got.Slot)
	})

	t.Run("export registered without export service", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/artifacts/export", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, "export_disabled", decodeErrorBody(t, w)["error"])
	})
}

func TestNewRouter_UnknownPath(t *testing.T) {
	router := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	r := httptest.NewRequest(http.MethodDelete, "/api/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
