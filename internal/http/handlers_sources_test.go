package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/data"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/service"
)

type stubSourceRepo struct {
	createFn             func(ctx context.Context, req *model.CreateSourceRequest) (*model.Source, error)
	getByIDFn            func(ctx context.Context, id string) (*model.Source, error)
	getByNameFn          func(ctx context.Context, name string) (*model.Source, error)
	listFn               func(ctx context.Context, limit, offset int) ([]*model.Source, error)
	listByNameContainsFn func(ctx context.Context, q string, limit, offset int) ([]*model.Source, error)
	updateFn             func(ctx context.Context, id string, req model.UpdateSourceRequest) (*model.Source, error)
	deleteFn             func(ctx context.Context, id string) (bool, error)
}

var _ core.SourceRepository = (*stubSourceRepo)(nil)

func (s *stubSourceRepo) Create(ctx context.Context, req *model.CreateSourceRequest) (*model.Source, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return nil, errors.New("Create not stubbed")
}

func (s *stubSourceRepo) GetByID(ctx context.Context, id string) (*model.Source, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, errors.New("GetByID not stubbed")
}

func (s *stubSourceRepo) GetByName(ctx context.Context, name string) (*model.Source, error) {
	if s.getByNameFn != nil {
		return s.getByNameFn(ctx, name)
	}
	return nil, errors.New("GetByName not stubbed")
}

func (s *stubSourceRepo) List(ctx context.Context, limit, offset int) ([]*model.Source, error) {
	if s.listFn != nil {
		return s.listFn(ctx, limit, offset)
	}
	return nil, errors.New("List not stubbed")
}

func (s *stubSourceRepo) ListByNameContains(ctx context.Context, q string, limit, offset int) ([]*model.Source, error) {
	if s.listByNameContainsFn != nil {
		return s.listByNameContainsFn(ctx, q, limit, offset)
	}
	return nil, errors.New("ListByNameContains not stubbed")
}

func (s *stubSourceRepo) Update(ctx context.Context, id string, req model.UpdateSourceRequest) (*model.Source, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, req)
	}
	return nil, errors.New("Update not stubbed")
}

func (s *stubSourceRepo) Delete(ctx context.Context, id string) (bool, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return false, errors.New("Delete not stubbed")
}

func newSourceService(t *testing.T, repo core.SourceRepository) *service.SourceService {
	t.Helper()
	svc, err := service.NewSourceService(service.SourceServiceOptions{Repo: repo})
	require.NoError(t, err)
	return svc
}

func TestSourceCreate_Success(t *testing.T) {
	repo := &stubSourceRepo{
		createFn: func(_ context.Context, req *model.CreateSourceRequest) (*model.Source, error) {
			return &model.Source{ID: "src-1", Name: req.Name, Summary: req.Summary}, nil
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	body := `{"name":"Acme Fall Catalog","summary":"Autumn apparel."}`
	r := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Source
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "src-1", got.ID)
	assert.Equal(t, "Acme Fall Catalog", got.Name)
}

func TestSourceCreate_NameConflict(t *testing.T) {
	repo := &stubSourceRepo{
		createFn: func(_ context.Context, _ *model.CreateSourceRequest) (*model.Source, error) {
			return nil, fmt.Errorf("source %q: %w", "Acme", data.ErrSourceNameExists)
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	r := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(`{"name":"Acme"}`))
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "name_conflict", decodeErrorBody(t, w)["error"])
}

func TestSourceCreate_ValidationError(t *testing.T) {
	repo := &stubSourceRepo{
		createFn: func(_ context.Context, req *model.CreateSourceRequest) (*model.Source, error) {
			if err := req.Validate(); err != nil {
				return nil, err
			}
			return &model.Source{ID: "src-1", Name: req.Name}, nil
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	r := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString(`{"name":"  "}`))
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decodeErrorBody(t, w)["error"])
}

func TestSourceList_NameFilter(t *testing.T) {
	var capturedQ string
	repo := &stubSourceRepo{
		listByNameContainsFn: func(_ context.Context, q string, _, _ int) ([]*model.Source, error) {
			capturedQ = q
			return []*model.Source{{ID: "src-1", Name: "Acme Fall Catalog"}}, nil
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	r := httptest.NewRequest(http.MethodGet, "/api/sources?q=acme", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", capturedQ)

	var got []*model.Source
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
}

func TestSourceList_Empty(t *testing.T) {
	repo := &stubSourceRepo{
		listFn: func(_ context.Context, _, _ int) ([]*model.Source, error) {
			return nil, nil
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	r := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSourceGetByID_NotFound(t *testing.T) {
	repo := &stubSourceRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.Source, error) {
			return nil, data.ErrSourceNotFound
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	r := httptest.NewRequest(http.MethodGet, "/api/sources/missing", nil)
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.GetByID(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeErrorBody(t, w)["error"])
}

func TestSourceUpdate_Success(t *testing.T) {
	var captured model.UpdateSourceRequest
	repo := &stubSourceRepo{
		updateFn: func(_ context.Context, id string, req model.UpdateSourceRequest) (*model.Source, error) {
			captured = req
			return &model.Source{ID: id, Name: *req.Name}, nil
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, repo)}

	r := httptest.NewRequest(http.MethodPut, "/api/sources/src-1", bytes.NewBufferString(`{"name":"Renamed"}`))
	r.SetPathValue("id", "src-1")
	w := httptest.NewRecorder()

	h.Update(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured.Name)
	assert.Equal(t, "Renamed", *captured.Name)
	assert.Nil(t, captured.Summary, "absent fields stay unset")
}

func TestSourceDelete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		repo := &stubSourceRepo{
			deleteFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		}
		h := &SourceHandlers{Svc: newSourceService(t, repo)}

		r := httptest.NewRequest(http.MethodDelete, "/api/sources/src-1", nil)
		r.SetPathValue("id", "src-1")
		w := httptest.NewRecorder()

		h.Delete(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := &stubSourceRepo{
			deleteFn: func(_ context.Context, _ string) (bool, error) { return false, nil },
		}
		h := &SourceHandlers{Svc: newSourceService(t, repo)}

		r := httptest.NewRequest(http.MethodDelete, "/api/sources/missing", nil)
		r.SetPathValue("id", "missing")
		w := httptest.NewRecorder()

		h.Delete(w, r)

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeErrorBody(t, w)["error"])
	})
}

func TestSourceRefresh_EnqueuesJob(t *testing.T) {
	sources := &stubSourceRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Source, error) {
			return &model.Source{ID: id, Name: "Acme"}, nil
		},
	}
	var captured *model.CreateJobRequest
	jobs := &stubJobRepo{
		createFn: func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			captured = req
			return &model.Job{ID: "job-77", JobType: req.JobType, Status: model.JobStatusQueued}, nil
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, sources), Jobs: newJobService(t, jobs)}

	r := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/refresh", nil)
	r.SetPathValue("id", "src-1")
	w := httptest.NewRecorder()

	h.Refresh(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "job-77", got.ID)
	assert.Equal(t, model.JobTypeSourceRefresh, got.JobType)

	require.NotNil(t, captured)
	var payload model.SourceRefreshPayload
	require.NoError(t, json.Unmarshal(captured.Payload, &payload))
	assert.Equal(t, "src-1", payload.SourceID)
}

func TestSourceRefresh_UnknownSource(t *testing.T) {
	sources := &stubSourceRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.Source, error) {
			return nil, data.ErrSourceNotFound
		},
	}
	enqueued := false
	jobs := &stubJobRepo{
		createFn: func(_ context.Context, _ *model.CreateJobRequest) (*model.Job, error) {
			enqueued = true
			return nil, errors.New("unexpected enqueue")
		},
	}
	h := &SourceHandlers{Svc: newSourceService(t, sources), Jobs: newJobService(t, jobs)}

	r := httptest.NewRequest(http.MethodPost, "/api/sources/missing/refresh", nil)
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.Refresh(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, enqueued, "no job for a source that does not exist")
}

func TestSourceRefresh_NoJobService(t *testing.T) {
	h := &SourceHandlers{Svc: newSourceService(t, &stubSourceRepo{})}

	r := httptest.NewRequest(http.MethodPost, "/api/sources/src-1/refresh", nil)
	r.SetPathValue("id", "src-1")
	w := httptest.NewRecorder()

	h.Refresh(w, r)

	require.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "enqueue_disabled", decodeErrorBody(t, w)["error"])
}
