package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/service"
)

// SourceHandlers provides HTTP handlers for source-related operations.
// Jobs is optional; without it the refresh endpoint reports 501.
type SourceHandlers struct {
	Svc  *service.SourceService
	Jobs *service.JobService
}

// Create handles HTTP requests to register a new source.
func (h *SourceHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req *model.CreateSourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	src, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, src)
}

// List handles HTTP requests to list sources. ?q= filters by name substring.
func (h *SourceHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultPageSize, maxPageSize)
	q := r.URL.Query().Get("q")

	sources, err := h.Svc.List(r.Context(), q, limit, offset)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if sources == nil {
		sources = []*model.Source{}
	}
	WriteJSON(w, http.StatusOK, sources)
}

// GetByID handles HTTP requests to fetch a single source.
func (h *SourceHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("source id is required")},
		)
		return
	}

	src, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, src)
}

// Update handles HTTP requests to modify a source's fields.
func (h *SourceHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("source id is required")},
		)
		return
	}

	var req model.UpdateSourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	src, err := h.Svc.Update(r.Context(), id, req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, src)
}

// Delete handles HTTP requests to remove a source.
func (h *SourceHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("source id is required")},
		)
		return
	}

	ok, err := h.Svc.Delete(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if !ok {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("source not found")},
		)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Refresh handles HTTP requests to enqueue a source_refresh job for a source.
func (h *SourceHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("source id is required")},
		)
		return
	}
	if h.Jobs == nil {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotImplemented, ErrCode: "enqueue_disabled", Err: errors.New("job service is not configured")},
		)
		return
	}

	// 404 for unknown ids beats enqueueing a job that will only fail later.
	if _, err := h.Svc.GetByID(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	payload, err := json.Marshal(model.SourceRefreshPayload{SourceID: id})
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: err})
		return
	}

	job, err := h.Jobs.Create(r.Context(), &model.CreateJobRequest{
		JobType: model.JobTypeSourceRefresh,
		Payload: payload,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}
