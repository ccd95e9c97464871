// Package httpx provides HTTP handlers and utilities for the composerd status API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc *service.JobService
}

// CreateJob handles HTTP requests to enqueue a new job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// GetJob handles HTTP requests to fetch a single job by id.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Svc.GetByID(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles HTTP requests to list recent jobs, newest first.
// Optional filters: ?type= and ?status=.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultPageSize, maxPageSize)
	opts := model.JobListOptions{
		JobType: model.JobType(r.URL.Query().Get("type")),
		Status:  model.JobStatus(r.URL.Query().Get("status")),
		Limit:   limit,
		Offset:  offset,
	}

	jobs, err := h.Svc.ListRecent(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// Stats handles HTTP requests to retrieve queue depth counters. An empty
// ?type= counts across all job types.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	jobType := model.JobType(r.URL.Query().Get("type"))

	stats, err := h.Svc.Stats(r.Context(), jobType)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
