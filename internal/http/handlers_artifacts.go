package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/export"
	"github.com/draftforge/composerd/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ArtifactHandlers provides HTTP handlers for reading composed artifacts.
// Export is optional; without it the export endpoint reports 501.
type ArtifactHandlers struct {
	Svc    *service.ArtifactService
	Export *export.Service
}

// ListArtifacts handles HTTP requests to list artifacts, newest first.
// Optional filters: ?source_id= and ?slot=.
func (h *ArtifactHandlers) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultPageSize, maxPageSize)
	opts := model.ArtifactListOptions{
		SourceID: r.URL.Query().Get("source_id"),
		Slot:     r.URL.Query().Get("slot"),
		Limit:    limit,
		Offset:   offset,
	}

	artifacts, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []*model.Artifact{}
	}
	WriteJSON(w, http.StatusOK, artifacts)
}

// GetArtifact handles HTTP requests to fetch the artifact at a (source, slot) key.
func (h *ArtifactHandlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")
	slot := r.PathValue("slot")
	if sourceID == "" || slot == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("source id and slot are required")},
		)
		return
	}

	artifact, err := h.Svc.GetBySourceSlot(r.Context(), sourceID, slot)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, artifact)
}

// ExportArtifacts handles HTTP requests to download artifacts as an XLSX workbook.
func (h *ArtifactHandlers) ExportArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.Export == nil {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotImplemented, ErrCode: "export_disabled", Err: errors.New("export service is not configured")},
		)
		return
	}

	opts := model.ArtifactListOptions{
		SourceID: r.URL.Query().Get("source_id"),
		Slot:     r.URL.Query().Get("slot"),
		Limit:    parseIntQuery(r, "limit", 0),
		Offset:   parseIntQuery(r, "offset", 0),
	}

	data, err := h.Export.ArtifactsXLSX(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("artifacts-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		// Client went away mid-download; nothing to clean up.
		return
	}
}
