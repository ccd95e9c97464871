package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/draftforge/composerd/internal/export"
	"github.com/draftforge/composerd/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
// Nil services leave their route group unregistered.
type RouterServices struct {
	Jobs      *service.JobService
	Artifacts *service.ArtifactService
	Sources   *service.SourceService
	// Optional: XLSX export for /api/artifacts/export.
	Export *export.Service
	// Optional: DB handle; when set, /healthz pings the store.
	DB     *sql.DB
	Logger *slog.Logger
}

// NewRouter creates and configures the status API router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	health := &HealthHandler{DB: services.DB, Logger: logger}
	mux.Handle("GET /healthz", http.HandlerFunc(health.Health))
	mux.Handle("HEAD /healthz", http.HandlerFunc(health.Health))

	if services.Jobs != nil {
		registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs})
	}
	if services.Artifacts != nil {
		registerArtifactRoutes(mux, &ArtifactHandlers{Svc: services.Artifacts, Export: services.Export})
	}
	if services.Sources != nil {
		registerSourceRoutes(mux, &SourceHandlers{Svc: services.Sources, Jobs: services.Jobs})
	}

	return Recover(logger)(Logging(logger)(mux))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/jobs", h.CreateJob)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/stats", h.Stats)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
}

func registerArtifactRoutes(mux *http.ServeMux, h *ArtifactHandlers) {
	mux.HandleFunc("GET /api/artifacts", h.ListArtifacts)
	mux.HandleFunc("GET /api/artifacts/export", h.ExportArtifacts)
	mux.HandleFunc("GET /api/artifacts/{source_id}/{slot}", h.GetArtifact)
}

func registerSourceRoutes(mux *http.ServeMux, h *SourceHandlers) {
	mux.HandleFunc("POST /api/sources", h.Create)
	mux.HandleFunc("GET /api/sources", h.List)
	mux.HandleFunc("GET /api/sources/{id}", h.GetByID)
	mux.HandleFunc("PUT /api/sources/{id}", h.Update)
	mux.HandleFunc("DELETE /api/sources/{id}", h.Delete)
	mux.HandleFunc("POST /api/sources/{id}/refresh", h.Refresh)
}
