package httpx

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse    = `{"status":"ok"}`
	healthPingTimeout = 2 * time.Second
)

// HealthHandler reports readiness. With a DB handle it pings the store so a
// wedged connection pool fails the check instead of hiding behind a 200.
type HealthHandler struct {
	DB     *sql.DB
	Logger *slog.Logger
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			if h.Logger != nil {
				h.Logger.Warn("health check db ping failed", "error", err)
			}
			WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "db_unreachable", Err: err})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
