package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/domain/model"
)

// RefreshHandler executes source_refresh jobs by rebuilding the cached
// context for one source.
type RefreshHandler struct {
	sourceContext *core.SourceContextService
	logger        *slog.Logger
}

func NewRefreshHandler(sourceContext *core.SourceContextService, logger *slog.Logger) (*RefreshHandler, error) {
	if sourceContext == nil {
		return nil, errors.New("source context service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshHandler{
		sourceContext: sourceContext,
		logger:        logger.With("component", "compose"),
	}, nil
}

// Handle rebuilds the cached context for one source. The cache entry is
// dropped before the rebuild; a refresh that fails partway leaves no entry
// rather than a stale one.
func (h *RefreshHandler) Handle(ctx context.Context, job *model.Job) error {
	var payload model.SourceRefreshPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode source refresh payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid source refresh payload: %w", err)
	}

	if err := h.sourceContext.InvalidateContext(ctx, payload.SourceID); err != nil {
		return fmt.Errorf("invalidate source context: %w", err)
	}
	if err := h.sourceContext.RefreshContext(ctx, payload.SourceID); err != nil {
		return fmt.Errorf("refresh source context: %w", err)
	}

	h.logger.InfoContext(ctx, "source context refreshed", "source_id", payload.SourceID)
	return nil
}
