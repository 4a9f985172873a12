package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recipeworks/ingest-pipeline/internal/api/dto"
	"github.com/recipeworks/ingest-pipeline/internal/pattern"
)

// ListPatterns handles GET /api/v1/patterns
// Lists tracked parse patterns ordered by occurrence count with cursor pagination
func (h *PatternHandler) ListPatterns(c *gin.Context) {
	h.logger.Info("ListPatterns called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListPatternsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		respondError(c, http.StatusBadRequest, "Invalid query parameters", "VALIDATION", "INVALID_QUERY")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodePatternCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		respondError(c, http.StatusBadRequest, "Invalid cursor", "VALIDATION", "INVALID_CURSOR")
		return
	}

	filter := pattern.ListFilter{
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	records, err := h.patterns.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list patterns", slog.String("error", err.Error()))
		respondError(c, http.StatusInternalServerError, "Failed to list patterns", "DATABASE", "")
		return
	}

	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	patternResponse := make([]dto.PatternDTO, len(records))
	for i, rec := range records {
		patternResponse[i] = dto.PatternDTO{
			ID:              rec.ID,
			RuleKey:         rec.RuleKey,
			ExampleLine:     rec.ExampleLine,
			OccurrenceCount: rec.OccurrenceCount,
			FirstSeen:       rec.FirstSeen.Format(time.RFC3339),
			UpdatedAt:       rec.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor = EncodePatternCursor(&pattern.Cursor{
			OccurrenceCount: last.OccurrenceCount,
			ID:              last.ID,
		})
	}

	respondSuccess(c, http.StatusOK, dto.ListPatternsResponse{
		Patterns:   patternResponse,
		NextCursor: nextCursor,
	})
}
