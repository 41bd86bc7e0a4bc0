package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tagrally/tagrally/common/chain"
	"github.com/tagrally/tagrally/common/models"
)

// writeError maps domain errors to HTTP responses in one place so the
// handlers never hand-pick status codes.
func writeError(c echo.Context, err error) error {
	var rlErr *chain.RateLimitError
	if errors.As(err, &rlErr) {
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"error":               "rate_limit_exceeded",
			"message":             rlErr.Error(),
			"retry_after_seconds": rlErr.RetryAfterSeconds,
		})
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrPendingTagConflict):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   "pending_tag_conflict",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrChainTailMoved):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   "chain_tail_moved",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrInvalidPromotion):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   "invalid_promotion",
			"message": err.Error(),
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
