package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tagrally/tagrally/cmd/api/container"
	"github.com/tagrally/tagrally/common/chain"
)

// TagHandler handles tag creation and chain eligibility queries
type TagHandler struct {
	container *container.Container
}

// NewTagHandler creates a new tag handler
func NewTagHandler(c *container.Container) *TagHandler {
	return &TagHandler{container: c}
}

// CreateTagRequest is the body of POST /api/v1/tags
type CreateTagRequest struct {
	CreatorID string  `json:"creatorId"`
	GameID    string  `json:"gameId"`
	IsRoot    bool    `json:"isRoot"`
	Content   string  `json:"content"`
	RootTagID *string `json:"rootTagId,omitempty"`
}

// CreateTag posts a new root tag or subtag
// POST /api/v1/tags
func (h *TagHandler) CreateTag(c echo.Context) error {
	var req CreateTagRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	}

	if req.CreatorID == "" || req.GameID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": "creatorId and gameId are required",
		})
	}
	if !req.IsRoot && req.RootTagID == nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": "rootTagId is required for subtags",
		})
	}

	tag, err := h.container.Chain.CreateTag(c.Request().Context(), chain.CreateTagParams{
		CreatorID: req.CreatorID,
		GameID:    req.GameID,
		IsRoot:    req.IsRoot,
		Content:   req.Content,
		RootTagID: req.RootTagID,
	})
	if err != nil {
		return writeError(c, err)
	}

	// The game view changed; drop the cached copy.
	if h.container.Components.Cache != nil {
		h.container.Components.Cache.Delete(c.Request().Context(), gameViewKey(req.GameID))
	}

	return c.JSON(http.StatusCreated, tag)
}

// CanReply reports whether a user may reply to the chain a tag belongs to
// GET /api/v1/tags/:id/can-reply?userId=...
func (h *TagHandler) CanReply(c echo.Context) error {
	tagID := c.Param("id")
	userID := c.QueryParam("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": "userId is required",
		})
	}

	ok, err := h.container.Chain.CanUserAddSubtag(c.Request().Context(), userID, tagID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tagId":    tagID,
		"userId":   userID,
		"canReply": ok,
	})
}

// CanPostRoot reports whether a user may post a new root tag in a game
// GET /api/v1/games/:id/can-post-root?userId=...&asOf=RFC3339
func (h *TagHandler) CanPostRoot(c echo.Context) error {
	gameID := c.Param("id")
	userID := c.QueryParam("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": "userId is required",
		})
	}

	asOf := h.container.Clock.Now()
	if raw := c.QueryParam("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error":   "invalid_request",
				"message": "asOf must be RFC3339",
			})
		}
		asOf = parsed
	}

	ok, err := h.container.Chain.CanUserAddRootTag(c.Request().Context(), userID, gameID, asOf)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"gameId":      gameID,
		"userId":      userID,
		"canPostRoot": ok,
	})
}
