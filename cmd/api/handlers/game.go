package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tagrally/tagrally/cmd/api/container"
	"github.com/tagrally/tagrally/common/gamestate"
	"github.com/tagrally/tagrally/common/models"
)

// GameHandler handles game creation and reads
type GameHandler struct {
	container *container.Container
}

// NewGameHandler creates a new game handler
func NewGameHandler(c *container.Container) *GameHandler {
	return &GameHandler{container: c}
}

// CreateGameRequest is the body of POST /api/v1/games
type CreateGameRequest struct {
	Name      string               `json:"name"`
	CreatorID string               `json:"creatorId"`
	Roster    []models.RosterEntry `json:"roster"`
}

// CreateGame creates a new game
// POST /api/v1/games
func (h *GameHandler) CreateGame(c echo.Context) error {
	var req CreateGameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	}

	if req.Name == "" || req.CreatorID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": "name and creatorId are required",
		})
	}

	game, err := h.container.GameState.CreateGame(c.Request().Context(), gamestate.CreateGameParams{
		Name:      req.Name,
		CreatorID: req.CreatorID,
		Roster:    req.Roster,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, game)
}

// GetGame returns the game view, served from cache when fresh
// GET /api/v1/games/:id
func (h *GameHandler) GetGame(c echo.Context) error {
	gameID := c.Param("id")
	ctx := c.Request().Context()

	cache := h.container.Components.Cache
	key := gameViewKey(gameID)

	if cache != nil {
		if cached, found, err := cache.Get(ctx, key); err == nil && found {
			return c.JSONBlob(http.StatusOK, cached)
		}
	}

	view, err := h.container.GameState.GetGameView(ctx, gameID)
	if err != nil {
		return writeError(c, err)
	}

	if cache != nil {
		if payload, err := json.Marshal(view); err == nil {
			cache.Set(ctx, key, payload, h.container.Components.Config.Cache.DefaultTTL)
		}
	}

	return c.JSON(http.StatusOK, view)
}

func gameViewKey(gameID string) string {
	return "gameview:" + gameID
}
