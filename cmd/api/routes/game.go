package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/tagrally/tagrally/cmd/api/container"
	"github.com/tagrally/tagrally/cmd/api/handlers"
)

// RegisterGameRoutes registers all game-related routes
func RegisterGameRoutes(e *echo.Echo, c *container.Container) {
	gameHandler := handlers.NewGameHandler(c)
	tagHandler := handlers.NewTagHandler(c)

	games := e.Group("/api/v1/games")
	{
		games.POST("", gameHandler.CreateGame)                     // POST /api/v1/games
		games.GET("/:id", gameHandler.GetGame)                     // GET /api/v1/games/:id
		games.GET("/:id/can-post-root", tagHandler.CanPostRoot)    // GET /api/v1/games/:id/can-post-root?userId=
	}
}
