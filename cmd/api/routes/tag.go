package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/tagrally/tagrally/cmd/api/container"
	"github.com/tagrally/tagrally/cmd/api/handlers"
)

// RegisterTagRoutes registers all tag-related routes
func RegisterTagRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewTagHandler(c)

	tags := e.Group("/api/v1/tags")
	{
		tags.POST("", h.CreateTag)              // POST /api/v1/tags
		tags.GET("/:id/can-reply", h.CanReply)  // GET /api/v1/tags/:id/can-reply?userId=
	}
}
