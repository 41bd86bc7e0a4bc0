package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tagrally/tagrally/cmd/api/container"
	"github.com/tagrally/tagrally/cmd/api/routes"
	"github.com/tagrally/tagrally/common/bootstrap"
	"github.com/tagrally/tagrally/common/cache"
)

func main() {
	ctx := context.Background()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	components, err := bootstrap.Setup(ctx, "api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap api: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}

		resp := map[string]interface{}{
			"status":  "ok",
			"service": "api",
		}
		if mc, ok := components.Cache.(*cache.MemoryCache); ok {
			resp["cache"] = mc.Stats()
		}
		return c.JSON(200, resp)
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterGameRoutes(e, serviceContainer)
	routes.RegisterTagRoutes(e, serviceContainer)
}

// startServer starts the Echo server on the configured port
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("starting api", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
