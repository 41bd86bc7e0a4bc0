package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tagrally/tagrally/cmd/promotion-worker/worker"
	"github.com/tagrally/tagrally/common/bootstrap"
	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/gamestate"
	"github.com/tagrally/tagrally/common/queue"
	"github.com/tagrally/tagrally/common/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	components, err := bootstrap.Setup(ctx, "promotion-worker",
		bootstrap.WithoutCache(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config

	tagRepo := repository.NewTagRepository(components.Mongo)
	gameRepo := repository.NewGameRepository(components.Mongo)

	clk := clock.New(cfg.PromotionLocation())

	scheduler := queue.NewScheduler(
		components.Redis,
		components.Logger,
		clk,
		cfg.Promotion.MaxAttempts,
		cfg.Promotion.BackoffBase,
	)

	gameState := gamestate.NewManager(gameRepo, tagRepo, clk, components.Logger)

	promotionWorker := worker.NewPromotionWorker(
		scheduler,
		gameState,
		gameRepo,
		tagRepo,
		clk,
		components.Logger,
		cfg.Promotion.PollInterval,
		cfg.Promotion.BatchSize,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := promotionWorker.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("promotion worker error: %w", err)
		}
	}()

	components.Logger.Info("promotion-worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		components.Logger.Error("worker failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		components.Logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}

	components.Logger.Info("promotion-worker shutting down gracefully")
}
