package container

import (
	"github.com/tagrally/tagrally/common/bootstrap"
	"github.com/tagrally/tagrally/common/chain"
	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/gamestate"
	"github.com/tagrally/tagrally/common/queue"
	"github.com/tagrally/tagrally/common/ratelimit"
	"github.com/tagrally/tagrally/common/repository"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components
	Clock      clock.Clock

	// Repositories
	TagRepo  *repository.TagRepository
	GameRepo *repository.GameRepository
	UserRepo *repository.UserRepository

	// Services
	GameState *gamestate.Manager
	Chain     *chain.Manager
	Scheduler *queue.Scheduler
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	tagRepo := repository.NewTagRepository(components.Mongo)
	gameRepo := repository.NewGameRepository(components.Mongo)
	userRepo := repository.NewUserRepository(components.Mongo)

	clk := clock.New(cfg.PromotionLocation())

	scheduler := queue.NewScheduler(
		components.Redis,
		components.Logger,
		clk,
		cfg.Promotion.MaxAttempts,
		cfg.Promotion.BackoffBase,
	)

	gameState := gamestate.NewManager(gameRepo, tagRepo, clk, components.Logger)

	var limiter chain.Limiter
	if cfg.RateLimit.Enabled {
		rl := ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
		limiter = ratelimit.NewPlayerLimiter(rl, cfg.RateLimit.Limit, cfg.RateLimit.WindowSec)
	}

	chainManager := chain.NewManager(
		tagRepo,
		gameRepo,
		userRepo,
		gameState,
		scheduler,
		limiter,
		clk,
		components.Logger,
	)

	return &Container{
		Components: components,
		Clock:      clk,
		TagRepo:    tagRepo,
		GameRepo:   gameRepo,
		UserRepo:   userRepo,
		GameState:  gameState,
		Chain:      chainManager,
		Scheduler:  scheduler,
	}, nil
}
