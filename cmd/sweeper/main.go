package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"videostyler/internal/adapter/repo"
	"videostyler/internal/infra"
	"videostyler/internal/lifecycle"
)

// The sweeper is the reconciliation half of the job lifecycle: a provider
// outage or a lost webhook leaves jobs in "submitted" forever, so this
// process periodically fails everything submitted past the configured age.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: db connection failed")
	}
	defer pool.Close()

	sweeper, err := lifecycle.NewSweeper(repo.NewJobRepository(pool), logger, cfg.SweepMaxAge)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: failed to configure")
	}

	// Run once at startup so a long outage is repaired without waiting for
	// the first scheduled tick.
	if _, err := sweeper.Sweep(ctx); err != nil {
		logger.Error().Err(err).Msg("sweeper: initial sweep failed")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		if _, err := sweeper.Sweep(ctx); err != nil {
			logger.Error().Err(err).Msg("sweeper: scheduled sweep failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("sweeper: invalid schedule")
	}

	scheduler.Start()
	logger.Info().Str("schedule", cfg.SweepSchedule).Dur("max_age", cfg.SweepMaxAge).Msg("sweeper: started")

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info().Msg("sweeper: stopped")
}
