package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/booking/internal/booking"
	"github.com/careslot/booking/internal/config"
	"github.com/careslot/booking/internal/db"
	"github.com/careslot/booking/internal/logging"
	"github.com/careslot/booking/internal/notify"
	redisclient "github.com/careslot/booking/internal/redis"
)

// reminder-worker periodically enqueues reminders for confirmed
// appointments inside the reminder window, and sweeps confirmed
// appointments whose slot has passed into the completed state.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New("reminder-worker", cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("window", cfg.ReminderWindow).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	queue := notify.NewRedisQueue(rdb, cfg.NotifyQueueKey)
	svc := booking.NewService(repo, queue, log)

	// Run once at startup
	runOnce(rootCtx, svc, log, cfg.ReminderWindow)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log, cfg.ReminderWindow)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, log zerolog.Logger, window time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.SendReminders(runCtx, window); err != nil {
		log.Error().Err(err).Msg("reminder run error")
	}
	if err := svc.CompleteElapsed(runCtx); err != nil {
		log.Error().Err(err).Msg("completion sweep error")
	}
	log.Info().Dur("took", time.Since(start)).Msg("reminder run complete")
}
