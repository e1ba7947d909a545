package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careslot/booking/internal/config"
	"github.com/careslot/booking/internal/logging"
	"github.com/careslot/booking/internal/notify"
	redisclient "github.com/careslot/booking/internal/redis"
)

// notify-worker drains the outbound notification queue and hands each
// message to the notifier. Delivery stays off the reservation critical
// path: the API only ever enqueues.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New("notify-worker", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("queue", cfg.NotifyQueueKey).Msg("notify-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	queue := notify.NewRedisQueue(rdb, cfg.NotifyQueueKey)
	notifier := notify.NewLogNotifier(log)

	for {
		if rootCtx.Err() != nil {
			log.Info().Msg("shutdown signal received, stopping notify-worker")
			return
		}

		msg, err := queue.Dequeue(rootCtx, 5*time.Second)
		if err != nil {
			if rootCtx.Err() != nil {
				log.Info().Msg("shutdown signal received, stopping notify-worker")
				return
			}
			log.Error().Err(err).Msg("dequeue error")
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		if err := notifier.Send(rootCtx, msg.Recipient, msg.Subject, msg.Body); err != nil {
			// Best effort, no retry queue: log and move on.
			log.Error().Err(err).Str("to", msg.Recipient).Str("subject", msg.Subject).Msg("delivery failed")
		}
	}
}
