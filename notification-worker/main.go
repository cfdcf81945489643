package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/notifier"
	"github.com/LinkDevArch/vess-colaborative-platform/realtime"
	"github.com/LinkDevArch/vess-colaborative-platform/storage"
	"github.com/LinkDevArch/vess-colaborative-platform/telemetry"
)

func main() {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
	}
	logger.Info("notification worker starting")

	dsn := os.Getenv("DATABASE_URL")
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	queueName := envString("NOTIFICATION_QUEUE", "notifications")
	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if dsn == "" || connStr == "" || redisConn == "" {
		log.Fatal("missing storage config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg, err := telemetry.ConfigFromEnv("notification-worker")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	tp, err := telemetry.Setup(ctx, otelCfg)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	store, err := storage.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()
	queue, err := storage.NewNotificationQueue(connStr, queueName)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}
	redisOpts, err := storage.RedisOptions(redisConn)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()

	def := notifier.DefaultWorkerConfig()
	worker := notifier.NewWorker(queue, notifier.NewProcessor(store, realtime.NewPublisher(rc), logger), logger, notifier.WorkerConfig{
		Batch:         int32(envInt("NOTIFY_BATCH", int(def.Batch))),
		Visibility:    envDur("NOTIFY_VISIBILITY", def.Visibility),
		Idle:          envDur("NOTIFY_IDLE", def.Idle),
		MaxDeliveries: int64(envInt("NOTIFY_MAX_DELIVERIES", int(def.MaxDeliveries))),
	})
	if err := worker.Run(ctx); err != nil {
		log.Fatalf("worker: %v", err)
	}
	logger.Info("notification worker stopped")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return d
}
