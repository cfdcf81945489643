package main

import (
	"context"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	dsn := os.Getenv("DATABASE_URL")
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if dsn == "" || connStr == "" {
		log.Fatal("missing DATABASE_URL or STORAGE_CONNECTION_STRING")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := openWithRetry(ctx, dsn)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Info("schema ready")

	settings, err := storage.NewSettingsTable(connStr, envString("SETTINGS_TABLE", "settings"))
	if err != nil {
		log.Fatalf("settings table: %v", err)
	}
	if err := settings.Create(ctx); err != nil {
		log.Fatalf("create settings table: %v", err)
	}

	queue, err := storage.NewNotificationQueue(connStr, envString("NOTIFICATION_QUEUE", "notifications"))
	if err != nil {
		log.Fatalf("notification queue: %v", err)
	}
	if err := queue.Create(ctx); err != nil {
		log.Fatalf("create notification queue: %v", err)
	}

	objects, err := storage.NewObjects(ctx, storage.ObjectsConfig{
		Bucket:   envString("OBJECTS_BUCKET", "project-files"),
		Region:   envString("S3_REGION", "us-east-1"),
		Endpoint: os.Getenv("S3_ENDPOINT"),
	})
	if err != nil {
		log.Fatalf("objects: %v", err)
	}
	if err := objects.CreateBucket(ctx); err != nil {
		log.Fatalf("create bucket %s: %v", objects.Bucket(), err)
	}

	log.Info("storage init complete")
}

// openWithRetry waits for Postgres to accept connections.
func openWithRetry(ctx context.Context, dsn string) (*storage.Store, error) {
	delay := time.Second
	for {
		store, err := storage.Open(ctx, dsn)
		if err == nil {
			return store, nil
		}
		log.WithError(err).Warn("postgres not ready")
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
		delay = min(delay*2, 10*time.Second)
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
