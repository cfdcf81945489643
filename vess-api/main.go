package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/api"
	"github.com/LinkDevArch/vess-colaborative-platform/realtime"
	"github.com/LinkDevArch/vess-colaborative-platform/storage"
	"github.com/LinkDevArch/vess-colaborative-platform/telemetry"
)

func main() {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}
	logger.SetFormatter(&log.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg, err := telemetry.ConfigFromEnv("vess-api")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	tp, err := telemetry.Setup(ctx, otelCfg)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	dsn := envString("DATABASE_URL", "")
	connStr := envString("STORAGE_CONNECTION_STRING", "")
	settingsTableName := envString("SETTINGS_TABLE", "settings")
	queueName := envString("NOTIFICATION_QUEUE", "notifications")
	if dsn == "" || connStr == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()
	settings, err := storage.NewSettingsTable(connStr, settingsTableName)
	if err != nil {
		log.Fatalf("settings table: %v", err)
	}
	queue, err := storage.NewNotificationQueue(connStr, queueName)
	if err != nil {
		log.Fatalf("notification queue: %v", err)
	}
	objects, err := storage.NewObjects(ctx, storage.ObjectsConfig{
		Bucket:   envString("OBJECTS_BUCKET", "project-files"),
		Region:   envString("S3_REGION", "us-east-1"),
		Endpoint: os.Getenv("S3_ENDPOINT"),
	})
	if err != nil {
		log.Fatalf("objects: %v", err)
	}

	redisConn := envString("REDIS_CONNECTION_STRING", "")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := storage.RedisOptions(redisConn)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()
	cache := storage.NewCache(settings, store, rc, envDur("CACHE_TTL", 5*time.Minute))

	auth, err := newAuth()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	dispatcher := api.NewDispatcher(queue, logger, api.DispatcherConfig{
		Workers: envInt("NOTIFY_WORKERS", api.DefaultDispatcherConfig().Workers),
		Buffer:  envInt("NOTIFY_BUFFER", api.DefaultDispatcherConfig().Buffer),
		Timeout: envDur("NOTIFY_TIMEOUT", api.DefaultDispatcherConfig().Timeout),
		Handoff: envDur("NOTIFY_HANDOFF", api.DefaultDispatcherConfig().Handoff),
	})

	loc := time.UTC
	if tz := os.Getenv("CALENDAR_TIMEZONE"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			log.Fatalf("invalid CALENDAR_TIMEZONE: %v", err)
		}
	}

	srv := &api.Server{
		Store:       store,
		Settings:    cache,
		Memberships: cache,
		Objects:     objects,
		Publisher:   realtime.NewPublisher(rc),
		Deduper:     api.NewRedisDeduper(rc, envDur("DEDUPER_TTL", api.DefaultTokenTTL)),
		Notifier:    dispatcher,
		Auth:        auth,
		Logger:      logger,
		Location:    loc,
		Health:      func(ctx context.Context) error { return rc.Ping(ctx).Err() },
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{envString("CORS_ORIGIN", "*")},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))
	e.Use(api.GzipRequestMiddleware(api.MaxUploadSize))
	api.Register(e, srv)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	dispatcher.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown")
	}
}

// newAuth verifies Auth0 tokens through their JWKS unless a local auth mode
// is configured.
func newAuth() (*api.Auth, error) {
	if os.Getenv("LOCAL_AUTH_MODE") != "" {
		return api.NewAuth(nil, os.Getenv("AUTH0_AUDIENCE"), "")
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	authDomain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || authDomain == "" {
		return nil, errors.New("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour, RefreshUnknownKID: true})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
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
	if err != nil || n < 0 {
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
