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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg, err := telemetry.ConfigFromEnv("stream-service")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	tp, err := telemetry.Setup(ctx, otelCfg)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	settingsTableName := envString("SETTINGS_TABLE", "settings")
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

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
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

	realtime.KeepAlive = envDur("STREAM_KEEPALIVE", realtime.KeepAlive)
	hub := realtime.NewHub(rc, logger, envInt("STREAM_QUEUE_SIZE", realtime.DefaultQueueSize))
	defer hub.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{envString("CORS_ORIGIN", "*")},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.GET("/healthz", func(c echo.Context) error {
		if err := rc.Ping(c.Request().Context()).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "cache unavailable"})
		}
		return c.NoContent(http.StatusOK)
	})
	realtime.Register(e, hub, auth, realtime.MembershipAuthorizer{Members: cache, Tasks: store}, logger)

	listenAddr := ":9000"
	if val, ok := os.LookupEnv("STREAM_SERVICE_PORT"); ok {
		listenAddr = ":" + val
	}
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown")
	}
}

func newAuth() (*api.Auth, error) {
	if os.Getenv("LOCAL_AUTH_MODE") != "" {
		return api.NewAuth(nil, os.Getenv("AUTH0_AUDIENCE"), "")
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	authDomain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || authDomain == "" {
		return nil, errors.New("missing Auth0 config")
	}
	jwks, err := keyfunc.Get(fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain), keyfunc.Options{RefreshInterval: time.Hour, RefreshUnknownKID: true})
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
