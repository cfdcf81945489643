package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
	"github.com/LinkDevArch/vess-colaborative-platform/gateway"
)

type loadStats struct {
	events   atomic.Uint64
	lags     atomic.Uint64
	attempts atomic.Uint64
	failures atomic.Uint64
}

func (s *loadStats) failureRate() float64 {
	attempts := s.attempts.Load()
	if attempts == 0 {
		return 0
	}
	return float64(s.failures.Load()) / float64(attempts)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}

func main() {
	streamURL := getenv("STREAM_URL", "http://localhost:9000")
	topic := getenv("STREAM_TOPIC", "")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second
	bearer := os.Getenv("TEST_BEARER")
	if topic == "" || bearer == "" {
		log.Fatal("STREAM_TOPIC and TEST_BEARER must be set")
	}

	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	client, err := gateway.New(gateway.Config{BaseURL: streamURL, Token: gateway.StaticToken(bearer), Logger: logger})
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var stats loadStats
	var wg sync.WaitGroup
	for range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listen(ctx, client, topic, &stats)
		}()
	}

	go func() {
		select {
		case <-time.After(60 * time.Second):
			if stats.events.Load() == 0 {
				fmt.Println("no events received in 60s")
				os.Exit(1)
			}
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	fmt.Printf("connections=%d duration_sec=%d events_received=%d lag_signals=%d connection_failures=%d\n",
		conns, int(duration.Seconds()), stats.events.Load(), stats.lags.Load(), stats.failures.Load())
	if stats.events.Load() == 0 || stats.failureRate() > 0.01 {
		os.Exit(1)
	}
}

// listen keeps one subscription open until ctx ends, reopening it with
// backoff when it cannot be established.
func listen(ctx context.Context, client *gateway.Client, topic string, stats *loadStats) {
	backoff := time.Second
	for ctx.Err() == nil {
		stats.attempts.Add(1)
		q, err := client.Subscribe(ctx, topic)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return
			}
			stats.failures.Add(1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 5*time.Second)
			continue
		}
		backoff = time.Second
		drain(ctx, q.Events(), q.Lagged(), stats)
		_ = gateway.Unsubscribe(q)
	}
}

func drain(ctx context.Context, events <-chan domain.Event, lagged <-chan struct{}, stats *loadStats) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				stats.failures.Add(1)
				return
			}
			stats.events.Add(1)
		case <-lagged:
			stats.lags.Add(1)
		}
	}
}
