// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/mcrane/gridlife/internal/archive"
	"github.com/mcrane/gridlife/internal/auth"
	"github.com/mcrane/gridlife/internal/handlers"
	"github.com/mcrane/gridlife/internal/journal"
	"github.com/mcrane/gridlife/internal/match"
	"github.com/mcrane/gridlife/internal/middleware"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	store := match.NewStore(match.Config{
		WindowDuration: envDuration("WINDOW_MS", time.Millisecond, 0),
		RematchTimeout: envDuration("REMATCH_TIMEOUT_S", time.Second, 0),
	})

	// Both sinks are optional; the coordinator runs fully in-memory without
	// them.
	if pub, err := journal.Connect(); err != nil {
		logger.Warnf("move journal disabled: %v", err)
	} else {
		store.Journal = pub
	}
	if arc, err := archive.Connect(context.Background()); err != nil {
		logger.Warnf("result archive disabled: %v", err)
	} else {
		store.Archive = arc
	}

	ms := handlers.NewMatchServer(store, logger)

	mux := http.NewServeMux()

	// session endpoint
	mux.HandleFunc("/session", handlers.SessionHandler)

	// match endpoints
	mux.Handle("/match/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateMatchHandler(ms),
	)))
	mux.Handle("/match/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GetMatchHandler(ms),
	)))

	// match websocket
	mux.Handle("/match/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.MatchWSHandler(logger, ms),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Infof("Running on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}
}

// envDuration reads an integer env var and scales it by unit; fallback is
// returned when unset or malformed (0 lets the store apply its default).
func envDuration(key string, unit time.Duration, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return fallback
}
