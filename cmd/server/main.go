package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"trackme/realtime/internal/auth"
	"trackme/realtime/internal/config"
	"trackme/realtime/internal/dispatch"
	"trackme/realtime/internal/session"
	"trackme/realtime/internal/store"
	"trackme/realtime/internal/transport/httpapi"
	"trackme/realtime/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file — using system environment variables")
	}

	cfg := config.Load()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("postgres init failed")
	}
	defer pg.Close()

	rdb, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("redis init failed")
	}
	defer rdb.Close()

	registry := session.NewRegistry(log)
	dispatcher := dispatch.New(pg, pg, pg, pg, registry, rdb, log)
	wsServer := ws.NewServer(ctx, cfg, dispatcher, log)
	authMW := httpapi.NewAuthMiddleware(auth.NewAuthenticator(cfg, rdb))
	router := httpapi.NewRouter(cfg, wsServer, authMW, pg, rdb)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.HTTPPort).Info("realtime server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
