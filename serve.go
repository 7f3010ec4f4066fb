package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petabite/shiptivitas-2/api"
	"github.com/petabite/shiptivitas-2/domain"
	"github.com/petabite/shiptivitas-2/storage"
)

const shutdownTimeout = 10 * time.Second

type clientStore interface {
	domain.Store
	api.Pinger
}

func newServeCommand(cfg *config) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clients HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if cmd.Flags().Changed("port") {
				c.Port = port
			}
			return runServe(cmd.Context(), c)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides PORT")
	return cmd
}

func newServer(clients api.Clients, store api.Pinger, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	api.Register(e, clients, store, api.NewMetrics(), logger)
	return e
}

func runServe(ctx context.Context, cfg config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("close storage: %v", err)
		}
	}()

	var store clientStore = db
	if cfg.RedisURL != "" {
		rc := redis.NewClient(redisOptions(cfg.RedisURL))
		defer rc.Close()
		store = storage.NewCache(db, rc, cfg.CacheTTL)
		log.WithField("ttl", cfg.CacheTTL).Info("read cache enabled")
	}

	e := newServer(domain.NewService(store, cfg.GapPolicy), store, log.StandardLogger())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"port":   cfg.Port,
			"driver": cfg.Driver,
			"gaps":   cfg.GapPolicy.String(),
		}).Info("shiptivity api starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	log.Info("shiptivity api stopped")
	return err
}
