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

	"github.com/arwic/dominion/internal/config"
	"github.com/arwic/dominion/internal/httpapi"
	"github.com/arwic/dominion/internal/hub"
	"github.com/arwic/dominion/internal/lobby"
	"github.com/arwic/dominion/internal/logging"
	"github.com/arwic/dominion/internal/rules"
	"github.com/arwic/dominion/internal/store"
	"github.com/arwic/dominion/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	catalog, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}
	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	hash, err := lobby.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	h := hub.NewHub(gctx, hub.Options{
		Rules:         catalog,
		Store:         st,
		PasswordHash:  hash,
		TurnTimeLimit: cfg.TurnTimeLimit,
		KickGrace:     cfg.KickGrace,
		Logger:        log,
	})
	srv := transport.NewServer(h, transport.ServerOptions{
		Options: transport.Options{
			ReceiveTimeout: cfg.ReceiveTimeout,
			ReceiveBuffer:  cfg.ReceiveBuffer,
			SendQueue:      cfg.SendQueue,
			FrameRate:      cfg.FrameRate,
			FrameBurst:     cfg.FrameBurst,
			Logger:         log,
		},
		MaxConnections: int64(cfg.MaxConnections),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(httpapi.Deps{Match: h, Server: srv, Store: st, Logger: log}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ListenAddr)
	})
	g.Go(func() error {
		log.Info("admin listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		if cerr := srv.Close(); cerr != nil {
			log.Debug("closing connections", zap.Error(cerr))
		}
		<-h.Done()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory store")
		return store.NewMemory(), nil
	}
	g, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("using postgres store")
	return g, nil
}
