package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arwic/dominion/internal/client"
	"github.com/arwic/dominion/internal/logging"
	"github.com/arwic/dominion/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7777", "server address")
	name := flag.String("name", "", "player name")
	password := flag.String("password", "", "match password")
	empire := flag.Int("empire", -1, "empire to pick, -1 keeps the default")
	startWith := flag.Int("start", 0, "as host, start once this many players joined (0 never starts)")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := run(*addr, *name, *password, *empire, *startWith, *level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, name, password string, empire, startWith int, level string) error {
	log, err := logging.New(level, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := client.New(client.Options{Name: name, Password: password, Logger: log})
	events := syncer.Subscribe(256)
	pilot := client.NewAutopilot(syncer, log)
	pilot.EmpireID = empire
	pilot.StartWith = startWith

	conn, err := transport.Dial(ctx, addr, syncer, transport.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer conn.Close()
		return pilot.Run(gctx, events)
	})
	g.Go(func() error {
		select {
		case <-syncer.Done():
		case <-gctx.Done():
		}
		_ = conn.Close()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if res, ok := syncer.Result(); ok {
		log.Info("match finished", zap.Int("winner", res.WinnerID), zap.Stringer("victory", res.Victory),
			zap.Bool("won", res.WinnerID == syncer.Player().InstanceID))
		return nil
	}
	if reason, gone := syncer.Disconnected(); gone {
		return fmt.Errorf("disconnected: %s", reason)
	}
	return nil
}
