package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/internal/config"
	"github.com/omochice/roomchat/internal/httpapi"
	"github.com/omochice/roomchat/internal/transport/tcp"
	"github.com/omochice/roomchat/internal/transport/unified"
	"github.com/omochice/roomchat/internal/transport/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg, os.Stderr)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(2)
	}

	chatServer := chat.NewServer(
		chat.WithLogger(logger),
		chat.WithBroadcastCapacity(cfg.BroadcastCapacity),
	)
	hub := chat.NewHub(chatServer, logger)
	mailbox := chat.NewMailbox(chatServer, cfg.MailboxCapacity, logger)

	tcpServer := tcp.New(cfg.TCPAddr, hub, logger)
	wsServer := ws.New(cfg.WSAddr, mailbox, logger)
	api := httpapi.New(chatServer, hub, logger)

	if err := tcpServer.Listen(); err != nil {
		logger.Error("failed to listen", "error", err)
		os.Exit(1)
	}
	if err := wsServer.Listen(); err != nil {
		logger.Error("failed to listen", "error", err)
		os.Exit(1)
	}

	ops := map[string]gfshutdown.Operation{
		"tcp": func(ctx context.Context) error {
			tcpServer.Stop()
			return drain(ctx, logger, "tcp", cfg.ShutdownTimeout/2, tcpServer.Wait)
		},
		"ws": func(ctx context.Context) error {
			if err := wsServer.Stop(ctx); err != nil {
				return err
			}
			return drain(ctx, logger, "ws", cfg.ShutdownTimeout/2, wsServer.Wait)
		},
		"http": func(ctx context.Context) error {
			return api.Shutdown(ctx)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	ops["mailbox"] = func(ctx context.Context) error {
		cancel()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(tcpServer.Start)
	g.Go(wsServer.Start)
	if cfg.UnifiedAddr != "" {
		unifiedServer := unified.New(cfg.UnifiedAddr, hub, mailbox, logger)
		if err := unifiedServer.Listen(); err != nil {
			logger.Error("failed to listen", "error", err)
			os.Exit(1)
		}
		g.Go(unifiedServer.Start)
		ops["unified"] = func(ctx context.Context) error {
			if err := unifiedServer.Stop(ctx); err != nil {
				return err
			}
			return drain(ctx, logger, "unified", cfg.ShutdownTimeout/2, unifiedServer.Wait)
		}
	}
	g.Go(func() error {
		return api.Start(cfg.HTTPAddr)
	})
	g.Go(func() error {
		if err := mailbox.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	go func() {
		if err := g.Wait(); err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("chat server running",
		"tcp", tcpServer.Addr(),
		"ws", wsServer.Addr(),
		"http", cfg.HTTPAddr,
	)

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, ops)

	exitCode := <-wait
	logger.Info("chat server stopped", "exit_code", exitCode)
	os.Exit(exitCode)
}

// drain gives open connections a grace period to finish. Connections still
// open afterwards end with the process.
func drain(ctx context.Context, logger *slog.Logger, name string, grace time.Duration, wait func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Info("connections still open at shutdown", "listener", name)
			return nil
		}
		return err
	}
	return nil
}
