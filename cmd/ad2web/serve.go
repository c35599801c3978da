package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/alfredjeanlab/ad2web/internal/archive"
	"github.com/alfredjeanlab/ad2web/internal/bridge"
	"github.com/alfredjeanlab/ad2web/internal/config"
	"github.com/alfredjeanlab/ad2web/internal/device"
	"github.com/alfredjeanlab/ad2web/internal/hub"
	"github.com/alfredjeanlab/ad2web/internal/presence"
	"github.com/alfredjeanlab/ad2web/internal/server"
	"github.com/alfredjeanlab/ad2web/internal/sink"
	"github.com/alfredjeanlab/ad2web/internal/store"
	"github.com/alfredjeanlab/ad2web/internal/store/postgres"
	"github.com/alfredjeanlab/ad2web/internal/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Connect to the panel and start the bridge",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return serve(cfg, logger)
	},
}

// newLogger returns a text logger on stderr at the named level.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// openStore picks the event log backend from the URL scheme: postgres:// and
// postgresql:// select Postgres, anything else is a SQLite path.
func openStore(url string) (store.Store, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.New(url)
	}
	return sqlite.New(url)
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}()

	recorder := sink.New(st, cfg.SinkQueueSize, logger)
	recorder.Start()
	defer recorder.Stop()

	registry := hub.New(logger)
	tracker := presence.New()
	defer tracker.Stop()

	dev := device.New(device.NewPanelDecoder(),
		device.WithDialTimeout(cfg.DialTimeout),
		device.WithWriteTimeout(cfg.WriteTimeout),
		device.WithLogger(logger),
	)
	bridge.New(recorder, registry,
		bridge.WithActivity(tracker.Touch),
		bridge.WithLogger(logger),
	).Bind(dev)

	// Optional gRPC health server.
	var (
		grpcServer *grpc.Server
		healthSrv  *health.Server
	)
	setHealth := func(serving bool) {
		if healthSrv != nil {
			server.SetHealth(healthSrv, serving)
		}
	}
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcServer, healthSrv = server.NewGRPCServer(cfg.AuthToken)
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()
		defer func() {
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
		}()
	}

	if cfg.StaleAfter > 0 {
		tracker.StartReaper(&presence.ReaperConfig{
			StaleThreshold: cfg.StaleAfter,
			OnStale: func(sender string) {
				logger.Warn("panel link silent", "sender", sender, "threshold", cfg.StaleAfter)
				setHealth(false)
			},
			OnRecover: func(sender string) {
				logger.Info("panel link recovered", "sender", sender)
				setHealth(true)
			},
		})
	}

	if err := dev.Open(cfg.DeviceAddr, cfg.Baudrate); err != nil {
		return err
	}
	defer dev.Close()
	tracker.Watch(dev.Addr())

	srv := server.New(server.Options{
		Store:       st,
		Registry:    registry,
		Device:      dev,
		Presence:    tracker,
		MountPath:   cfg.MountPath,
		SocketQueue: cfg.SocketQueueSize,
		Logger:      logger,
	})
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.NewHTTPHandler(cfg.AuthToken),
	}
	httpServer.RegisterOnShutdown(srv.Close)
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	if cfg.ArchiveEnabled() {
		dest, err := archive.NewS3Destination(context.Background(),
			cfg.ArchiveS3Bucket, cfg.ArchiveS3Prefix, cfg.ArchiveS3Region, cfg.ArchiveS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 archive destination", "err", err)
		} else {
			scheduler := archive.NewScheduler(st, []archive.Destination{dest}, cfg.ArchiveInterval, logger)
			scheduler.Start()
			defer func() {
				scheduler.Stop()
				logger.Info("archive scheduler stopped")
			}()
			logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval, "bucket", cfg.ArchiveS3Bucket)
		}
	}

	logger.Info("bridge started",
		"device_addr", cfg.DeviceAddr,
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"mount", cfg.MountPath+"/alarmdecoder",
	)

	// Wait for SIGINT/SIGTERM, a lost panel link or a failed listener.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-dev.Done():
		runErr = fmt.Errorf("device link lost: %w", dev.Err())
		logger.Error("device link lost, shutting down", "err", dev.Err())
		setHealth(false)
	case err := <-httpErr:
		runErr = fmt.Errorf("HTTP server: %w", err)
		logger.Error("HTTP server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	// Shutdown runs its hooks asynchronously.
	srv.Close()
	logger.Info("HTTP server stopped")

	return runErr
}
