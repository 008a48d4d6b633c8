package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"supportdesk/internal/app/registry"
	"supportdesk/internal/app/server"
	"supportdesk/internal/app/worker"
	"supportdesk/internal/config"
	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
	"supportdesk/internal/core/services"
	"supportdesk/internal/platform/logger"
	"supportdesk/internal/platform/telemetry"
	"supportdesk/internal/plugins/memory"
	"supportdesk/internal/plugins/postgres"
	"supportdesk/internal/plugins/rabbitmq"
	redisPlugin "supportdesk/internal/plugins/redis"
	"supportdesk/internal/plugins/seats"
	"supportdesk/internal/plugins/sqlite"
)

func main() {
	cfg := config.Load()

	var issueSeat int
	var issueAgent string
	flags := pflag.NewFlagSet("supportdesk", pflag.ExitOnError)
	flags.StringVar(&cfg.Service.Add, "addr", cfg.Service.Add, "listen address")
	flags.StringVar(&cfg.Logger.Level, "log-level", cfg.Logger.Level, "debug, info, warn or error")
	flags.StringVar(&cfg.Store.Driver, "store", cfg.Store.Driver, "message store: sqlite, postgres or memory")
	flags.IntVar(&issueSeat, "issue-seat", 0, "print a signed credential for this seat and exit")
	flags.StringVar(&issueAgent, "agent", "", "agent id for --issue-seat")
	_ = flags.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.NewLogger(*cfg)

	if issueSeat != 0 {
		if err := issueCredential(os.Stdout, log, cfg, issueSeat, issueAgent); err != nil {
			log.Error("issue seat - failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(log, cfg); err != nil {
		log.Error("main - run - exited with error", "err", err)
		os.Exit(1)
	}
}

func issueCredential(w io.Writer, log *slog.Logger, cfg *config.Config, seat int, agentID string) error {
	if cfg.Seats.Secret == "" {
		return errors.New("SEAT_SECRET is required to issue credentials")
	}
	if agentID == "" {
		return errors.New("--agent is required")
	}
	tokens := services.NewTokenService(log, cfg.Seats.Secret)
	token, err := tokens.GenerateSeatToken(seat, agentID, services.EndOfDay(time.Now()), true)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func run(log *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("starting application", "store", cfg.Store.Driver)

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	repo, closeStore, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks, err := openSinks(ctx, log, cfg)
	if err != nil {
		return err
	}
	events := worker.NewEventForwarder(log, cfg.Worker.EventBuffer, sinks...)
	go events.Run(ctx)
	defer func() {
		if err := events.Close(); err != nil {
			log.Error("worker - close - sinks failed to close", "err", err)
		}
	}()

	// Core
	var validator contracts.CredentialValidator
	if cfg.Seats.ValidatorURL != "" {
		validator = seats.NewClient(log, *cfg.Seats)
		log.Info("seats - validator - remote", "url", cfg.Seats.ValidatorURL)
	} else {
		validator = services.NewTokenService(log, cfg.Seats.Secret)
		log.Info("seats - validator - local signed credentials")
	}

	rooms := services.NewRoomManager(ctx, log, repo,
		func(roomID string) contracts.Registry { return registry.NewRegistry(log, roomID) },
		events, cfg.Room.EventBuffer)

	// Server
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Add, rooms, validator, cfg.Room.ClientSendBuffer)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("main - shutdown - signal received")
	case err = <-errCh:
		log.Error("main - server - stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("main - shutdown - http server", "err", serr)
	}
	rooms.Shutdown()
	return err
}

func openStore(ctx context.Context, log *slog.Logger, cfg *config.Config) (domain.MessageRepository, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pdb, err := postgres.New(ctx, *cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		log.Info("postgres connected")
		return postgres.NewMessageRepo(pdb), func() { _ = pdb.Close() }, nil
	case "memory":
		log.Warn("store - memory - messages will not survive a restart")
		return memory.NewMessageRepo(), func() {}, nil
	default:
		db, err := sqlite.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open %s failed: %w", cfg.SQLite.Path, err)
		}
		log.Info("sqlite opened", "path", cfg.SQLite.Path)
		return sqlite.NewMessageRepo(db), func() { _ = db.Close() }, nil
	}
}

func openSinks(ctx context.Context, log *slog.Logger, cfg *config.Config) ([]contracts.EventSink, error) {
	var sinks []contracts.EventSink
	if cfg.Redis.URL != "" {
		rdb, err := redisPlugin.NewRedisClient(ctx, *cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis connected")
		sinks = append(sinks, redisPlugin.NewRoutingMirror(rdb, 1000))
	}
	if cfg.AMQP.URL != "" {
		sink, err := rabbitmq.NewEventSink(ctx, log, *cfg.AMQP)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, fmt.Errorf("amqp connection failed: %w", err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
