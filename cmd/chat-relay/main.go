package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"chat_relay/internal/api"
	"chat_relay/internal/auth"
	"chat_relay/internal/broker"
	"chat_relay/internal/config"
	"chat_relay/internal/journal"
	"chat_relay/internal/presence"
	"chat_relay/internal/push"
	"chat_relay/internal/registry"
	"chat_relay/internal/router"
	"chat_relay/internal/store"
	"chat_relay/internal/ws"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// 2. Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pg := store.NewPostgres(db)

	// 3. RabbitMQ
	mq, err := broker.NewClient(cfg.AMQPURL, cfg.StreamURI)
	if err != nil {
		return err
	}
	defer mq.Close()

	// 4. Event journal (optional)
	var jrnl *journal.Journal
	if cfg.StreamURI != "" {
		jrnl, err = journal.New(mq, cfg.JournalStream, logger)
		if err != nil {
			return err
		}
		defer jrnl.Close()
	}

	// 5. Coordinator components
	reg := registry.New()
	broadcaster := presence.NewBroadcaster(reg, logger)
	notifier := push.NewService(pg, mq, logger)
	rtr := router.New(pg, reg, notifier, jrnl, logger)

	// 6. Push worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	submitter := push.NewWebPushSubmitter(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	worker := push.NewWorker(mq, submitter, logger)
	go worker.Start(ctx)

	// 7. HTTP
	authMgr := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	wsServer := ws.NewServer(authMgr, reg, rtr, broadcaster, pg, jrnl, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", wsServer.HandleWS)
	api.New(authMgr, pg, pg, cfg.Accounts(), logger).Register(mux)

	logger.Info("server starting", "port", cfg.Port)
	return http.ListenAndServe(":"+cfg.Port, mux)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
