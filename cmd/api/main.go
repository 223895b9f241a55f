package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/AdeolaQuadri/groupchat-api/internal/auth"
	"github.com/AdeolaQuadri/groupchat-api/internal/chat"
	"github.com/AdeolaQuadri/groupchat-api/internal/config"
	"github.com/AdeolaQuadri/groupchat-api/internal/data"
	"github.com/AdeolaQuadri/groupchat-api/internal/db"
	"github.com/AdeolaQuadri/groupchat-api/internal/metrics"
	"github.com/AdeolaQuadri/groupchat-api/internal/middleware"
	"github.com/AdeolaQuadri/groupchat-api/internal/push"
	"github.com/AdeolaQuadri/groupchat-api/internal/task"
)

func main() {
	// .env is a development convenience; absence is normal in production.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	metrics.MustRegister("groupchat-api")

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		logger.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	membershipsStore := data.NewMembershipsStore(dbClient.MembershipsCollection())
	messagesStore := data.NewMessagesStore(dbClient.MessagesCollection())
	claimsStore := data.NewClaimsStore(dbClient.ClaimsCollection())

	// Task plumbing first; the services need a dispatcher at build time.
	registry := task.NewRegistry(logger)

	var (
		dispatcher chat.Dispatcher
		inline     *task.Inline
		runner     *task.Runner
		natsConn   *nats.Conn
	)
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name("groupchat-api"))
		if err != nil {
			logger.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer natsConn.Close()
		dispatcher = task.NewNATS(natsConn, logger)
		runner = task.NewRunner(natsConn, registry, logger)
	} else {
		logger.Info("NATS_URL not set, running tasks in-process")
		inline = task.NewInline(registry)
		dispatcher = inline
	}

	conversations := chat.NewConversations(usersStore, membershipsStore, claimsStore, logger)
	directory := chat.NewDirectory(usersStore, dispatcher, logger)
	messages := chat.NewMessages(usersStore, messagesStore, conversations, dispatcher, logger)

	// Each fan-out gets its own short-lived gateway client.
	gatewayFactory := func(ctx context.Context) (push.Gateway, func(), error) {
		gw := push.NewFCM(cfg.FCMEndpoint, cfg.FCMServerKey)
		return gw, gw.Close, nil
	}
	notifier := chat.NewNotifier(conversations, gatewayFactory, logger)
	repairer := chat.NewRepairer(usersStore, messagesStore, messages, logger)

	registry.Register(chat.OpSendPushNotifications, func(ctx context.Context, payload []byte) error {
		var t chat.NotifyTask
		if err := json.Unmarshal(payload, &t); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return notifier.Notify(ctx, t.ConversationID, t.SenderID, t.Message)
	})
	registry.Register(chat.OpRepairSenderSnapshots, func(ctx context.Context, payload []byte) error {
		var t chat.RepairTask
		if err := json.Unmarshal(payload, &t); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := repairer.RepairSenderSnapshots(ctx, t.UserID)
		return err
	})

	if runner != nil {
		if err := runner.Start(); err != nil {
			logger.Error("failed to start task runner", "error", err)
			os.Exit(1)
		}
	}

	// Small burst so a client can retry registration a couple of times.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)

	srv := newServer(jwtMgr, directory, conversations, messages, notifier, repairer, limiterStore, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server exit", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}

	// Stop consuming before closing the broker connection; let in-process
	// tasks drain so a dispatched notification is not lost on exit.
	if runner != nil {
		runner.Stop()
	}
	if inline != nil {
		inline.Wait()
	}
}
