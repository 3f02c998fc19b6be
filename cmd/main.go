package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"convsync/auth"
	"convsync/domain"
	"convsync/gateway"
	"convsync/repositories"
	"convsync/runtime"
	"convsync/runtime/workers"
	"convsync/search"
	"convsync/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the session lifecycle, and centralizes
// error reporting. This pattern is preferred over calling os.Exit or panic directly
// because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the feed and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Local stores (BadgerDB history cache, Bluge search index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 3. Identity & Gateway
	self, err := auth.IdentityFromToken(config.AccessToken)
	if err != nil {
		return fmt.Errorf("identity error: %w", err)
	}
	conv := domain.ConversationID(config.ConversationID)
	gw := gateway.NewHTTPGateway(config.APIBaseURL, config.AccessToken, self)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Realtime feed
	feed, err := gateway.DialFeed(ctx, config.FeedURL, config.AccessToken, conv, log)
	if err != nil {
		return fmt.Errorf("feed dial failed: %w", err)
	}

	// 6. Session wiring
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))

	historyRepository := repositories.NewHistoryRepository(db, log, config.HistoryLimit)
	index := search.NewMessageIndex(writer, log)

	session := runtime.NewSession(log, self, gw, feed, sup, conv, runtime.Config{
		GraceWindow:     config.GraceWindow,
		FetchDelay:      config.FetchDelay,
		RequestTimeout:  config.RequestTimeout,
		SweepInterval:   config.SweepInterval,
		PageSize:        config.PageSize,
		FlushStopTyping: true,
	})
	session.AddSinks(
		sink.NewHistorySink(historyRepository, log),
		sink.NewSearchSink(index),
	)
	session.Start(ctx)

	// 7. First page & read receipt
	if err = session.Load(ctx, 0); err != nil {
		return err
	}
	if err = session.MarkRead(ctx); err != nil {
		log.Warn("Mark read failed", "error", err)
	}
	log.Info("Session started",
		"conversation", conv,
		"user", self.UserID,
		"messages", len(session.View()),
		"unread", session.Unread())

	// 8. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 9. Final Cleanup
	if err = session.Close(); err != nil {
		log.Warn("Session close reported an error", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
