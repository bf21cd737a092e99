package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/adaeze-umeh/donation-receipts/internal/artifact"
	"github.com/adaeze-umeh/donation-receipts/internal/common"
	"github.com/adaeze-umeh/donation-receipts/internal/ledger"
	"github.com/adaeze-umeh/donation-receipts/internal/notify"
	"github.com/adaeze-umeh/donation-receipts/internal/receipt"
	"github.com/adaeze-umeh/donation-receipts/internal/server"
)

func main() {
	// Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	// Config
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Artifact index + lifecycle manager
	if err := os.MkdirAll(cfg.Artifacts.Dir, 0o755); err != nil {
		log.Fatalf("creating artifact dir: %v", err)
	}
	index, err := artifact.OpenIndex(cfg.Artifacts.IndexPath, logger)
	if err != nil {
		log.Fatalf("opening artifact index: %v", err)
	}
	defer index.Close()

	manager := artifact.NewManager(cfg.Artifacts, index, logger)
	if err := manager.Reconcile(ctx); err != nil {
		log.Fatalf("reconciling artifact index: %v", err)
	}

	// Engine components
	client := ledger.NewClient(cfg.Ledger, logger)
	synth := receipt.NewSynthesizer(cfg.Artifacts, cfg.Converter, nil, manager, logger)
	mailer := notify.NewMailer(cfg.SMTP, logger)

	srv, err := server.New(client, synth, manager, mailer, cfg.Artifacts, logger)
	if err != nil {
		log.Fatalf("building server: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("HTTP serving on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
	fmt.Println("stopped.")
}
