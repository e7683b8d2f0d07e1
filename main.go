package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quardsview/internal/backend"
	"quardsview/internal/catalog"
	"quardsview/internal/config"
	"quardsview/internal/handlers"
	"quardsview/internal/logging"
	"quardsview/internal/storage"
	"quardsview/internal/templates"
	"quardsview/internal/viewer"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Debug = cfg.Debug

	templates.SetCommit(commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.BackendURL, cfg.Timeout)

	// A missing catalog only degrades card names and images.
	cards, err := catalog.Fetch(ctx, client.HTTPClient(), cfg.CatalogURL)
	if err != nil {
		logging.Warnf("card catalog unavailable: %v", err)
		cards = &catalog.Catalog{}
	}
	log.Printf("loaded %d cards", cards.Len())

	var store *storage.Store
	if cfg.DSN != "" {
		db, err := storage.New(cfg.DSN)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = storage.NewStore(db)
	}

	// Initialize session hub
	hub := viewer.NewHub(client, cards, store, viewer.Options{
		Timeout:         cfg.Timeout,
		Period:          cfg.AutoplayPeriod,
		IdleTTL:         cfg.SessionIdleTTL,
		CleanupInterval: cfg.CleanupInterval,
	})
	defer hub.Close()

	// Initialize HTTP handlers
	h := handlers.NewHandler(hub, client, store)
	h.Version = versionString()
	mux := http.NewServeMux()
	h.Routes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: handlers.LogRequests(mux)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Quards viewer %s listening on %s (backend %s)", versionString(), cfg.Addr, cfg.BackendURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
