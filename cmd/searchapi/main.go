// Package main provides the entry point for the search API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/researchgraph/hybridsearch/internal/config"
	"github.com/researchgraph/hybridsearch/internal/docstore"
	"github.com/researchgraph/hybridsearch/internal/embedclient"
	"github.com/researchgraph/hybridsearch/internal/httpapi"
	"github.com/researchgraph/hybridsearch/internal/logging"
	"github.com/researchgraph/hybridsearch/internal/orchestrator"
	"github.com/researchgraph/hybridsearch/internal/resultcache"
	"github.com/researchgraph/hybridsearch/internal/searchengine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, os.Stderr)

	store, err := docstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err != nil {
		return fmt.Errorf("connect to authoritative store: %w", err)
	}
	defer store.Close(context.Background())

	addresses := []string{cfg.Engine.Node}
	if cfg.Engine.Hosts != "" {
		addresses = []string{cfg.Engine.Hosts}
	}
	engine, err := searchengine.New(searchengine.Config{
		Addresses: addresses,
		Username:  cfg.Engine.User,
		Password:  cfg.Engine.Password,
		Index:     cfg.Engine.Index,
	})
	if err != nil {
		return fmt.Errorf("connect to search engine: %w", err)
	}

	cache, err := resultcache.New(cfg.Redis.URL, resultcache.DefaultTTL, log)
	if err != nil {
		return fmt.Errorf("connect to result cache: %w", err)
	}
	defer cache.Close()

	embed := embedclient.New(embedclient.Config{
		BaseURL:    cfg.Embed.ServiceURL,
		Timeout:    cfg.Embed.Timeout,
		MaxRetries: cfg.Pipeline.MaxRetries,
	}, log)

	orc := orchestrator.New(cache, embed, engine, store, log, cfg.Search.RelatedPeople)
	router := httpapi.NewRouter(orc, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("search api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}
