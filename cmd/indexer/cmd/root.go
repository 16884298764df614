// Package cmd provides the indexer CLI commands: phase1, phase2, run,
// status, clean, create-index, and reindex-full.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/researchgraph/hybridsearch/internal/config"
	"github.com/researchgraph/hybridsearch/internal/doccache"
	"github.com/researchgraph/hybridsearch/internal/docstore"
	"github.com/researchgraph/hybridsearch/internal/embedclient"
	"github.com/researchgraph/hybridsearch/internal/logging"
	"github.com/researchgraph/hybridsearch/internal/pipeline"
	"github.com/researchgraph/hybridsearch/internal/schema"
	"github.com/researchgraph/hybridsearch/internal/searchengine"
	"github.com/researchgraph/hybridsearch/pkg/version"
)

var quiet bool

// NewRootCmd builds the indexer command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "indexer",
		Short:   "Batch indexing pipeline for the hybrid search platform",
		Version: version.Version,
	}

	root.AddCommand(newPhase1Cmd())
	root.AddCommand(newPhase2Cmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newCreateIndexCmd())
	root.AddCommand(newReindexFullCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// deps bundles the live connections a subcommand needs, closed via close().
type deps struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *docstore.Store
	cache *doccache.Cache
	eng   *searchengine.Client
	sch   *schema.Manager
}

func (d *deps) close(ctx context.Context) {
	if d.store != nil {
		_ = d.store.Close(ctx)
	}
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, os.Stderr)

	store, err := docstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err != nil {
		return nil, fmt.Errorf("connect to authoritative store: %w", err)
	}

	eng, err := searchengine.New(searchengine.Config{
		Addresses: splitHosts(cfg.Engine),
		Username:  cfg.Engine.User,
		Password:  cfg.Engine.Password,
		Index:     cfg.Engine.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to search engine: %w", err)
	}

	return &deps{
		cfg:   cfg,
		log:   log,
		store: store,
		cache: doccache.New(cfg.Cache.Dir),
		eng:   eng,
		sch:   schema.NewManager(eng.Raw(), eng.IndexName()),
	}, nil
}

// newEngine builds the pipeline Engine once deps are in hand.
func (d *deps) newEngine() *pipeline.Engine {
	embed := embedclient.New(embedclient.Config{
		BaseURL:    d.cfg.Embed.ServiceURL,
		Timeout:    d.cfg.Embed.Timeout,
		MaxRetries: d.cfg.Pipeline.MaxRetries,
	}, d.log)

	return pipeline.NewEngine(d.store, embed, d.cache, d.eng, d.sch, d.log, pipeline.Config{
		MongoBatchSize:     d.cfg.Pipeline.MongoBatchSize,
		EmbedBatchSize:     d.cfg.Pipeline.EmbedBatchSize,
		OpenSearchBulkSize: d.cfg.Pipeline.OpenSearchBulkSize,
		NumWorkers:         d.cfg.Pipeline.NumWorkers,
		MongoBulkDelayMs:   d.cfg.Pipeline.MongoBulkDelayMs,
	})
}

func splitHosts(e config.Engine) []string {
	if e.Hosts != "" {
		return []string{e.Hosts}
	}
	return []string{e.Node}
}
