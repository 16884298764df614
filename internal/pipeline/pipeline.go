// Package pipeline drives the two-phase indexing pipeline: Phase 1 streams
// authoritative documents and embeds them into a restartable on-disk cache,
// Phase 2 bulk-indexes the cache into the search engine and back-syncs
// cross-reference ids. Run executes both phases as a single streaming pass
// with no checkpoint step.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/researchgraph/hybridsearch/internal/doccache"
	"github.com/researchgraph/hybridsearch/internal/docstore"
	"github.com/researchgraph/hybridsearch/internal/mapper"
	"github.com/researchgraph/hybridsearch/internal/schema"
	"github.com/researchgraph/hybridsearch/internal/searchengine"
)

const autosaveInterval = 30 * time.Second

// Embedder is the subset of internal/embedclient.Client the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the pipeline's tunables, bound from environment variables at
// process start (see internal/config).
type Config struct {
	MongoBatchSize     int
	EmbedBatchSize     int
	OpenSearchBulkSize int
	NumWorkers         int
	MongoBulkDelayMs   int64
}

func (c Config) workers() int {
	if c.NumWorkers < 2 {
		return 2
	}
	return c.NumWorkers
}

// Engine wires the authoritative store, embedding client, document cache,
// search engine, and schema manager together to run the pipeline's phases.
type Engine struct {
	store  *docstore.Store
	embed  Embedder
	cache  *doccache.Cache
	engine *searchengine.Client
	schema *schema.Manager
	log    zerolog.Logger
	cfg    Config
}

// NewEngine constructs a pipeline Engine.
func NewEngine(store *docstore.Store, embed Embedder, cache *doccache.Cache, engine *searchengine.Client, schemaMgr *schema.Manager, log zerolog.Logger, cfg Config) *Engine {
	return &Engine{store: store, embed: embed, cache: cache, engine: engine, schema: schemaMgr, log: log, cfg: cfg}
}

// Phase1Options configures one Phase 1 run.
type Phase1Options struct {
	Limit      int
	ReindexAll bool
	Workers    int
}

// Phase1Result reports counters from a completed (or cancelled) Phase 1 run.
type Phase1Result struct {
	Processed int
	Skipped   int
	Errors    int
}

// Phase1 fetches, embeds, and checkpoints documents. It always saves the
// cache at least once before returning, even on cancellation.
func (e *Engine) Phase1(ctx context.Context, opts Phase1Options) (Phase1Result, error) {
	if opts.ReindexAll {
		e.cache.Clear()
	} else if warning, err := e.cache.Load(); err != nil {
		return Phase1Result{}, fmt.Errorf("load cache: %w", err)
	} else if warning != "" {
		e.log.Warn().Str("cache", warning).Msg("starting phase 1 with a fresh cache")
	}

	total, err := e.store.CountPending(ctx)
	if err != nil {
		return Phase1Result{}, err
	}
	target := int(total)
	if opts.Limit > 0 && opts.Limit < target {
		target = opts.Limit
	}
	e.cache.SetTarget(target, opts.ReindexAll)

	workers := opts.Workers
	if workers <= 0 {
		workers = e.cfg.workers()
	}

	docChan, streamErrc := e.store.Stream(ctx, int32(e.cfg.MongoBatchSize))
	batchChan := make(chan []docstore.Document, 2)

	var result Phase1Result
	var resultMu sync.Mutex
	var lastSaveMu sync.Mutex
	lastSave := time.Now()

	autosaveIfDue := func() {
		lastSaveMu.Lock()
		due := time.Since(lastSave) >= autosaveInterval
		if due {
			lastSave = time.Now()
		}
		lastSaveMu.Unlock()
		if due {
			if err := e.cache.Save(); err != nil {
				e.log.Error().Err(err).Msg("phase 1 autosave failed")
			}
		}
	}

	// batcher: drops already-cached ids, regroups into MongoBatchSize
	// batches, and stops once target documents have been read.
	go func() {
		defer close(batchChan)
		read := 0
		pending := make([]docstore.Document, 0, e.cfg.MongoBatchSize)
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			select {
			case batchChan <- pending:
			case <-ctx.Done():
				return false
			}
			pending = make([]docstore.Document, 0, e.cfg.MongoBatchSize)
			return true
		}
		for docs := range docChan {
			for _, d := range docs {
				if opts.Limit > 0 && read >= opts.Limit {
					flush()
					return
				}
				read++
				if e.cache.IsProcessed(d.ID) {
					resultMu.Lock()
					result.Skipped++
					resultMu.Unlock()
					continue
				}
				pending = append(pending, d)
				if len(pending) >= e.cfg.MongoBatchSize {
					if !flush() {
						return
					}
				}
			}
		}
		flush()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for batch := range batchChan {
				e.processBatch(gctx, batch, &result, &resultMu)
				autosaveIfDue()
			}
			return nil
		})
	}

	workerErr := g.Wait()

	if err := e.cache.Save(); err != nil {
		return result, fmt.Errorf("final phase 1 save: %w", err)
	}

	if err := <-streamErrc; err != nil && workerErr == nil {
		return result, err
	}
	return result, workerErr
}

// processBatch embeds one outer batch. If any sub-batch fails after the
// embedding client's own retries, the whole outer batch is dropped.
func (e *Engine) processBatch(ctx context.Context, batch []docstore.Document, result *Phase1Result, mu *sync.Mutex) {
	entries := make(map[string]doccache.Entry, len(batch))

	for start := 0; start < len(batch); start += e.cfg.EmbedBatchSize {
		end := start + e.cfg.EmbedBatchSize
		if end > len(batch) {
			end = len(batch)
		}
		sub := batch[start:end]

		texts := make([]string, len(sub))
		for i, d := range sub {
			texts[i] = embedText(d)
		}

		vectors, err := e.embed.Embed(ctx, texts)
		if err != nil {
			e.log.Error().Err(err).Int("batch_size", len(batch)).Msg("embedding sub-batch failed, dropping outer batch")
			mu.Lock()
			result.Errors += len(batch)
			mu.Unlock()
			return
		}

		now := time.Now()
		for i, d := range sub {
			entries[d.ID] = doccache.Entry{Document: d, Embedding: vectors[i], ProcessedAt: now}
		}
	}

	e.cache.AddEntries(entries)
	mu.Lock()
	result.Processed += len(entries)
	mu.Unlock()
}

func embedText(d docstore.Document) string {
	return d.Title + "\n\n" + d.Abstract
}

// Phase2Options configures one Phase 2 run.
type Phase2Options struct{}

// Phase2Result reports counters from a completed Phase 2 run.
type Phase2Result struct {
	Indexed  int
	Errors   int
	SyncedOK int64
}

// Phase2 ensures the index exists, bulk-indexes the cached entries, and
// back-syncs cross-reference ids to the authoritative store.
func (e *Engine) Phase2(ctx context.Context, _ Phase2Options) (Phase2Result, error) {
	if warning, err := e.cache.Load(); err != nil {
		return Phase2Result{}, fmt.Errorf("load cache: %w", err)
	} else if warning != "" {
		e.log.Warn().Str("cache", warning).Msg("phase 2 found no usable cache")
	}

	if err := e.schema.CreateIndex(ctx); err != nil {
		return Phase2Result{}, err
	}

	entries := e.cache.GetEntries()
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}

	var result Phase2Result
	crossRefs := make(map[string]string)

	for start := 0; start < len(ids); start += e.cfg.OpenSearchBulkSize {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		end := start + e.cfg.OpenSearchBulkSize
		if end > len(ids) {
			end = len(ids)
		}
		slice := ids[start:end]

		docs := make([]searchengine.Document, len(slice))
		for i, id := range slice {
			docs[i] = mapper.ToEngineDocument(entries[id])
		}

		bulkResult, err := e.engine.BulkIndex(ctx, docs)
		if err != nil {
			e.log.Error().Err(err).Int("slice_size", len(slice)).Msg("bulk index slice failed")
			result.Errors += len(slice)
			continue
		}
		result.Indexed += bulkResult.Indexed
		result.Errors += bulkResult.Errors
		for authID, engineID := range bulkResult.EngineIDs {
			crossRefs[authID] = engineID
		}
	}

	// Single back-sync worker, unordered bulk updates, throttled between
	// writes to protect an external store's free-tier quota.
	crossRefIDs := make([]string, 0, len(crossRefs))
	for id := range crossRefs {
		crossRefIDs = append(crossRefIDs, id)
	}
	for start := 0; start < len(crossRefIDs); start += e.cfg.OpenSearchBulkSize {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		end := start + e.cfg.OpenSearchBulkSize
		if end > len(crossRefIDs) {
			end = len(crossRefIDs)
		}
		slice := make(map[string]string, end-start)
		for _, id := range crossRefIDs[start:end] {
			slice[id] = crossRefs[id]
		}

		matched, err := e.store.UpdateOpenSearchIDs(ctx, slice)
		if err != nil {
			e.log.Error().Err(err).Msg("back-sync slice failed, continuing")
			continue
		}
		result.SyncedOK += matched
		docstore.Throttle(ctx, time.Duration(e.cfg.MongoBulkDelayMs)*time.Millisecond)
	}

	return result, nil
}

// RunOptions configures a single-shot streaming run (phase1+phase2 fused,
// no checkpoint step).
type RunOptions struct {
	Limit      int
	ReindexAll bool
	Workers    int
}

// RunResult reports counters from a completed Run.
type RunResult struct {
	Indexed  int
	Errors   int
	SyncedOK int64
}

// Run streams fetch -> embed -> index -> sync as one pass, bypassing the
// on-disk cache entirely. Used for small or ephemeral indexing jobs where
// restartability isn't needed.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	if opts.ReindexAll {
		if err := e.store.ClearOpenSearchIDs(ctx); err != nil {
			return RunResult{}, err
		}
	}
	if err := e.schema.CreateIndex(ctx); err != nil {
		return RunResult{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = e.cfg.workers()
	}

	docChan, streamErrc := e.store.Stream(ctx, int32(e.cfg.MongoBatchSize))
	embedded := make(chan embeddedDoc, e.cfg.OpenSearchBulkSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(embedded)
		read := 0
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for docs := range docChan {
			for _, d := range docs {
				if opts.Limit > 0 && read >= opts.Limit {
					wg.Wait()
					return nil
				}
				read++
				select {
				case sem <- struct{}{}:
				case <-gctx.Done():
					wg.Wait()
					return gctx.Err()
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer func() { <-sem }()
					vecs, err := e.embed.Embed(gctx, []string{embedText(d)})
					if err != nil {
						e.log.Error().Err(err).Str("document_id", d.ID).Msg("run: embedding failed, dropping document")
						return
					}
					select {
					case embedded <- embeddedDoc{doc: d, vector: vecs[0]}:
					case <-gctx.Done():
					}
				}()
			}
		}
		wg.Wait()
		return nil
	})

	var result RunResult
	var resultMu sync.Mutex
	crossRefs := make(map[string]string)
	var crossRefsMu sync.Mutex

	g.Go(func() error {
		batch := make([]embeddedDoc, 0, e.cfg.OpenSearchBulkSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			docs := make([]searchengine.Document, len(batch))
			for i, ed := range batch {
				docs[i] = mapper.ToEngineDocument(doccache.Entry{Document: ed.doc, Embedding: ed.vector, ProcessedAt: time.Now()})
			}
			bulkResult, err := e.engine.BulkIndex(gctx, docs)
			if err != nil {
				resultMu.Lock()
				result.Errors += len(batch)
				resultMu.Unlock()
				batch = batch[:0]
				return nil
			}
			resultMu.Lock()
			result.Indexed += bulkResult.Indexed
			result.Errors += bulkResult.Errors
			resultMu.Unlock()
			crossRefsMu.Lock()
			for authID, engineID := range bulkResult.EngineIDs {
				crossRefs[authID] = engineID
			}
			crossRefsMu.Unlock()
			batch = batch[:0]
			return nil
		}

		for ed := range embedded {
			batch = append(batch, ed)
			if len(batch) >= e.cfg.OpenSearchBulkSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	workerErr := g.Wait()

	for authID, engineID := range crossRefs {
		matched, err := e.store.UpdateOpenSearchIDs(ctx, map[string]string{authID: engineID})
		if err != nil {
			e.log.Error().Err(err).Str("document_id", authID).Msg("run: back-sync failed, continuing")
			continue
		}
		result.SyncedOK += matched
		docstore.Throttle(ctx, time.Duration(e.cfg.MongoBulkDelayMs)*time.Millisecond)
	}

	if err := <-streamErrc; err != nil && workerErr == nil {
		return result, err
	}
	return result, workerErr
}

type embeddedDoc struct {
	doc    docstore.Document
	vector []float32
}
