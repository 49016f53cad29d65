// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package vectorpool

import (
	"context"
	"log/slog"

	"github.com/poiesic/vectorpool/ai"
	"github.com/poiesic/vectorpool/ai/openai"
	"github.com/poiesic/vectorpool/bulk"
	"github.com/poiesic/vectorpool/config"
	"github.com/poiesic/vectorpool/core"
	"github.com/poiesic/vectorpool/ingest"
	"github.com/poiesic/vectorpool/provider"
	"github.com/poiesic/vectorpool/provider/local"
	"github.com/poiesic/vectorpool/search"
	"github.com/poiesic/vectorpool/storage"
	"github.com/poiesic/vectorpool/storage/badger"
	"github.com/poiesic/vectorpool/tasks"
)

// Plugin is the assembled embedding system: storage, pools, the bulk run
// orchestrator, the realtime ingestion pipeline, and similarity search.
type Plugin struct {
	backend       *badger.Backend
	runRepo       storage.RunRepository
	batchRepo     storage.BatchRepository
	metadataRepo  storage.InputMetadataRepository
	embeddingRepo storage.EmbeddingRepository
	documentRepo  storage.DocumentRepository
	embedder      ai.Embedder
	pools         []*bulk.Pool
	queue         *tasks.WorkerQueue
	orchestrator  *bulk.Orchestrator
	retry         *bulk.RetryCoordinator
	pipeline      *ingest.Pipeline
	logger        *slog.Logger
}

// PluginOption configures a Plugin.
type PluginOption func(*pluginOptions)

type pluginOptions struct {
	aiConfig *ai.Config
	embedder ai.Embedder
	adapters map[string]provider.Adapter
	logger   *slog.Logger
}

// WithAIConfig sets the embedding endpoint configuration.
func WithAIConfig(cfg *ai.Config) PluginOption {
	return func(o *pluginOptions) {
		o.aiConfig = cfg
	}
}

// WithEmbedder supplies an embedder directly, bypassing the endpoint
// configuration. Tests use this with a mock.
func WithEmbedder(embedder ai.Embedder) PluginOption {
	return func(o *pluginOptions) {
		o.embedder = embedder
	}
}

// WithAdapter installs a provider adapter for the named pool. Pools without
// one get a local adapter that embeds through the configured embedder.
func WithAdapter(poolName string, adapter provider.Adapter) PluginOption {
	return func(o *pluginOptions) {
		o.adapters[poolName] = adapter
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) PluginOption {
	return func(o *pluginOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New assembles a Plugin from file configuration.
func New(cfg *config.Config, opts ...PluginOption) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &pluginOptions{
		aiConfig: ai.NewConfig(
			ai.WithEmbeddingHost(cfg.Embedding.Host),
			ai.WithEmbeddingModel(cfg.Embedding.Model),
			ai.WithAPIToken(cfg.Embedding.APIToken),
		),
		adapters: make(map[string]provider.Adapter),
		logger:   slog.Default(),
	}
	if cfg.Embedding.Host == "" {
		options.aiConfig = ai.DefaultConfig()
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(cfg.DataDir, cfg.InMemory)
	if err != nil {
		return nil, err
	}

	runRepo, err := badger.NewRunRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	batchRepo, err := badger.NewBatchRepository(backend)
	if err != nil {
		runRepo.Close()
		backend.Close()
		return nil, err
	}
	metadataRepo := badger.NewInputMetadataRepository(backend)
	embeddingRepo := badger.NewEmbeddingRepository(backend)
	documentRepo := badger.NewDocumentRepository(backend)

	closeAll := func() {
		batchRepo.Close()
		runRepo.Close()
		backend.Close()
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			closeAll()
			return nil, err
		}
	}

	pools := make([]*bulk.Pool, 0, len(cfg.Pools))
	for _, pc := range cfg.Pools {
		adapter := options.adapters[pc.Name]
		if adapter == nil {
			adapter = local.NewAdapter(embedder)
		}
		pools = append(pools, &bulk.Pool{
			Name:             pc.Name,
			EmbeddingVersion: pc.EmbeddingVersion,
			Collections:      pc.Collections,
			Chunker:          bulk.NewFieldChunker(pc.ChunkFields, pc.ChunkSize, pc.ChunkOverlap),
			Adapter:          adapter,
		})
	}

	queue, err := tasks.NewWorkerQueue(cfg.Workers, tasks.WithLogger(options.logger))
	if err != nil {
		closeAll()
		return nil, err
	}

	filter := bulk.NewFilter(documentRepo, embeddingRepo, 0)
	collector := bulk.NewCollector(filter, batchRepo, metadataRepo, options.logger)

	orchestrator, err := bulk.NewOrchestrator(
		pools, runRepo, batchRepo, metadataRepo, embeddingRepo,
		collector, queue, bulk.WithOrchestratorLogger(options.logger))
	if err != nil {
		queue.Release()
		closeAll()
		return nil, err
	}
	queue.Register(orchestrator)

	pipeline, err := ingest.NewPipeline(documentRepo, embeddingRepo, embedder, pools,
		ingest.WithLogger(options.logger))
	if err != nil {
		queue.Release()
		closeAll()
		return nil, err
	}

	return &Plugin{
		backend:       backend,
		runRepo:       runRepo,
		batchRepo:     batchRepo,
		metadataRepo:  metadataRepo,
		embeddingRepo: embeddingRepo,
		documentRepo:  documentRepo,
		embedder:      embedder,
		pools:         pools,
		queue:         queue,
		orchestrator:  orchestrator,
		retry:         bulk.NewRetryCoordinator(orchestrator, options.logger),
		pipeline:      pipeline,
		logger:        options.logger,
	}, nil
}

// StartBulkRun starts a bulk embedding run for the named pool.
func (p *Plugin) StartBulkRun(ctx context.Context, pool string) (*bulk.StartResult, error) {
	return p.orchestrator.StartRun(ctx, pool)
}

// RetryBatch resubmits a failed batch.
func (p *Plugin) RetryBatch(ctx context.Context, batchId core.ID) (*bulk.RetryResult, error) {
	return p.retry.RetryBatch(ctx, batchId)
}

// SaveDocument stores a document and re-embeds it in the background.
func (p *Plugin) SaveDocument(ctx context.Context, doc *core.Document) error {
	return p.pipeline.SaveDocument(ctx, doc)
}

// DeleteDocument removes a document's embedding rows from every pool.
func (p *Plugin) DeleteDocument(ctx context.Context, collection, documentId string) error {
	return p.pipeline.DeleteDocument(ctx, collection, documentId)
}

// NewSearcher creates a similarity searcher over this plugin's pools.
func (p *Plugin) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(p.logger)}, opts...)
	return search.NewSearcher(p.embeddingRepo, p.embedder, opts...)
}

// RunRepository exposes run records for status reporting.
func (p *Plugin) RunRepository() storage.RunRepository {
	return p.runRepo
}

// BatchRepository exposes batch records for status reporting.
func (p *Plugin) BatchRepository() storage.BatchRepository {
	return p.batchRepo
}

// DocumentRepository exposes the plugin's document store.
func (p *Plugin) DocumentRepository() storage.DocumentRepository {
	return p.documentRepo
}

// EmbeddingRepository exposes the pool embedding rows.
func (p *Plugin) EmbeddingRepository() storage.EmbeddingRepository {
	return p.embeddingRepo
}

// Wait blocks until queued tasks and background embedding work settle.
func (p *Plugin) Wait() {
	p.queue.Wait()
	p.pipeline.Wait()
}

// Close releases every component. The plugin must not be used afterwards.
func (p *Plugin) Close() error {
	p.queue.Release()
	p.pipeline.Release()

	if err := p.batchRepo.Close(); err != nil {
		p.logger.Error("error closing batch repository", "err", err)
		return err
	}
	if err := p.runRepo.Close(); err != nil {
		p.logger.Error("error closing run repository", "err", err)
		return err
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
