// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/memex-dev/memex/internal/catalog"
	"github.com/memex-dev/memex/internal/config"
	"github.com/memex-dev/memex/internal/provider"
	"github.com/memex-dev/memex/internal/query"
	"github.com/memex-dev/memex/internal/secrets"
	"github.com/memex-dev/memex/internal/server"
	"github.com/memex-dev/memex/internal/store"
	_ "github.com/memex-dev/memex/internal/store/sqlite" // register sqlite backend
	memexerr "github.com/memex-dev/memex/pkg/errors"
	"github.com/memex-dev/memex/pkg/types"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server   *server.Server
	Engine   *query.Engine
	Catalog  *catalog.Catalog
	Cache    store.EmbeddingCache
	Embedder *provider.Client

	cfg *config.Config
}

// wireApp creates all subsystems and wires them together. The catalog is
// scanned once here so every caller starts from the current record set;
// embedding warm-up is left to the caller (Start does it in the background,
// the index command does it in the foreground).
func wireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	// 1. Provider credential — keyring:// URIs resolve through the OS keyring.
	apiKey, err := secrets.ResolveKeyringURI(secretStoreFactory(), cfg.Provider.APIKey)
	if err != nil {
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "resolving provider API key")
	}

	// 2. Embedding provider.
	embedder, err := provider.New(provider.Config{
		Mode:       provider.Mode(cfg.Provider.Mode),
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Provider.Model,
		Dimensions: cfg.Provider.Dimensions,
		APIKey:     apiKey,
		Timeout:    cfg.Provider.Timeout,
	})
	if err != nil {
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "creating embedding provider")
	}

	// 3. Embedding cache, namespaced by the resolved model identifier so
	// switching models never reads another model's vectors.
	cache, err := store.NewEmbeddingCache(&store.CacheConfig{
		Backend:    cfg.Cache.Backend,
		Path:       cfg.Cache.Path,
		Model:      embedder.Model(),
		Dimensions: embedder.Dimensions(),
	})
	if err != nil {
		_ = embedder.Close()
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "opening embedding cache")
	}

	// 4. Catalog over the configured sources.
	cat, err := catalog.New(catalog.Config{
		Sources:         sourcesFromConfig(cfg),
		Cache:           cache,
		Embedder:        embedder,
		WarmConcurrency: cfg.Warmup.Concurrency,
	})
	if err != nil {
		_ = cache.Close()
		_ = embedder.Close()
		return nil, err
	}
	if err := cat.Build(ctx); err != nil {
		_ = cache.Close()
		_ = embedder.Close()
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "building catalog")
	}

	// 5. Query engine.
	engine := query.NewEngine(embedder, cat)

	// 6. HTTP server with service adapters for the REST endpoints.
	services, err := server.NewServices(
		&searchServiceAdapter{engine: engine},
		&catalogServiceAdapter{cat: cat},
		&statusServiceAdapter{
			embedder: embedder,
			cat:      cat,
			cache:    cache,
			mode:     cfg.Provider.Mode,
			backend:  cfg.Cache.Backend,
		},
	)
	if err != nil {
		_ = cache.Close()
		_ = embedder.Close()
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Services: services,
	})
	if err != nil {
		_ = cache.Close()
		_ = embedder.Close()
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "creating server")
	}

	return &App{
		Server:   srv,
		Engine:   engine,
		Catalog:  cat,
		Cache:    cache,
		Embedder: embedder,
		cfg:      cfg,
	}, nil
}

// Start warms the embedding cache in the background and runs the HTTP
// server until the context is cancelled. Serving before the warm-up
// finishes is deliberate: queries rank whatever is embedded so far, and
// the record set is already complete from the wire-time scan.
func (a *App) Start(ctx context.Context) error {
	go a.warm(ctx)
	return a.Server.Start(ctx)
}

func (a *App) warm(ctx context.Context) {
	report, err := a.Catalog.EnsureEmbeddings(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("embedding warm-up failed", "error", err)
		}
		return
	}
	slog.Info("embedding warm-up complete",
		"discovered", report.Discovered,
		"cache_hits", report.CacheHits,
		"computed", report.Computed,
		"failures", len(report.Failures))
	for _, f := range report.Failures {
		slog.Warn("image not embedded", "identifier", f.Identifier, "reason", f.Reason)
	}
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	type closer interface{ Close() error }
	closers := []closer{a.Server, a.Embedder, a.Cache}

	var errs []error
	for _, c := range closers {
		if c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// sourcesFromConfig converts the config's named source map into catalog
// sources, ordered by name so catalog insertion order is deterministic.
func sourcesFromConfig(cfg *config.Config) []catalog.Source {
	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]catalog.Source, 0, len(names))
	for _, name := range names {
		sc := cfg.Sources[name]
		out = append(out, catalog.Source{
			Name:        name,
			Dir:         sc.Dir,
			Kind:        types.SourceKind(sc.Kind),
			Pattern:     sc.Pattern,
			Replacement: sc.Replacement,
			Recursive:   sc.Recursive,
		})
	}
	return out
}

// --- Service adapters ---

// searchServiceAdapter bridges the query engine to the server's SearchService.
type searchServiceAdapter struct {
	engine *query.Engine
}

func (a *searchServiceAdapter) Search(ctx context.Context, q string, k int) (*server.SearchResult, error) {
	res, err := a.engine.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}

	out := &server.SearchResult{
		QueryID: res.QueryID,
		Model:   res.Model,
		Results: make([]server.SearchResultItem, 0, len(res.Matches)),
	}
	for _, m := range res.Matches {
		out.Results = append(out.Results, server.SearchResultItem{
			Identifier: m.Record.Identifier,
			Label:      m.Record.Label,
			Score:      m.Score,
			Source:     m.Record.Source,
			Kind:       m.Record.Kind,
			URL:        server.ImageURL(m.Record.Identifier),
		})
	}
	return out, nil
}

// catalogServiceAdapter bridges catalog.Catalog to the server's CatalogService.
type catalogServiceAdapter struct {
	cat *catalog.Catalog
}

func (a *catalogServiceAdapter) List(_ context.Context) (*server.CatalogList, error) {
	records := a.cat.Records()
	list := &server.CatalogList{
		Total:   len(records),
		Records: make([]server.CatalogRecord, 0, len(records)),
	}
	for _, rec := range records {
		list.Records = append(list.Records, server.CatalogRecord{
			Identifier: rec.Identifier,
			Label:      rec.Label,
			Source:     rec.Source,
			Kind:       rec.Kind,
			Embedded:   a.cat.Embedded(rec.Identifier),
		})
	}
	return list, nil
}

func (a *catalogServiceAdapter) Refresh(ctx context.Context) (*catalog.WarmupReport, error) {
	return a.cat.Refresh(ctx)
}

func (a *catalogServiceAdapter) ImagePath(_ context.Context, identifier string) (string, error) {
	rec, err := a.cat.Resolve(identifier)
	if err != nil {
		return "", err
	}
	return rec.SourcePath, nil
}

// statusServiceAdapter assembles the healthz payload from live components.
type statusServiceAdapter struct {
	embedder *provider.Client
	cat      *catalog.Catalog
	cache    store.EmbeddingCache
	mode     string
	backend  string
}

func (a *statusServiceAdapter) Status(ctx context.Context) (*server.StatusReport, error) {
	metrics := a.embedder.Health().HealthMetrics()

	report := &server.StatusReport{
		Status: "ok",
		Provider: server.ProviderStatus{
			Model:   a.embedder.Model(),
			Mode:    a.mode,
			Metrics: metrics,
		},
		Catalog: server.CatalogStatus{
			Records:  a.cat.Len(),
			Embedded: len(a.cat.Snapshot()),
		},
		Cache: server.CacheStatus{
			Backend: a.backend,
		},
	}

	entries, err := a.cache.Count(ctx)
	if err != nil {
		// A cache that cannot be counted degrades the report; the
		// process itself is still alive.
		slog.Warn("counting cache entries", "error", err)
		report.Status = "degraded"
		report.Cache.Entries = -1
	} else {
		report.Cache.Entries = entries
	}

	if !metrics.Available {
		report.Status = "degraded"
	}
	return report, nil
}
