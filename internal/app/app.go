// Package app wires configuration into the discovery, registry and execution
// components and runs the background refresh loop.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/toolsmith/internal/cache"
	"github.com/bobmcallan/toolsmith/internal/client"
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/config"
	"github.com/bobmcallan/toolsmith/internal/discovery"
	"github.com/bobmcallan/toolsmith/internal/executor"
	"github.com/bobmcallan/toolsmith/internal/handlers"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/mcp"
	"github.com/bobmcallan/toolsmith/internal/metrics"
	"github.com/bobmcallan/toolsmith/internal/registry"
	"github.com/bobmcallan/toolsmith/internal/service"
	"github.com/bobmcallan/toolsmith/internal/storage"
)

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Storage  interfaces.StorageManager
	Client   *client.Client
	Provider discovery.Provider
	Registry *registry.Registry
	Executor *executor.Executor
	Service  *service.Service
	Metrics  *metrics.Metrics

	// HTTP handlers
	HealthHandler     *handlers.HealthHandler
	VersionHandler    *handlers.VersionHandler
	OperationsHandler *handlers.OperationsHandler
	MCPHandler        *mcp.Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", problems)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Discovery.Cache.Enabled {
		store, err := storage.NewStorageManager(logger, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot storage: %w", err)
		}
		a.Storage = store
	}

	a.Client = client.New(client.Options{
		BaseURL:          cfg.Remote.URL,
		APIKey:           cfg.Remote.APIKey,
		APISecret:        cfg.Remote.APISecret,
		SessionToken:     cfg.Remote.SessionToken,
		Timeout:          cfg.Remote.Timeout.Duration,
		RateLimit:        cfg.Remote.RateLimit,
		RateBurst:        cfg.Remote.RateBurst,
		MaxResponseBytes: cfg.Remote.MaxResponseBytes,
	}, logger)
	if cfg.Remote.URL == "" {
		logger.Warn().Msg("remote.url is not set, operations will fail until it is configured")
	}

	provider, err := a.newProvider()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Provider = provider

	a.Metrics = metrics.New(metrics.NewRegistry())
	a.Registry = registry.New(provider, logger)

	var responses *cache.ResponseCache
	if cfg.Cache.Enabled {
		responses = cache.New(cfg.Cache.TTL.Duration, cfg.Cache.MaxEntries)
	}
	a.Executor = executor.New(a.Registry, a.Client, executor.Options{
		RequireCredentials: cfg.Remote.RequireCredentials,
		Cache:              responses,
		Observer:           a.Metrics,
	}, logger)
	a.Service = service.New(a.Registry, a.Executor, a.Metrics, logger)

	a.initHandlers()

	logger.Info().
		Str("discovery_mode", cfg.Discovery.Mode).
		Str("provider", provider.Name()).
		Bool("response_cache", responses != nil).
		Msg("application initialization complete")

	return a, nil
}

func (a *App) newProvider() (discovery.Provider, error) {
	cfg := a.Config
	opts := DiscoveryOptions(cfg)

	// A nil *client.Client must not reach discovery as a non-nil interface.
	var remote discovery.MetadataClient
	if cfg.Remote.URL != "" {
		remote = a.Client
	}
	var store interfaces.SnapshotStorage
	if a.Storage != nil {
		store = a.Storage.SnapshotStorage()
	}
	provider, err := discovery.New(opts, remote, store, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery provider: %w", err)
	}
	return provider, nil
}

// DiscoveryOptions maps configuration onto discovery options.
func DiscoveryOptions(cfg *config.Config) discovery.Options {
	return discovery.Options{
		Mode:               cfg.Discovery.Mode,
		Concurrency:        cfg.Discovery.Concurrency,
		Timeout:            cfg.Discovery.Timeout.Duration,
		DefinitionsDir:     cfg.Discovery.Static.DefinitionsDir,
		ProcedureManifest:  cfg.Discovery.Static.ProcedureManifest,
		SourceDirs:         cfg.Discovery.Static.SourceDirs,
		ProceduresMethod:   cfg.Discovery.Live.ProceduresMethod,
		FallbackTypes:      cfg.Discovery.Live.FallbackTypes,
		CallerRoles:        cfg.Discovery.Live.CallerRoles,
		RolesMethod:        cfg.Discovery.Live.RolesMethod,
		IncludeChildTables: cfg.Discovery.Live.IncludeChildTables,
		CacheEnabled:       cfg.Discovery.Cache.Enabled,
	}
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	a.HealthHandler = handlers.NewHealthHandler(a.Logger)
	a.VersionHandler = handlers.NewVersionHandler(a.Service, a.Logger)
	a.OperationsHandler = handlers.NewOperationsHandler(a.Service, a.Logger)

	if a.Config.MCP.Enabled {
		a.MCPHandler = mcp.NewHandler(a.Service, mcp.Options{
			Name:    a.Config.MCP.Name,
			Version: common.GetVersion(),
		}, a.Logger)
	}

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Start performs the initial refresh and starts the periodic refresh and the
// definition watcher. A failed initial refresh is logged and serving continues
// with an empty registry.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if _, err := a.Service.Refresh(ctx); err != nil {
		a.Logger.Warn().Str("error", err.Error()).Msg("initial refresh failed, serving an empty operation set")
	}

	if interval := a.Config.Discovery.RefreshInterval.Duration; interval > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.refreshLoop(ctx, interval)
		}()
	}

	if a.Config.Discovery.Watch && a.Config.Discovery.Mode == discovery.ModeStatic {
		paths := discovery.WatchPaths(DiscoveryOptions(a.Config))
		watcher := discovery.NewWatcher(paths, discovery.DefaultDebounce, a.refreshOnChange, a.Logger)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := watcher.Run(ctx); err != nil {
				a.Logger.Warn().Str("error", err.Error()).Msg("definition watcher stopped")
			}
		}()
	}
}

func (a *App) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Service.Refresh(ctx); err != nil {
				a.Logger.Warn().Str("error", err.Error()).Msg("scheduled refresh failed")
			}
		}
	}
}

func (a *App) refreshOnChange(ctx context.Context) {
	if _, err := a.Service.Refresh(ctx); err != nil {
		a.Logger.Warn().Str("error", err.Error()).Msg("refresh after definition change failed")
	}
}

// Close stops background work and closes all application resources.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
