// Package app wires configuration, providers, storage and the batch orchestrator together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/eodhd"
	"github.com/ternarybob/psuscan/internal/extraction"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/ninjas"
	"github.com/ternarybob/psuscan/internal/ratelimit"
	"github.com/ternarybob/psuscan/internal/retry"
	"github.com/ternarybob/psuscan/internal/sec"
	"github.com/ternarybob/psuscan/internal/services/batch"
	"github.com/ternarybob/psuscan/internal/storage"
	"github.com/ternarybob/psuscan/internal/storage/progress"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// External providers
	Ninjas    *ninjas.Client
	Quotes    *eodhd.Client // nil unless an EODHD key is configured
	Prices    interfaces.PriceProvider
	Documents *sec.Client
	Gate      *ratelimit.Gate

	// Batch services
	Pipeline     *extraction.Pipeline
	Progress     *progress.FileStore
	Events       *batch.EventLog
	Orchestrator *batch.Orchestrator
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.Logger.Debug().
		Bool("archive", app.StorageManager != nil).
		Str("progress_file", app.Progress.Path()).
		Msg("Application initialized")

	return app, nil
}

// initStorage opens the result archive when enabled
func (a *App) initStorage() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	return nil
}

// initServices builds providers, the pipeline and the orchestrator
func (a *App) initServices() error {
	cfg := a.Config

	apiKey, err := common.ResolveAPIKey(cfg.Providers.Ninjas.APIKey)
	if err != nil {
		return err
	}

	a.Ninjas = ninjas.NewClient(apiKey,
		ninjas.WithBaseURL(cfg.Providers.Ninjas.BaseURL),
		ninjas.WithTimeout(common.ParseDuration(cfg.Providers.Ninjas.Timeout, 30*time.Second)),
		ninjas.WithRateLimit(common.ParseDuration(cfg.Providers.Ninjas.RateLimit, time.Second)),
		ninjas.WithLogger(a.Logger),
	)

	a.Documents = sec.NewClient(
		sec.WithUserAgent(cfg.Providers.SEC.UserAgent),
		sec.WithTimeout(common.ParseDuration(cfg.Providers.SEC.Timeout, sec.DefaultTimeout)),
		sec.WithRateLimit(common.ParseDuration(cfg.Providers.SEC.RateLimit, sec.DefaultMinInterval)),
		sec.WithCacheTTL(common.ParseDuration(cfg.Providers.SEC.CacheTTL, 0)),
		sec.WithLogger(a.Logger),
	)

	a.Gate = ratelimit.NewGate(a.minInterval(), a.Logger)
	a.Prices = a.priceChain()

	thresholds := a.thresholds()
	a.Pipeline = extraction.NewPipeline(
		a.Prices,
		a.Ninjas,
		a.Documents,
		a.Gate,
		extraction.NewTargetExtractor(thresholds),
		a.Logger,
	)

	a.Progress = progress.NewFileStore(cfg.ProgressPath(), a.Logger)

	events, err := batch.NewEventLog(cfg.LogPath(), a.Logger)
	if err != nil {
		return err
	}
	a.Events = events

	a.Orchestrator = batch.NewOrchestrator(a.Pipeline, a.Progress, a.archive(), a.Events, a.settings(thresholds), a.Logger)
	return nil
}

// priceChain puts EODHD behind API Ninjas when a key is available
func (a *App) priceChain() interfaces.PriceProvider {
	cfg := a.Config.Providers.EODHD
	if cfg.APIKey == "" || common.IsUnresolved(cfg.APIKey) {
		return a.Ninjas
	}

	a.Quotes = eodhd.NewClient(cfg.APIKey,
		eodhd.WithBaseURL(cfg.BaseURL),
		eodhd.WithExchange(cfg.Exchange),
		eodhd.WithTimeout(common.ParseDuration(cfg.Timeout, eodhd.DefaultTimeout)),
		eodhd.WithRateLimit(common.ParseDuration(cfg.RateLimit, eodhd.DefaultMinInterval)),
		eodhd.WithLogger(a.Logger),
	)
	a.Logger.Info().Str("exchange", cfg.Exchange).Msg("EODHD fallback price source enabled")

	return extraction.NewFallbackPrices(a.Gate, a.Logger,
		extraction.PriceSource{Name: "api-ninjas", Provider: a.Ninjas},
		extraction.PriceSource{Name: "eodhd", Provider: a.Quotes},
	)
}

func (a *App) minInterval() time.Duration {
	return common.ParseDuration(a.Config.Batch.MinInterval, ratelimit.DefaultMinInterval)
}

func (a *App) thresholds() extraction.Thresholds {
	x := a.Config.Extraction
	return extraction.Thresholds{
		MinPrice:      x.MinPrice,
		MaxPrice:      x.MaxPrice,
		MinUpside:     x.MinUpside,
		MaxUpside:     x.MaxUpside,
		MinTargets:    x.MinTargets,
		SnippetRadius: x.SnippetRadius,
	}
}

func (a *App) settings(thresholds extraction.Thresholds) batch.Settings {
	b := a.Config.Batch
	return batch.Settings{
		MaxWorkers:          b.MaxWorkers,
		MonthsBack:          b.MonthsBack,
		SaveEvery:           b.SaveEvery,
		ResumeFrom:          b.ResumeFrom,
		MaxTickers:          b.MaxTickers,
		Fresh:               b.Fresh,
		DrainTimeout:        common.ParseDuration(b.DrainTimeout, 30*time.Second),
		MinInterval:         a.minInterval(),
		HighUpsideThreshold: a.Config.Extraction.HighUpsideThreshold,
		OutputDir:           a.Config.Output.Dir,
		Policy: retry.Policy{
			MaxRetries: b.MaxRetries,
			BaseDelay:  common.ParseDuration(b.BaseDelay, retry.DefaultBaseDelay),
		},
		Thresholds: thresholds,
	}
}

// RunBatch loads the ticker list and runs one batch over it
func (a *App) RunBatch(ctx context.Context) (*batch.Summary, error) {
	tickers, err := common.LoadTickers(a.Config.Batch.TickersFile)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers found in %s", a.Config.Batch.TickersFile)
	}

	a.Logger.Info().
		Int("tickers", len(tickers)).
		Str("file", a.Config.Batch.TickersFile).
		Msg("Loaded ticker list")

	summary, err := a.Orchestrator.Run(ctx, tickers)
	if a.Documents != nil {
		a.Logger.Debug().
			Int("cached_documents", a.Documents.CachedDocuments()).
			Msg("Filing document cache after batch")
	}
	return summary, err
}

// ScheduledRun runs a fresh batch; used for cron ticks after the first run
func (a *App) ScheduledRun(ctx context.Context) (*batch.Summary, error) {
	a.Config.Batch.Fresh = true
	a.Config.Batch.ResumeFrom = ""
	a.Orchestrator = batch.NewOrchestrator(a.Pipeline, a.Progress, a.archive(), a.Events, a.settings(a.thresholds()), a.Logger)
	return a.RunBatch(ctx)
}

func (a *App) archive() interfaces.ResultStorage {
	if a.StorageManager == nil {
		return nil
	}
	return a.StorageManager.ResultStorage()
}

// Close releases the event log and the archive
func (a *App) Close() error {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event log")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}
	return nil
}
