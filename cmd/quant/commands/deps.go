package commands

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/hmoussa/egx-quant/internal/marketdata"
	"github.com/hmoussa/egx-quant/internal/optimizer"
	"github.com/hmoussa/egx-quant/internal/pipeline"
	"github.com/hmoussa/egx-quant/internal/predictor"
	"github.com/hmoussa/egx-quant/internal/simulation"
	"github.com/hmoussa/egx-quant/internal/store"
	"github.com/hmoussa/egx-quant/internal/voting"
	"github.com/hmoussa/egx-quant/pkg/config"
	"github.com/hmoussa/egx-quant/pkg/database"
	"github.com/hmoussa/egx-quant/pkg/httputil"
	"github.com/hmoussa/egx-quant/pkg/logger"
	"github.com/hmoussa/egx-quant/pkg/redis"
)

// app bundles the shared dependencies every command wires the same way.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	store    *store.PostgresStore
	http     *httputil.Client
	bars     *marketdata.Client
	tickers  *marketdata.TickerSource
	calendar *marketdata.Calendar
}

// initApp loads config and builds the market data stack. The database
// is connected only when the command persists or reads predictions.
func initApp(needDB bool) (*app, error) {
	if envFile != "" {
		_ = godotenv.Overload(envFile)
	}

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. HTTP client with provider rate limit and retries
	httpClient := httputil.New(log).
		WithRateLimit(cfg.Market.RatePerSec).
		WithMaxRetries(cfg.Market.MaxRetries)

	// 4. Redis bar cache (no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "egx")

	// 5. Market data stack
	bars := marketdata.NewClient(cfg, httpClient, cache, log)
	tickers := marketdata.NewTickerSource(cfg, httpClient, log)
	calendar := marketdata.NewCalendar(bars, marketdata.ReferenceTicker)

	a := &app{
		cfg:      cfg,
		log:      log,
		http:     httpClient,
		bars:     bars,
		tickers:  tickers,
		calendar: calendar,
	}

	// 6. Database-backed prediction store
	if needDB {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.store = store.NewPostgresStore(db.Pool)
	}

	return a, nil
}

// close releases the app's connections.
func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// newRunner builds the prediction generation pipeline over the app's
// store with default windows from config.
func (a *app) newRunner(windows predictor.WindowProvider) *pipeline.Runner {
	gbm := predictor.DefaultGBMConfig()
	gbm.Seed = a.cfg.Trading.Seed

	trainer := predictor.NewTrainer(predictor.Config{
		MinTrainRows: a.cfg.Trading.MinTrainRows,
		RSIPeriod:    a.cfg.Trading.RSIPeriod,
		ATRPeriod:    a.cfg.Trading.ATRPeriod,
		GBM:          gbm,
	}, a.log)

	return pipeline.NewRunner(trainer, a.store, windows, a.cfg.Trading.Workers, a.log)
}

// newSweep builds the end-to-end optimization job.
func (a *app) newSweep(windows predictor.WindowProvider) *pipeline.Sweep {
	aggregator := voting.NewAggregator(a.store, a.log)
	opt := optimizer.New(aggregator, simulation.Config{
		StartEquity: a.cfg.Trading.StartEquity,
		BreakerPct:  a.cfg.Trading.CircuitBreakerPct,
	}, a.log)

	return pipeline.NewSweep(a.tickers, a.bars, a.calendar, a.newRunner(windows), opt, a.cfg.Trading, a.log)
}
