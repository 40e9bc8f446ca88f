package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vegasstrategy/config"
	"vegasstrategy/internal/api"
	"vegasstrategy/internal/auth"
	"vegasstrategy/internal/binance"
	"vegasstrategy/internal/cache"
	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/database"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/logging"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/scheduler"
	"vegasstrategy/internal/secrets"
	"vegasstrategy/internal/strategy"
	"vegasstrategy/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LoggingConfig)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	logger.Info().Msg("configuration loaded")

	secretsClient, err := secrets.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vault client")
	}
	secretsClient.LoadFallback(secrets.ExchangeKeys{
		APIKey:    cfg.BinanceConfig.APIKey,
		SecretKey: cfg.BinanceConfig.SecretKey,
	})

	ctx := context.Background()
	exchangeKeys, err := secretsClient.ReadExchangeKeys(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("no exchange credentials available")
	}

	futuresClient := binance.NewFuturesClient(exchangeKeys.APIKey, exchangeKeys.SecretKey, cfg.BinanceConfig.TestNet)
	rawCandleSource := binance.NewCandleAdapter(futuresClient)

	db, err := database.NewDBFromDSN(cfg.PostgresConfig.DSN, cfg.PostgresConfig.MaxConns, cfg.PostgresConfig.MinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
	}

	repo := database.NewRepository(db)
	persistence := database.NewCoreRepository(repo)
	sweepStore := database.NewSweepSnapshotStore(repo)

	var candleCache execution.CandleCache
	var orderTracker *database.RedisOrderTracker
	if cfg.RedisConfig.Enabled {
		cacheService, err := cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		candleCache = cache.NewCandleCache(cacheService)
		orderTracker = database.NewRedisOrderTracker(cacheService.GetClient(), 60)
		logger.Info().Msg("redis cache and order tracker enabled")
	} else {
		logger.Warn().Msg("redis disabled: running without candle cache or order idempotency tracking")
	}

	candleSource := candleSourceWithCache(rawCandleSource, candleCache)

	var orderAdapter execution.OrderAdapter
	if orderTracker != nil {
		adapter := binance.NewOrderAdapter(futuresClient, orderTracker, 100, 60)
		orderTracker.SetCancelFunc(adapter.CancelFunc())
		orderTracker.StartMonitor()
		defer orderTracker.StopMonitor()
		orderAdapter = adapter
	} else {
		orderAdapter = noopOrderAdapter{}
	}

	var jwtManager *auth.JWTManager
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			logger.Fatal().Msg("auth is enabled but no JWT secret is configured")
		}
		jwtManager = auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
	}

	apiServer := api.NewServer(cfg.ServerConfig, cfg.AuthConfig, logging.Component(logger, "api"), jwtManager, sweepStore)

	p := period.Period(cfg.StrategyConfig.Period)
	sched := scheduler.New(logging.Component(logger, "scheduler"), cfg.SchedulerConfig.ShutdownDrainTimeout, scheduler.StopLeaveOpen)

	jobs := make([]*scheduler.Job, 0, len(cfg.StrategyConfig.Instruments))
	for _, instrument := range cfg.StrategyConfig.Instruments {
		strat, riskCfg := loadStreamConfig(ctx, logger, cfg, persistence, instrument, p)

		engine := execution.NewEngine(strat, riskCfg)
		liveEngine := execution.NewLiveEngine(engine, instrument, p, "vegas", instrument+":"+string(p), orderAdapter)

		jobs = append(jobs, &scheduler.Job{
			Key:    scheduler.StreamKey{Instrument: instrument, Period: p, StrategyType: "vegas"},
			Engine: liveEngine,
			Source: candleSource,
			Offset: 5 * time.Second,
		})
		logger.Info().Str("instrument", instrument).Str("period", string(p)).Msg("live stream registered")
	}

	sched.Run(ctx, jobs)

	if cfg.SweepConfig.Enabled {
		go runConfiguredSweep(ctx, logger, cfg, sweepStore, candleSource, p)
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("status API server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received, draining")

	sched.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("status API shutdown did not complete cleanly")
	}

	logger.Info().Msg("shutdown complete")
}

// loadStreamConfig builds the strategy/risk config for one instrument,
// preferring a persisted tuning config over the operator-supplied overrides
// and package defaults, in that precedence order.
func loadStreamConfig(ctx context.Context, logger zerolog.Logger, cfg *config.Config, persistence *database.CoreRepository, instrument string, p period.Period) (strategy.Config, risk.Config) {
	strat := strategy.DefaultConfig()
	strat.Period = p
	if cfg.StrategyConfig.MinKLineNum > 0 {
		strat.MinKLineNum = cfg.StrategyConfig.MinKLineNum
	}
	if cfg.StrategyConfig.MinTotalWeight > 0 {
		strat.Weights.MinTotalWeight = cfg.StrategyConfig.MinTotalWeight
	}

	riskCfg := risk.DefaultConfig()
	if cfg.RiskConfig.MaxLossPercent > 0 {
		riskCfg.MaxLossPercent = cfg.RiskConfig.MaxLossPercent
	}
	riskCfg.TakeProfitRatio = cfg.RiskConfig.ProfitRatio
	riskCfg.OneKlineDiffTrailingStop = cfg.RiskConfig.OneKlineDiffTrailing
	if cfg.RiskConfig.TrailingArmFactorLong > 0 {
		riskCfg.TrailingArmLongFactor = cfg.RiskConfig.TrailingArmFactorLong
	}
	if cfg.RiskConfig.TrailingArmFactorShort > 0 {
		riskCfg.TrailingArmShortFactor = cfg.RiskConfig.TrailingArmFactorShort
	}

	storedStrat, storedRisk, err := persistence.ReadStrategyConfig(ctx, instrument, p, "vegas")
	if err != nil {
		logger.Warn().Err(err).Str("instrument", instrument).Msg("failed to read persisted strategy config, using defaults")
		return strat, riskCfg
	}
	return storedStrat, storedRisk
}

// candleSourceWithCache wraps a CandleSource's FetchLatest with an optional
// write-through cache; FetchRange always goes directly to the source, since
// only the single latest candle is cached (§6).
func candleSourceWithCache(src execution.CandleSource, c execution.CandleCache) execution.CandleSource {
	if c == nil {
		return src
	}
	return &cachedCandleSource{source: src, cache: c}
}

type cachedCandleSource struct {
	source execution.CandleSource
	cache  execution.CandleCache
}

func (c *cachedCandleSource) FetchRange(ctx context.Context, instrument string, p period.Period, count int, anchorTsMillis *int64) ([]candle.Candle, error) {
	return c.source.FetchRange(ctx, instrument, p, count, anchorTsMillis)
}

func (c *cachedCandleSource) FetchLatest(ctx context.Context, instrument string, p period.Period, freshness execution.FreshnessPolicy) (candle.Candle, bool, error) {
	result, err := c.cache.GetOrFetch(ctx, instrument, p, func(ctx context.Context) (candle.Candle, error) {
		fetched, ok, err := c.source.FetchLatest(ctx, instrument, p, freshness)
		if err != nil {
			return candle.Candle{}, err
		}
		if !ok {
			return candle.Candle{}, fmt.Errorf("candle source had nothing fresh for %s %s", instrument, p)
		}
		return fetched, nil
	})
	if err != nil {
		return candle.Candle{}, false, err
	}
	return result, true, nil
}

var _ execution.CandleSource = (*cachedCandleSource)(nil)

// noopOrderAdapter is used when Redis is disabled and no idempotency
// tracker is available; it places no orders, since the engine must never
// place an order it cannot deduplicate.
type noopOrderAdapter struct{}

func (noopOrderAdapter) ReadyToOrder(ctx context.Context, req execution.OrderRequest) error {
	return nil
}

// runConfiguredSweep runs one resumable parameter sweep per configured
// instrument over its recent history, as an out-of-band operator tool that
// shares the scheduler's candle source but never touches the live engines.
func runConfiguredSweep(
	ctx context.Context,
	logger zerolog.Logger,
	cfg *config.Config,
	store *database.SweepSnapshotStore,
	source execution.CandleSource,
	p period.Period,
) {
	sweepLogger := logging.Component(logger, "sweep")
	driver := sweep.NewDriver(sweepLogger, store, cfg.SweepConfig.SnapshotInterval)

	grid := sweep.Grid{
		MinTotalWeight:     []float64{1.5, 2.0, 2.5},
		RiskRewardMultiple: []float64{1.5, 2.0, 2.5},
		MaxLossPercent:     []float64{0.01, 0.02, 0.03},
	}
	combos := grid.Combinations()
	configHash := grid.Hash()

	baseStrat := strategy.DefaultConfig()
	baseStrat.Period = p
	baseRisk := risk.DefaultConfig()

	for _, instrument := range cfg.StrategyConfig.Instruments {
		series, err := source.FetchRange(ctx, instrument, p, baseStrat.MinKLineNum*4, nil)
		if err != nil {
			sweepLogger.Warn().Err(err).Str("instrument", instrument).Msg("sweep could not fetch history, skipping instrument")
			continue
		}
		if len(series) == 0 {
			continue
		}

		resumeFrom := driver.ResumeIndex(ctx, instrument, p, configHash)
		sweepLogger.Info().Str("instrument", instrument).Int("resume_from", resumeFrom).Int("combinations", len(combos)).Msg("sweep starting")

		outcomes, err := driver.Run(ctx, instrument, p, series, baseStrat, baseRisk, combos, configHash, resumeFrom)
		if err != nil {
			sweepLogger.Warn().Err(err).Str("instrument", instrument).Msg("sweep run ended with error")
			continue
		}
		sweepLogger.Info().Str("instrument", instrument).Int("outcomes", len(outcomes)).Msg("sweep finished")
	}
}
