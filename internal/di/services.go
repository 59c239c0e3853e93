package di

import (
	"context"
	"fmt"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/coingecko"
	"github.com/aristath/folio/internal/clients/ecb"
	"github.com/aristath/folio/internal/clients/upstream"
	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/metrics"
	"github.com/aristath/folio/internal/modules/allocation"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/rebalancing"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/modules/valuation"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// CoinGecko's public tier allows roughly 10-30 calls a minute
const coinGeckoRPS = 0.5

// InitializeServices creates metrics, upstream clients and services.
// Repositories must already be initialized.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.PortfolioRepo == nil {
		return fmt.Errorf("repositories are not initialized")
	}

	if container.Clock == nil {
		container.Clock = utils.SystemClock{}
	}
	clock := container.Clock

	if container.Registry == nil {
		container.Registry = prometheus.NewRegistry()
		container.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	container.Metrics = metrics.New(container.Registry)

	initializeClients(container, cfg, log)

	base := cfg.BaseCurrency

	container.Importer = portfolio.NewImporter(container.DB.Conn(), clock, log)

	container.Refresher = marketdata.NewRefresher(
		container.PortfolioRepo,
		container.MarketDataRepo,
		container.ECBClient,
		container.CoinGeckoClient,
		container.YahooClient,
		base,
		clock,
		container.Metrics,
		log,
	)

	container.AllocationService = allocation.NewService(container.AllocationRepo, base, clock, log)

	container.ValuationService = valuation.NewService(
		container.PortfolioRepo,
		container.MarketDataRepo,
		container.MarketDataRepo,
		container.AllocationRepo,
		base,
		container.Metrics,
		log,
	)

	container.Recorder = snapshots.NewRecorder(
		snapshots.NewSQLStore(container.DB.Conn(), log),
		base,
		clock,
		container.Metrics,
		log,
	)
	container.HistoryReader = snapshots.NewHistoryReader(container.SnapshotRepo)

	container.RebalanceService = rebalancing.NewService(container.ValuationService, container.AllocationRepo, log)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(context.Background(), reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.DB, store, clock, log)
	}

	log.Debug().Msg("Services initialized")
	return nil
}

// initializeClients builds one upstream transport per source so each has
// its own rate limit and circuit breaker
func initializeClients(container *Container, cfg *config.Config, log zerolog.Logger) {
	timeout := cfg.Sources.HTTPTimeout

	ecbUpstream := upstream.New(upstream.Config{Name: "ecb", Timeout: timeout}, container.Metrics, log)
	container.ECBClient = ecb.NewClient(cfg.Sources.ECBURL, ecbUpstream, log)

	geckoUpstream := upstream.New(upstream.Config{
		Name:    "coingecko",
		Timeout: timeout,
		RPS:     coinGeckoRPS,
		Burst:   2,
	}, container.Metrics, log)
	container.CoinGeckoClient = coingecko.NewClient(cfg.Sources.CoinGeckoBase, geckoUpstream, log)

	yahooUpstream := upstream.New(upstream.Config{Name: "yahoo", Timeout: timeout}, container.Metrics, log)
	container.QuoteCache = clientdata.NewCache[yahoo.Quote](cfg.Sources.QuoteCacheTTL, container.Clock)
	container.YahooClient = yahoo.NewClient(cfg.Sources.YahooBase, yahooUpstream, container.QuoteCache, log)
}
