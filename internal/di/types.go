// Package di wires the application's components together.
package di

import (
	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/coingecko"
	"github.com/aristath/folio/internal/clients/ecb"
	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/metrics"
	"github.com/aristath/folio/internal/modules/allocation"
	"github.com/aristath/folio/internal/modules/cleanup"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/rebalancing"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/modules/valuation"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// Container holds every long-lived component.
// It is built by Wire and handed to the server.
type Container struct {
	DB *database.DB

	Clock    utils.Clock
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	// Repositories
	PortfolioRepo  *portfolio.Repository
	MarketDataRepo *marketdata.Repository
	AllocationRepo *allocation.Repository
	SnapshotRepo   *snapshots.Repository

	// Clients
	QuoteCache      *clientdata.Cache[yahoo.Quote]
	ECBClient       *ecb.Client
	CoinGeckoClient *coingecko.Client
	YahooClient     *yahoo.Client

	// Services
	Importer          *portfolio.Importer
	Refresher         *marketdata.Refresher
	AllocationService *allocation.Service
	ValuationService  *valuation.Service
	Recorder          *snapshots.Recorder
	HistoryReader     *snapshots.HistoryReader
	RebalanceService  *rebalancing.Service
	BackupService     *reliability.BackupService // nil when backups are disabled

	Scheduler *scheduler.Scheduler
	Jobs      *JobInstances
}

// JobInstances holds the scheduled jobs so they can also be run on demand
type JobInstances struct {
	PriceRefresh *marketdata.RefreshJob
	EODSnapshot  *snapshots.CaptureJob
	CacheCleanup *clientdata.CleanupJob
	Maintenance  *reliability.MaintenanceJob
	Cleanup      *cleanup.ObservationCleanupJob
	Backup       *reliability.BackupJob // nil when backups are disabled
}

// Close releases the database
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
