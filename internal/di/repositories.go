package di

import (
	"fmt"

	"github.com/aristath/folio/internal/modules/allocation"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories bound to the database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database is not initialized")
	}

	conn := container.DB.Conn()

	container.PortfolioRepo = portfolio.NewRepository(conn, log)
	container.MarketDataRepo = marketdata.NewRepository(conn, log)
	container.AllocationRepo = allocation.NewRepository(conn, log)
	container.SnapshotRepo = snapshots.NewRepository(conn, log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
