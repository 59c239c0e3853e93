package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/metrics"
	"github.com/aristath/folio/internal/modules/valuation"
	"github.com/aristath/folio/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CaptureResult summarizes one recorded run
type CaptureResult struct {
	Timestamp         time.Time          `json:"ts"`
	BySleeve          map[string]float64 `json:"by_sleeve"`
	RunID             string             `json:"run_id"`
	ReportingCurrency string             `json:"reporting_currency"`
	Positions         int                `json:"positions"`
	TotalValue        float64            `json:"total_value"`
}

// Recorder values the portfolio and writes it as one immutable run
type Recorder struct {
	store             Store
	reportingCurrency string
	clock             utils.Clock
	metrics           *metrics.Collector
	log               zerolog.Logger
}

// NewRecorder creates a snapshot recorder
func NewRecorder(store Store, reportingCurrency string, clock utils.Clock, m *metrics.Collector, log zerolog.Logger) *Recorder {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Recorder{
		store:             store,
		reportingCurrency: utils.NormalizeCurrency(reportingCurrency),
		clock:             clock,
		metrics:           m,
		log:               log.With().Str("service", "snapshot_recorder").Logger(),
	}
}

// Capture writes one position snapshot per holding and one portfolio
// snapshot, all or nothing. Valuation reads happen in the same transaction.
func (r *Recorder) Capture(ctx context.Context) (*CaptureResult, error) {
	defer utils.OperationTimer("snapshot_capture", r.log)()

	result := &CaptureResult{
		RunID:             uuid.New().String(),
		Timestamp:         r.clock.Now().UTC(),
		ReportingCurrency: r.reportingCurrency,
	}

	err := r.store.InTransaction(ctx, func(scope Scope) error {
		holdings, err := scope.Holdings.ListHoldings(ctx)
		if err != nil {
			return fmt.Errorf("failed to list holdings: %w", err)
		}

		valuer := valuation.NewValuer(valuation.NewResolver(scope.Prices, scope.Rates, r.reportingCurrency), r.log)
		valuations := valuer.ValueAll(ctx, holdings)

		for _, pv := range valuations {
			if err := scope.Writer.InsertPositionSnapshot(ctx, domain.PositionSnapshot{
				Timestamp:    result.Timestamp,
				RunID:        result.RunID,
				AccountID:    pv.Holding.Position.AccountID,
				InstrumentID: pv.Holding.Instrument.ID,
				Quantity:     pv.Holding.Position.Quantity,
				Price:        pv.PricePerUnit,
				Value:        pv.Value,
			}); err != nil {
				return err
			}
		}

		overview := valuation.Aggregate(valuations, nil, r.reportingCurrency)
		bySleeve, _ := overview.SleeveValues()

		if _, err := scope.Writer.InsertPortfolioSnapshot(ctx, domain.PortfolioSnapshot{
			Timestamp:         result.Timestamp,
			BySleeve:          bySleeve,
			RunID:             result.RunID,
			ReportingCurrency: r.reportingCurrency,
			TotalValue:        overview.TotalValue,
		}); err != nil {
			return err
		}

		result.Positions = len(valuations)
		result.TotalValue = overview.TotalValue
		result.BySleeve = bySleeve
		return nil
	})

	r.metrics.SnapshotCaptured(err == nil)
	if err != nil {
		r.log.Error().Err(err).Str("run_id", result.RunID).Msg("Snapshot capture failed")
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}

	r.log.Info().
		Str("run_id", result.RunID).
		Int("positions", result.Positions).
		Float64("total_value", result.TotalValue).
		Msg("Snapshot captured")

	return result, nil
}
