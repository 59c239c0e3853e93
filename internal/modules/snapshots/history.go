package snapshots

import (
	"context"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MaxSMAPeriod bounds the moving-average window accepted from callers
const MaxSMAPeriod = 365

// HistoryPoint is one recorded portfolio total
type HistoryPoint struct {
	Timestamp  time.Time `json:"ts"`
	TotalValue float64   `json:"total_value"`
}

// Summary describes a history series
type Summary struct {
	Count         int     `json:"count"`
	First         float64 `json:"first"`
	Last          float64 `json:"last"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Mean          float64 `json:"mean"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Series is the history plus derived overlays. SMA entries are nil until
// the window is full.
type Series struct {
	Points    []HistoryPoint `json:"points"`
	SMA       []*float64     `json:"sma,omitempty"`
	SMAPeriod int            `json:"sma_period,omitempty"`
	Summary   Summary        `json:"summary"`
}

// SnapshotLister lists portfolio snapshots in time order
type SnapshotLister interface {
	ListPortfolioSnapshots(ctx context.Context) ([]domain.PortfolioSnapshot, error)
}

// HistoryReader projects stored portfolio snapshots into a time series
type HistoryReader struct {
	snapshots SnapshotLister
}

// NewHistoryReader creates a history reader
func NewHistoryReader(snapshots SnapshotLister) *HistoryReader {
	return &HistoryReader{snapshots: snapshots}
}

// History returns one point per portfolio snapshot, oldest first
func (h *HistoryReader) History(ctx context.Context) ([]HistoryPoint, error) {
	snapshots, err := h.snapshots.ListPortfolioSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]HistoryPoint, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, HistoryPoint{Timestamp: s.Timestamp, TotalValue: s.TotalValue})
	}
	return points, nil
}

// Series returns the history with summary statistics and, when smaPeriod
// is at least 2, a simple moving average of the totals.
func (h *HistoryReader) Series(ctx context.Context, smaPeriod int) (*Series, error) {
	points, err := h.History(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.TotalValue
	}

	series := &Series{
		Points:  points,
		Summary: summarize(values),
	}

	if smaPeriod >= 2 {
		series.SMAPeriod = smaPeriod
		series.SMA = movingAverage(values, smaPeriod)
	}

	return series, nil
}

func movingAverage(values []float64, period int) []*float64 {
	out := make([]*float64, len(values))
	if len(values) < period {
		return out
	}

	sma := talib.Sma(values, period)
	for i := period - 1; i < len(sma) && i < len(out); i++ {
		v := sma[i]
		out[i] = &v
	}
	return out
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	s := Summary{
		Count: len(values),
		First: values[0],
		Last:  values[len(values)-1],
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Mean:  stat.Mean(values, nil),
	}
	s.Change = s.Last - s.First
	if s.First > 0 {
		s.ChangePercent = s.Change / s.First * 100
	}
	return s
}
