package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ImportResult summarizes a holdings import
type ImportResult struct {
	Accounts int `json:"accounts"`
	Rows     int `json:"rows"`
	Upserted int `json:"upserted"`
	Removed  int `json:"removed"`
}

// NAVResult summarizes a NAV import
type NAVResult struct {
	Prices  int `json:"prices"`
	Skipped int `json:"skipped"`
}

// Importer ingests holdings and fund NAV exports
type Importer struct {
	db    *sql.DB
	clock utils.Clock
	log   zerolog.Logger
}

// NewImporter creates a new importer
func NewImporter(db *sql.DB, clock utils.Clock, log zerolog.Logger) *Importer {
	return &Importer{
		db:    db,
		clock: clock,
		log:   log.With().Str("service", "portfolio_importer").Logger(),
	}
}

type holdingRow struct {
	instrument domain.Instrument
	quantity   decimal.Decimal
	costBasis  decimal.Decimal
	entryTotal decimal.Decimal
}

type accountRows struct {
	name     string
	currency string
	seen     map[string]bool
	order    []string
	open     map[string]holdingRow
}

// ImportHoldings replaces the positions of every account named in the CSV.
// Accounts absent from the file are untouched. Within a named account, any
// position not listed with a positive quantity is removed. The whole import
// is one transaction.
//
// Columns: account, name, isin_or_symbol, asset_class, currency, quantity,
// book_cost (per unit), initial (total paid), instrument_type.
func (i *Importer) ImportHoldings(ctx context.Context, src io.Reader) (*ImportResult, error) {
	defer utils.OperationTimer("import_holdings", i.log)()

	records, err := readRecords(src)
	if err != nil {
		return nil, err
	}

	var accounts []*accountRows
	byName := make(map[string]*accountRows)

	for _, rec := range records {
		accountName := rec.get("account")
		if accountName == "" {
			continue
		}

		currency := strings.ToUpper(rec.get("currency"))
		if currency == "" {
			currency = "EUR"
		}

		acc, ok := byName[accountName]
		if !ok {
			acc = &accountRows{
				name:     accountName,
				currency: currency,
				seen:     make(map[string]bool),
				open:     make(map[string]holdingRow),
			}
			byName[accountName] = acc
			accounts = append(accounts, acc)
		}

		row := parseHoldingRow(rec, currency)
		code := row.instrument.Code
		if code == "" {
			continue
		}
		if !row.quantity.IsPositive() {
			delete(acc.open, code)
			continue
		}
		if !acc.seen[code] {
			acc.seen[code] = true
			acc.order = append(acc.order, code)
		}
		acc.open[code] = row
	}

	result := &ImportResult{Accounts: len(accounts), Rows: len(records)}
	now := i.clock.Now()

	err = database.WithTransactionContext(ctx, i.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx, i.log)

		for _, acc := range accounts {
			account, err := repo.GetAccountByName(ctx, acc.name)
			if err != nil {
				return err
			}
			if account == nil {
				account, err = repo.CreateAccount(ctx, domain.Account{
					Name:      acc.name,
					Currency:  acc.currency,
					CreatedAt: now,
				})
				if err != nil {
					return err
				}
			}

			kept := make(map[int64]bool)
			for _, code := range acc.order {
				row, ok := acc.open[code]
				if !ok {
					continue
				}

				instID, err := repo.UpsertInstrument(ctx, row.instrument)
				if err != nil {
					return err
				}

				if err := repo.UpsertPosition(ctx, domain.Position{
					AccountID:    account.ID,
					InstrumentID: instID,
					Quantity:     row.quantity.InexactFloat64(),
					CostBasis:    row.costBasis.InexactFloat64(),
					EntryTotal:   row.entryTotal.InexactFloat64(),
					UpdatedAt:    now,
				}); err != nil {
					return err
				}
				kept[instID] = true
				result.Upserted++
			}

			existing, err := repo.ListAccountHoldings(ctx, account.ID)
			if err != nil {
				return err
			}
			for _, h := range existing {
				if kept[h.Position.InstrumentID] {
					continue
				}
				if err := repo.DeletePosition(ctx, account.ID, h.Position.InstrumentID); err != nil {
					return err
				}
				result.Removed++
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("holdings import failed: %w", err)
	}

	i.log.Info().
		Int("accounts", result.Accounts).
		Int("upserted", result.Upserted).
		Int("removed", result.Removed).
		Msg("Holdings imported")

	return result, nil
}

func parseHoldingRow(rec csvRecord, currency string) holdingRow {
	name := rec.get("name")
	class := domain.NormalizeAssetClass(rec.get("asset_class"))
	code := rec.get("isin_or_symbol")
	if code == "" && class == domain.AssetClassCash {
		code = "CASH:" + currency
	}

	instrumentType := rec.get("instrument_type")
	if instrumentType == "" {
		instrumentType = "Other"
	}

	qty := parseAmount(rec.get("quantity"))
	avg := parseAmount(rec.get("book_cost"))
	total := parseAmount(rec.get("initial"))

	if qty.IsPositive() {
		if !avg.IsPositive() && total.IsPositive() {
			avg = total.Div(qty)
		}
		if !total.IsPositive() && avg.IsPositive() {
			total = avg.Mul(qty)
		}
	}

	return holdingRow{
		instrument: domain.Instrument{
			Code:           code,
			Name:           name,
			AssetClass:     string(class),
			Currency:       currency,
			InstrumentType: instrumentType,
		},
		quantity:   qty,
		costBasis:  avg,
		entryTotal: total,
	}
}

// ImportNAV records a per-unit price for every fund row with a positive NAV.
// The NAV column is the total value of the holding; it is divided by the
// held quantity when a matching open position exists. Unknown funds are
// created as Bonds instruments.
//
// Columns: date, isin_or_symbol, nav, currency, name.
func (i *Importer) ImportNAV(ctx context.Context, src io.Reader) (*NAVResult, error) {
	defer utils.OperationTimer("import_nav", i.log)()

	records, err := readRecords(src)
	if err != nil {
		return nil, err
	}

	result := &NAVResult{}
	now := i.clock.Now()

	err = database.WithTransactionContext(ctx, i.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx, i.log)
		prices := marketdata.NewRepository(tx, i.log)

		for _, rec := range records {
			code := rec.get("isin_or_symbol")
			name := rec.get("name")
			if code == "" && name != "" {
				code = "FUND:" + strings.ReplaceAll(name, " ", "_")
			}

			nav := parseAmount(rec.get("nav"))
			if code == "" || !nav.IsPositive() {
				result.Skipped++
				continue
			}

			currency := strings.ToUpper(rec.get("currency"))
			if currency == "" {
				currency = "EUR"
			}

			inst, err := repo.GetInstrumentByCode(ctx, code)
			if err != nil {
				return err
			}
			var instID int64
			if inst != nil {
				instID = inst.ID
			} else {
				instID, err = repo.UpsertInstrument(ctx, domain.Instrument{
					Code:       code,
					Name:       name,
					AssetClass: string(domain.AssetClassBonds),
					Currency:   currency,
				})
				if err != nil {
					return err
				}
			}

			perUnit := nav
			qty, open, err := repo.FindOpenQuantity(ctx, code, name)
			if err != nil {
				return err
			}
			if open {
				perUnit = nav.Div(decimal.NewFromFloat(qty))
			}

			if err := prices.AppendPrice(ctx, domain.PriceObservation{
				InstrumentID: instID,
				Price:        perUnit.InexactFloat64(),
				Timestamp:    now,
			}); err != nil {
				return err
			}
			result.Prices++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("nav import failed: %w", err)
	}

	i.log.Info().Int("prices", result.Prices).Int("skipped", result.Skipped).Msg("NAV imported")
	return result, nil
}
