package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RateSync/internal/domain/models"
	pkgch "RateSync/pkg/clickhouse"
	applogger "RateSync/pkg/logger"
)

const ratesTable = "ratesync.historical_rates"

// Schema returns the idempotent DDL for the rates database.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS ratesync`,
		`CREATE TABLE IF NOT EXISTS ratesync.historical_rates (
            date     Date,
            currency LowCardinality(String),
            rate     Float64,
            version  DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(version)
        ORDER BY (currency, date)`,
	}
}

// CHRateStore implements RateStore backed by ClickHouse. The table is a
// ReplacingMergeTree keyed by (currency, date), so re-saving an already
// stored day is harmless; reads collapse duplicates with anyLast.
type CHRateStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRateStore(ch *pkgch.Client) *CHRateStore {
	return &CHRateStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHRateStore) SetLogger(l *applogger.Logger) { s.l = l }

// SaveHistoricalRates persists a remote payload. Date keys must be strict
// YYYY-MM-DD; one malformed key fails the whole save before any write.
func (s *CHRateStore) SaveHistoricalRates(ctx context.Context, rates map[string]map[string]float64) error {
	if len(rates) == 0 {
		return nil
	}
	type row struct {
		date time.Time
		code string
		rate float64
	}
	rows := make([]row, 0, len(rates)*16)
	for dateStr, perCurrency := range rates {
		day, err := models.ParseDay(dateStr)
		if err != nil {
			return err
		}
		for code, rate := range perCurrency {
			normalized, err := models.NormalizeCode(code)
			if err != nil {
				continue
			}
			rows = append(rows, row{date: day.Time(), code: normalized, rate: rate})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "save", Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (date, currency, rate) VALUES (?, ?, ?)", ratesTable))
	if err != nil {
		_ = tx.Rollback()
		return &models.StorageError{Op: "save", Err: err}
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.date, r.code, r.rate); err != nil {
			_ = tx.Rollback()
			return &models.StorageError{Op: "save", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "save", Err: err}
	}

	if s.l != nil {
		s.l.Debug("clickhouse save ok",
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// LoadSeries returns day records for the range, keeping only days where the
// requested currency is present. Each record carries the full per-day map so
// cross-rate consumers do not need a second query.
func (s *CHRateStore) LoadSeries(ctx context.Context, currency string, from, to models.Day) (models.Series, error) {
	all, err := s.LoadAll(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make(models.Series, 0, len(all))
	for _, rec := range all {
		if _, ok := rec.Rates[currency]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// LoadAll returns every stored day record in the range, duplicates collapsed.
func (s *CHRateStore) LoadAll(ctx context.Context, from, to models.Day) (models.Series, error) {
	const q = `
        SELECT date, currency, anyLast(rate)
        FROM ratesync.historical_rates
        WHERE date >= ? AND date <= ?
        GROUP BY date, currency
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, from.Time(), to.Time())
	if err != nil {
		return nil, &models.StorageError{Op: "load", Err: err}
	}
	defer rows.Close()

	var series models.Series
	for rows.Next() {
		var (
			date time.Time
			code string
			rate float64
		)
		if err := rows.Scan(&date, &code, &rate); err != nil {
			return nil, &models.StorageError{Op: "load", Err: err}
		}
		day := models.DayOf(date, time.UTC)
		// rows arrive date-ordered, so the current record is always last
		if n := len(series); n > 0 && series[n-1].Date.Equal(day) {
			series[n-1].Rates[code] = rate
			continue
		}
		series = append(series, models.DayRecord{
			Date:  day,
			Rates: map[string]float64{code: rate},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "load", Err: err}
	}
	return series, nil
}

// EarliestStoredDate returns the oldest stored day, or nil when empty.
func (s *CHRateStore) EarliestStoredDate(ctx context.Context) (*models.Day, error) {
	return s.boundaryDate(ctx, "min")
}

// LatestStoredDate returns the newest stored day, or nil when empty.
func (s *CHRateStore) LatestStoredDate(ctx context.Context) (*models.Day, error) {
	return s.boundaryDate(ctx, "max")
}

func (s *CHRateStore) boundaryDate(ctx context.Context, agg string) (*models.Day, error) {
	q := fmt.Sprintf("SELECT %s(date), count() FROM %s", agg, ratesTable)
	var (
		date  time.Time
		count uint64
	)
	if err := s.db.QueryRowContext(ctx, q).Scan(&date, &count); err != nil {
		return nil, &models.StorageError{Op: "boundary", Err: err}
	}
	if count == 0 {
		return nil, nil
	}
	day := models.DayOf(date, time.UTC)
	return &day, nil
}

// ClearAll drops every stored rate.
func (s *CHRateStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+ratesTable); err != nil {
		return &models.StorageError{Op: "clear", Err: err}
	}
	return nil
}

// Health pings the connection pool.
func (s *CHRateStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close closes the connection pool.
func (s *CHRateStore) Close() error {
	return s.ch.Close()
}
