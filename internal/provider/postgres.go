package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/qualmom/internal/contracts"
)

// Postgres reads point-in-time market data from the market schema.
// Every query is bounded by the requested as-of date.
// ⭐ SSOT: DB 기반 시장 데이터 조회는 여기서만
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new Postgres provider
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Universe returns the latest membership effective on or before date
func (p *Postgres) Universe(ctx context.Context, date time.Time) ([]contracts.Security, error) {
	query := `
		SELECT security
		FROM market.universe_members
		WHERE as_of = (
			SELECT MAX(as_of) FROM market.universe_members WHERE as_of <= $1
		)
		ORDER BY ordinal ASC, security ASC
	`

	rows, err := p.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	var securities []contracts.Security
	for rows.Next() {
		var sec string
		if err := rows.Scan(&sec); err != nil {
			return nil, fmt.Errorf("scan universe: %w", err)
		}
		securities = append(securities, contracts.Security(sec))
	}
	return securities, rows.Err()
}

// Factor returns the latest published value on or before date. No row or a
// NULL value is Missing, not an error.
func (p *Postgres) Factor(ctx context.Context, sec contracts.Security, name contracts.FactorName, date time.Time) (contracts.FactorValue, error) {
	query := `
		SELECT value
		FROM market.fundamentals
		WHERE security = $1 AND factor = $2 AND as_of <= $3
		ORDER BY as_of DESC
		LIMIT 1
	`

	var value *float64
	err := p.pool.QueryRow(ctx, query, string(sec), string(name), date).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.Missing(), nil
	}
	if err != nil {
		return contracts.Missing(), fmt.Errorf("query factor %s/%s: %w", sec, name, err)
	}
	if value == nil {
		return contracts.Missing(), nil
	}
	return contracts.Present(*value), nil
}

// Price returns the close on or before date
func (p *Postgres) Price(ctx context.Context, sec contracts.Security, date time.Time) (float64, error) {
	query := `
		SELECT close
		FROM market.daily_closes
		WHERE security = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var close float64
	err := p.pool.QueryRow(ctx, query, string(sec), date).Scan(&close)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("price %s as of %s: %w", sec, date.Format(time.DateOnly), ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query price %s: %w", sec, err)
	}
	return close, nil
}

// Closes returns up to n closes ending on or before end, oldest first
func (p *Postgres) Closes(ctx context.Context, sec contracts.Security, end time.Time, n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT close FROM (
			SELECT trade_date, close
			FROM market.daily_closes
			WHERE security = $1 AND trade_date <= $2
			ORDER BY trade_date DESC
			LIMIT $3
		) recent
		ORDER BY trade_date ASC
	`

	rows, err := p.pool.Query(ctx, query, string(sec), end, n)
	if err != nil {
		return nil, fmt.Errorf("query closes %s: %w", sec, err)
	}
	defer rows.Close()

	closes := make([]float64, 0, n)
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan closes %s: %w", sec, err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// SaveUniverse replaces the membership effective on asOf
func (p *Postgres) SaveUniverse(ctx context.Context, asOf time.Time, securities []contracts.Security) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM market.universe_members WHERE as_of = $1`, asOf)
	for i, sec := range securities {
		batch.Queue(`INSERT INTO market.universe_members (as_of, security, ordinal) VALUES ($1, $2, $3)`,
			asOf, string(sec), i)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save universe: %w", err)
	}
	return nil
}

// SaveFactor upserts one fundamental observation
func (p *Postgres) SaveFactor(ctx context.Context, sec contracts.Security, name contracts.FactorName, asOf time.Time, value contracts.FactorValue) error {
	var v *float64
	if value.Valid {
		v = &value.Value
	}

	query := `
		INSERT INTO market.fundamentals (security, factor, as_of, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (security, factor, as_of) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := p.pool.Exec(ctx, query, string(sec), string(name), asOf, v); err != nil {
		return fmt.Errorf("save factor %s/%s: %w", sec, name, err)
	}
	return nil
}

// SaveCloses bulk-loads daily closes with COPY
func (p *Postgres) SaveCloses(ctx context.Context, sec contracts.Security, dates []time.Time, closes []float64) error {
	if len(dates) != len(closes) {
		return fmt.Errorf("save closes %s: %d dates vs %d closes", sec, len(dates), len(closes))
	}

	rows := make([][]interface{}, len(dates))
	for i := range dates {
		rows[i] = []interface{}{string(sec), dates[i], closes[i]}
	}

	_, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"market", "daily_closes"},
		[]string{"security", "trade_date", "close"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy closes %s: %w", sec, err)
	}
	return nil
}
