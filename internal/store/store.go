// Package store persists the position book in an embedded SQLite
// database. The schema migrates on open, so a fresh path is immediately
// usable and the CLI never needs a setup step.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/contactkeval/trading-assistant/internal/logger"
	"github.com/contactkeval/trading-assistant/internal/portfolio"
	"github.com/contactkeval/trading-assistant/internal/pricing"
)

const storeDateLayout = "2006-01-02"

// Store wraps the SQLite handle. A single open connection keeps writes
// serialized, which is all a personal position book needs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debugf("event=store_open path=%s", path)
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS positions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  kind TEXT NOT NULL,
  quantity REAL NOT NULL,
  entry_price TEXT NOT NULL,
  multiplier REAL NOT NULL DEFAULT 0,
  strike REAL,
  expiry TEXT,
  opt_kind TEXT,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
`)
	return err
}

// Insert adds a position and returns its row id. Entry prices are stored
// as decimal text so nothing is lost to float rounding.
func (s *Store) Insert(ctx context.Context, p portfolio.Position) (int64, error) {
	now := time.Now().UnixMilli()

	var strike sql.NullFloat64
	var expiry, optKind sql.NullString
	if p.Contract != nil {
		strike = sql.NullFloat64{Float64: p.Contract.Strike, Valid: true}
		expiry = sql.NullString{String: p.Contract.Expiry.UTC().Format(storeDateLayout), Valid: true}
		optKind = sql.NullString{String: string(p.Contract.OptKind), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO positions(symbol, kind, quantity, entry_price, multiplier, strike, expiry, opt_kind, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Symbol, string(p.Kind), p.Quantity, p.EntryPrice.String(), p.Multiplier, strike, expiry, optKind, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateQuantity re-marks an existing row's size and entry price.
func (s *Store) UpdateQuantity(ctx context.Context, id int64, quantity float64, entryPrice decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET quantity=?, entry_price=?, updated_at=? WHERE id=?
	`, quantity, entryPrice.String(), time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a position by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns the whole book ordered by symbol, as the read-only
// snapshot the analytics run against.
func (s *Store) List(ctx context.Context) ([]portfolio.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, kind, quantity, entry_price, multiplier, strike, expiry, opt_kind
		FROM positions ORDER BY symbol, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portfolio.Position
	for rows.Next() {
		var (
			p       portfolio.Position
			kind    string
			price   string
			strike  sql.NullFloat64
			expiry  sql.NullString
			optKind sql.NullString
		)
		if err := rows.Scan(&p.Symbol, &kind, &p.Quantity, &price, &p.Multiplier, &strike, &expiry, &optKind); err != nil {
			return nil, err
		}

		p.Kind = portfolio.PositionKind(kind)
		if p.EntryPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("position %s: bad entry price %q: %w", p.Symbol, price, err)
		}

		if strike.Valid {
			exp, err := time.Parse(storeDateLayout, expiry.String)
			if err != nil {
				return nil, fmt.Errorf("position %s: bad expiry %q: %w", p.Symbol, expiry.String, err)
			}
			p.Contract = &portfolio.OptionTerms{
				Strike:  strike.Float64,
				Expiry:  exp,
				OptKind: pricing.OptionKind(optKind.String),
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
