package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bollmaker/internal/application/port"
)

// Repo 基于 sqlite 的持仓/成交存储。单连接，写入方串行。
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS positions (
  symbol TEXT PRIMARY KEY,
  size REAL NOT NULL,
  cost REAL NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  price REAL NOT NULL,
  quantity REAL NOT NULL,
  executed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_executed ON trades(executed_at);
`)
	return err
}

// GetPosition 读取持仓；不存在视为零持仓。
func (r *Repo) GetPosition(ctx context.Context, symbol string) (size, cost float64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT size, cost FROM positions WHERE symbol=?`, symbol).
		Scan(&size, &cost)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	return size, cost, err
}

func (r *Repo) UpdatePosition(ctx context.Context, symbol string, size, cost float64, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(symbol, size, cost, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		size=excluded.size, cost=excluded.cost, updated_at=excluded.updated_at
	`, symbol, size, cost, ts.UnixMilli())
	return err
}

func (r *Repo) AddTrade(ctx context.Context, symbol, side string, price, quantity float64, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades(symbol, side, price, quantity, executed_at)
		VALUES(?, ?, ?, ?, ?)
	`, symbol, side, price, quantity, ts.UnixMilli())
	return err
}

func (r *Repo) RecentTrades(ctx context.Context, symbol string, limit int) ([]port.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, side, price, quantity, executed_at
		FROM trades WHERE symbol=? ORDER BY executed_at DESC LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []port.Trade
	for rows.Next() {
		var t port.Trade
		var ts int64
		if err := rows.Scan(&t.Symbol, &t.Side, &t.Price, &t.Quantity, &ts); err != nil {
			return nil, err
		}
		t.ExecutedAt = time.UnixMilli(ts)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *Repo) PruneTrades(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE executed_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ port.PositionStore = (*Repo)(nil)
