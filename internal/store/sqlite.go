package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Steinwealth/UltimaBot/internal/errors"
)

// SQLiteStore implements TradeStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the trade database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Trades opened by the engine, updated in place on close
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		broker_id TEXT NOT NULL,
		side TEXT NOT NULL,
		mode TEXT,
		model_id TEXT,
		strategy_id TEXT,
		entry_price REAL NOT NULL,
		size REAL NOT NULL,
		take_profit REAL,
		stop_loss REAL,
		confidence REAL,
		entry_time DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		balance REAL,
		buying_power REAL,
		margin_used REAL,
		exit_price REAL,
		exit_reason TEXT,
		exit_time DATETIME,
		gain_pct REAL,
		gain_usd REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_broker ON trades(broker_id);
	CREATE INDEX IF NOT EXISTS idx_trades_entry_time ON trades(entry_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertTrade records a newly opened trade.
func (s *SQLiteStore) InsertTrade(ctx context.Context, rec TradeRecord) error {
	status := rec.Status
	if status == "" {
		status = "open"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, broker_id, side, mode, model_id, strategy_id, entry_price, size, take_profit, stop_loss, confidence, entry_time, status, balance, buying_power, margin_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.TradeID, strings.ToUpper(rec.Symbol), rec.BrokerID, rec.Side, rec.Mode, rec.ModelID, rec.StrategyID, rec.EntryPrice, rec.Size, rec.TakeProfit, rec.StopLoss, rec.Confidence, rec.EntryTime.UTC(), status, rec.Balance, rec.BuyingPower, rec.MarginUsed)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabaseError, "failed to insert trade %s: %v", rec.TradeID, err)
	}
	return nil
}

// UpdateTrade writes the close fields of a trade.
func (s *SQLiteStore) UpdateTrade(ctx context.Context, tradeID string, upd TradeUpdate) error {
	var exitTime interface{}
	if !upd.ExitTime.IsZero() {
		exitTime = upd.ExitTime.UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET status = ?, stop_loss = ?, exit_price = ?, exit_reason = ?, exit_time = ?, gain_pct = ?, gain_usd = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, upd.Status, upd.StopLoss, upd.ExitPrice, upd.ExitReason, exitTime, upd.GainPct, upd.GainUSD, tradeID)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabaseError, "failed to update trade %s: %v", tradeID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(errors.ErrDatabaseError, "failed to update trade %s: %v", tradeID, err)
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrTradeNotFound, "store: %s", tradeID)
	}
	return nil
}

// GetTradeHistory returns trades matching filter, newest first.
func (s *SQLiteStore) GetTradeHistory(ctx context.Context, filter TradeFilter) ([]TradeRecord, error) {
	query := `SELECT id, symbol, broker_id, side, mode, model_id, strategy_id, entry_price, size, take_profit, stop_loss, confidence, entry_time, status, balance, buying_power, margin_used, exit_price, exit_reason, exit_time, gain_pct, gain_usd FROM trades WHERE 1=1`
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if filter.BrokerID != "" {
		query += " AND broker_id = ?"
		args = append(args, filter.BrokerID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY entry_time DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabaseError, "failed to query trades: %v", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var (
			r                             TradeRecord
			mode, modelID, strategyID     sql.NullString
			exitReason                    sql.NullString
			tp, sl, conf, balance, bp, mu sql.NullFloat64
			exitPrice, gainPct, gainUSD   sql.NullFloat64
			exitTime                      sql.NullTime
		)
		if err := rows.Scan(&r.TradeID, &r.Symbol, &r.BrokerID, &r.Side, &mode, &modelID, &strategyID,
			&r.EntryPrice, &r.Size, &tp, &sl, &conf, &r.EntryTime, &r.Status, &balance, &bp, &mu,
			&exitPrice, &exitReason, &exitTime, &gainPct, &gainUSD); err != nil {
			return nil, errors.Wrapf(errors.ErrDatabaseError, "failed to scan trade: %v", err)
		}

		r.Mode = mode.String
		r.ModelID = modelID.String
		r.StrategyID = strategyID.String
		r.TakeProfit = tp.Float64
		r.StopLoss = sl.Float64
		r.Confidence = conf.Float64
		r.Balance = balance.Float64
		r.BuyingPower = bp.Float64
		r.MarginUsed = mu.Float64
		r.ExitPrice = exitPrice.Float64
		r.ExitReason = exitReason.String
		r.GainPct = gainPct.Float64
		r.GainUSD = gainUSD.Float64
		if exitTime.Valid {
			r.ExitTime = exitTime.Time
		}
		trades = append(trades, r)
	}

	return trades, rows.Err()
}
