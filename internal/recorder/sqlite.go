package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"RegimeSentinel/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while runs are being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			symbol         TEXT,
			interval       TEXT,
			bar_count      INTEGER,
			row_count      INTEGER,
			n_states       INTEGER,
			covariance     TEXT,
			log_likelihood REAL,
			iterations     INTEGER,
			converged      INTEGER,
			buy_states     TEXT,
			sell_states    TEXT,
			initial_cash   REAL,
			final_value    REAL,
			total_return   REAL,
			max_drawdown   REAL,
			outcome        TEXT,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS regime_states (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id             TEXT NOT NULL,
			state              INTEGER,
			count              INTEGER,
			share              REAL,
			mean_return        REAL,
			mean_volatility    REAL,
			mean_volume_change REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_states_run ON regime_states(run_id)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			bar_index INTEGER,
			bar_time  INTEGER,
			side      TEXT,
			state     INTEGER,
			price     REAL,
			cash      REAL,
			position  REAL,
			value     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO runs
		(id, timestamp, symbol, interval, bar_count, row_count, n_states, covariance,
		 log_likelihood, iterations, converged, buy_states, sell_states,
		 initial_cash, final_value, total_return, max_drawdown, outcome, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.Unix(), run.Symbol, run.Interval, run.Bars, run.Rows, run.States, run.Covariance,
		run.LogLikelihood, run.Iterations, run.Converged, run.BuyStates, run.SellStates,
		run.InitialCash, run.FinalValue, run.TotalReturn, run.MaxDrawdown, run.Outcome, run.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordStates(runID string, summaries []model.StateSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if _, err := tx.Exec(`INSERT INTO regime_states
			(run_id, state, count, share, mean_return, mean_volatility, mean_volume_change)
			VALUES (?,?,?,?,?,?,?)`,
			runID, s.State, s.Count, s.Share, s.MeanReturn, s.MeanVolatility, s.MeanVolumeChange,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordTrades(runID string, trades []model.TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	for _, t := range trades {
		if _, err := tx.Exec(`INSERT INTO trades
			(run_id, bar_index, bar_time, side, state, price, cash, position, value)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			runID, t.Index, t.Time.Unix(), string(t.Side), t.State, t.Price, t.Cash, t.Position, t.Value,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentRuns returns the latest runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := r.db.Query(`SELECT id, timestamp, symbol, interval, bar_count, row_count, n_states, covariance,
		log_likelihood, iterations, converged, buy_states, sell_states,
		initial_cash, final_value, total_return, max_drawdown, outcome, error
		FROM runs ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		var ts int64
		if err := rows.Scan(&run.ID, &ts, &run.Symbol, &run.Interval, &run.Bars, &run.Rows, &run.States, &run.Covariance,
			&run.LogLikelihood, &run.Iterations, &run.Converged, &run.BuyStates, &run.SellStates,
			&run.InitialCash, &run.FinalValue, &run.TotalReturn, &run.MaxDrawdown, &run.Outcome, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(ts, 0)
		out = append(out, run)
	}
	return out, rows.Err()
}

// CountTrades returns the number of trades stored for a run.
func (r *SQLiteRecorder) CountTrades(runID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
