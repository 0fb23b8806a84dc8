package storage

// sqlite.go — histórico de sweeps.
//
//   - `runs`: una fila por sweep (parámetros de capital, cesta, duración).
//   - `records`: una fila por par (buy, sell) con su posición en el ranking.
//   - `instrument_results`: el Result de cada instrumento para cada par.
//   - `failures`: instrumentos excluidos del agregado y por qué.
//   - Prune automático al arrancar: runs de más de 90 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/rsisweep/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    started_at       DATETIME NOT NULL,
    duration_ms      INTEGER  NOT NULL DEFAULT 0,
    instruments      TEXT     NOT NULL,
    starting_cash    REAL     NOT NULL,
    trade_size       REAL     NOT NULL,
    liquidate_at_end INTEGER  NOT NULL DEFAULT 0,
    record_count     INTEGER  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS records (
    run_id           TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank             INTEGER NOT NULL,
    buy_threshold    REAL    NOT NULL,
    sell_threshold   REAL    NOT NULL,
    aggregate_profit REAL    NOT NULL,
    excluded         TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, rank)
);

CREATE TABLE IF NOT EXISTS instrument_results (
    run_id         TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank           INTEGER NOT NULL,
    symbol         TEXT    NOT NULL,
    final_cash     REAL    NOT NULL,
    total_profit   REAL    NOT NULL,
    buy_count      INTEGER NOT NULL,
    sell_count     INTEGER NOT NULL,
    profit_pct     REAL    NOT NULL,
    open_shares    INTEGER NOT NULL DEFAULT 0,
    open_cost      REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, rank, symbol)
);

CREATE TABLE IF NOT EXISTS failures (
    run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    symbol  TEXT NOT NULL,
    error   TEXT NOT NULL,
    PRIMARY KEY (run_id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

const retentionRuns = 90 * 24 * time.Hour

// ErrNoRuns indica que todavía no hay ningún run guardado.
var ErrNoRuns = errors.New("storage: no runs saved")

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia runs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste el run completo en una sola transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.SweepRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	liquidate := 0
	if run.Params.LiquidateAtEnd {
		liquidate = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, instruments, starting_cash,
		                  trade_size, liquidate_at_end, record_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		strings.Join(run.Instruments, ","), run.Params.StartingCash,
		run.Params.TradeSize, liquidate, len(run.Records),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, rank, buy_threshold, sell_threshold, aggregate_profit, excluded)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare records: %w", err)
	}
	defer recStmt.Close()

	resStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instrument_results (run_id, rank, symbol, final_cash, total_profit,
		                                buy_count, sell_count, profit_pct, open_shares, open_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare results: %w", err)
	}
	defer resStmt.Close()

	for rank, rec := range run.Records {
		if _, err := recStmt.ExecContext(ctx,
			run.ID, rank+1, rec.Pair.Buy, rec.Pair.Sell,
			rec.AggregateProfit, strings.Join(rec.Excluded, ","),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert record %d: %w", rank+1, err)
		}
		for _, ir := range rec.Results {
			r := ir.Result
			if _, err := resStmt.ExecContext(ctx,
				run.ID, rank+1, ir.Symbol, r.FinalCash, r.TotalProfit,
				r.BuyCount, r.SellCount, r.ProfitPercentage, r.OpenShares, r.OpenCost,
			); err != nil {
				return fmt.Errorf("storage.SaveRun: insert result %s: %w", ir.Symbol, err)
			}
		}
	}

	for _, f := range run.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, symbol, error) VALUES (?, ?, ?)`,
			run.ID, f.Symbol, f.Err.Error(),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert failure %s: %w", f.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRecords devuelve los top N records de un run en orden de ranking,
// con sus resultados por instrumento. limit <= 0 devuelve todos.
func (s *SQLiteStorage) GetRecords(ctx context.Context, runID string, limit int) ([]domain.SweepRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: sin límite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, buy_threshold, sell_threshold, aggregate_profit, excluded
		FROM records
		WHERE run_id = ?
		ORDER BY rank
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRecords: query: %w", err)
	}

	var records []domain.SweepRecord
	rankIdx := make(map[int]int)
	for rows.Next() {
		var rec domain.SweepRecord
		var rank int
		var excluded string
		if err := rows.Scan(&rank, &rec.Pair.Buy, &rec.Pair.Sell, &rec.AggregateProfit, &excluded); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.GetRecords: scan record: %w", err)
		}
		if excluded != "" {
			rec.Excluded = strings.Split(excluded, ",")
		}
		rankIdx[rank] = len(records)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.GetRecords: rows: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	res, err := s.db.QueryContext(ctx, `
		SELECT rank, symbol, final_cash, total_profit, buy_count, sell_count,
		       profit_pct, open_shares, open_cost
		FROM instrument_results
		WHERE run_id = ? AND rank <= ?
		ORDER BY rank, rowid`, runID, len(records))
	if err != nil {
		return nil, fmt.Errorf("storage.GetRecords: query results: %w", err)
	}
	defer res.Close()

	for res.Next() {
		var rank int
		var ir domain.InstrumentResult
		r := &ir.Result
		if err := res.Scan(&rank, &ir.Symbol, &r.FinalCash, &r.TotalProfit,
			&r.BuyCount, &r.SellCount, &r.ProfitPercentage, &r.OpenShares, &r.OpenCost,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRecords: scan result: %w", err)
		}
		if i, ok := rankIdx[rank]; ok {
			records[i].Results = append(records[i].Results, ir)
		}
	}
	return records, res.Err()
}

// LatestRunID devuelve el ID del run más reciente.
func (s *SQLiteStorage) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("storage.LatestRunID: %w", err)
	}
	return id, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina runs antiguos; las tablas hijas caen por ON DELETE CASCADE.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}
