package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (and migrates) the journal at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_foreign_keys=ON", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteJournal{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT DEFAULT 'running',
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_chain ON runs(chain_id, started_at DESC);

	CREATE TABLE IF NOT EXISTS deployments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT,
		block_number INTEGER,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_chain ON deployments(chain_id, name);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		tx_hash TEXT,
		from_address TEXT NOT NULL,
		to_address TEXT,
		nonce INTEGER,
		gas_limit INTEGER,
		gas_used INTEGER,
		block_number INTEGER,
		status TEXT NOT NULL,
		error_reason TEXT,
		sent_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_chain ON transactions(chain_id, sent_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(tx_hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run record.
func (s *SQLiteJournal) StartRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, chain_id, account, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Command, run.ChainID, run.Account, run.StartedAt, run.Status)
	return err
}

// CompleteRun marks a run completed, or errored when runErr is non-nil.
func (s *SQLiteJournal) CompleteRun(ctx context.Context, id string, runErr error) error {
	status := RunStatusCompleted
	var msg string
	if runErr != nil {
		status = RunStatusError
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET completed_at = ?, status = ?, error_message = ? WHERE id = ?
	`, time.Now().UTC(), status, nullString(msg), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

const runColumns = `id, command, chain_id, account, started_at, completed_at, status, error_message`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var completedAt sql.NullTime
	var errorMsg sql.NullString
	if err := row.Scan(&run.ID, &run.Command, &run.ChainID, &run.Account, &run.StartedAt,
		&completedAt, &run.Status, &errorMsg); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.ErrorMessage = errorMsg.String
	return &run, nil
}

// GetRun returns a run by id, or nil if it does not exist.
func (s *SQLiteJournal) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs on chainID, newest first.
func (s *SQLiteJournal) ListRuns(ctx context.Context, chainID int64, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+`
		FROM runs WHERE chain_id = ? ORDER BY started_at DESC LIMIT ?`, chainID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RecordDeployment inserts d and sets its ID.
func (s *SQLiteJournal) RecordDeployment(ctx context.Context, d *Deployment) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (run_id, chain_id, name, address, tx_hash, block_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.RunID, d.ChainID, d.Name, d.Address, nullString(d.TxHash), d.BlockNumber, d.CreatedAt)
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

const deploymentColumns = `id, run_id, chain_id, name, address, tx_hash, block_number, created_at`

func scanDeployment(row scanner) (*Deployment, error) {
	var d Deployment
	var txHash sql.NullString
	var block sql.NullInt64
	if err := row.Scan(&d.ID, &d.RunID, &d.ChainID, &d.Name, &d.Address, &txHash, &block, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.TxHash = txHash.String
	d.BlockNumber = uint64(block.Int64)
	return &d, nil
}

// ListDeployments returns all deployments on chainID, newest first.
func (s *SQLiteJournal) ListDeployments(ctx context.Context, chainID int64) ([]Deployment, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+deploymentColumns+`
		FROM deployments WHERE chain_id = ? ORDER BY id DESC`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// LatestDeployment returns the newest deployment named name on chainID, or
// nil if there is none.
func (s *SQLiteJournal) LatestDeployment(ctx context.Context, chainID int64, name string) (*Deployment, error) {
	d, err := scanDeployment(s.db.QueryRowContext(ctx, "SELECT "+deploymentColumns+`
		FROM deployments WHERE chain_id = ? AND name = ? ORDER BY id DESC LIMIT 1`, chainID, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// RecordTx inserts tx and sets its ID.
func (s *SQLiteJournal) RecordTx(ctx context.Context, tx *TxRecord) error {
	if tx.SentAt.IsZero() {
		tx.SentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (run_id, chain_id, name, tx_hash, from_address, to_address, nonce,
			gas_limit, gas_used, block_number, status, error_reason, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.RunID, tx.ChainID, tx.Name, nullString(tx.TxHash), tx.From, nullString(tx.To), tx.Nonce,
		tx.GasLimit, nullInt64(int64(tx.GasUsed)), nullInt64(int64(tx.BlockNumber)),
		tx.Status, nullString(tx.ErrorReason), tx.SentAt)
	if err != nil {
		return err
	}
	tx.ID, err = res.LastInsertId()
	return err
}

const txColumns = `id, run_id, chain_id, name, tx_hash, from_address, to_address, nonce,
	gas_limit, gas_used, block_number, status, error_reason, sent_at`

func scanTx(row scanner) (*TxRecord, error) {
	var tx TxRecord
	var txHash, to, errorReason sql.NullString
	var gasUsed, block sql.NullInt64
	if err := row.Scan(&tx.ID, &tx.RunID, &tx.ChainID, &tx.Name, &txHash, &tx.From, &to, &tx.Nonce,
		&tx.GasLimit, &gasUsed, &block, &tx.Status, &errorReason, &tx.SentAt); err != nil {
		return nil, err
	}
	tx.TxHash = txHash.String
	tx.To = to.String
	tx.ErrorReason = errorReason.String
	tx.GasUsed = uint64(gasUsed.Int64)
	tx.BlockNumber = uint64(block.Int64)
	return &tx, nil
}

// ListTxs returns the most recent transactions on chainID, newest first.
func (s *SQLiteJournal) ListTxs(ctx context.Context, chainID int64, limit int) ([]TxRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+txColumns+`
		FROM transactions WHERE chain_id = ? ORDER BY id DESC LIMIT ?`, chainID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// GetTxByHash returns the transaction with txHash, or nil if unknown.
func (s *SQLiteJournal) GetTxByHash(ctx context.Context, txHash string) (*TxRecord, error) {
	tx, err := scanTx(s.db.QueryRowContext(ctx, "SELECT "+txColumns+`
		FROM transactions WHERE tx_hash = ? ORDER BY id DESC LIMIT 1`, txHash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tx, err
}

// Open returns a SQLite journal at path, or Nop when path is empty.
func Open(path string, logger *slog.Logger) (Journal, error) {
	if path == "" {
		return Nop{}, nil
	}
	j, err := NewSQLiteJournal(path)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Debug("journal opened", slog.String("path", path))
	}
	return j, nil
}

// limitOrAll maps a non-positive limit to SQLite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
