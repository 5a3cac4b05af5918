package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// SQLiteLedger implements the tabular ledger contract over a single
// keyed rows table. Put updates in place when (tbl, key) exists, Delete
// is idempotent, ScanAll returns rows in insertion order so the most
// recent write for a key is the row itself.
type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	l := &SQLiteLedger{db: db}
	if err := l.initSchema(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS ledger_rows (
		tbl        TEXT NOT NULL,
		key        TEXT NOT NULL,
		row        TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (tbl, key)
	);`
	if _, err := l.db.Exec(query); err != nil {
		return fmt.Errorf("failed to init ledger schema: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Get(ctx context.Context, table, key string) (domain.Row, error) {
	query := `SELECT row FROM ledger_rows WHERE tbl = ? AND key = ?`
	var raw string
	err := l.db.QueryRowContext(ctx, query, table, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(raw)
}

func (l *SQLiteLedger) Put(ctx context.Context, table, key string, row domain.Row) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	query := `INSERT INTO ledger_rows (tbl, key, row, updated_at) VALUES (?, ?, ?, ?)
			  ON CONFLICT(tbl, key) DO UPDATE SET row = excluded.row, updated_at = excluded.updated_at`
	_, err = l.db.ExecContext(ctx, query, table, key, string(raw), time.Now().UTC())
	return err
}

func (l *SQLiteLedger) Delete(ctx context.Context, table, key string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM ledger_rows WHERE tbl = ? AND key = ?`, table, key)
	return err
}

func (l *SQLiteLedger) ScanAll(ctx context.Context, table string) ([]domain.Row, error) {
	query := `SELECT row FROM ledger_rows WHERE tbl = ? ORDER BY rowid`
	rows, err := l.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func decodeRow(raw string) (domain.Row, error) {
	var row domain.Row
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return row, nil
}
