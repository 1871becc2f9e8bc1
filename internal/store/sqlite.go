package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/haku/mddecks/internal/util"
)

// SQLite is the local-file Connector implementation. It keeps one open
// transaction at a time: the first statement after Connect or Commit begins
// a new transaction implicitly, and Commit/Rollback end it.
type SQLite struct {
	path string
	db   *sql.DB
	tx   *sql.Tx
}

// NewSQLite creates a connector for the store file at path.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Connect opens the store file and enforces single-writer access.
func (s *SQLite) Connect() error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", s.path))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	util.DebugLog("SQLite connection opened: %s", s.path)
	return nil
}

// Close rolls back any open transaction and releases the connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// begin lazily starts a transaction for the current batch of statements.
func (s *SQLite) begin() (*sql.Tx, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	if s.tx == nil {
		tx, err := s.db.Begin()
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// Execute runs a single statement inside the current transaction.
func (s *SQLite) Execute(query string, args ...interface{}) error {
	tx, err := s.begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("sqlite execute failed: %w", err)
	}
	return nil
}

// ExecuteMany runs the same statement once per parameter row using a
// prepared statement.
func (s *SQLite) ExecuteMany(query string, batch [][]interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("sqlite prepare failed: %w", err)
	}
	defer stmt.Close()

	for _, args := range batch {
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("sqlite batch execute failed: %w", err)
		}
	}
	return nil
}

// Query runs a SELECT inside the current transaction and fetches all rows.
func (s *SQLite) Query(query string, args ...interface{}) ([]Row, error) {
	tx, err := s.begin()
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query failed: %w", err)
	}
	defer rows.Close()

	return ScanRows(rows)
}

// Commit ends the current transaction, making its changes permanent.
func (s *SQLite) Commit() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("sqlite commit failed: %w", err)
	}
	return nil
}

// Rollback discards the current transaction, if any.
func (s *SQLite) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("sqlite rollback failed: %w", err)
	}
	return nil
}

// ScanRows converts a result set into Rows keyed by column name.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := Row{}
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
