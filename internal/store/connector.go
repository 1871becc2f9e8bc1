// Package store defines the storage capability contract shared by the local
// SQLite engine and the remote D1 engine, plus the local implementation and
// the relational schema. Callers depend only on the Connector interface.
package store

// Row is one fetched result row keyed by column name.
type Row map[string]interface{}

// Connector is the capability contract every storage backend fulfills.
// The local file engine is transactional; the remote API engine auto-commits
// and implements Commit/Rollback as no-ops.
type Connector interface {
	// Connect establishes the connection. Must be called before any other
	// operation.
	Connect() error

	// Close releases the connection on every exit path. Safe to call after
	// a failed Connect.
	Close() error

	// Execute runs a single statement (DDL or DML) with bound parameters.
	Execute(query string, args ...interface{}) error

	// ExecuteMany runs the same statement once per parameter row. This is
	// the bulk-write path for the buffered card and deck rows.
	ExecuteMany(query string, batch [][]interface{}) error

	// Query runs a SELECT and fetches all result rows.
	Query(query string, args ...interface{}) ([]Row, error)

	// Commit makes all changes since the last commit permanent.
	Commit() error

	// Rollback discards all uncommitted changes.
	Rollback() error
}
