package d1

import (
	"context"
	"fmt"

	"github.com/haku/mddecks/internal/store"
	"github.com/haku/mddecks/internal/util"
)

// Connector adapts the D1 API to the store.Connector contract so the remote
// database can be driven by the same code as the local one. Every request is
// auto-committed by the API, so Commit and Rollback are no-ops.
type Connector struct {
	client     *Client
	ctx        context.Context
	databaseID string
}

// NewConnector wraps an API client for the given database UUID.
func NewConnector(ctx context.Context, client *Client, databaseID string) *Connector {
	return &Connector{client: client, ctx: ctx, databaseID: databaseID}
}

// Connect verifies the credentials and database id with a trivial query.
func (c *Connector) Connect() error {
	if _, err := c.client.Query(c.ctx, c.databaseID, "SELECT 1", nil); err != nil {
		return fmt.Errorf("D1 connection check failed: %w", err)
	}
	util.DebugLog("D1 connector ready for database %s", c.databaseID)
	return nil
}

// Close is a no-op; the client holds no persistent connection.
func (c *Connector) Close() error { return nil }

// Execute runs a single statement. Statements without parameters may contain
// multiple semicolon-separated commands.
func (c *Connector) Execute(query string, args ...interface{}) error {
	_, err := c.client.Query(c.ctx, c.databaseID, query, args)
	return err
}

// ExecuteMany runs the statement once per parameter row. The API cannot
// batch parameterized statements, so each row is a separate request.
func (c *Connector) ExecuteMany(query string, batch [][]interface{}) error {
	if len(batch) == 0 {
		return nil
	}
	util.DebugLog("Executing %d D1 statements individually", len(batch))
	for _, args := range batch {
		if _, err := c.client.Query(c.ctx, c.databaseID, query, args); err != nil {
			return fmt.Errorf("D1 batch execution failed: %w", err)
		}
	}
	return nil
}

// Query runs a SELECT and returns all rows of the first result.
func (c *Connector) Query(query string, args ...interface{}) ([]store.Row, error) {
	results, err := c.client.Query(c.ctx, c.databaseID, query, args)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	rows := make([]store.Row, 0, len(results[0].Results))
	for _, r := range results[0].Results {
		rows = append(rows, store.Row(r))
	}
	return rows, nil
}

// Commit is a no-op; every API request auto-commits.
func (c *Connector) Commit() error { return nil }

// Rollback is a no-op; the API has no multi-request transactions.
func (c *Connector) Rollback() error { return nil }
