package d1

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/haku/mddecks/internal/store"
	"github.com/haku/mddecks/internal/util"
)

// pollInterval is the fixed delay between import status polls.
var pollInterval = 2 * time.Second

// Publisher pushes a portable SQL dump into a named D1 database: locate the
// database, drop its user tables, then run the upload/ingest/poll import
// protocol. The target database itself is never deleted, so external
// bindings survive a publish.
type Publisher struct {
	client       *Client
	databaseName string
}

// NewPublisher creates a publisher targeting the named database.
func NewPublisher(client *Client, databaseName string) *Publisher {
	return &Publisher{client: client, databaseName: databaseName}
}

// Publish imports the dump file at dumpPath. The dump file is removed on
// every exit path, success or failure, because it may contain a large
// snapshot that must not go stale on disk.
func (p *Publisher) Publish(ctx context.Context, dumpPath string) error {
	defer func() {
		if err := os.Remove(dumpPath); err == nil {
			util.DebugLog("Removed temporary dump file %s", dumpPath)
		}
	}()

	script, err := os.ReadFile(dumpPath)
	if err != nil {
		return fmt.Errorf("failed to read dump file: %w", err)
	}

	db, err := p.client.FindDatabaseByName(ctx, p.databaseName)
	if err != nil {
		return err
	}

	if err := p.clearTables(ctx, db.UUID); err != nil {
		return err
	}

	return p.importScript(ctx, db.UUID, script)
}

// clearTables drops every user table so the import starts from an empty
// database. Internal tables (sqlite_* and any underscore-prefixed name) are
// left alone. The remote store is driven through the same Connector contract
// as the local one. Listing and dropping are two separate API calls, so a
// table created in between would survive; the target is operator-provisioned
// and has no concurrent writers during a publish.
func (p *Publisher) clearTables(ctx context.Context, databaseID string) error {
	util.InfoLog("Clearing existing tables from D1 database")

	var conn store.Connector = NewConnector(ctx, p.client, databaseID)
	if err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Close()

	const listSQL = "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '\\_%' ESCAPE '\\'"
	rows, err := conn.Query(listSQL)
	if err != nil {
		return fmt.Errorf("failed to list D1 tables: %w", err)
	}

	var drops []string
	for _, row := range rows {
		name, _ := row["name"].(string)
		if name == "" || strings.HasPrefix(name, "_") {
			continue
		}
		drops = append(drops, fmt.Sprintf("DROP TABLE IF EXISTS %s;", name))
	}
	if len(drops) == 0 {
		util.InfoLog("D1 database is already empty")
		return nil
	}

	util.WarnLog("Dropping %d tables: %s", len(drops), strings.Join(drops, " "))
	if err := conn.Execute(strings.Join(drops, " ")); err != nil {
		return fmt.Errorf("failed to drop D1 tables: %w", err)
	}

	util.InfoLog("All existing tables cleared")
	return nil
}

// importScript runs the four-step import protocol. The locally computed md5
// etag identifies the script in every step, and the upload is verified
// against the storage backend's ETag before ingestion starts.
func (p *Publisher) importScript(ctx context.Context, databaseID string, script []byte) error {
	sum := md5.Sum(script)
	etag := hex.EncodeToString(sum[:])
	util.DebugLog("SQL script md5 etag: %s", etag)

	util.InfoLog("[1/4] Initializing D1 import")
	initResult, err := p.client.InitImport(ctx, databaseID, etag)
	if err != nil {
		return fmt.Errorf("import init failed: %w", err)
	}

	util.InfoLog("[2/4] Uploading SQL script (%d bytes)", len(script))
	remoteETag, err := p.client.UploadScript(ctx, initResult.UploadURL, script)
	if err != nil {
		return err
	}
	if remoteETag != etag {
		return fmt.Errorf("upload etag %q does not match local %q: %w", remoteETag, etag, util.ErrIntegrity)
	}

	util.InfoLog("[3/4] Starting D1 ingestion")
	ingestResult, err := p.client.StartIngest(ctx, databaseID, etag, initResult.Filename)
	if err != nil {
		return fmt.Errorf("import ingest failed: %w", err)
	}

	util.InfoLog("[4/4] Polling for import completion")
	return p.waitForImport(ctx, databaseID, ingestResult.AtBookmark)
}

// waitForImport polls at a fixed interval until the job reaches a terminal
// status or the context is cancelled.
func (p *Publisher) waitForImport(ctx context.Context, databaseID, bookmark string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := p.client.PollImport(ctx, databaseID, bookmark)
		if err != nil {
			return fmt.Errorf("import poll failed: %w", err)
		}

		switch status.Status {
		case "complete":
			util.SuccessLog("D1 import completed")
			return nil
		case "error":
			return fmt.Errorf("D1 import failed: %s", status.Error)
		default:
			util.InfoLog("Import in progress: %s", strings.Join(status.Messages, "; "))
		}
	}
}
