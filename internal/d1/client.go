// Package d1 talks to the Cloudflare D1 HTTP API: database lookup, SQL
// queries, and the multi-step bulk import protocol.
package d1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/util"
)

// DefaultBaseURL is the production Cloudflare API endpoint.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// Client is a minimal authenticated Cloudflare D1 API client.
type Client struct {
	BaseURL    string
	AccountID  string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a client from D1 credentials.
func NewClient(cfg *config.D1Config) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		AccountID:  cfg.AccountID,
		APIToken:   cfg.APIToken,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// envelope is the standard Cloudflare API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Database is one D1 database as returned by the list endpoint.
type Database struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// QueryResult is one statement's result from the query endpoint.
type QueryResult struct {
	Success bool                     `json:"success"`
	Results []map[string]interface{} `json:"results"`
}

// ImportResult covers the result payloads of every import action.
type ImportResult struct {
	UploadURL       string   `json:"upload_url"`
	Filename        string   `json:"filename"`
	AtBookmark      string   `json:"at_bookmark"`
	CurrentBookmark string   `json:"current_bookmark"`
	Status          string   `json:"status"`
	Error           string   `json:"error"`
	Messages        []string `json:"messages"`
}

// do runs one authenticated API request and decodes the envelope's result.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("D1 API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read D1 API response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode D1 API response (HTTP %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return fmt.Errorf("D1 API error (HTTP %d): %s", resp.StatusCode, joinErrors(env.Errors))
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode D1 API result: %w", err)
		}
	}
	return nil
}

// ListDatabases returns every D1 database in the account.
func (c *Client) ListDatabases(ctx context.Context) ([]Database, error) {
	var dbs []Database
	path := fmt.Sprintf("/accounts/%s/d1/database", c.AccountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &dbs); err != nil {
		return nil, err
	}
	return dbs, nil
}

// FindDatabaseByName resolves a human-readable database name to its UUID.
// The import and query endpoints require the UUID.
func (c *Client) FindDatabaseByName(ctx context.Context, name string) (*Database, error) {
	util.InfoLog("Looking up D1 database %q", name)
	dbs, err := c.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range dbs {
		if dbs[i].Name == name {
			util.DebugLog("Found D1 database %q with uuid %s", name, dbs[i].UUID)
			return &dbs[i], nil
		}
	}
	return nil, fmt.Errorf("D1 database %q: %w", name, util.ErrNotFound)
}

// Query runs SQL against a database. Multiple semicolon-separated statements
// are allowed only without bound parameters.
func (c *Client) Query(ctx context.Context, databaseID, sql string, params []interface{}) ([]QueryResult, error) {
	body := map[string]interface{}{"sql": sql}
	if len(params) > 0 {
		body["params"] = params
	}

	var results []QueryResult
	path := fmt.Sprintf("/accounts/%s/d1/database/%s/query", c.AccountID, databaseID)
	if err := c.do(ctx, http.MethodPost, path, body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// importAction posts one action to the import endpoint.
func (c *Client) importAction(ctx context.Context, databaseID string, body map[string]interface{}) (*ImportResult, error) {
	var result ImportResult
	path := fmt.Sprintf("/accounts/%s/d1/database/%s/import", c.AccountID, databaseID)
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// InitImport announces an upcoming import identified by the script's md5
// etag and returns a presigned upload URL plus the server-side filename.
func (c *Client) InitImport(ctx context.Context, databaseID, etag string) (*ImportResult, error) {
	result, err := c.importAction(ctx, databaseID, map[string]interface{}{
		"action": "init",
		"etag":   etag,
	})
	if err != nil {
		return nil, err
	}
	if result.UploadURL == "" {
		return nil, fmt.Errorf("D1 init response did not include an upload URL")
	}
	return result, nil
}

// UploadScript PUTs the script to the presigned URL and returns the ETag the
// storage backend computed for the received bytes.
func (c *Client) UploadScript(ctx context.Context, uploadURL string, script []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(script))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("script upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("script upload failed with HTTP %d", resp.StatusCode)
	}
	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// StartIngest tells D1 the upload is complete and returns the bookmark used
// to track the ingestion job.
func (c *Client) StartIngest(ctx context.Context, databaseID, etag, filename string) (*ImportResult, error) {
	result, err := c.importAction(ctx, databaseID, map[string]interface{}{
		"action":   "ingest",
		"etag":     etag,
		"filename": filename,
	})
	if err != nil {
		return nil, err
	}
	if result.AtBookmark == "" {
		return nil, fmt.Errorf("D1 ingest response did not include a bookmark")
	}
	return result, nil
}

// PollImport fetches the current status of an ingestion job.
func (c *Client) PollImport(ctx context.Context, databaseID, bookmark string) (*ImportResult, error) {
	return c.importAction(ctx, databaseID, map[string]interface{}{
		"action":           "poll",
		"current_bookmark": bookmark,
	})
}

func joinErrors(errs []apiError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, e.Message))
	}
	return strings.Join(parts, "; ")
}
