package d1

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/util"
)

// fakeD1 simulates the Cloudflare API surface the publisher touches.
type fakeD1 struct {
	t *testing.T

	uploaded    []byte
	uploadETag  string // returned ETag; defaults to the true md5
	polls       int
	ingested    bool
	queries     []string
	failImport  bool
	tablesExist bool
}

func respond(w http.ResponseWriter, result interface{}) {
	payload, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"errors":  []interface{}{},
		"result":  json.RawMessage(payload),
	})
}

func (f *fakeD1) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/accounts/acc-1/d1/database", func(w http.ResponseWriter, r *http.Request) {
		respond(w, []Database{
			{UUID: "uuid-other", Name: "other-db"},
			{UUID: "uuid-1", Name: "decks-db"},
		})
	})

	mux.HandleFunc("/accounts/acc-1/d1/database/uuid-1/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.queries = append(f.queries, body.SQL)

		if strings.Contains(body.SQL, "sqlite_master") {
			var rows []map[string]interface{}
			if f.tablesExist {
				rows = []map[string]interface{}{{"name": "Decks"}, {"name": "Cards"}}
			}
			respond(w, []QueryResult{{Success: true, Results: rows}})
			return
		}
		respond(w, []QueryResult{{Success: true}})
	})

	mux.HandleFunc("/accounts/acc-1/d1/database/uuid-1/import", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)

		switch body["action"] {
		case "init":
			respond(w, ImportResult{
				UploadURL: "http://" + r.Host + "/upload",
				Filename:  "dump-0001.sql",
			})
		case "ingest":
			if body["filename"] != "dump-0001.sql" {
				f.t.Errorf("ingest got filename %v", body["filename"])
			}
			f.ingested = true
			respond(w, ImportResult{AtBookmark: "bm-1"})
		case "poll":
			f.polls++
			if f.failImport {
				respond(w, ImportResult{Status: "error", Error: "syntax error"})
				return
			}
			if f.polls < 2 {
				respond(w, ImportResult{Status: "active", Messages: []string{"working"}})
				return
			}
			respond(w, ImportResult{Status: "complete"})
		default:
			f.t.Errorf("unexpected import action %v", body["action"])
		}
	})

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		content, _ := io.ReadAll(r.Body)
		f.uploaded = content

		etag := f.uploadETag
		if etag == "" {
			sum := md5.Sum(content)
			etag = hex.EncodeToString(sum[:])
		}
		w.Header().Set("ETag", fmt.Sprintf("%q", etag))
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func newTestPublisher(t *testing.T, fake *fakeD1) (*Publisher, string) {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client := NewClient(&config.D1Config{
		AccountID:    "acc-1",
		DatabaseName: "decks-db",
		APIToken:     "token",
	})
	client.BaseURL = server.URL

	dumpPath := filepath.Join(t.TempDir(), "dump.sql")
	if err := os.WriteFile(dumpPath, []byte("CREATE TABLE Decks (id TEXT);\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pub := NewPublisher(client, "decks-db")
	return pub, dumpPath
}

func shortPoll(t *testing.T) {
	t.Helper()
	old := pollInterval
	pollInterval = 10 * time.Millisecond
	t.Cleanup(func() { pollInterval = old })
}

func TestPublishFullFlow(t *testing.T) {
	fake := &fakeD1{t: t, tablesExist: true}
	pub, dumpPath := newTestPublisher(t, fake)
	shortPoll(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pub.Publish(ctx, dumpPath); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if string(fake.uploaded) != "CREATE TABLE Decks (id TEXT);\n" {
		t.Errorf("uploaded content = %q", fake.uploaded)
	}
	if !fake.ingested {
		t.Error("ingest step never ran")
	}
	if fake.polls < 2 {
		t.Errorf("expected at least 2 polls, got %d", fake.polls)
	}

	// Existing tables were dropped before import.
	var sawDrop bool
	for _, q := range fake.queries {
		if strings.Contains(q, "DROP TABLE IF EXISTS Decks;") {
			sawDrop = true
		}
	}
	if !sawDrop {
		t.Errorf("no DROP TABLE issued, queries: %v", fake.queries)
	}

	// The dump file is removed on success.
	if _, err := os.Stat(dumpPath); !os.IsNotExist(err) {
		t.Error("dump file should be removed after publish")
	}
}

func TestPublishETagMismatchAborts(t *testing.T) {
	fake := &fakeD1{t: t, uploadETag: "deadbeefdeadbeefdeadbeefdeadbeef"}
	pub, dumpPath := newTestPublisher(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := pub.Publish(ctx, dumpPath)
	if !errors.Is(err, util.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}

	// Ingestion must never start on a corrupted upload.
	if fake.ingested {
		t.Error("ingest ran despite etag mismatch")
	}

	// The dump file is removed even on failure.
	if _, err := os.Stat(dumpPath); !os.IsNotExist(err) {
		t.Error("dump file should be removed after a failed publish")
	}
}

func TestPublishImportError(t *testing.T) {
	fake := &fakeD1{t: t, failImport: true}
	pub, dumpPath := newTestPublisher(t, fake)
	shortPoll(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := pub.Publish(ctx, dumpPath)
	if err == nil || !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("expected import error to surface, got %v", err)
	}
}

func TestPublishEmptyDatabaseSkipsDrop(t *testing.T) {
	fake := &fakeD1{t: t, tablesExist: false}
	pub, dumpPath := newTestPublisher(t, fake)
	shortPoll(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pub.Publish(ctx, dumpPath); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	for _, q := range fake.queries {
		if strings.Contains(q, "DROP TABLE") {
			t.Errorf("DROP TABLE issued on empty database: %q", q)
		}
	}
}

func TestFindDatabaseByName(t *testing.T) {
	fake := &fakeD1{t: t}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewClient(&config.D1Config{AccountID: "acc-1", APIToken: "token"})
	client.BaseURL = server.URL

	db, err := client.FindDatabaseByName(context.Background(), "decks-db")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if db.UUID != "uuid-1" {
		t.Errorf("uuid = %s, want uuid-1", db.UUID)
	}

	if _, err := client.FindDatabaseByName(context.Background(), "missing"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
