package update

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haku/mddecks/internal/config"
)

const testCardsJSON = `{"1": {"id": 1, "cn_name": "x"}}`

// cardsArchive builds an in-memory cards.zip containing cards.json.
func cardsArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("cards.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(testCardsJSON)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeUpstream struct {
	md5      string
	requests map[string]int
}

func (f *fakeUpstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	f.requests = map[string]int{}

	mux := http.NewServeMux()
	mux.HandleFunc("/constant.lua", func(w http.ResponseWriter, r *http.Request) {
		f.requests["constants"]++
		w.Write([]byte("RACE_DRAGON =0x2000 --龙\n"))
	})
	mux.HandleFunc("/strings.conf", func(w http.ResponseWriter, r *http.Request) {
		f.requests["setcodes"]++
		w.Write([]byte("!setname 0x1 测试\n"))
	})
	mux.HandleFunc("/cards.cdb", func(w http.ResponseWriter, r *http.Request) {
		f.requests["alias_db"]++
		w.Write([]byte{0x53, 0x51, 0x4c, 0x69, 0x74, 0x65}) // opaque binary
	})
	mux.HandleFunc("/cards.zip.md5", func(w http.ResponseWriter, r *http.Request) {
		f.requests["md5"]++
		w.Write([]byte(`gu("` + f.md5 + `");`))
	})
	mux.HandleFunc("/cards.zip", func(w http.ResponseWriter, r *http.Request) {
		f.requests["zip"]++
		w.Write(cardsArchive(t))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestUpdater(t *testing.T, f *fakeUpstream) (*Updater, *config.Paths) {
	t.Helper()
	server := f.server(t)

	dir := t.TempDir()
	paths := &config.Paths{
		DataDir:    dir,
		CardsFile:  filepath.Join(dir, "cards.json"),
		Constants:  filepath.Join(dir, "constant.lua"),
		Setcodes:   filepath.Join(dir, "strings.conf"),
		AliasDB:    filepath.Join(dir, "cards.cdb"),
		UpdateInfo: filepath.Join(dir, "update_info.json"),
	}
	urls := map[string]string{
		"constants": server.URL + "/constant.lua",
		"setcodes":  server.URL + "/strings.conf",
		"alias_db":  server.URL + "/cards.cdb",
		"cards_md5": server.URL + "/cards.zip.md5",
		"cards_zip": server.URL + "/cards.zip",
	}
	return New(urls, paths), paths
}

func TestRunDownloadsEverythingFirstTime(t *testing.T) {
	fake := &fakeUpstream{md5: "0123456789abcdef0123456789abcdef"}
	updater, paths := newTestUpdater(t, fake)

	updated, err := updater.Run(false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !updated {
		t.Error("first run must report updates")
	}

	for _, path := range []string{paths.Constants, paths.Setcodes, paths.AliasDB, paths.CardsFile, paths.UpdateInfo} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	content, _ := os.ReadFile(paths.CardsFile)
	if string(content) != testCardsJSON {
		t.Errorf("cards.json content = %q", content)
	}
}

func TestRunSkipsFreshFiles(t *testing.T) {
	fake := &fakeUpstream{md5: "0123456789abcdef0123456789abcdef"}
	updater, _ := newTestUpdater(t, fake)

	if _, err := updater.Run(false); err != nil {
		t.Fatal(err)
	}
	firstFetches := fake.requests["constants"]

	// A second run inside the freshness window touches nothing.
	updated, err := updater.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if updated {
		t.Error("second run within the interval must not update")
	}
	if fake.requests["constants"] != firstFetches {
		t.Error("constants re-fetched despite fresh cache")
	}
	if fake.requests["zip"] != 1 {
		t.Errorf("archive fetched %d times, want 1", fake.requests["zip"])
	}
}

func TestRunUnchangedMD5SkipsArchive(t *testing.T) {
	fake := &fakeUpstream{md5: "0123456789abcdef0123456789abcdef"}
	updater, _ := newTestUpdater(t, fake)

	if _, err := updater.Run(false); err != nil {
		t.Fatal(err)
	}

	// Age the cache past the interval; the md5 is checked again but the
	// archive download is skipped because the hash is unchanged.
	updater.now = func() time.Time { return time.Now().Add(config.UpdateInterval + time.Hour) }

	if _, err := updater.Run(false); err != nil {
		t.Fatal(err)
	}
	if fake.requests["md5"] != 2 {
		t.Errorf("md5 checked %d times, want 2", fake.requests["md5"])
	}
	if fake.requests["zip"] != 1 {
		t.Errorf("archive fetched %d times, want 1", fake.requests["zip"])
	}
}

func TestRunForceBypassesChecks(t *testing.T) {
	fake := &fakeUpstream{md5: "0123456789abcdef0123456789abcdef"}
	updater, _ := newTestUpdater(t, fake)

	if _, err := updater.Run(false); err != nil {
		t.Fatal(err)
	}
	if _, err := updater.Run(true); err != nil {
		t.Fatal(err)
	}
	if fake.requests["zip"] != 2 {
		t.Errorf("force run must re-download the archive, got %d fetches", fake.requests["zip"])
	}
}

func TestRunCorruptCacheStartsFresh(t *testing.T) {
	fake := &fakeUpstream{md5: "0123456789abcdef0123456789abcdef"}
	updater, paths := newTestUpdater(t, fake)

	if err := os.WriteFile(paths.UpdateInfo, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	updated, err := updater.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if !updated {
		t.Error("corrupt cache must force a fresh download cycle")
	}
}
