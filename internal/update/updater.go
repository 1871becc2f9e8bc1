// Package update keeps the local data files fresh: the card catalog archive,
// the Lua constants, the setcode strings, and the alias database. A small
// JSON cache records check times and the catalog's md5 so unchanged files
// are not downloaded again.
package update

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/util"
)

// md5CallbackPattern extracts the catalog's md5 from its JSONP wrapper.
var md5CallbackPattern = regexp.MustCompile(`gu\("([a-f0-9]{32})"\);`)

// fileInfo is one entry in the update cache.
type fileInfo struct {
	LastCheck int64  `json:"last_check"`
	MD5       string `json:"md5,omitempty"`
}

// Updater downloads data files from their upstream sources.
type Updater struct {
	urls  map[string]string
	paths *config.Paths
	http  *http.Client
	now   func() time.Time
}

// New creates an updater writing into the configured data paths.
func New(urls map[string]string, paths *config.Paths) *Updater {
	return &Updater{
		urls:  urls,
		paths: paths,
		http:  &http.Client{Timeout: 60 * time.Second},
		now:   time.Now,
	}
}

// Run checks every data file and downloads what is stale. With force set the
// interval and md5 checks are bypassed. Individual download failures degrade
// to the existing local copy instead of aborting. Returns whether any file
// changed on disk.
func (u *Updater) Run(force bool) (bool, error) {
	util.InfoLog("Starting data update check (force=%v)", force)
	cache := u.loadCache()
	updated := false

	targets := []struct {
		key    string
		url    string
		path   string
		label  string
		binary bool
	}{
		{"constants", u.urls["constants"], u.paths.Constants, "constants file", false},
		{"setcodes", u.urls["setcodes"], u.paths.Setcodes, "setcodes file", false},
		{"alias_db", u.urls["alias_db"], u.paths.AliasDB, "alias database", true},
	}

	for _, t := range targets {
		info := cache[t.key]
		if !force && !u.isStale(info) {
			util.DebugLog("Skipping %s, checked recently", t.label)
			continue
		}

		content, err := u.fetch(t.url)
		if err != nil {
			util.ErrorLog("Failed to fetch %s: %v", t.label, err)
			continue
		}
		if err := os.WriteFile(t.path, content, 0o644); err != nil {
			util.ErrorLog("Failed to write %s: %v", t.path, err)
			continue
		}

		util.InfoLog("Updated %s", t.label)
		cache[t.key] = fileInfo{LastCheck: u.now().Unix()}
		updated = true
	}

	cardsChanged, err := u.updateCards(cache, force)
	if err != nil {
		util.ErrorLog("Card catalog update failed: %v", err)
	}
	updated = updated || cardsChanged

	u.saveCache(cache)
	util.InfoLog("Data update check finished (updated=%v)", updated)
	return updated, nil
}

// updateCards refreshes the card catalog. The upstream publishes an md5 next
// to the archive, so the multi-megabyte zip is only downloaded when that
// hash differs from the cached one.
func (u *Updater) updateCards(cache map[string]fileInfo, force bool) (bool, error) {
	info := cache["cards"]
	if !force && !u.isStale(info) {
		util.DebugLog("Skipping card catalog, checked recently")
		return false, nil
	}

	md5Text, err := u.fetch(u.urls["cards_md5"])
	if err != nil {
		return false, fmt.Errorf("failed to fetch catalog md5: %w", err)
	}

	m := md5CallbackPattern.FindSubmatch(md5Text)
	if m == nil {
		return false, fmt.Errorf("could not parse remote md5 from callback: %q", md5Text)
	}
	remoteMD5 := string(m[1])

	if !force && remoteMD5 == info.MD5 {
		util.InfoLog("Card catalog is already up to date")
		cache["cards"] = fileInfo{LastCheck: u.now().Unix(), MD5: info.MD5}
		return false, nil
	}

	util.InfoLog("New card catalog version found (md5 %s), downloading", remoteMD5[:12])
	archive, err := u.fetch(u.urls["cards_zip"])
	if err != nil {
		return false, fmt.Errorf("failed to download catalog archive: %w", err)
	}

	if err := extractCardsJSON(archive, u.paths.CardsFile); err != nil {
		return false, err
	}

	util.InfoLog("Card catalog downloaded and extracted")
	cache["cards"] = fileInfo{LastCheck: u.now().Unix(), MD5: remoteMD5}
	return true, nil
}

// extractCardsJSON pulls cards.json out of the downloaded archive in memory.
func extractCardsJSON(archive []byte, dest string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("invalid catalog archive: %w", err)
	}

	f, err := zr.Open("cards.json")
	if err != nil {
		return fmt.Errorf("cards.json missing from archive: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to extract cards.json: %w", err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

func (u *Updater) isStale(info fileInfo) bool {
	last := time.Unix(info.LastCheck, 0)
	return u.now().Sub(last) > config.UpdateInterval
}

// fetch downloads a URL, retrying transient failures.
func (u *Updater) fetch(url string) ([]byte, error) {
	return util.RetryWithBackoff(util.DefaultRetryConfig(), func() ([]byte, error) {
		resp, err := u.http.Get(url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
		}
		return io.ReadAll(resp.Body)
	}, "fetch "+url)
}

// loadCache reads the update cache, falling back to an empty one so a
// corrupt cache just forces a fresh download cycle.
func (u *Updater) loadCache() map[string]fileInfo {
	cache := map[string]fileInfo{}
	content, err := os.ReadFile(u.paths.UpdateInfo)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(content, &cache); err != nil {
		util.WarnLog("Could not parse %s, starting fresh: %v", u.paths.UpdateInfo, err)
		return map[string]fileInfo{}
	}
	return cache
}

func (u *Updater) saveCache(cache map[string]fileInfo) {
	content, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(u.paths.UpdateInfo, content, 0o644); err != nil {
		util.ErrorLog("Failed to save update cache: %v", err)
	}
}
