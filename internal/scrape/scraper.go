// Package scrape collects public deck exports from the listing API: walk the
// paginated list for deck ids, then fetch each deck's detail record and save
// it as one JSON file per deck. Already-downloaded decks are skipped so an
// interrupted run resumes where it stopped.
package scrape

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/haku/mddecks/internal/util"
)

// DefaultBaseURL is the production deck listing API.
const DefaultBaseURL = "https://zgai.tech:38443/api/mdpro3"

// pageSize is the listing page size the upstream expects.
const pageSize = 30

// Scraper downloads deck records into an output directory.
type Scraper struct {
	BaseURL   string
	OutputDir string
	RateDelay time.Duration
	http      *http.Client
}

// Result summarizes one scrape run.
type Result struct {
	Total   int
	Saved   int
	Skipped int
	Failed  int
}

// New creates a scraper writing deck files into outputDir.
func New(outputDir string) *Scraper {
	return &Scraper{
		BaseURL:   DefaultBaseURL,
		OutputDir: outputDir,
		RateDelay: time.Second,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// listResponse is the paginated envelope of the deck listing endpoint.
type listResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Pages   int `json:"pages"`
		Records []struct {
			DeckID string `json:"deckId"`
		} `json:"records"`
	} `json:"data"`
}

// detailResponse is the envelope of the single-deck endpoint. The deck
// payload is kept raw so unknown fields survive the round trip to disk.
type detailResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Run collects every public deck id and downloads the ones not yet on disk.
func (s *Scraper) Run() (*Result, error) {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ids, err := s.fetchAllDeckIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		util.WarnLog("No deck ids returned by the listing API")
		return &Result{}, nil
	}

	util.InfoLog("Collected %d unique deck ids, downloading new decks", len(ids))
	result := &Result{Total: len(ids)}

	var bar *progressbar.ProgressBar
	if util.IsInteractive() {
		bar = progressbar.NewOptions(len(ids),
			progressbar.OptionSetDescription("Downloading decks"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, id := range ids {
		if bar != nil {
			bar.Add(1)
		}

		path := filepath.Join(s.OutputDir, id+".json")
		if _, err := os.Stat(path); err == nil {
			result.Skipped++
			continue
		}

		detail, err := s.fetchDeckDetail(id)
		if err != nil {
			util.WarnLog("Failed to fetch deck %s: %v", id, err)
			result.Failed++
			continue
		}

		if err := os.WriteFile(path, detail, 0o644); err != nil {
			util.ErrorLog("Failed to save deck %s: %v", id, err)
			result.Failed++
			continue
		}
		result.Saved++
	}

	util.SuccessLog("Scrape finished: %d saved, %d skipped, %d failed of %d",
		result.Saved, result.Skipped, result.Failed, result.Total)
	return result, nil
}

// fetchAllDeckIDs walks the listing pages and returns the deduplicated,
// sorted set of deck ids. The total page count comes from the first response
// and is refreshed on every page.
func (s *Scraper) fetchAllDeckIDs() ([]string, error) {
	seen := map[string]struct{}{}
	page, totalPages := 1, 1

	util.InfoLog("Fetching public deck id list")
	for page <= totalPages {
		url := fmt.Sprintf("%s/deck/list?page=%d&size=%d&sortLike=true", s.BaseURL, page, pageSize)

		var list listResponse
		if err := s.getJSON(url, &list); err != nil {
			return nil, fmt.Errorf("failed to fetch deck list page %d: %w", page, err)
		}
		if list.Code != 0 {
			return nil, fmt.Errorf("listing API error on page %d: %s", page, list.Message)
		}

		if list.Data.Pages > 0 {
			totalPages = list.Data.Pages
		}
		if len(list.Data.Records) == 0 {
			break
		}
		for _, r := range list.Data.Records {
			seen[r.DeckID] = struct{}{}
		}

		util.DebugLog("Listed page %d/%d (%d records)", page, totalPages, len(list.Data.Records))
		page++
		time.Sleep(s.RateDelay)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// fetchDeckDetail downloads one deck record and normalizes the literal
// escape sequences the API leaves in the YDK text.
func (s *Scraper) fetchDeckDetail(deckID string) ([]byte, error) {
	var detail detailResponse
	if err := s.getJSON(s.BaseURL+"/deck/"+deckID, &detail); err != nil {
		return nil, err
	}
	if detail.Code != 0 {
		return nil, fmt.Errorf("detail API error: %s", detail.Message)
	}
	time.Sleep(s.RateDelay)

	var record map[string]interface{}
	if err := json.Unmarshal(detail.Data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode deck record: %w", err)
	}

	// The API double-escapes line breaks inside the YDK text.
	if ydk, ok := record["deckYdk"].(string); ok {
		ydk = strings.ReplaceAll(ydk, `\r\n`, "\n")
		ydk = strings.ReplaceAll(ydk, `\n`, "\n")
		record["deckYdk"] = ydk
	}

	return json.MarshalIndent(record, "", "  ")
}

func (s *Scraper) getJSON(url string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("reqsource", "MDPro3")
	req.Header.Set("clientsource", "Web")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
