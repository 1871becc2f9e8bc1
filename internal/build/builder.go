// Package build orchestrates the from-scratch construction of the local
// store: schema, lookup tables, the card catalog, and every deck file, in
// strict order on one connection.
package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/haku/mddecks/internal/catalog"
	"github.com/haku/mddecks/internal/deck"
	"github.com/haku/mddecks/internal/parse"
	"github.com/haku/mddecks/internal/store"
	"github.com/haku/mddecks/internal/util"
)

// Config holds the input locations for one build.
type Config struct {
	DBPath        string // local store file; removed before and after a failed build
	ConstantsPath string // constant.lua
	SetcodesPath  string // strings.conf
	CardsPath     string // cards.json
	AliasDBPath   string // cards.cdb
	DeckDir       string // one JSON file per deck
}

// Result reports what one successful build wrote.
type Result struct {
	Cards         int
	Relations     int
	DecksAccepted int
	DecksSkipped  int
	Duration      time.Duration
}

// Builder runs the build pipeline against a fresh store file.
type Builder struct {
	cfg *Config
}

// New creates a builder for the given inputs.
func New(cfg *Config) *Builder {
	return &Builder{cfg: cfg}
}

// Run executes the full build. The store file is deleted up front so every
// build starts from scratch; on failure the connection is rolled back and
// closed and the store file is removed again, so a failed build never leaves
// a partial store behind.
func (b *Builder) Run() (*Result, error) {
	util.InfoLog("Starting local database build")
	start := time.Now()

	if err := os.Remove(b.cfg.DBPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing database: %w", err)
	}

	conn := store.NewSQLite(b.cfg.DBPath)
	if err := conn.Connect(); err != nil {
		return nil, err
	}

	result, err := b.runSteps(conn)
	if err != nil {
		conn.Rollback()
		conn.Close()
		os.Remove(b.cfg.DBPath)
		return nil, err
	}

	if err := conn.Close(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	util.SuccessLog("Local database build successful in %v", result.Duration.Round(time.Millisecond))
	return result, nil
}

func (b *Builder) runSteps(conn store.Connector) (*Result, error) {
	result := &Result{}

	util.InfoLog("[1/7] Creating database schema")
	if err := conn.Execute(store.Schema); err != nil {
		return nil, err
	}
	if err := conn.Commit(); err != nil {
		return nil, err
	}

	util.InfoLog("[2/7] Parsing constants")
	maps := parse.LoadConstants(b.cfg.ConstantsPath)

	util.InfoLog("[3/7] Populating lookup tables")
	setcodeMap, err := b.populateLookups(conn, maps)
	if err != nil {
		return nil, err
	}
	if err := conn.Commit(); err != nil {
		return nil, err
	}

	util.InfoLog("[4/7] Processing card catalog")
	if err := b.processCards(conn, maps, setcodeMap, result); err != nil {
		return nil, err
	}
	if err := conn.Commit(); err != nil {
		return nil, err
	}

	util.InfoLog("[5/7] Loading card alias map")
	aliases := parse.LoadAliasMap(b.cfg.AliasDBPath)

	util.InfoLog("[6/7] Caching valid card ids")
	validIDs, err := loadValidIDs(conn)
	if err != nil {
		return nil, err
	}
	util.InfoLog("Loaded %d valid card ids", len(validIDs))

	util.InfoLog("[7/7] Processing deck files")
	if err := b.processDecks(conn, validIDs, aliases, result); err != nil {
		return nil, err
	}
	if err := conn.Commit(); err != nil {
		return nil, err
	}

	return result, nil
}

// populateLookups fills the static Races/Attributes/CardTypes/Setcodes
// tables and returns the setcode map for card processing.
func (b *Builder) populateLookups(conn store.Connector, maps parse.ConstantMaps) (parse.SetcodeMap, error) {
	if err := conn.ExecuteMany("INSERT OR IGNORE INTO Races VALUES (?, ?)", lookupBatch(maps.Race)); err != nil {
		return nil, err
	}
	if err := conn.ExecuteMany("INSERT OR IGNORE INTO Attributes VALUES (?, ?)", lookupBatch(maps.Attribute)); err != nil {
		return nil, err
	}
	if err := conn.ExecuteMany("INSERT OR IGNORE INTO CardTypes VALUES (?, ?)", lookupBatch(maps.Type)); err != nil {
		return nil, err
	}

	setcodeMap, rows := parse.LoadSetcodes(b.cfg.SetcodesPath)
	batch := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, []interface{}{row.Code, row.NameCN, row.NameJP})
	}
	if err := conn.ExecuteMany("INSERT OR IGNORE INTO Setcodes VALUES (?, ?, ?)", batch); err != nil {
		return nil, err
	}

	return setcodeMap, nil
}

func (b *Builder) processCards(conn store.Connector, maps parse.ConstantMaps, setcodes parse.SetcodeMap, result *Result) error {
	cards, err := catalog.Load(b.cfg.CardsPath)
	if err != nil {
		// Degraded: no catalog means no cards and no accepted decks,
		// but the store itself is still valid.
		util.ErrorLog("Failed to read card catalog, skipping card processing: %v", err)
		return nil
	}

	dec := catalog.Decompose(cards, maps, setcodes)
	util.InfoLog("Inserting %d cards and their relations", len(dec.Cards))

	cardBatch := make([][]interface{}, 0, len(dec.Cards))
	for _, c := range dec.Cards {
		cardBatch = append(cardBatch, []interface{}{
			c.ID, c.CID, c.CnName, c.JpName, c.EnName, c.Types, c.Desc, c.Atk, c.Def, c.Level,
		})
	}
	if err := conn.ExecuteMany("INSERT OR REPLACE INTO Cards VALUES (?,?,?,?,?,?,?,?,?,?)", cardBatch); err != nil {
		return err
	}

	for _, rel := range []struct {
		table string
		rows  []catalog.Relation
	}{
		{"CardToRace", dec.Races},
		{"CardToAttribute", dec.Attributes},
		{"CardToType", dec.Types},
		{"CardToSetcode", dec.Setcodes},
	} {
		if err := conn.ExecuteMany("INSERT OR IGNORE INTO "+rel.table+" VALUES (?,?)", relationBatch(rel.rows)); err != nil {
			return err
		}
		result.Relations += len(rel.rows)
	}

	result.Cards = len(dec.Cards)
	return nil
}

func (b *Builder) processDecks(conn store.Connector, validIDs map[int64]struct{}, aliases map[int64]int64, result *Result) error {
	entries, err := os.ReadDir(b.cfg.DeckDir)
	if err != nil {
		util.WarnLog("Deck directory not found, skipping deck processing: %s", b.cfg.DeckDir)
		return nil
	}

	var deckBatch, cardBatch [][]interface{}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(b.cfg.DeckDir, entry.Name())
		src, err := loadDeckSource(path)
		if err != nil {
			util.WarnLog("Skipping unreadable deck file %s: %v", path, err)
			result.DecksSkipped++
			continue
		}

		d, deckEntries, err := deck.Validate(*src, validIDs, aliases)
		if err != nil {
			if errors.Is(err, util.ErrUnknownCard) || errors.Is(err, util.ErrDeckTooSmall) {
				util.WarnLog("Discarding deck: %v", err)
			} else {
				util.WarnLog("Skipping deck file %s: %v", path, err)
			}
			result.DecksSkipped++
			continue
		}

		deckBatch = append(deckBatch, []interface{}{
			d.DeckID, d.DeckName, d.UserID, d.Contributor, d.Like,
			d.UploadDate, d.UpdateDate, boolToInt(d.IsPublic), d.YDK,
			d.Case, d.Protector, d.Covers[0], d.Covers[1], d.Covers[2],
		})
		for _, e := range deckEntries {
			cardBatch = append(cardBatch, []interface{}{d.DeckID, e.CardID, e.Section, e.Count})
		}
		result.DecksAccepted++
	}

	util.InfoLog("Inserting %d decks (%d skipped)", result.DecksAccepted, result.DecksSkipped)
	if err := conn.ExecuteMany("INSERT OR REPLACE INTO Decks VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)", deckBatch); err != nil {
		return err
	}
	return conn.ExecuteMany("INSERT OR REPLACE INTO DeckCards VALUES (?,?,?,?)", cardBatch)
}

func loadDeckSource(path string) (*deck.Source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var src deck.Source
	if err := json.Unmarshal(content, &src); err != nil {
		return nil, err
	}
	return &src, nil
}

func loadValidIDs(conn store.Connector) (map[int64]struct{}, error) {
	rows, err := conn.Query("SELECT id FROM Cards")
	if err != nil {
		return nil, err
	}

	valid := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		id, ok := row["id"].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected id type %T in Cards", row["id"])
		}
		valid[id] = struct{}{}
	}
	return valid, nil
}

// lookupBatch converts a constant map to insert rows in sorted code order
// so rebuilds write identical tables.
func lookupBatch(m parse.ConstantMap) [][]interface{} {
	codes := make([]int64, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	batch := make([][]interface{}, 0, len(codes))
	for _, code := range codes {
		batch = append(batch, []interface{}{code, m[code]})
	}
	return batch
}

func relationBatch(rels []catalog.Relation) [][]interface{} {
	batch := make([][]interface{}, 0, len(rels))
	for _, r := range rels {
		batch = append(batch, []interface{}{r.CardID, r.Code})
	}
	return batch
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
