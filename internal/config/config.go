// Package config holds the file layout, data source URLs, and remote
// credentials shared by every stage of the pipeline. All knobs flow in
// explicitly; no component reads ambient global state at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/haku/mddecks/internal/util"
)

// UpdateInterval is how long downloaded source files are considered fresh.
const UpdateInterval = 10 * 24 * time.Hour

// URLs maps a logical source name to its remote location.
var URLs = map[string]string{
	// ZIP archive containing the primary cards.json catalog.
	"cards_zip": "https://ygocdb.com/api/v0/cards.zip",
	// Tiny JSONP file carrying the MD5 of the latest cards.zip.
	"cards_md5": "https://ygocdb.com/api/v0/cards.zip.md5?callback=gu",
	// Setcode (archetype) definitions.
	"setcodes": "https://raw.githubusercontent.com/Fluorohydride/ygopro/refs/heads/master/strings.conf",
	// Lua constants defining Race/Attribute/Type bitmasks.
	"constants": "https://raw.githubusercontent.com/Fluorohydride/ygopro-scripts/refs/heads/master/constant.lua",
	// SQLite database mapping alternate-artwork ids to canonical ids.
	"alias_db": "https://code.moenext.com/mycard/ygopro-database/-/raw/master/locales/zh-CN/cards.cdb",
}

// Paths describes where every local artifact lives.
type Paths struct {
	DataDir    string // downloaded source files and the built store
	DeckDir    string // one JSON file per scraped deck
	DBFile     string // the local SQLite store
	DumpFile   string // temporary SQL script produced by the exporter
	CardsFile  string // cards.json catalog
	Constants  string // constant.lua
	Setcodes   string // strings.conf
	AliasDB    string // cards.cdb
	UpdateInfo string // freshness cache
}

// ResolvePaths derives the file layout from viper configuration,
// falling back to ./data and ./deck_data next to the working directory.
func ResolvePaths() Paths {
	dataDir := viper.GetString("data-dir")
	if dataDir == "" {
		dataDir = "data"
	}
	deckDir := viper.GetString("deck-dir")
	if deckDir == "" {
		deckDir = "deck_data"
	}
	dbFile := viper.GetString("db")
	if dbFile == "" {
		dbFile = filepath.Join(dataDir, "yugioh_decks.db")
	}

	return Paths{
		DataDir:    dataDir,
		DeckDir:    deckDir,
		DBFile:     dbFile,
		DumpFile:   filepath.Join(dataDir, "yugioh_decks_dump.sql"),
		CardsFile:  filepath.Join(dataDir, "cards.json"),
		Constants:  filepath.Join(dataDir, "constant.lua"),
		Setcodes:   filepath.Join(dataDir, "strings.conf"),
		AliasDB:    filepath.Join(dataDir, "cards.cdb"),
		UpdateInfo: filepath.Join(dataDir, "update_info.json"),
	}
}

// D1Config holds the Cloudflare D1 credentials for publishing.
type D1Config struct {
	AccountID    string
	DatabaseName string
	APIToken     string
}

// LoadD1FromEnv reads D1 credentials from the environment, honoring a
// local .env file if present. All three variables are required.
func LoadD1FromEnv() (D1Config, error) {
	// A missing .env is fine; real environments set the vars directly.
	if err := godotenv.Load(); err == nil {
		util.DebugLog("Loaded credentials from .env file")
	}

	cfg := D1Config{
		AccountID:    os.Getenv("D1_ACCOUNT_ID"),
		DatabaseName: os.Getenv("D1_DATABASE_NAME"),
		APIToken:     os.Getenv("D1_API_TOKEN"),
	}

	var missing []string
	if cfg.AccountID == "" {
		missing = append(missing, "D1_ACCOUNT_ID")
	}
	if cfg.DatabaseName == "" {
		missing = append(missing, "D1_DATABASE_NAME")
	}
	if cfg.APIToken == "" {
		missing = append(missing, "D1_API_TOKEN")
	}
	if len(missing) > 0 {
		return D1Config{}, fmt.Errorf("%w: missing environment variables: %s",
			util.ErrInvalidConfig, strings.Join(missing, ", "))
	}

	return cfg, nil
}
