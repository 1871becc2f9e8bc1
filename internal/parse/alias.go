package parse

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/haku/mddecks/internal/util"
)

// LoadAliasMap reads alternate-artwork aliases from the cards.cdb database,
// mapping an alias card id to its canonical card id. The file is opened
// read-only. A missing or unreadable database is non-fatal: validation then
// treats every id as already canonical.
func LoadAliasMap(path string) map[int64]int64 {
	util.InfoLog("Loading alias id map: %s", path)
	aliasMap := map[int64]int64{}

	if _, err := os.Stat(path); err != nil {
		util.WarnLog("Alias database not found, continuing without alias mapping: %s", path)
		return aliasMap
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		util.ErrorLog("Failed to open alias database: %v", err)
		return aliasMap
	}
	defer db.Close()

	rows, err := db.Query("SELECT id, alias FROM datas WHERE alias != 0")
	if err != nil {
		util.ErrorLog("Failed to query alias database: %v", err)
		return aliasMap
	}
	defer rows.Close()

	for rows.Next() {
		var id, alias int64
		if err := rows.Scan(&id, &alias); err != nil {
			util.ErrorLog("Failed to scan alias row: %v", err)
			return map[int64]int64{}
		}
		aliasMap[id] = alias
	}
	if err := rows.Err(); err != nil {
		util.ErrorLog("Alias query iteration failed: %v", err)
		return map[int64]int64{}
	}

	util.InfoLog("Loaded %d alias id mappings", len(aliasMap))
	return aliasMap
}
