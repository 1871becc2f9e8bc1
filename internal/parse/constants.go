// Package parse turns the raw upstream text formats (constant.lua,
// strings.conf, cards.cdb) into typed lookup tables for the builder.
package parse

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/haku/mddecks/internal/util"
)

// ConstantMap maps an integer bit-code to its display name.
type ConstantMap map[int64]string

// ConstantMaps bundles the three category maps parsed from constant.lua.
type ConstantMaps struct {
	Race      ConstantMap
	Attribute ConstantMap
	Type      ConstantMap
}

// constantPattern matches lines like:
//
//	RACE_WARRIOR = 0x1 -- Warrior
var constantPattern = regexp.MustCompile(`^(TYPE|ATTRIBUTE|RACE)_([A-Z_]+)\s*=\s*(0x[0-9a-fA-F]+)\s*--\s*(.+)`)

// ParseConstants scans the constants source for Race/Attribute/Type
// definitions. Aggregate helper constants (unions of other codes) are not
// real categories and are skipped; malformed lines are silently ignored.
func ParseConstants(text string) ConstantMaps {
	maps := ConstantMaps{
		Race:      ConstantMap{},
		Attribute: ConstantMap{},
		Type:      ConstantMap{},
	}

	for _, line := range strings.Split(text, "\n") {
		m := constantPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.Contains(line, "ALL") || strings.Contains(line, "TYPES_") {
			continue
		}

		code, err := strconv.ParseInt(strings.TrimPrefix(m[3], "0x"), 16, 64)
		if err != nil {
			continue
		}
		name := strings.TrimSpace(m[4])

		switch m[1] {
		case "RACE":
			maps.Race[code] = name
		case "ATTRIBUTE":
			maps.Attribute[code] = name
		case "TYPE":
			maps.Type[code] = name
		}
	}

	return maps
}

// LoadConstants reads and parses the constants file. An unreadable file is
// non-fatal: the build proceeds with empty maps and no relation rows.
func LoadConstants(path string) ConstantMaps {
	util.InfoLog("Parsing constants file: %s", path)

	content, err := os.ReadFile(path)
	if err != nil {
		util.ErrorLog("Failed to read constants file: %v", err)
		return ConstantMaps{Race: ConstantMap{}, Attribute: ConstantMap{}, Type: ConstantMap{}}
	}

	maps := ParseConstants(string(content))
	util.InfoLog("Parsed constants: %d races, %d attributes, %d types",
		len(maps.Race), len(maps.Attribute), len(maps.Type))
	return maps
}
