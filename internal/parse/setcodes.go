package parse

import (
	"os"
	"strconv"
	"strings"

	"github.com/haku/mddecks/internal/util"
)

// SetcodeMap maps a setcode to its primary (Chinese) archetype name.
type SetcodeMap map[int64]string

// SetcodeRow is one archetype definition ready for bulk insertion.
// NameJP is nil when the source line has no secondary name.
type SetcodeRow struct {
	Code   int64
	NameCN string
	NameJP *string
}

// ParseSetcodes scans the setcodes source for "!setname" directives.
// Lines are split into at most 4 whitespace-separated fields:
// directive, hex code, primary name, optional secondary name.
// Lines with fewer than 3 fields or an unparseable code are skipped
// with a warning. The returned map and rows always hold the same entries.
func ParseSetcodes(text string) (SetcodeMap, []SetcodeRow) {
	setcodeMap := SetcodeMap{}
	var rows []SetcodeRow

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "!setname") {
			continue
		}

		parts := splitFields(line, 4)
		if len(parts) < 3 {
			util.WarnLog("Skipping malformed setname line: %q", line)
			continue
		}

		code, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "0x"), 16, 64)
		if err != nil {
			util.WarnLog("Skipping setname line with bad code: %q", line)
			continue
		}

		row := SetcodeRow{Code: code, NameCN: parts[2]}
		if len(parts) > 3 {
			nameJP := parts[3]
			row.NameJP = &nameJP
		}

		rows = append(rows, row)
		setcodeMap[code] = row.NameCN
	}

	return setcodeMap, rows
}

// LoadSetcodes reads and parses the setcodes file. An unreadable file is
// non-fatal and yields empty results.
func LoadSetcodes(path string) (SetcodeMap, []SetcodeRow) {
	util.InfoLog("Parsing setcodes file: %s", path)

	content, err := os.ReadFile(path)
	if err != nil {
		util.ErrorLog("Failed to read setcodes file: %v", err)
		return SetcodeMap{}, nil
	}

	setcodeMap, rows := ParseSetcodes(string(content))
	util.InfoLog("Parsed %d setcodes", len(setcodeMap))
	return setcodeMap, rows
}

// splitFields splits on runs of whitespace into at most max fields;
// the final field keeps its internal whitespace.
func splitFields(s string, max int) []string {
	var fields []string
	s = strings.TrimSpace(s)
	for len(s) > 0 {
		if len(fields) == max-1 {
			fields = append(fields, s)
			break
		}
		i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
		if i < 0 {
			fields = append(fields, s)
			break
		}
		fields = append(fields, s[:i])
		s = strings.TrimLeft(s[i:], " \t")
	}
	return fields
}
