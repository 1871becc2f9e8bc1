// Package export turns the local store into a portable SQL script: a full
// dump via the sqlite3 shell, with transaction control stripped and
// unistr() escapes rewritten so the output runs on engines without that
// function.
package export

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/haku/mddecks/internal/util"
)

// unistrPattern matches the sqlite3 shell's escape form for non-ASCII text:
// a sequence of 4-hex-digit UTF-16 code units.
var unistrPattern = regexp.MustCompile(`unistr\('([0-9a-fA-F]+)'\)`)

// Dump writes a portable SQL script of the store at dbPath to outPath.
// On any failure no output file is left behind.
func Dump(dbPath, outPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database not found at %s: %w", dbPath, util.ErrNotFound)
	}

	sqlite3, err := exec.LookPath("sqlite3")
	if err != nil {
		return fmt.Errorf("sqlite3 command not found in PATH: %w", util.ErrNotFound)
	}

	util.InfoLog("Dumping database %s", dbPath)
	cmd := exec.Command(sqlite3, dbPath, "-escape", "off", ".dump")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sqlite3 dump failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	script := Portable(stdout.String())

	if err := os.WriteFile(outPath, []byte(script), 0o644); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("failed to write dump file: %w", err)
	}

	util.SuccessLog("Wrote portable dump to %s (%d bytes)", outPath, len(script))
	return nil
}

// Portable rewrites a raw .dump script for import into engines that manage
// their own transactions and lack the unistr() function. PRAGMA, BEGIN
// TRANSACTION and COMMIT lines are dropped; unistr() calls become inline
// string literals.
func Portable(script string) string {
	var out strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "PRAGMA") ||
			strings.HasPrefix(trimmed, "BEGIN TRANSACTION") ||
			strings.HasPrefix(trimmed, "COMMIT") {
			continue
		}
		out.WriteString(rewriteUnistr(line))
		out.WriteString("\n")
	}
	return out.String()
}

// rewriteUnistr replaces each unistr('<hex>') call with a plain quoted
// literal. The hex payload is a run of 4-digit UTF-16 code units; embedded
// quotes are doubled per SQL rules. A payload that does not decode is left
// untouched rather than corrupting the script.
func rewriteUnistr(line string) string {
	return unistrPattern.ReplaceAllStringFunc(line, func(match string) string {
		hex := unistrPattern.FindStringSubmatch(match)[1]
		decoded, ok := decodeHexUnits(hex)
		if !ok {
			util.WarnLog("Leaving undecodable unistr() payload untouched: %s", match)
			return match
		}
		return "'" + strings.ReplaceAll(decoded, "'", "''") + "'"
	})
}

// decodeHexUnits decodes a concatenation of 4-hex-digit code units.
func decodeHexUnits(hex string) (string, bool) {
	if len(hex)%4 != 0 {
		return "", false
	}
	var sb strings.Builder
	for i := 0; i < len(hex); i += 4 {
		n, err := strconv.ParseUint(hex[i:i+4], 16, 32)
		if err != nil {
			return "", false
		}
		sb.WriteRune(rune(n))
	}
	return sb.String(), true
}
