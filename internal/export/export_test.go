package export

import (
	"strings"
	"testing"
)

func TestPortableStripsTransactionControl(t *testing.T) {
	script := strings.Join([]string{
		"PRAGMA foreign_keys=OFF;",
		"BEGIN TRANSACTION;",
		"CREATE TABLE Decks (deck_id TEXT PRIMARY KEY);",
		"INSERT INTO Decks VALUES('abc');",
		"COMMIT;",
	}, "\n")

	got := Portable(script)

	if strings.Contains(got, "PRAGMA") {
		t.Error("PRAGMA lines must be stripped")
	}
	if strings.Contains(got, "BEGIN TRANSACTION") {
		t.Error("BEGIN TRANSACTION must be stripped")
	}
	if strings.Contains(got, "COMMIT") {
		t.Error("COMMIT must be stripped")
	}
	if !strings.Contains(got, "CREATE TABLE Decks") {
		t.Error("DDL must survive")
	}
	if !strings.Contains(got, "INSERT INTO Decks VALUES('abc');") {
		t.Error("data must survive")
	}
}

func TestRewriteUnistr(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ascii payload",
			input:    `INSERT INTO t VALUES(unistr('00480065006C006C006F'));`,
			expected: `INSERT INTO t VALUES('Hello');`,
		},
		{
			name:     "cjk payload",
			input:    `unistr('9752773C')`,
			expected: `'青眼'`,
		},
		{
			name:     "embedded quote is doubled",
			input:    `unistr('0027')`,
			expected: `''''`,
		},
		{
			name:     "two calls on one line",
			input:    `unistr('0041') and unistr('0042')`,
			expected: `'A' and 'B'`,
		},
		{
			name:     "odd length left untouched",
			input:    `unistr('004')`,
			expected: `unistr('004')`,
		},
		{
			name:     "no calls",
			input:    `INSERT INTO t VALUES('plain');`,
			expected: `INSERT INTO t VALUES('plain');`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteUnistr(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDecodeHexUnits(t *testing.T) {
	if s, ok := decodeHexUnits("00480069"); !ok || s != "Hi" {
		t.Errorf("decode = %q ok=%v, want Hi", s, ok)
	}
	if _, ok := decodeHexUnits("123"); ok {
		t.Error("length not a multiple of 4 must fail")
	}
	if _, ok := decodeHexUnits("zzzz"); ok {
		t.Error("non-hex payload must fail")
	}
}

func TestPortableRewritesInsideKeptLines(t *testing.T) {
	script := "BEGIN TRANSACTION;\nINSERT INTO Decks VALUES(unistr('0041'));\nCOMMIT;"
	got := Portable(script)
	if !strings.Contains(got, "VALUES('A')") {
		t.Errorf("unistr not rewritten in kept line: %q", got)
	}
}
