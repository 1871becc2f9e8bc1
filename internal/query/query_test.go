package query

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDefaultsToLikesSortAndLimit(t *testing.T) {
	sql, params, err := Build(&Filter{DeckName: "Blue-Eyes"})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(sql, "SELECT DISTINCT D.* FROM Decks AS D") {
		t.Errorf("unexpected base query: %s", sql)
	}
	if !strings.Contains(sql, "D.deck_name LIKE ?") {
		t.Errorf("deck name condition missing: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY D.deck_like DESC") {
		t.Errorf("default sort missing: %s", sql)
	}
	if !strings.HasSuffix(sql, "LIMIT ?") {
		t.Errorf("limit missing: %s", sql)
	}

	// Name pattern plus default limit.
	if len(params) != 2 {
		t.Fatalf("params = %v, want 2 entries", params)
	}
	if params[0] != "%Blue-Eyes%" {
		t.Errorf("name param = %v", params[0])
	}
	if params[1] != 10 {
		t.Errorf("default limit = %v, want 10", params[1])
	}
}

func TestBuildCardNameJoinsPerValue(t *testing.T) {
	sql, params, err := Build(&Filter{EnNames: []string{"Blue-Eyes", "Stardust"}})
	if err != nil {
		t.Fatal(err)
	}

	// Each searched name gets its own DeckCards/Cards join pair so the
	// conditions AND together instead of matching the same card twice.
	if !strings.Contains(sql, "DC_en0") || !strings.Contains(sql, "DC_en1") {
		t.Errorf("expected one join alias per name: %s", sql)
	}
	if strings.Count(sql, "JOIN DeckCards") != 2 || strings.Count(sql, "JOIN Cards") != 2 {
		t.Errorf("expected 2 join pairs: %s", sql)
	}
	if len(params) != 3 { // two patterns + limit
		t.Errorf("params = %v", params)
	}
}

func TestBuildCategoryFilters(t *testing.T) {
	sql, params, err := Build(&Filter{
		Races:    []string{"Dragon"},
		Setcodes: []string{"HERO"},
		SortBy:   SortByDate,
		Limit:    5,
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(sql, "JOIN CardToRace") || !strings.Contains(sql, "JOIN Races") {
		t.Errorf("race join chain missing: %s", sql)
	}
	if !strings.Contains(sql, "race_name = ?") {
		t.Errorf("race match must be exact: %s", sql)
	}
	if !strings.Contains(sql, "set_name_cn LIKE ?") {
		t.Errorf("setcode match must be fuzzy: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY D.update_date DESC") {
		t.Errorf("date sort missing: %s", sql)
	}

	if params[0] != "Dragon" {
		t.Errorf("race param = %v", params[0])
	}
	if params[1] != "%HERO%" {
		t.Errorf("setcode param = %v", params[1])
	}
	if params[2] != 5 {
		t.Errorf("limit param = %v", params[2])
	}
}

func TestBuildLikesAndDateBounds(t *testing.T) {
	ge, le := int64(100), int64(500)
	sql, params, err := Build(&Filter{
		LikesGE:   &ge,
		LikesLE:   &le,
		AfterDate: "2024-01-15",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(sql, "D.deck_like >= ?") || !strings.Contains(sql, "D.deck_like <= ?") {
		t.Errorf("likes bounds missing: %s", sql)
	}
	if !strings.Contains(sql, "D.upload_date >= ?") {
		t.Errorf("date bound missing: %s", sql)
	}

	// Dates bind as millisecond timestamps.
	wantTS := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local).UnixMilli()
	if params[2] != wantTS {
		t.Errorf("date param = %v, want %d", params[2], wantTS)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	if _, _, err := Build(&Filter{AfterDate: "15/01/2024"}); err == nil {
		t.Error("expected error for malformed date")
	}
	if _, _, err := Build(&Filter{SortBy: "alphabetical"}); err == nil {
		t.Error("expected error for unknown sort order")
	}
}

func TestBuildDeterministicJoinOrder(t *testing.T) {
	f := &Filter{CnNames: []string{"a", "b"}, Races: []string{"x"}}
	first, _, err := Build(f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := Build(f)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("join order not stable:\n%s\n%s", first, again)
		}
	}
}

func TestFilterIsEmpty(t *testing.T) {
	if !(&Filter{SortBy: SortByLikes, Limit: 20}).IsEmpty() {
		t.Error("sort and limit alone do not make a search")
	}
	if (&Filter{DeckName: "x"}).IsEmpty() {
		t.Error("deck name is a search condition")
	}
	ge := int64(1)
	if (&Filter{LikesGE: &ge}).IsEmpty() {
		t.Error("likes bound is a search condition")
	}
}
