// Package query builds and runs parameterized deck searches against the
// local store. Every filter contributes its own join aliases so multiple
// values of the same filter compose as AND conditions.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/haku/mddecks/internal/store"
	"github.com/haku/mddecks/internal/util"
)

// Sort orders for deck results.
const (
	SortByLikes = "likes"
	SortByDate  = "date"
)

// Filter describes one deck search. Slice filters require a deck to contain
// at least one matching card per listed value. Date bounds apply to the
// upload timestamp, which the upstream stores in milliseconds.
type Filter struct {
	DeckName   string
	CnNames    []string
	EnNames    []string
	JpNames    []string
	Types      []string
	Races      []string
	Attributes []string
	Setcodes   []string
	LikesGE    *int64
	LikesLE    *int64
	AfterDate  string // YYYY-MM-DD
	BeforeDate string // YYYY-MM-DD
	SortBy     string
	Limit      int
}

// IsEmpty reports whether no search condition was given.
func (f *Filter) IsEmpty() bool {
	return f.DeckName == "" &&
		len(f.CnNames) == 0 && len(f.EnNames) == 0 && len(f.JpNames) == 0 &&
		len(f.Types) == 0 && len(f.Races) == 0 && len(f.Attributes) == 0 &&
		len(f.Setcodes) == 0 &&
		f.LikesGE == nil && f.LikesLE == nil &&
		f.AfterDate == "" && f.BeforeDate == ""
}

// builder accumulates joins, conditions and bound parameters.
type builder struct {
	joins      map[string]struct{}
	conditions []string
	params     []interface{}
}

func newBuilder() *builder {
	return &builder{joins: map[string]struct{}{}}
}

func (b *builder) join(clause string) {
	b.joins[clause] = struct{}{}
}

func (b *builder) where(condition string, param interface{}) {
	b.conditions = append(b.conditions, condition)
	b.params = append(b.params, param)
}

// cardNameFilter joins Decks to Cards once per searched name so decks
// containing all of the names match.
func (b *builder) cardNameFilter(names []string, column, tag string) {
	for i, name := range names {
		dc := fmt.Sprintf("DC_%s%d", tag, i)
		c := fmt.Sprintf("C_%s%d", tag, i)
		b.join(fmt.Sprintf("JOIN DeckCards AS %s ON D.deck_id = %s.deck_id", dc, dc))
		b.join(fmt.Sprintf("JOIN Cards AS %s ON %s.card_id = %s.id", c, dc, c))
		b.where(fmt.Sprintf("%s.%s LIKE ?", c, column), "%"+name+"%")
	}
}

// categoryFilter joins through a card-to-code link table into its lookup
// table and matches the lookup's name column.
func (b *builder) categoryFilter(values []string, linkTable, lookupTable, codeColumn, nameColumn, tag string, fuzzy bool) {
	for i, value := range values {
		dc := fmt.Sprintf("DC_%s%d", tag, i)
		link := fmt.Sprintf("L_%s%d", tag, i)
		lookup := fmt.Sprintf("K_%s%d", tag, i)
		b.join(fmt.Sprintf("JOIN DeckCards AS %s ON D.deck_id = %s.deck_id", dc, dc))
		b.join(fmt.Sprintf("JOIN %s AS %s ON %s.card_id = %s.card_id", linkTable, link, dc, link))
		b.join(fmt.Sprintf("JOIN %s AS %s ON %s.%s = %s.%s", lookupTable, lookup, link, codeColumn, lookup, codeColumn))
		if fuzzy {
			b.where(fmt.Sprintf("%s.%s LIKE ?", lookup, nameColumn), "%"+value+"%")
		} else {
			b.where(fmt.Sprintf("%s.%s = ?", lookup, nameColumn), value)
		}
	}
}

// Build renders the filter into a SQL statement plus bound parameters.
func Build(f *Filter) (string, []interface{}, error) {
	b := newBuilder()

	if f.DeckName != "" {
		b.where("D.deck_name LIKE ?", "%"+f.DeckName+"%")
	}

	b.cardNameFilter(f.CnNames, "cn_name", "cn")
	b.cardNameFilter(f.EnNames, "en_name", "en")
	b.cardNameFilter(f.JpNames, "jp_name", "jp")

	b.categoryFilter(f.Types, "CardToType", "CardTypes", "type_code", "type_name", "type", false)
	b.categoryFilter(f.Races, "CardToRace", "Races", "race_code", "race_name", "race", false)
	b.categoryFilter(f.Attributes, "CardToAttribute", "Attributes", "attribute_code", "attribute_name", "attr", false)
	// Setcode names often carry qualifier suffixes, so these match fuzzily.
	b.categoryFilter(f.Setcodes, "CardToSetcode", "Setcodes", "set_code", "set_name_cn", "set", true)

	if f.LikesGE != nil {
		b.where("D.deck_like >= ?", *f.LikesGE)
	}
	if f.LikesLE != nil {
		b.where("D.deck_like <= ?", *f.LikesLE)
	}

	if f.AfterDate != "" {
		ts, err := dateToMillis(f.AfterDate)
		if err != nil {
			return "", nil, err
		}
		b.where("D.upload_date >= ?", ts)
	}
	if f.BeforeDate != "" {
		ts, err := dateToMillis(f.BeforeDate)
		if err != nil {
			return "", nil, err
		}
		b.where("D.upload_date <= ?", ts)
	}

	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT D.* FROM Decks AS D")

	if len(b.joins) > 0 {
		joins := make([]string, 0, len(b.joins))
		for j := range b.joins {
			joins = append(joins, j)
		}
		sort.Strings(joins)
		sb.WriteString(" ")
		sb.WriteString(strings.Join(joins, " "))
	}
	if len(b.conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conditions, " AND "))
	}

	switch f.SortBy {
	case SortByDate:
		sb.WriteString(" ORDER BY D.update_date DESC")
	case SortByLikes, "":
		sb.WriteString(" ORDER BY D.deck_like DESC")
	default:
		return "", nil, fmt.Errorf("unknown sort order %q: %w", f.SortBy, util.ErrInvalidConfig)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	sb.WriteString(" LIMIT ?")
	b.params = append(b.params, limit)

	return sb.String(), b.params, nil
}

// Run executes the filter against a connected store.
func Run(conn store.Connector, f *Filter) ([]store.Row, error) {
	sql, params, err := Build(f)
	if err != nil {
		return nil, err
	}
	util.DebugLog("Deck query: %s %v", sql, params)
	return conn.Query(sql, params...)
}

// dateToMillis converts a YYYY-MM-DD date to a millisecond timestamp, the
// unit the upstream uses for deck dates.
func dateToMillis(date string) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	return t.UnixMilli(), nil
}
