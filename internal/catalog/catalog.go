// Package catalog models the raw card catalog (cards.json) and expands each
// record into a normalized card row plus its category relation rows.
package catalog

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/haku/mddecks/internal/parse"
	"github.com/haku/mddecks/internal/util"
)

// RawCard is one record of the cards.json catalog. Stats are pointers so a
// missing field (spell/trap cards have no atk/def/level) stays NULL in the
// store instead of collapsing to zero.
type RawCard struct {
	ID     int64  `json:"id"`
	CID    *int64 `json:"cid"`
	CnName string `json:"cn_name"`
	JpName string `json:"jp_name"`
	EnName string `json:"en_name"`
	Text   struct {
		Types string `json:"types"`
		Desc  string `json:"desc"`
	} `json:"text"`
	Data struct {
		Atk       *int64 `json:"atk"`
		Def       *int64 `json:"def"`
		Level     *int64 `json:"level"`
		Race      int64  `json:"race"`
		Attribute int64  `json:"attribute"`
		Type      int64  `json:"type"`
		Setcode   int64  `json:"setcode"`
	} `json:"data"`
}

// CardRow is one normalized Cards table row.
type CardRow struct {
	ID      int64
	CID     *int64
	CnName  string
	JpName  string
	EnName  string
	Types   string
	Desc    string
	Atk     *int64
	Def     *int64
	Level   *int64
}

// Relation asserts that a card exhibits a category code.
type Relation struct {
	CardID int64
	Code   int64
}

// Decomposed holds the buffered rows produced from one pass over the catalog.
type Decomposed struct {
	Cards      []CardRow
	Races      []Relation
	Attributes []Relation
	Types      []Relation
	Setcodes   []Relation
}

// Load reads and unmarshals the cards.json catalog.
func Load(path string) (map[string]RawCard, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cards map[string]RawCard
	if err := json.Unmarshal(content, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Decompose expands every catalog record into a card row and its relation
// rows. Race/Attribute/Type use bitwise-membership decomposition: a code c
// matches a bitmask m iff (m & c) == c, so composite codes spanning several
// bits match exactly, and one card may match several codes. Setcode is a
// single exact-value lookup, not bit decomposition.
//
// Iteration is in sorted key order so repeated builds emit identical rows.
func Decompose(cards map[string]RawCard, maps parse.ConstantMaps, setcodes parse.SetcodeMap) Decomposed {
	var out Decomposed

	raceCodes := sortedCodes(maps.Race)
	attrCodes := sortedCodes(maps.Attribute)
	typeCodes := sortedCodes(maps.Type)

	keys := make([]string, 0, len(cards))
	for k := range cards {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		card := cards[key]
		if card.ID == 0 {
			util.WarnLog("Skipping card with no id (key %q)", key)
			continue
		}

		out.Cards = append(out.Cards, CardRow{
			ID:     card.ID,
			CID:    card.CID,
			CnName: card.CnName,
			JpName: card.JpName,
			EnName: card.EnName,
			Types:  card.Text.Types,
			Desc:   card.Text.Desc,
			Atk:    card.Data.Atk,
			Def:    card.Data.Def,
			Level:  card.Data.Level,
		})

		for _, code := range raceCodes {
			if card.Data.Race&code == code {
				out.Races = append(out.Races, Relation{CardID: card.ID, Code: code})
			}
		}
		for _, code := range attrCodes {
			if card.Data.Attribute&code == code {
				out.Attributes = append(out.Attributes, Relation{CardID: card.ID, Code: code})
			}
		}
		for _, code := range typeCodes {
			if card.Data.Type&code == code {
				out.Types = append(out.Types, Relation{CardID: card.ID, Code: code})
			}
		}

		if sc := card.Data.Setcode; sc != 0 {
			if _, ok := setcodes[sc]; ok {
				out.Setcodes = append(out.Setcodes, Relation{CardID: card.ID, Code: sc})
			}
		}
	}

	return out
}

func sortedCodes(m parse.ConstantMap) []int64 {
	codes := make([]int64, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
