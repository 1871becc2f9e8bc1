// Package deck validates user-submitted deck exports: a stateful parse of
// the YDK card list, alias resolution, all-or-nothing card validation, and
// extraction of cosmetic metadata.
package deck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/haku/mddecks/internal/util"
)

// Sections of a YDK deck list.
const (
	SectionMain  = "main"
	SectionExtra = "extra"
	SectionSide  = "side"
)

// minMainCards is the acceptance threshold: a deck whose main section holds
// 5 or fewer cards is treated as an incomplete placeholder and rejected.
const minMainCards = 5

// Source is one scraped deck file as delivered by the listing API.
type Source struct {
	DeckID      string `json:"deckId"`
	DeckName    string `json:"deckName"`
	UserID      *int64 `json:"userId"`
	Contributor string `json:"deckContributor"`
	Like        int64  `json:"deckLike"`
	UploadDate  *int64 `json:"deckUploadDate"`
	UpdateDate  *int64 `json:"deckUpdateDate"`
	IsPublic    *bool  `json:"isPublic"`
	YDK         string `json:"deckYdk"`
}

// Deck is one validated Decks table row.
type Deck struct {
	DeckID      string
	DeckName    string
	UserID      *int64
	Contributor string
	Like        int64
	UploadDate  *int64
	UpdateDate  *int64
	IsPublic    bool
	YDK         string
	Case        int64
	Protector   int64
	Covers      [3]int64
}

// Entry is one DeckCards row: the multiplicity of a card within one section.
type Entry struct {
	CardID  int64
	Section string
	Count   int
}

var (
	casePattern      = regexp.MustCompile(`#case\s*(\d+)`)
	protectorPattern = regexp.MustCompile(`#protector\s*(\d+)`)
)

// Validate parses the deck's YDK text and resolves every card id through the
// alias map before checking it against validIDs. The first unknown id
// discards the whole deck (ErrUnknownCard); a deck whose main section is not
// larger than the threshold is rejected (ErrDeckTooSmall). Cosmetic fields
// and cover cards are extracted only for accepted decks.
func Validate(src Source, validIDs map[int64]struct{}, aliases map[int64]int64) (*Deck, []Entry, error) {
	if src.DeckID == "" {
		return nil, nil, fmt.Errorf("deck has no id: %w", util.ErrNotFound)
	}

	sections := map[string][]int64{
		SectionMain:  nil,
		SectionExtra: nil,
		SectionSide:  nil,
	}
	current := ""
	var mainOrder []int64

	for _, line := range strings.Split(src.YDK, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#main"):
			current = SectionMain
			continue
		case strings.HasPrefix(line, "#extra"):
			current = SectionExtra
			continue
		case strings.HasPrefix(line, "!side"):
			current = SectionSide
			continue
		case strings.HasPrefix(line, "#") || current == "":
			continue
		}

		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			util.WarnLog("Skipping non-integer line in deck %s: %q", src.DeckID, line)
			continue
		}

		// Resolve alias, then validate existence.
		canonical := id
		if orig, ok := aliases[id]; ok {
			canonical = orig
		}
		if _, ok := validIDs[canonical]; !ok {
			return nil, nil, fmt.Errorf("deck %s references card %d: %w", src.DeckID, id, util.ErrUnknownCard)
		}

		sections[current] = append(sections[current], canonical)
		if current == SectionMain {
			mainOrder = append(mainOrder, canonical)
		}
	}

	if len(sections[SectionMain]) <= minMainCards {
		return nil, nil, fmt.Errorf("deck %s has %d main cards: %w",
			src.DeckID, len(sections[SectionMain]), util.ErrDeckTooSmall)
	}

	name := src.DeckName
	if name == "" {
		name = "Unknown Name"
	}

	d := &Deck{
		DeckID:      src.DeckID,
		DeckName:    norm.NFC.String(name),
		UserID:      src.UserID,
		Contributor: src.Contributor,
		Like:        src.Like,
		UploadDate:  src.UploadDate,
		UpdateDate:  src.UpdateDate,
		IsPublic:    src.IsPublic == nil || *src.IsPublic,
		YDK:         src.YDK,
		Case:        extractDirective(casePattern, src.YDK),
		Protector:   extractDirective(protectorPattern, src.YDK),
	}
	for i := 0; i < 3 && i < len(mainOrder); i++ {
		d.Covers[i] = mainOrder[i]
	}

	var entries []Entry
	for _, section := range []string{SectionMain, SectionExtra, SectionSide} {
		entries = append(entries, countSection(sections[section], section)...)
	}

	return d, entries, nil
}

// countSection aggregates a section's id list into one entry per distinct
// card, preserving first-encounter order.
func countSection(ids []int64, section string) []Entry {
	counts := map[int64]int{}
	var order []int64
	for _, id := range ids {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	entries := make([]Entry, 0, len(order))
	for _, id := range order {
		entries = append(entries, Entry{CardID: id, Section: section, Count: counts[id]})
	}
	return entries
}

func extractDirective(pattern *regexp.Regexp, text string) int64 {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
