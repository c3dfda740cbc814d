// Package charverse answers "who may be speaking here": for a book, chapter
// and verse it lists the candidate characters and deliveries known from
// control data. Tables are immutable once built and safe for concurrent use.
package charverse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// QuoteType qualifies how a candidate speaks in a verse.
type QuoteType int

const (
	// Normal speech, normally set off by quotation marks.
	Normal QuoteType = iota
	// Implicit speech: the whole verse is spoken even without marks.
	Implicit
	// Alternate speakers are listed for reference but never auto-assigned.
	Alternate
	// Indirect speech is reported by the narrator, not quoted.
	Indirect
)

var quoteTypeNames = [...]string{"Normal", "Implicit", "Alternate", "Indirect"}

func (q QuoteType) String() string {
	if int(q) < len(quoteTypeNames) {
		return quoteTypeNames[q]
	}
	return quoteTypeNames[Normal]
}

// ParseQuoteType accepts the names String produces, case-insensitively. An
// empty string is Normal.
func ParseQuoteType(s string) (QuoteType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Normal, nil
	}
	for i, name := range quoteTypeNames {
		if strings.EqualFold(name, s) {
			return QuoteType(i), nil
		}
	}
	return Normal, errors.NewValidation("quote_type", fmt.Sprintf("unknown quote type %q", s))
}

// Candidate is one (character, delivery) pair known for a verse.
type Candidate struct {
	Character string
	Delivery  string
	QuoteType QuoteType
}

// Speaks reports whether the candidate can be assigned to quoted text.
func (c Candidate) Speaks() bool {
	return c.QuoteType == Normal || c.QuoteType == Implicit
}

// Lookup is the read-only control-data contract. Implementations are total:
// unknown references yield an empty result, never an error.
type Lookup interface {
	Candidates(book string, chapter, verse int) []Candidate
}

// Entry is one row of control data.
type Entry struct {
	Book    string
	Chapter int
	Verse   int
	Candidate
}

type verseKey struct {
	book    string
	chapter int
	verse   int
}

// Table is an immutable in-memory Lookup.
type Table struct {
	entries map[verseKey][]Candidate
	size    int
}

// NewTable indexes entries. Duplicate (character, delivery) pairs for a
// verse are kept once, first type wins.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: make(map[verseKey][]Candidate)}
	for _, e := range entries {
		k := verseKey{strings.ToUpper(e.Book), e.Chapter, e.Verse}
		dup := false
		for _, c := range t.entries[k] {
			if c.Character == e.Character && c.Delivery == e.Delivery {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		t.entries[k] = append(t.entries[k], e.Candidate)
		t.size++
	}
	return t
}

// Candidates implements Lookup. The returned slice is a copy.
func (t *Table) Candidates(book string, chapter, verse int) []Candidate {
	if t == nil {
		return nil
	}
	cands := t.entries[verseKey{strings.ToUpper(book), chapter, verse}]
	if len(cands) == 0 {
		return nil
	}
	out := make([]Candidate, len(cands))
	copy(out, cands)
	return out
}

// Len returns the number of distinct rows.
func (t *Table) Len() int {
	return t.size
}

// Entries returns every row, ordered by book, chapter, verse, then insertion.
func (t *Table) Entries() []Entry {
	keys := make([]verseKey, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.book != b.book {
			return a.book < b.book
		}
		if a.chapter != b.chapter {
			return a.chapter < b.chapter
		}
		return a.verse < b.verse
	})
	out := make([]Entry, 0, t.size)
	for _, k := range keys {
		for _, c := range t.entries[k] {
			out = append(out, Entry{Book: k.book, Chapter: k.chapter, Verse: k.verse, Candidate: c})
		}
	}
	return out
}
