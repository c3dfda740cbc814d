package script

import (
	"github.com/FocuswithJustin/JuniperScript/core/ref"
)

// BlockElement is an atomic piece of block content: a *Verse or a *Text.
type BlockElement interface {
	Clone() BlockElement
	isBlockElement()
}

// Verse marks the start of a verse or verse bridge.
type Verse struct {
	Number string // "3" or "3-4"
}

// NewVerse returns a verse marker for start..end.
func NewVerse(start, end int) *Verse {
	return &Verse{Number: ref.FormatVerseNumber(start, end)}
}

// Clone returns a copy of the marker.
func (v *Verse) Clone() BlockElement { c := *v; return &c }

func (*Verse) isBlockElement() {}

// Range returns the first and last verse of the marker. Malformed numbers
// yield zeros.
func (v *Verse) Range() (start, end int) {
	start, end, err := ref.ParseVerseNumber(v.Number)
	if err != nil {
		return 0, 0
	}
	return start, end
}

// StartVerse returns the first verse of the marker.
func (v *Verse) StartVerse() int {
	s, _ := v.Range()
	return s
}

// EndVerse returns the last verse of the marker.
func (v *Verse) EndVerse() int {
	_, e := v.Range()
	return e
}

// Text is a run of Scripture text.
type Text struct {
	Content string
}

// NewText returns a text run.
func NewText(content string) *Text {
	return &Text{Content: content}
}

// Clone returns a copy of the run.
func (t *Text) Clone() BlockElement { c := *t; return &c }

func (*Text) isBlockElement() {}
