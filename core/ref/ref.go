// Package ref parses verse references ("MAT 5:3-12") and the inline verse
// tokens ("{5}", "{5-6}") users type into reference-text cells.
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// Ref is a reference to a verse or verse range within one chapter.
type Ref struct {
	// Book is the three-character USFM book code (e.g., "MAT", "1SA").
	Book string `json:"book"`

	// Chapter is the chapter number (0 for whole-book references).
	Chapter int `json:"chapter,omitempty"`

	// Verse is the first verse (0 for whole-chapter references).
	Verse int `json:"verse,omitempty"`

	// VerseEnd is the last verse of a range (0 when not a range).
	VerseEnd int `json:"verse_end,omitempty"`
}

// refGrammar is the participle grammar for references.
// Examples: "MAT", "MAT 5", "MAT 5:3", "MAT 5:3-12", "1SA 17:45"
//
//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Book    string       `@Book`
	Chapter *chapterPart `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterPart struct {
	Chapter int        `@Int`
	Verse   *versePart `( ":" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type versePart struct {
	Start int  `@Int`
	End   *int `( "-" @Int )?`
}

// refLexer lists Book before Int so a leading digit stays part of "1SA".
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Book", Pattern: `[1-4]?[A-Z][A-Z0-9]{1,2}`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a reference string.
func Parse(s string) (*Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewParse("reference", "", "empty reference string")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return nil, &errors.ParseError{Format: "reference", Message: fmt.Sprintf("invalid reference %q", s), Err: err}
	}

	r := &Ref{Book: parsed.Book}
	if parsed.Chapter != nil {
		r.Chapter = parsed.Chapter.Chapter
		if v := parsed.Chapter.Verse; v != nil {
			r.Verse = v.Start
			if v.End != nil {
				if *v.End < v.Start {
					return nil, errors.NewParse("reference", "", fmt.Sprintf("range %q runs backwards", s))
				}
				if *v.End > v.Start {
					r.VerseEnd = *v.End
				}
			}
		}
	}
	return r, nil
}

// String renders the reference in the form Parse accepts.
func (r *Ref) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	if r.Chapter > 0 {
		sb.WriteString(" ")
		sb.WriteString(strconv.Itoa(r.Chapter))
		if r.Verse > 0 {
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(r.Verse))
			if r.VerseEnd > r.Verse {
				sb.WriteString("-")
				sb.WriteString(strconv.Itoa(r.VerseEnd))
			}
		}
	}
	return sb.String()
}

// IsRange returns true if this reference spans multiple verses.
func (r *Ref) IsRange() bool {
	return r.VerseEnd > r.Verse
}

// LastVerse returns the final verse the reference covers.
func (r *Ref) LastVerse() int {
	if r.IsRange() {
		return r.VerseEnd
	}
	return r.Verse
}

// Verses calls fn for each verse covered by the reference.
func (r *Ref) Verses(fn func(verse int)) {
	for v := r.Verse; v <= r.LastVerse(); v++ {
		fn(v)
	}
}
