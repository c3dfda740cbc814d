package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// Segment is one piece of annotated text: either a verse token or a run of
// plain text.
type Segment struct {
	Verse string // "5" or "5-6"; empty for text
	Text  string
}

// IsVerse reports whether the segment is a verse token.
func (s Segment) IsVerse() bool {
	return s.Verse != ""
}

//nolint:govet // participle grammar tags are not standard struct tags
type annotated struct {
	Parts []*annotatedPart `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type annotatedPart struct {
	Verse *string `  @Verse`
	Text  *string `| @Text`
}

// tokenLexer keeps every character: a brace that does not start a verse
// token lexes as text.
var tokenLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Verse", Pattern: `\{[0-9]+(?:-[0-9]+)?\}`},
	{Name: "Text", Pattern: `[^{]+|\{`},
})

var tokenParser = participle.MustBuild[annotated](
	participle.Lexer(tokenLexer),
)

// ParseVerseTokens splits s into verse tokens and text runs. Adjacent text
// runs are merged.
func ParseVerseTokens(s string) ([]Segment, error) {
	if s == "" {
		return nil, nil
	}
	parsed, err := tokenParser.ParseString("", s)
	if err != nil {
		return nil, &errors.ParseError{Format: "verse tokens", Message: err.Error(), Err: err}
	}
	var out []Segment
	for _, p := range parsed.Parts {
		switch {
		case p.Verse != nil:
			out = append(out, Segment{Verse: strings.Trim(*p.Verse, "{}")})
		case p.Text != nil:
			if n := len(out); n > 0 && !out[n-1].IsVerse() {
				out[n-1].Text += *p.Text
				continue
			}
			out = append(out, Segment{Text: *p.Text})
		}
	}
	return out, nil
}

// LeadingVerse returns the verse token that starts s, ignoring leading
// whitespace.
func LeadingVerse(s string) (string, bool) {
	segs, err := ParseVerseTokens(strings.TrimLeft(s, " \t"))
	if err != nil || len(segs) == 0 || !segs[0].IsVerse() {
		return "", false
	}
	return segs[0].Verse, true
}

// ParseVerseNumber splits "3" or "3-4" into its start and end verse. The end
// equals the start for a single verse.
func ParseVerseNumber(s string) (start, end int, err error) {
	first, last, isBridge := strings.Cut(strings.TrimSpace(s), "-")
	start, err = strconv.Atoi(first)
	if err != nil || start < 0 {
		return 0, 0, errors.NewValidation("verse", fmt.Sprintf("invalid verse number %q", s))
	}
	if !isBridge {
		return start, start, nil
	}
	end, err = strconv.Atoi(last)
	if err != nil || end < start {
		return 0, 0, errors.NewValidation("verse", fmt.Sprintf("invalid verse bridge %q", s))
	}
	return start, end, nil
}

// FormatVerseNumber is the inverse of ParseVerseNumber.
func FormatVerseNumber(start, end int) string {
	if end > start {
		return strconv.Itoa(start) + "-" + strconv.Itoa(end)
	}
	return strconv.Itoa(start)
}
