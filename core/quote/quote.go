// Package quote describes a project's quotation-mark conventions: the
// open/close/continuer glyphs of each nesting level and the optional
// dialogue-dash markers.
package quote

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// MaxLevels is the deepest quote nesting the parser tracks.
const MaxLevels = 3

// MarkType distinguishes ordinary quotation marks from marks that set off
// narrator text inside a quotation.
type MarkType int

const (
	// Normal marks enclose speech.
	Normal MarkType = iota
	// Narrative marks enclose narrator text interrupting speech.
	Narrative
)

func (t MarkType) String() string {
	if t == Narrative {
		return "narrative"
	}
	return "normal"
}

// MarshalYAML implements yaml.Marshaler.
func (t MarkType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler via a plain string.
func (t *MarkType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		*t = Normal
	case "narrative":
		*t = Narrative
	default:
		return errors.NewValidation("type", fmt.Sprintf("unknown quotation mark type %q", s))
	}
	return nil
}

// QuotationMark is one nesting level's marks.
type QuotationMark struct {
	Level    int      `yaml:"level" json:"level"`
	Open     string   `yaml:"open" json:"open"`
	Close    string   `yaml:"close" json:"close"`
	Continue string   `yaml:"continue,omitempty" json:"continue,omitempty"`
	Type     MarkType `yaml:"type,omitempty" json:"type,omitempty"`
}

// Continuer returns the glyphs that begin a paragraph continuing this level.
func (m QuotationMark) Continuer() string {
	if m.Continue != "" {
		return m.Continue
	}
	return m.Open
}

func (m QuotationMark) String() string {
	return fmt.Sprintf("%d:%s…%s", m.Level, m.Open, m.Close)
}

// DialogueEnd says what terminates a dialogue-dash quote.
type DialogueEnd int

const (
	// EndsAtParagraph closes a dialogue quote at the end of its paragraph.
	EndsAtParagraph DialogueEnd = iota
	// EndsAtMarker closes a dialogue quote at DialogueCloser.
	EndsAtMarker
	// EndsAtSentence closes a dialogue quote after the first sentence ender.
	EndsAtSentence
)

// MarshalYAML implements yaml.Marshaler.
func (d DialogueEnd) MarshalYAML() (interface{}, error) {
	switch d {
	case EndsAtMarker:
		return "marker", nil
	case EndsAtSentence:
		return "sentence", nil
	}
	return "paragraph", nil
}

// UnmarshalYAML implements yaml.Unmarshaler via a plain string.
func (d *DialogueEnd) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paragraph":
		*d = EndsAtParagraph
	case "marker":
		*d = EndsAtMarker
	case "sentence":
		*d = EndsAtSentence
	default:
		return errors.NewValidation("dialogue_end", fmt.Sprintf("unknown dialogue end %q", s))
	}
	return nil
}

// DefaultSentenceEnders is used when a System does not list its own.
const DefaultSentenceEnders = ".?!"

// System is a project's full quoting convention.
type System struct {
	Levels         []QuotationMark `yaml:"levels" json:"levels"`
	DialogueOpener string          `yaml:"dialogue_opener,omitempty" json:"dialogue_opener,omitempty"`
	DialogueCloser string          `yaml:"dialogue_closer,omitempty" json:"dialogue_closer,omitempty"`
	DialogueEnd    DialogueEnd     `yaml:"dialogue_end,omitempty" json:"dialogue_end,omitempty"`
	SentenceEnders string          `yaml:"sentence_enders,omitempty" json:"sentence_enders,omitempty"`
}

// Default returns the guillemet system: « » with ‹ › nested and « » again at
// level three.
func Default() System {
	l1 := QuotationMark{Level: 1, Open: "«", Close: "»", Continue: "«"}
	l2 := DefaultLevel2(l1)
	return System{Levels: []QuotationMark{l1, l2, DefaultLevel3(l1, l2)}}
}

// Level returns the marks for a 1-based level.
func (s System) Level(level int) (QuotationMark, bool) {
	for _, m := range s.Levels {
		if m.Level == level {
			return m, true
		}
	}
	return QuotationMark{}, false
}

// HasDialogue reports whether dialogue-dash quotes are configured.
func (s System) HasDialogue() bool {
	return s.DialogueOpener != ""
}

// Enders returns the configured sentence-ending characters.
func (s System) Enders() string {
	if s.SentenceEnders != "" {
		return s.SentenceEnders
	}
	return DefaultSentenceEnders
}

// Validate reports configuration a parser cannot use.
func (s System) Validate() error {
	prev := 0
	for i, m := range s.Levels {
		field := fmt.Sprintf("levels[%d]", i)
		if m.Level <= prev {
			return errors.NewValidation(field, "levels must be strictly increasing")
		}
		if m.Open == "" {
			return errors.NewValidation(field, "open mark is required")
		}
		prev = m.Level
	}
	if s.DialogueEnd == EndsAtMarker && s.DialogueCloser == "" {
		return errors.NewValidation("dialogue_closer", "required when dialogue ends at a marker")
	}
	return nil
}

// Normalize returns a copy the parser can consume. Levels beyond MaxLevels
// are dropped, missing continuers are derived, and a lone first level with no
// close mark is treated as a dialogue opener.
func (s System) Normalize() System {
	out := s
	out.Levels = nil
	if len(s.Levels) == 1 && s.Levels[0].Close == "" {
		if out.DialogueOpener == "" {
			out.DialogueOpener = s.Levels[0].Open
		}
		return out
	}
	continuer := ""
	for _, m := range s.Levels {
		if m.Level > MaxLevels || m.Open == "" || m.Close == "" {
			continue
		}
		if m.Continue == "" {
			if continuer == "" {
				m.Continue = m.Open
			} else {
				m.Continue = continuer + " " + m.Open
			}
		}
		continuer = m.Continue
		out.Levels = append(out.Levels, m)
	}
	if out.DialogueEnd == EndsAtMarker && out.DialogueCloser == "" {
		out.DialogueEnd = EndsAtParagraph
	}
	return out
}
