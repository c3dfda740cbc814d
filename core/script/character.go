package script

import (
	"strings"
)

// Role says what kind of speaker a CharacterID names.
type Role int

const (
	// RoleUnknown means no speaker could be determined. It is the zero value.
	RoleUnknown Role = iota
	// RoleAmbiguous means more than one speaker is equally plausible.
	RoleAmbiguous
	// RoleNamed is a real character.
	RoleNamed
	// RoleNarrator is the book's narrator.
	RoleNarrator
	// RoleBookOrChapter reads book titles and chapter announcements.
	RoleBookOrChapter
	// RoleExtraBiblical reads section heads and other added material.
	RoleExtraBiblical
	// RoleIntro reads book introductions.
	RoleIntro
)

// CharacterID identifies who speaks a block. Sentinels and per-book
// structural roles are distinct roles, never magic names.
type CharacterID struct {
	Role Role
	Name string // set for RoleNamed
	Book string // set for the per-book roles
}

const (
	unknownText   = "Unknown"
	ambiguousText = "Ambiguous"
)

var rolePrefixes = []struct {
	role   Role
	prefix string
}{
	{RoleNarrator, "narrator-"},
	{RoleBookOrChapter, "BookOrChapter-"},
	{RoleExtraBiblical, "extra-"},
	{RoleIntro, "intro-"},
}

// Unknown returns the no-determinable-speaker sentinel.
func Unknown() CharacterID { return CharacterID{Role: RoleUnknown} }

// Ambiguous returns the several-plausible-speakers sentinel.
func Ambiguous() CharacterID { return CharacterID{Role: RoleAmbiguous} }

// Named returns a real character.
func Named(name string) CharacterID { return CharacterID{Role: RoleNamed, Name: name} }

// Narrator returns the narrator of book.
func Narrator(book string) CharacterID { return CharacterID{Role: RoleNarrator, Book: book} }

// BookOrChapter returns the title/chapter reader of book.
func BookOrChapter(book string) CharacterID {
	return CharacterID{Role: RoleBookOrChapter, Book: book}
}

// ExtraBiblical returns the section-head reader of book.
func ExtraBiblical(book string) CharacterID {
	return CharacterID{Role: RoleExtraBiblical, Book: book}
}

// Intro returns the introduction reader of book.
func Intro(book string) CharacterID { return CharacterID{Role: RoleIntro, Book: book} }

// ParseCharacterID is the inverse of String.
func ParseCharacterID(s string) CharacterID {
	switch s {
	case "", unknownText:
		return Unknown()
	case ambiguousText:
		return Ambiguous()
	}
	for _, rp := range rolePrefixes {
		if book, ok := strings.CutPrefix(s, rp.prefix); ok && book != "" {
			return CharacterID{Role: rp.role, Book: book}
		}
	}
	return Named(s)
}

func (c CharacterID) String() string {
	switch c.Role {
	case RoleUnknown:
		return unknownText
	case RoleAmbiguous:
		return ambiguousText
	case RoleNamed:
		return c.Name
	}
	for _, rp := range rolePrefixes {
		if rp.role == c.Role {
			return rp.prefix + c.Book
		}
	}
	return unknownText
}

// MarshalText implements encoding.TextMarshaler.
func (c CharacterID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CharacterID) UnmarshalText(b []byte) error {
	*c = ParseCharacterID(string(b))
	return nil
}

// IsUnclear reports whether c is the Unknown or Ambiguous sentinel.
func (c CharacterID) IsUnclear() bool {
	return c.Role == RoleUnknown || c.Role == RoleAmbiguous
}

// IsNarrator reports whether c is a narrator.
func (c CharacterID) IsNarrator() bool {
	return c.Role == RoleNarrator
}

// IsStructural reports whether c reads non-Scripture material the quote
// parser never segments.
func (c CharacterID) IsStructural() bool {
	switch c.Role {
	case RoleBookOrChapter, RoleExtraBiblical, RoleIntro:
		return true
	}
	return false
}

// IsStandard reports whether c is one of the per-book roles.
func (c CharacterID) IsStandard() bool {
	return c.IsNarrator() || c.IsStructural()
}

// Alternatives splits a "/"-joined name list. A plain name yields itself.
func (c CharacterID) Alternatives() []string {
	if c.Role != RoleNamed {
		return nil
	}
	parts := strings.Split(c.Name, "/")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasAlternatives reports whether c is a "/"-joined list of names.
func (c CharacterID) HasAlternatives() bool {
	return len(c.Alternatives()) > 1
}
