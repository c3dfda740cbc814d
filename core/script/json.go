package script

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

type elementJSON struct {
	Verse string  `json:"verse,omitempty"`
	Text  *string `json:"text,omitempty"`
}

type blockJSON struct {
	ID                string          `json:"id"`
	SourceID          string          `json:"source_id,omitempty"`
	StyleTag          string          `json:"style"`
	IsParagraphStart  bool            `json:"paragraph_start,omitempty"`
	ChapterNumber     int             `json:"chapter"`
	InitialStartVerse int             `json:"start_verse"`
	InitialEndVerse   int             `json:"end_verse,omitempty"`
	Elements          []elementJSON   `json:"elements"`
	CharacterID       CharacterID     `json:"character"`
	Override          string          `json:"character_override,omitempty"`
	Delivery          string          `json:"delivery,omitempty"`
	MultiBlockQuote   MultiBlockQuote `json:"multi_block_quote,omitempty"`
	UserConfirmed     bool            `json:"user_confirmed,omitempty"`
	CombinedReference bool            `json:"combined_reference,omitempty"`
	ReferenceBlock    *Block          `json:"reference,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b *Block) MarshalJSON() ([]byte, error) {
	out := blockJSON{
		ID:                b.ID,
		SourceID:          b.SourceID,
		StyleTag:          b.StyleTag,
		IsParagraphStart:  b.IsParagraphStart,
		ChapterNumber:     b.ChapterNumber,
		InitialStartVerse: b.InitialStartVerse,
		InitialEndVerse:   b.InitialEndVerse,
		Elements:          make([]elementJSON, 0, len(b.Elements)),
		CharacterID:       b.CharacterID,
		Override:          b.CharacterIDOverrideForScript,
		Delivery:          b.Delivery,
		MultiBlockQuote:   b.MultiBlockQuote,
		UserConfirmed:     b.UserConfirmed,
		CombinedReference: b.CombinedReference,
		ReferenceBlock:    b.ReferenceBlock,
	}
	for _, e := range b.Elements {
		switch el := e.(type) {
		case *Verse:
			out.Elements = append(out.Elements, elementJSON{Verse: el.Number})
		case *Text:
			content := el.Content
			out.Elements = append(out.Elements, elementJSON{Text: &content})
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Block) UnmarshalJSON(data []byte) error {
	var in blockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*b = Block{
		ID:                           in.ID,
		SourceID:                     in.SourceID,
		StyleTag:                     in.StyleTag,
		IsParagraphStart:             in.IsParagraphStart,
		ChapterNumber:                in.ChapterNumber,
		InitialStartVerse:            in.InitialStartVerse,
		InitialEndVerse:              in.InitialEndVerse,
		CharacterID:                  in.CharacterID,
		CharacterIDOverrideForScript: in.Override,
		Delivery:                     in.Delivery,
		MultiBlockQuote:              in.MultiBlockQuote,
		UserConfirmed:                in.UserConfirmed,
		CombinedReference:            in.CombinedReference,
		ReferenceBlock:               in.ReferenceBlock,
	}
	for i, e := range in.Elements {
		switch {
		case e.Verse != "" && e.Text == nil:
			b.Elements = append(b.Elements, &Verse{Number: e.Verse})
		case e.Verse == "" && e.Text != nil:
			b.Elements = append(b.Elements, NewText(*e.Text))
		default:
			return errors.NewParse("script", "", fmt.Sprintf("block %s element %d must be exactly one of verse or text", in.ID, i))
		}
	}
	return nil
}

type bookJSON struct {
	BookID string   `json:"book"`
	Blocks []*Block `json:"blocks"`
}

// MarshalJSON implements json.Marshaler.
func (s *BookScript) MarshalJSON() ([]byte, error) {
	blocks := s.Blocks
	if blocks == nil {
		blocks = []*Block{}
	}
	return json.Marshal(bookJSON{BookID: s.BookID, Blocks: blocks})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *BookScript) UnmarshalJSON(data []byte) error {
	var in bookJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.BookID = in.BookID
	s.Blocks = in.Blocks
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m MultiBlockQuote) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MultiBlockQuote) UnmarshalText(b []byte) error {
	for i, name := range multiBlockNames {
		if name == string(b) {
			*m = MultiBlockQuote(i)
			return nil
		}
	}
	return errors.NewValidation("multi_block_quote", fmt.Sprintf("unknown value %q", string(b)))
}
