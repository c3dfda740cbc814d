// Package script holds the document model shared by the quote parser and the
// block matchup engine: blocks, their elements, and the book they make up.
package script

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// MultiBlockQuote places a block within a quotation spanning several blocks.
type MultiBlockQuote int

const (
	// MultiBlockNone is a block that is not part of a multi-block quote.
	MultiBlockNone MultiBlockQuote = iota
	// MultiBlockStart opens a multi-block quote.
	MultiBlockStart
	// MultiBlockContinuation continues the quote of the preceding block.
	MultiBlockContinuation
	// MultiBlockChangeOfDelivery continues the quote with a different delivery.
	MultiBlockChangeOfDelivery
)

var multiBlockNames = [...]string{"none", "start", "continuation", "change_of_delivery"}

func (m MultiBlockQuote) String() string {
	if int(m) < len(multiBlockNames) {
		return multiBlockNames[m]
	}
	return "none"
}

// IsContinuation reports whether m links a block to the one before it.
func (m MultiBlockQuote) IsContinuation() bool {
	return m == MultiBlockContinuation || m == MultiBlockChangeOfDelivery
}

// Block is one paragraph-like unit of a script, or the same shape holding
// reference-language text when owned by another block's ReferenceBlock.
type Block struct {
	// ID is stable across clones; splitting assigns the new half a fresh ID.
	ID string
	// SourceID is the ID of the block this one was cut from by quote
	// parsing or splitting. Empty for a block that is its own source.
	SourceID string

	StyleTag          string
	IsParagraphStart  bool
	ChapterNumber     int
	InitialStartVerse int
	InitialEndVerse   int
	Elements          []BlockElement

	CharacterID                  CharacterID
	CharacterIDOverrideForScript string
	Delivery                     string
	MultiBlockQuote              MultiBlockQuote
	UserConfirmed                bool

	// CombinedReference marks a reference block built by joining several.
	CombinedReference bool

	// ReferenceBlock is the matched block in the next reference layer. The
	// owning block holds it exclusively.
	ReferenceBlock *Block
}

// NewBlock returns an empty block with a fresh ID.
func NewBlock(style string, chapter, startVerse, endVerse int) *Block {
	if endVerse < startVerse {
		endVerse = startVerse
	}
	return &Block{
		ID:                uuid.NewString(),
		StyleTag:          style,
		ChapterNumber:     chapter,
		InitialStartVerse: startVerse,
		InitialEndVerse:   endVerse,
	}
}

// Clone returns a deep copy, including the reference chain.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Elements = make([]BlockElement, len(b.Elements))
	for i, e := range b.Elements {
		c.Elements[i] = e.Clone()
	}
	c.ReferenceBlock = b.ReferenceBlock.Clone()
	return &c
}

// Lineage returns the ID of the block b was originally cut from.
func (b *Block) Lineage() string {
	if b.SourceID != "" {
		return b.SourceID
	}
	return b.ID
}

// CloneWithoutReferences returns a deep copy with no reference chain.
func (b *Block) CloneWithoutReferences() *Block {
	ref := b.ReferenceBlock
	b.ReferenceBlock = nil
	c := b.Clone()
	b.ReferenceBlock = ref
	return c
}

// Text returns the block text without verse numbers.
func (b *Block) Text() string {
	var sb strings.Builder
	for _, e := range b.Elements {
		if t, ok := e.(*Text); ok {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

// TextWithVerses returns the block text with verse markers rendered as {n}.
func (b *Block) TextWithVerses() string {
	var sb strings.Builder
	for _, e := range b.Elements {
		switch el := e.(type) {
		case *Text:
			sb.WriteString(el.Content)
		case *Verse:
			sb.WriteString("{" + el.Number + "}")
		}
	}
	return sb.String()
}

// HasText reports whether the block holds any non-whitespace text.
func (b *Block) HasText() bool {
	for _, e := range b.Elements {
		if t, ok := e.(*Text); ok && strings.TrimFunc(t.Content, unicode.IsSpace) != "" {
			return true
		}
	}
	return false
}

// AppendText adds s, merging with a trailing text run.
func (b *Block) AppendText(s string) {
	if s == "" {
		return
	}
	if n := len(b.Elements); n > 0 {
		if t, ok := b.Elements[n-1].(*Text); ok {
			t.Content += s
			return
		}
	}
	b.Elements = append(b.Elements, NewText(s))
}

// AppendVerse adds a verse marker. A marker that opens an empty block also
// becomes the block's initial verse.
func (b *Block) AppendVerse(v *Verse) {
	if len(b.Elements) == 0 {
		b.InitialStartVerse, b.InitialEndVerse = v.Range()
	}
	b.Elements = append(b.Elements, v)
}

// AppendElement adds e without copying it, merging text runs.
func (b *Block) AppendElement(e BlockElement) {
	switch el := e.(type) {
	case *Text:
		b.AppendText(el.Content)
	case *Verse:
		b.AppendVerse(el)
	}
}

// StartsAtVerseStart reports whether the block opens with a verse marker.
func (b *Block) StartsAtVerseStart() bool {
	if len(b.Elements) == 0 {
		return false
	}
	_, ok := b.Elements[0].(*Verse)
	return ok
}

// InitialVerseNumber renders the initial verse or bridge ("3" or "3-4").
func (b *Block) InitialVerseNumber() string {
	return NewVerse(b.InitialStartVerse, b.InitialEndVerse).Number
}

// LastVerseNum returns the last verse the block covers.
func (b *Block) LastVerseNum() int {
	for i := len(b.Elements) - 1; i >= 0; i-- {
		if v, ok := b.Elements[i].(*Verse); ok {
			return v.EndVerse()
		}
	}
	if b.InitialEndVerse > b.InitialStartVerse {
		return b.InitialEndVerse
	}
	return b.InitialStartVerse
}

// CoveredVerses lists, in order and without repeats, every verse whose text
// appears in the block. Verse 0 (pre-verse material) is skipped.
func (b *Block) CoveredVerses() []int {
	var out []int
	add := func(start, end int) {
		for v := start; v <= end; v++ {
			if v > 0 && (len(out) == 0 || out[len(out)-1] < v) {
				out = append(out, v)
			}
		}
	}
	if !b.StartsAtVerseStart() {
		end := b.InitialEndVerse
		if end < b.InitialStartVerse {
			end = b.InitialStartVerse
		}
		add(b.InitialStartVerse, end)
	}
	for _, e := range b.Elements {
		if v, ok := e.(*Verse); ok {
			add(v.Range())
		}
	}
	return out
}

// IsScripture reports whether the block holds Scripture text rather than
// titles, chapter numbers, headings or introductions.
func (b *Block) IsScripture() bool {
	return !b.CharacterID.IsStructural()
}

// SetCharacter assigns the speaker and delivery, clearing any override that
// no longer names one of the character's alternatives.
func (b *Block) SetCharacter(id CharacterID, delivery string) {
	b.CharacterID = id
	b.Delivery = delivery
	if b.CharacterIDOverrideForScript != "" {
		keep := false
		for _, alt := range id.Alternatives() {
			if alt == b.CharacterIDOverrideForScript {
				keep = true
			}
		}
		if !keep {
			b.CharacterIDOverrideForScript = ""
		}
	}
}

// ScriptCharacter returns the name a script shows for the block.
func (b *Block) ScriptCharacter() string {
	if b.CharacterIDOverrideForScript != "" {
		return b.CharacterIDOverrideForScript
	}
	if alts := b.CharacterID.Alternatives(); len(alts) > 1 {
		return alts[0]
	}
	return b.CharacterID.String()
}

// ReferenceDepth counts the layers in the reference chain.
func (b *Block) ReferenceDepth() int {
	n := 0
	for r := b.ReferenceBlock; r != nil; r = r.ReferenceBlock {
		n++
	}
	return n
}

// ReferenceAt returns the reference block at level (0 is the primary
// reference), or nil.
func (b *Block) ReferenceAt(level int) *Block {
	r := b.ReferenceBlock
	for i := 0; i < level && r != nil; i++ {
		r = r.ReferenceBlock
	}
	return r
}

// Fingerprint digests what a reviewer sees in the block: speaker, delivery
// and text at every layer. Equal fingerprints mean no visible change.
func (b *Block) Fingerprint() string {
	h := blake3.New()
	for layer := b; layer != nil; layer = layer.ReferenceBlock {
		h.Write([]byte(layer.CharacterID.String()))
		h.Write([]byte{0})
		h.Write([]byte(layer.CharacterIDOverrideForScript))
		h.Write([]byte{0})
		h.Write([]byte(layer.Delivery))
		h.Write([]byte{0})
		h.Write([]byte(layer.TextWithVerses()))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
