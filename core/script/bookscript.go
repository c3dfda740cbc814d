package script

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// BookScript is the ordered sequence of blocks for one book, in canonical
// reading order.
type BookScript struct {
	BookID string
	Blocks []*Block
}

// NewBookScript returns a book holding blocks.
func NewBookScript(bookID string, blocks []*Block) *BookScript {
	return &BookScript{BookID: bookID, Blocks: blocks}
}

// Clone returns a deep copy of the book.
func (s *BookScript) Clone() *BookScript {
	c := &BookScript{BookID: s.BookID, Blocks: make([]*Block, len(s.Blocks))}
	for i, b := range s.Blocks {
		c.Blocks[i] = b.Clone()
	}
	return c
}

// IndexOf returns the position of block (by identity), or -1.
func (s *BookScript) IndexOf(block *Block) int {
	for i, b := range s.Blocks {
		if b == block {
			return i
		}
	}
	return -1
}

// IndexOfID returns the position of the first block with id, or -1.
func (s *BookScript) IndexOfID(id string) int {
	for i, b := range s.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// ScriptBlocks returns the blocks that hold Scripture text.
func (s *BookScript) ScriptBlocks() []*Block {
	var out []*Block
	for _, b := range s.Blocks {
		if b.IsScripture() {
			out = append(out, b)
		}
	}
	return out
}

// ReplaceRange swaps blocks[start:start+count] for replacement in one splice.
func (s *BookScript) ReplaceRange(start, count int, replacement []*Block) error {
	if start < 0 || count < 0 || start+count > len(s.Blocks) {
		return errors.NewValidation("range", fmt.Sprintf("[%d,%d) outside book of %d blocks", start, start+count, len(s.Blocks)))
	}
	out := make([]*Block, 0, len(s.Blocks)-count+len(replacement))
	out = append(out, s.Blocks[:start]...)
	out = append(out, replacement...)
	out = append(out, s.Blocks[start+count:]...)
	s.Blocks = out
	return nil
}

// SplitBlock splits block within the text of verse (a number or bridge as
// written in the block) after offset characters of that verse's text, and
// inserts the second half after it. The new half continues the first half's
// speaker; a split inside a multi-block quote leaves the new half as a
// continuation.
func (s *BookScript) SplitBlock(block *Block, verse string, offset int) (*Block, error) {
	idx := s.IndexOf(block)
	if idx < 0 {
		return nil, errors.NewNotFound("block", block.ID)
	}
	at, err := splitPoint(block, verse, offset)
	if err != nil {
		return nil, err
	}

	head := make([]BlockElement, 0, at.elem+1)
	head = append(head, block.Elements[:at.elem]...)
	var tail []BlockElement
	if at.runes > 0 {
		t := block.Elements[at.elem].(*Text)
		byteAt := runeOffset(t.Content, at.runes)
		head = append(head, NewText(t.Content[:byteAt]))
		if rest := t.Content[byteAt:]; rest != "" {
			tail = append(tail, NewText(rest))
		}
		tail = append(tail, block.Elements[at.elem+1:]...)
	} else {
		tail = append(tail, block.Elements[at.elem:]...)
	}
	if len(head) == 0 || len(tail) == 0 {
		return nil, errors.NewValidation("offset", fmt.Sprintf("split at %s+%d leaves an empty block", verse, offset))
	}

	newBlock := &Block{
		ID:                           uuid.NewString(),
		SourceID:                     block.Lineage(),
		StyleTag:                     block.StyleTag,
		ChapterNumber:                block.ChapterNumber,
		InitialStartVerse:            at.verseStart,
		InitialEndVerse:              at.verseEnd,
		Elements:                     tail,
		CharacterID:                  block.CharacterID,
		CharacterIDOverrideForScript: block.CharacterIDOverrideForScript,
		Delivery:                     block.Delivery,
	}
	if v, ok := tail[0].(*Verse); ok {
		newBlock.InitialStartVerse, newBlock.InitialEndVerse = v.Range()
	}
	if block.MultiBlockQuote != MultiBlockNone {
		newBlock.MultiBlockQuote = MultiBlockContinuation
	}
	block.Elements = head

	s.Blocks = append(s.Blocks, nil)
	copy(s.Blocks[idx+2:], s.Blocks[idx+1:])
	s.Blocks[idx+1] = newBlock
	return newBlock, nil
}

type splitAt struct {
	elem                 int // element index where the tail begins (or the text being cut)
	runes                int // runes of Elements[elem] kept in the head; 0 means split before elem
	verseStart, verseEnd int
}

// splitPoint locates offset runes into verse's text within block.
func splitPoint(block *Block, verse string, offset int) (splitAt, error) {
	if offset < 0 {
		return splitAt{}, errors.NewValidation("offset", "must not be negative")
	}
	current := block.InitialVerseNumber()
	start, end := block.InitialStartVerse, block.InitialEndVerse
	found := false
	remaining := offset
	for i, e := range block.Elements {
		switch el := e.(type) {
		case *Verse:
			if found {
				if remaining == 0 {
					return splitAt{elem: i, verseStart: start, verseEnd: end}, nil
				}
				return splitAt{}, errors.NewValidation("offset", fmt.Sprintf("%d is past the end of verse %s", offset, verse))
			}
			current = el.Number
			start, end = el.Range()
			if current == verse && offset == 0 {
				return splitAt{elem: i, verseStart: start, verseEnd: end}, nil
			}
		case *Text:
			if current != verse {
				continue
			}
			found = true
			n := utf8.RuneCountInString(el.Content)
			if remaining == 0 {
				return splitAt{elem: i, verseStart: start, verseEnd: end}, nil
			}
			if remaining < n {
				return splitAt{elem: i, runes: remaining, verseStart: start, verseEnd: end}, nil
			}
			remaining -= n
		}
	}
	if !found {
		return splitAt{}, errors.NewNotFound("verse", verse)
	}
	return splitAt{}, errors.NewValidation("offset", fmt.Sprintf("%d is at or past the end of verse %s", offset, verse))
}

func runeOffset(s string, runes int) int {
	i := 0
	for pos := range s {
		if i == runes {
			return pos
		}
		i++
	}
	return len(s)
}
