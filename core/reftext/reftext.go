// Package reftext holds reference texts: scripts in another language that a
// vernacular script is aligned against. A reference text may chain to a
// secondary layer (typically English) used where its own blocks carry no
// further reference.
package reftext

import (
	"strings"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/script"
)

// DefaultHeSaid is the narrator tag used when a layer sets none.
const DefaultHeSaid = "he said."

// ReferenceText is one language layer of reference material.
type ReferenceText struct {
	Language   string
	HeSaidText string
	Secondary  *ReferenceText

	books map[string]*script.BookScript
}

// New returns an empty reference text for language.
func New(language, heSaid string) *ReferenceText {
	return &ReferenceText{Language: language, HeSaidText: heSaid, books: make(map[string]*script.BookScript)}
}

// AddBook registers book, replacing any book with the same ID.
func (r *ReferenceText) AddBook(book *script.BookScript) error {
	if book == nil || book.BookID == "" {
		return errors.NewValidation("book", "reference book needs an ID")
	}
	if r.books == nil {
		r.books = make(map[string]*script.BookScript)
	}
	r.books[strings.ToUpper(book.BookID)] = book
	return nil
}

// Book returns the reference book with id.
func (r *ReferenceText) Book(id string) (*script.BookScript, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.books[strings.ToUpper(id)]
	return b, ok
}

// Layers counts this layer and every secondary layer below it.
func (r *ReferenceText) Layers() int {
	n := 0
	for l := r; l != nil; l = l.Secondary {
		n++
	}
	return n
}

// Layer returns the layer at level (0 is r itself), or nil.
func (r *ReferenceText) Layer(level int) *ReferenceText {
	l := r
	for i := 0; i < level && l != nil; i++ {
		l = l.Secondary
	}
	return l
}

// HeSaid returns the narrator tag for the layer at level.
func (r *ReferenceText) HeSaid(level int) string {
	if l := r.Layer(level); l != nil && l.HeSaidText != "" {
		return l.HeSaidText
	}
	return DefaultHeSaid
}

// Range returns, in order, the Scripture blocks of a book that hold text of
// chapter between verses start and end inclusive.
func (r *ReferenceText) Range(bookID string, chapter, start, end int) []*script.Block {
	book, ok := r.Book(bookID)
	if !ok {
		return nil
	}
	var out []*script.Block
	for _, b := range book.Blocks {
		if !b.IsScripture() || b.ChapterNumber != chapter {
			continue
		}
		for _, v := range b.CoveredVerses() {
			if v >= start && v <= end {
				out = append(out, b)
				break
			}
		}
	}
	return out
}
