// Package usx imports USX (Unified Scripture XML) books as block scripts.
//
// Each para element becomes one block and each chapter milestone a chapter
// block. Verse milestones become verse markers. Character styles are
// flattened into plain text and notes are dropped. Text is normalized to NFC.
package usx

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/text/unicode/norm"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/ref"
	"github.com/FocuswithJustin/JuniperScript/core/script"
	"github.com/FocuswithJustin/JuniperScript/internal/logging"
)

var (
	rootExpr     = xpath.MustCompile("/usx")
	bookExpr     = xpath.MustCompile("/usx/book")
	cellExpr     = xpath.MustCompile("row/cell")
	skippedChars = map[string]bool{"note": true, "figure": true, "optbreak": true, "sidebar": true}
)

// Import reads one USX book.
func Import(r io.Reader) (*script.BookScript, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "usx", err)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("usx", "", err.Error())
	}

	bookNode := xmlquery.QuerySelector(doc, bookExpr)
	if bookNode == nil {
		return nil, errors.NewParse("usx", "", "missing book element")
	}
	bookID := strings.ToUpper(strings.TrimSpace(bookNode.SelectAttr("code")))
	if len(bookID) != 3 {
		return nil, errors.NewParse("usx", "", "book code must have three letters")
	}

	im := &importer{book: bookID}
	root := xmlquery.QuerySelector(doc, rootExpr)
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		var err error
		switch n.Data {
		case "chapter":
			err = im.chapterMilestone(n)
		case "para":
			err = im.para(n)
		case "table":
			for _, cell := range xmlquery.QuerySelectorAll(n, cellExpr) {
				if err = im.para(cell); err != nil {
					break
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}

	logging.ImportCompleted("usx", bookID, len(im.blocks))
	return script.NewBookScript(bookID, im.blocks), nil
}

type importer struct {
	book    string
	chapter int
	verse   int
	verseTo int
	blocks  []*script.Block
}

func (im *importer) chapterMilestone(n *xmlquery.Node) error {
	if n.SelectAttr("eid") != "" {
		return nil
	}
	num := n.SelectAttr("number")
	c, err := strconv.Atoi(num)
	if err != nil || c <= 0 {
		return errors.NewParse("usx", im.book, "bad chapter number "+strconv.Quote(num))
	}
	im.chapter, im.verse, im.verseTo = c, 0, 0
	b := script.NewBlock("c", c, 0, 0)
	b.IsParagraphStart = true
	b.SetCharacter(script.BookOrChapter(im.book), "")
	b.AppendText(num)
	im.blocks = append(im.blocks, b)
	return nil
}

func (im *importer) para(n *xmlquery.Node) error {
	style := n.SelectAttr("style")
	if n.Data == "cell" && style == "" {
		style = "tc1"
	}
	who, keep := classify(style, im.book)
	if !keep {
		return nil
	}
	b := script.NewBlock(style, im.chapter, im.verse, im.verseTo)
	b.IsParagraphStart = true
	b.SetCharacter(who, "")
	if err := im.walk(n, b); err != nil {
		return err
	}
	trimBlock(b)
	if len(b.Elements) == 0 {
		return nil
	}
	im.blocks = append(im.blocks, b)
	return nil
}

// walk appends the content of n to b in document order.
func (im *importer) walk(n *xmlquery.Node, b *script.Block) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			b.AppendText(collapse(norm.NFC.String(c.Data)))
		case xmlquery.ElementNode:
			switch {
			case c.Data == "verse":
				if err := im.verseMilestone(c, b); err != nil {
					return err
				}
			case skippedChars[c.Data]:
			default:
				if err := im.walk(c, b); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (im *importer) verseMilestone(n *xmlquery.Node, b *script.Block) error {
	if n.SelectAttr("eid") != "" {
		return nil
	}
	num := n.SelectAttr("number")
	start, end, err := ref.ParseVerseNumber(num)
	if err != nil {
		return errors.NewParse("usx", im.book+" "+strconv.Itoa(im.chapter), "bad verse number "+strconv.Quote(num))
	}
	im.verse, im.verseTo = start, end
	// A marker after leading space still opens the block.
	if len(b.Elements) == 1 && strings.TrimSpace(b.Text()) == "" {
		b.Elements = nil
	}
	b.AppendVerse(script.NewVerse(start, end))
	return nil
}

// classify maps a paragraph style to its reader. Styles with no audible
// content report false.
func classify(style, book string) (script.CharacterID, bool) {
	base := strings.TrimRightFunc(style, unicode.IsDigit)
	switch base {
	case "ide", "rem", "sts", "toc", "toca", "restore", "cl", "cp", "lit", "b":
		return script.CharacterID{}, false
	case "h", "mt", "mte":
		return script.BookOrChapter(book), true
	case "s", "ms", "mr", "sr", "r", "d", "sp", "qa":
		return script.ExtraBiblical(book), true
	case "ip", "ipi", "ipq", "ipr", "iq", "is", "imt", "imte", "io", "iot", "im", "imi", "imq", "ili", "ie", "iex", "ib":
		return script.Intro(book), true
	}
	return script.Unknown(), true
}

// collapse folds runs of whitespace into single spaces.
func collapse(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

// trimBlock strips whitespace at the block edges and drops runs it empties.
func trimBlock(b *script.Block) {
	if n := len(b.Elements); n > 0 {
		if t, ok := b.Elements[n-1].(*script.Text); ok {
			t.Content = strings.TrimRightFunc(t.Content, unicode.IsSpace)
			if t.Content == "" {
				b.Elements = b.Elements[:n-1]
			}
		}
	}
	if len(b.Elements) > 0 {
		if t, ok := b.Elements[0].(*script.Text); ok {
			t.Content = strings.TrimLeftFunc(t.Content, unicode.IsSpace)
			if t.Content == "" {
				b.Elements = b.Elements[1:]
			}
		}
	}
	out := make([]script.BlockElement, 0, len(b.Elements))
	for i, e := range b.Elements {
		if t, ok := e.(*script.Text); ok && i > 0 {
			if _, afterVerse := b.Elements[i-1].(*script.Verse); afterVerse {
				t.Content = strings.TrimLeftFunc(t.Content, unicode.IsSpace)
				if t.Content == "" {
					continue
				}
			}
		}
		out = append(out, e)
	}
	b.Elements = out
}
