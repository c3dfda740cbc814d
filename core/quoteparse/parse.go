// Package quoteparse splits paragraphs of Scripture into alternating narrator
// and character segments by following a project's quotation marks, and
// attributes each segment using character/verse control data.
//
// Parsing is a pure function of its inputs: the source blocks are never
// modified and the lookup is only read.
package quoteparse

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperScript/core/charverse"
	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/quote"
	"github.com/FocuswithJustin/JuniperScript/core/script"
	"github.com/FocuswithJustin/JuniperScript/internal/logging"
)

// Parse segments blocks, the blocks of one book in reading order, and returns
// the new block list. Structural blocks pass through unchanged. A
// user-confirmed Scripture block is rejected with a ValidationError before
// any work is done.
func Parse(lookup charverse.Lookup, bookID string, blocks []*script.Block, system quote.System) ([]*script.Block, error) {
	for _, b := range blocks {
		if b.UserConfirmed && b.IsScripture() {
			return nil, errors.NewValidation("blocks",
				fmt.Sprintf("block %s at %d:%s is user-confirmed and cannot be re-parsed", b.ID, b.ChapterNumber, b.InitialVerseNumber()))
		}
	}

	p := newParser(lookup, bookID, system.Normalize())
	for i, b := range blocks {
		var next *script.Block
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		if b.IsScripture() {
			p.scripture(b, next)
		} else {
			p.structural(b)
		}
	}
	p.finish()

	unclear := 0
	for _, b := range p.out {
		if b.CharacterID.IsUnclear() {
			unclear++
		}
	}
	logging.ParseCompleted(bookID, len(blocks), len(p.out), unclear)
	return p.out, nil
}

// openLevel is one entry of the open-quote stack. Candidates are narrowed on
// the outermost level only; inner levels belong to the same speaker.
type openLevel struct {
	mark       quote.QuotationMark
	candidates []charverse.Candidate
}

type parser struct {
	lookup charverse.Lookup
	book   string
	sys    quote.System
	marks  []string // glyphs recognised mid-text, longest first

	out []*script.Block

	// Per source block.
	src       *script.Block
	cur       *script.Block
	lastInSrc *script.Block
	lineage   string
	segments  int
	chapter   int
	verse     int
	verseEnd  int

	// Quote state carried across blocks.
	stack     [quote.MaxLevels]openLevel
	depth     int
	dialogue  bool
	chain     []*script.Block
	suspended [quote.MaxLevels]openLevel
	suspDepth int
}

func newParser(lookup charverse.Lookup, book string, sys quote.System) *parser {
	seen := make(map[string]bool)
	var marks []string
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			marks = append(marks, m)
		}
	}
	for _, l := range sys.Levels {
		add(l.Open)
		add(l.Close)
	}
	add(sys.DialogueOpener)
	if sys.DialogueEnd == quote.EndsAtMarker {
		add(sys.DialogueCloser)
	}
	sort.SliceStable(marks, func(i, j int) bool { return len(marks[i]) > len(marks[j]) })
	return &parser{lookup: lookup, book: book, sys: sys, marks: marks}
}

func (p *parser) structural(b *script.Block) {
	if p.dialogue {
		p.closeDialogue()
	}
	if p.depth > 0 {
		// The section break ends the quote. A continuer in the next
		// paragraph may pick it up again as a new chain.
		p.resolveChain(false)
		p.suspended = p.stack
		p.suspDepth = p.depth
		p.depth = 0
	}
	p.chapter = b.ChapterNumber
	p.out = append(p.out, b.Clone())
}

func (p *parser) scripture(b, next *script.Block) {
	p.src = b
	p.lastInSrc = nil
	p.segments = 0
	p.chapter = b.ChapterNumber
	p.verse, p.verseEnd = b.InitialStartVerse, b.InitialEndVerse
	p.cur = p.newSegment()

	skip := 0
	if b.IsParagraphStart {
		skip = p.continueAtParagraph(b)
	}
	p.suspDepth = 0

	first := true
	for _, e := range b.Elements {
		switch el := e.(type) {
		case *script.Verse:
			p.verseMarker(el)
		case *script.Text:
			offset := 0
			if first {
				offset = skip
				first = false
			}
			p.scanText(el.Content, offset)
		}
	}
	p.endBlock(next)
}

// continueAtParagraph checks an open (or suspended) quote against the
// continuer that should begin the paragraph. It returns the byte length of the
// continuer in the first text run, which is then treated as plain text.
func (p *parser) continueAtParagraph(b *script.Block) int {
	text, ok := firstText(b)
	if p.depth > 0 {
		level, n := 0, 0
		if ok {
			level, n = p.matchContinuer(text, p.stack[:p.depth])
		}
		if level == 0 {
			logging.QuoteRecovered(p.book, p.chapter, p.verse, "missing continuer")
			p.resolveChain(true)
			p.depth = 0
			return 0
		}
		p.depth = level
		return n
	}
	if p.suspDepth > 0 {
		level, n := 0, 0
		if ok {
			level, n = p.matchContinuer(text, p.suspended[:p.suspDepth])
		}
		susp := p.suspended
		p.suspDepth = 0
		if level == 0 {
			return 0
		}
		p.stack = susp
		p.depth = level
		p.chain = nil
		p.stack[0].candidates = p.speakersAt(p.verse, p.verseEnd)
		return n
	}
	return 0
}

// matchContinuer returns the deepest open level whose continuer starts text,
// preferring the longest match, and the byte length consumed.
func (p *parser) matchContinuer(text string, open []openLevel) (level, n int) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	lead := len(text) - len(trimmed)
	best := ""
	for i := len(open) - 1; i >= 0; i-- {
		c := open[i].mark.Continuer()
		if c != "" && strings.HasPrefix(trimmed, c) && len(c) > len(best) {
			best = c
			level = i + 1
		}
	}
	if level == 0 {
		return 0, 0
	}
	return level, lead + len(best)
}

func firstText(b *script.Block) (string, bool) {
	for _, e := range b.Elements {
		if t, ok := e.(*script.Text); ok {
			return t.Content, true
		}
	}
	return "", false
}

func (p *parser) verseMarker(v *script.Verse) {
	start, end := v.Range()
	if p.depth > 0 && !p.dialogue {
		cands := p.stack[0].candidates
		narrowed := intersect(cands, p.speakersAt(start, end))
		if len(cands) > 0 && len(narrowed) == 0 {
			logging.QuoteRecovered(p.book, p.chapter, start, "no speaker common to every verse")
			p.emitSegment(p.quoted())
			p.resolveChain(true)
			p.depth = 0
		} else {
			p.stack[0].candidates = narrowed
		}
	}
	p.verse, p.verseEnd = start, end
	p.cur.AppendVerse(v.Clone().(*script.Verse))
}

func (p *parser) scanText(s string, from int) {
	start := 0
	i := from
	for i < len(s) {
		m := p.markAt(s, i)
		if m == "" {
			r, size := utf8.DecodeRuneInString(s[i:])
			i += size
			if p.dialogue && p.depth == 0 && p.sys.DialogueEnd == quote.EndsAtSentence && strings.ContainsRune(p.sys.Enders(), r) {
				end := p.trailing(s, i)
				p.cur.AppendText(s[start:end])
				start, i = end, end
				p.closeDialogue()
			}
			continue
		}

		if p.dialogue {
			if p.depth == 0 && p.sys.DialogueEnd == quote.EndsAtMarker && m == p.sys.DialogueCloser {
				end := p.trailing(s, i+len(m))
				p.cur.AppendText(s[start:end])
				start, i = end, end
				p.closeDialogue()
				continue
			}
			// Regular marks inside a dialogue quote are text, but are
			// tracked so an unresolved nesting can be detected.
			if k := p.closingLevel(m); k > 0 {
				p.depth = k - 1
			} else if p.depth < len(p.sys.Levels) && m == p.sys.Levels[p.depth].Open {
				p.stack[p.depth] = openLevel{mark: p.sys.Levels[p.depth]}
				p.depth++
			}
			i += len(m)
			continue
		}

		if k := p.closingLevel(m); k > 0 {
			quoted := p.quoted()
			narrative := k > 1 && p.stack[k-1].mark.Type == quote.Narrative
			p.depth = k - 1
			i += len(m)
			if p.depth == 0 || (narrative && p.quoted()) {
				end := p.trailing(s, i)
				p.cur.AppendText(s[start:end])
				start, i = end, end
				p.emitSegment(quoted)
				p.resolveChain(false)
			}
			continue
		}
		if p.depth < len(p.sys.Levels) && m == p.sys.Levels[p.depth].Open {
			if p.depth > 0 && p.sys.Levels[p.depth].Type == quote.Narrative && p.quoted() {
				// Narrator text interrupting the speech ends this part of
				// the quote. The speech after it is attributed on its own.
				p.cur.AppendText(s[start:i])
				start = i
				p.emitSegment(true)
				p.resolveChain(false)
				p.stack[p.depth] = openLevel{mark: p.sys.Levels[p.depth]}
			} else if p.depth == 0 {
				p.cur.AppendText(s[start:i])
				start = i
				p.boundary()
				p.chain = nil
				p.stack[0] = openLevel{mark: p.sys.Levels[0], candidates: p.speakersAt(p.verse, p.verseEnd)}
			} else {
				p.stack[p.depth] = openLevel{mark: p.sys.Levels[p.depth]}
			}
			p.depth++
			i += len(m)
			continue
		}
		if p.depth == 0 && m == p.sys.DialogueOpener {
			p.cur.AppendText(s[start:i])
			start = i
			p.boundary()
			p.chain = nil
			p.dialogue = true
			i += len(m)
			continue
		}
		i += len(m)
	}
	p.cur.AppendText(s[start:])
}

// quoted reports whether text at the current position is speech. Text
// inside a narrative level below the first belongs to the narrator. Marks
// inside a dialogue quote are not interpreted, so dialogue is always speech.
func (p *parser) quoted() bool {
	if p.dialogue {
		return true
	}
	for k := p.depth; k > 1; k-- {
		if p.stack[k-1].mark.Type == quote.Narrative {
			return false
		}
	}
	return p.depth > 0
}

// closingLevel returns the innermost open level closed by m, or 0.
func (p *parser) closingLevel(m string) int {
	for k := p.depth; k >= 1; k-- {
		if p.stack[k-1].mark.Close == m {
			return k
		}
	}
	return 0
}

func (p *parser) markAt(s string, i int) string {
	for _, m := range p.marks {
		if strings.HasPrefix(s[i:], m) {
			return m
		}
	}
	return ""
}

// trailing returns the end of the punctuation and then whitespace that follow
// a closing mark at j. It stops at any quotation mark.
func (p *parser) trailing(s string, j int) int {
	spaced := false
	for j < len(s) {
		if p.markAt(s, j) != "" {
			break
		}
		r, size := utf8.DecodeRuneInString(s[j:])
		switch {
		case unicode.IsSpace(r):
			spaced = true
		case unicode.IsPunct(r) && !spaced:
		default:
			return j
		}
		j += size
	}
	return j
}

func (p *parser) closeDialogue() {
	unresolved := p.depth > 0
	if unresolved {
		logging.QuoteRecovered(p.book, p.chapter, p.verse, "unterminated quote inside dialogue")
	}
	p.emitSegment(true)
	p.resolveChain(unresolved)
	p.dialogue = false
	p.depth = 0
}

// newSegment starts the next segment of the source block. The first keeps
// the source's ID; later ones record it as their SourceID so Unparse can
// rejoin them.
func (p *parser) newSegment() *script.Block {
	b := &script.Block{
		ID:                p.src.ID,
		StyleTag:          p.src.StyleTag,
		IsParagraphStart:  p.src.IsParagraphStart && p.segments == 0,
		ChapterNumber:     p.src.ChapterNumber,
		InitialStartVerse: p.verse,
		InitialEndVerse:   p.verseEnd,
	}
	if p.segments == 0 {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.SourceID = p.src.SourceID
		p.lineage = b.Lineage()
		return b
	}
	b.ID = uuid.NewString()
	b.SourceID = p.lineage
	return b
}

// boundary ends the narrator segment before an opening mark. Verse markers at
// its tail move to the quote that follows.
func (p *parser) boundary() {
	if !p.cur.HasText() {
		return
	}
	els := p.cur.Elements
	j := len(els)
	for j > 0 && isVerseOrSpace(els[j-1]) {
		j--
	}
	k := j
	for k < len(els) {
		if _, ok := els[k].(*script.Verse); ok {
			break
		}
		k++
	}
	carry := append([]script.BlockElement(nil), els[k:]...)
	p.cur.Elements = els[:k:k]
	p.emitSegment(false)
	for _, e := range carry {
		p.cur.AppendElement(e)
	}
}

func isVerseOrSpace(e script.BlockElement) bool {
	switch el := e.(type) {
	case *script.Verse:
		return true
	case *script.Text:
		return strings.TrimSpace(el.Content) == ""
	}
	return false
}

// emitSegment closes the current segment if it holds text. A segment without
// text stays open and becomes the start of the next one.
func (p *parser) emitSegment(quoted bool) {
	if !p.cur.HasText() {
		return
	}
	p.emit(quoted, false)
}

func (p *parser) emit(quoted, wholeBlock bool) {
	b := p.cur
	if quoted {
		p.chain = append(p.chain, b)
	} else {
		p.attributeNarrator(b, wholeBlock)
	}
	p.out = append(p.out, b)
	p.lastInSrc = b
	p.segments++
	p.cur = p.newSegment()
}

func (p *parser) endBlock(next *script.Block) {
	quoted := p.quoted()
	switch {
	case p.cur.HasText():
		p.emit(quoted, p.segments == 0)
	case len(p.cur.Elements) == 0:
	case p.lastInSrc != nil:
		for _, e := range p.cur.Elements {
			p.lastInSrc.AppendElement(e)
		}
	default:
		p.emit(quoted, true)
	}

	if p.dialogue && (next == nil || !next.IsScripture() || next.IsParagraphStart) {
		p.closeDialogue()
	}
}

func (p *parser) finish() {
	if p.dialogue {
		p.closeDialogue()
	}
	if p.depth > 0 {
		logging.QuoteRecovered(p.book, p.chapter, p.verse, "quote open at end of book")
		p.resolveChain(true)
		p.depth = 0
	}
}

// resolveChain attributes every block of the current quote and links them as
// a multi-block quote when there is more than one.
func (p *parser) resolveChain(unknown bool) {
	chain := p.chain
	p.chain = nil
	if len(chain) == 0 {
		return
	}
	if unknown {
		for _, b := range chain {
			b.SetCharacter(script.Unknown(), "")
		}
	} else {
		p.attributeQuote(chain)
	}
	if len(chain) == 1 {
		chain[0].MultiBlockQuote = script.MultiBlockNone
		return
	}
	chain[0].MultiBlockQuote = script.MultiBlockStart
	for i := 1; i < len(chain); i++ {
		if chain[i].Delivery != chain[i-1].Delivery {
			chain[i].MultiBlockQuote = script.MultiBlockChangeOfDelivery
		} else {
			chain[i].MultiBlockQuote = script.MultiBlockContinuation
		}
	}
}

func (p *parser) attributeQuote(chain []*script.Block) {
	var common []charverse.Candidate
	seeded := false
	for _, b := range chain {
		for _, v := range b.CoveredVerses() {
			s := p.speakers(b.ChapterNumber, v)
			if !seeded {
				common, seeded = s, true
			} else {
				common = intersect(common, s)
			}
		}
	}
	names := characterNames(common)
	switch len(names) {
	case 0:
		for _, b := range chain {
			b.SetCharacter(script.Unknown(), "")
		}
	case 1:
		id := script.ParseCharacterID(names[0])
		for _, b := range chain {
			b.SetCharacter(id, p.delivery(names[0], b.ChapterNumber, b.CoveredVerses(), false))
		}
	default:
		for _, b := range chain {
			b.SetCharacter(script.Ambiguous(), "")
		}
	}
}

// attributeNarrator assigns narration. A paragraph without quotes whose every
// verse has exactly one implicit speaker belongs to that speaker.
func (p *parser) attributeNarrator(b *script.Block, wholeBlock bool) {
	b.SetCharacter(script.Narrator(p.book), "")
	if !wholeBlock || p.lookup == nil {
		return
	}
	verses := b.CoveredVerses()
	if len(verses) == 0 {
		return
	}
	speaker := ""
	for _, v := range verses {
		var implicit []string
		for _, c := range p.lookup.Candidates(p.book, b.ChapterNumber, v) {
			if c.QuoteType == charverse.Implicit && !contains(implicit, c.Character) {
				implicit = append(implicit, c.Character)
			}
		}
		if len(implicit) != 1 || (speaker != "" && speaker != implicit[0]) {
			return
		}
		speaker = implicit[0]
	}
	b.SetCharacter(script.ParseCharacterID(speaker), p.delivery(speaker, b.ChapterNumber, verses, true))
}

// delivery returns the one delivery the character has across verses, or "".
func (p *parser) delivery(name string, chapter int, verses []int, implicit bool) string {
	var common map[string]bool
	for _, v := range verses {
		set := make(map[string]bool)
		for _, c := range p.lookup.Candidates(p.book, chapter, v) {
			if c.Character == name && (!implicit || c.QuoteType == charverse.Implicit) {
				set[c.Delivery] = true
			}
		}
		if common == nil {
			common = set
			continue
		}
		for d := range common {
			if !set[d] {
				delete(common, d)
			}
		}
	}
	if len(common) != 1 {
		return ""
	}
	for d := range common {
		return d
	}
	return ""
}

// speakers returns the candidates of one verse that may be given quoted text.
func (p *parser) speakers(chapter, verse int) []charverse.Candidate {
	if p.lookup == nil || verse <= 0 {
		return nil
	}
	var out []charverse.Candidate
	for _, c := range p.lookup.Candidates(p.book, chapter, verse) {
		if c.Speaks() {
			out = append(out, c)
		}
	}
	return out
}

// speakersAt intersects speakers over a verse or bridge.
func (p *parser) speakersAt(start, end int) []charverse.Candidate {
	out := p.speakers(p.chapter, start)
	for v := start + 1; v <= end; v++ {
		out = intersect(out, p.speakers(p.chapter, v))
	}
	return out
}

// intersect keeps the candidates of a whose character also appears in b.
func intersect(a, b []charverse.Candidate) []charverse.Candidate {
	var out []charverse.Candidate
	for _, c := range a {
		for _, d := range b {
			if c.Character == d.Character {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func characterNames(cands []charverse.Candidate) []string {
	var names []string
	for _, c := range cands {
		if !contains(names, c.Character) {
			names = append(names, c.Character)
		}
	}
	return names
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
