// Package matchup aligns a run of vernacular blocks with a reference text.
//
// A Matchup works on private clones of the blocks around an anchor. The
// caller may split those clones, match them against the reference text, edit
// reference text and speakers, and finally Apply the result, which replaces
// the original run in the book in a single splice.
package matchup

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/ref"
	"github.com/FocuswithJustin/JuniperScript/core/reftext"
	"github.com/FocuswithJustin/JuniperScript/core/script"
	"github.com/FocuswithJustin/JuniperScript/internal/logging"
)

// Matchup is one alignment session. It is not safe for concurrent use, and
// the caller must serialize Apply calls against a book.
type Matchup struct {
	id        string
	book      *script.BookScript
	refText   *reftext.ReferenceText
	originals []*script.Block
	portion   *script.BookScript
	anchor    *script.Block
	added     int
}

// New correlates the blocks around book.Blocks[anchorIndex]. The run grows
// backward and forward while a verse or a multi-block quote would otherwise
// be cut, and never takes a block for which include returns false. The
// optional split callback receives the private run before matching and may
// split its blocks with BookScript.SplitBlock.
func New(book *script.BookScript, anchorIndex int, split func(*script.BookScript), include func(int) bool, refText *reftext.ReferenceText) (*Matchup, error) {
	if book == nil || anchorIndex < 0 || anchorIndex >= len(book.Blocks) {
		return nil, errors.NewValidation("anchor", fmt.Sprintf("index %d is outside the book", anchorIndex))
	}
	start, end := expand(book.Blocks, anchorIndex, include)

	originals := make([]*script.Block, end-start+1)
	copy(originals, book.Blocks[start:end+1])
	clones := make([]*script.Block, len(originals))
	for i, b := range originals {
		clones[i] = b.Clone()
	}
	portion := script.NewBookScript(book.BookID, clones)
	if split != nil {
		split(portion)
	}
	added := len(portion.Blocks) - len(originals)
	if added < 0 {
		return nil, errors.NewInvalidOperation("correlate blocks", "split callback removed blocks")
	}
	i := portion.IndexOfID(book.Blocks[anchorIndex].ID)
	if i < 0 {
		return nil, errors.NewInvalidOperation("correlate blocks", "anchor block lost during split")
	}

	m := &Matchup{
		id:        ulid.Make().String(),
		book:      book,
		refText:   refText,
		originals: originals,
		portion:   portion,
		anchor:    portion.Blocks[i],
		added:     added,
	}
	logging.DebugContext(logging.WithSessionID(context.Background(), m.id), "matchup_started",
		"book", book.BookID,
		"start_index", start,
		"original_blocks", len(originals),
		"added_by_split", added)
	return m, nil
}

// expand returns the inclusive bounds of the run around anchor.
func expand(blocks []*script.Block, anchor int, include func(int) bool) (start, end int) {
	allowed := func(from, to int) bool {
		if include == nil {
			return true
		}
		for i := from; i <= to; i++ {
			if !include(i) {
				return false
			}
		}
		return true
	}

	end = anchor
	for {
		k := end + 1
		for k < len(blocks) && !blocks[k].IsScripture() {
			k++
		}
		if k >= len(blocks) || !needsPrevious(blocks[k]) ||
			blocks[k].ChapterNumber != blocks[end].ChapterNumber || !allowed(end+1, k) {
			break
		}
		end = k
	}

	// Walk back from the first Scripture block of the run. A structural
	// anchor has no predecessor requirement of its own, but the block the
	// forward walk pulled in may.
	start = anchor
	first := anchor
	for first < end && !blocks[first].IsScripture() {
		first++
	}
	for cur := first; needsPrevious(blocks[cur]); {
		k := cur - 1
		for k >= 0 && !blocks[k].IsScripture() {
			k--
		}
		if k < 0 || blocks[k].ChapterNumber != blocks[cur].ChapterNumber || !allowed(k, cur-1) {
			break
		}
		cur = k
		if cur < start {
			start = cur
		}
	}
	return start, end
}

// needsPrevious reports whether b cannot be separated from the Scripture
// block before it: it continues a quote or begins mid-verse.
func needsPrevious(b *script.Block) bool {
	if !b.IsScripture() {
		return false
	}
	return b.MultiBlockQuote.IsContinuation() || !b.StartsAtVerseStart()
}

// SessionID identifies the session in log output.
func (m *Matchup) SessionID() string {
	return m.id
}

// CorrelatedBlocks returns the private working blocks in order.
func (m *Matchup) CorrelatedBlocks() []*script.Block {
	return m.portion.Blocks
}

// CorrelatedAnchorBlock returns the working copy of the anchor.
func (m *Matchup) CorrelatedAnchorBlock() *script.Block {
	return m.anchor
}

// OriginalBlocks returns the book blocks the session replaces on Apply.
func (m *Matchup) OriginalBlocks() []*script.Block {
	return m.originals
}

// IndexOfStartBlockInBook returns the position of the first original block,
// or -1 if the book no longer holds it.
func (m *Matchup) IndexOfStartBlockInBook() int {
	return m.book.IndexOf(m.originals[0])
}

// CountOfBlocksAddedBySplitting returns how many blocks the split callback
// introduced.
func (m *Matchup) CountOfBlocksAddedBySplitting() int {
	return m.added
}

// IncludesBlock reports whether b is one of the session's original or
// working blocks.
func (m *Matchup) IncludesBlock(b *script.Block) bool {
	for _, o := range m.originals {
		if o == b {
			return true
		}
	}
	return m.portion.IndexOf(b) >= 0
}

// ChangeAnchor makes b, a working block, the anchor.
func (m *Matchup) ChangeAnchor(b *script.Block) error {
	if m.portion.IndexOf(b) < 0 {
		return errors.NewValidation("anchor", "block is not part of this matchup")
	}
	m.anchor = b
	return nil
}

// GetCorrespondingOriginalBlock maps a working block back to the original it
// came from: by ID first, then to the original of the nearest preceding
// block with a known ID (the block a split cut it from), then by text.
func (m *Matchup) GetCorrespondingOriginalBlock(b *script.Block) *script.Block {
	i := m.portion.IndexOf(b)
	if i < 0 {
		return nil
	}
	if o := m.originalByID(b.ID); o != nil {
		return o
	}
	for k := i - 1; k >= 0; k-- {
		if o := m.originalByID(m.portion.Blocks[k].ID); o != nil {
			return o
		}
	}
	text := b.TextWithVerses()
	for _, o := range m.originals {
		if strings.Contains(o.TextWithVerses(), text) {
			return o
		}
	}
	return nil
}

func (m *Matchup) originalByID(id string) *script.Block {
	for _, o := range m.originals {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (m *Matchup) layers() int {
	return m.refText.Layers()
}

// owner returns the block at row that owns the reference block of level.
func (m *Matchup) owner(row, level int) *script.Block {
	b := m.portion.Blocks[row]
	if level == 0 {
		return b
	}
	return b.ReferenceAt(level - 1)
}

// HasOutstandingChangesToApply compares the working blocks with the
// originals, so edits made directly to either side are noticed.
func (m *Matchup) HasOutstandingChangesToApply() bool {
	if len(m.portion.Blocks) != len(m.originals) {
		return true
	}
	for i, b := range m.portion.Blocks {
		if b.Fingerprint() != m.originals[i].Fingerprint() {
			return true
		}
	}
	return false
}

// Apply replaces the original run in the book with copies of the working
// blocks. Every working block must carry a reference block for each layer;
// otherwise nothing is changed. Speaker changes at either end of the run are
// copied to the rest of their multi-block quote.
func (m *Matchup) Apply(ctx context.Context) error {
	ctx = logging.WithSessionID(ctx, m.id)
	refuse := func(reason string) error {
		logging.WarnContext(ctx, "matchup_apply_refused", "book", m.book.BookID, "reason", reason)
		return errors.NewInvalidOperation("apply matchup", reason)
	}

	layers := m.layers()
	for i, b := range m.portion.Blocks {
		if depth := b.ReferenceDepth(); depth < layers {
			return refuse(fmt.Sprintf("block %d (%d:%s) has no reference text at level %d", i, b.ChapterNumber, b.InitialVerseNumber(), depth))
		}
	}
	start := m.book.IndexOf(m.originals[0])
	if start < 0 || start+len(m.originals) > len(m.book.Blocks) {
		return refuse("book no longer holds the original blocks")
	}
	for i, o := range m.originals {
		if m.book.Blocks[start+i] != o {
			return refuse("book changed since the matchup started")
		}
	}

	committed := make([]*script.Block, len(m.portion.Blocks))
	for i, b := range m.portion.Blocks {
		committed[i] = b.Clone()
	}
	replaced := len(m.originals)
	if err := m.book.ReplaceRange(start, replaced, committed); err != nil {
		return err
	}
	synced := m.propagate(start, len(committed))
	m.originals = committed

	logging.MatchupApplied(ctx, m.book.BookID, replaced, len(committed),
		"start_index", start, "siblings_updated", synced)
	return nil
}

// propagate copies the speaker at the ends of the committed run to the
// blocks of the same multi-block quote outside it.
func (m *Matchup) propagate(start, n int) int {
	blocks := m.book.Blocks
	synced := 0
	if last := blocks[start+n-1]; last.MultiBlockQuote != script.MultiBlockNone {
		for j := start + n; j < len(blocks) && blocks[j].MultiBlockQuote.IsContinuation(); j++ {
			if syncSpeaker(blocks[j], last) {
				synced++
			}
		}
	}
	if first := blocks[start]; first.MultiBlockQuote.IsContinuation() {
		for j := start - 1; j >= 0; j-- {
			if syncSpeaker(blocks[j], first) {
				synced++
			}
			if !blocks[j].MultiBlockQuote.IsContinuation() {
				break
			}
		}
	}
	return synced
}

func syncSpeaker(dst, src *script.Block) bool {
	if dst.CharacterID == src.CharacterID && dst.CharacterIDOverrideForScript == src.CharacterIDOverrideForScript {
		return false
	}
	dst.SetCharacter(src.CharacterID, dst.Delivery)
	dst.CharacterIDOverrideForScript = src.CharacterIDOverrideForScript
	return true
}

// SetReferenceText replaces the reference text of row at level with text. A
// leading {n} token sets the new block's verse; otherwise it keeps the verse
// of the block it replaces. Following rows whose reference at that level has
// no leading verse are re-anchored to stay in order. Replaced blocks are
// cloned, never modified.
func (m *Matchup) SetReferenceText(row int, text string, level int) error {
	if row < 0 || row >= len(m.portion.Blocks) {
		return errors.NewValidation("row", fmt.Sprintf("%d is outside the matchup", row))
	}
	if level < 0 || level >= m.layers() {
		return errors.NewValidation("level", fmt.Sprintf("%d is not a reference layer", level))
	}
	owner := m.owner(row, level)
	if owner == nil {
		return errors.NewValidation("level", fmt.Sprintf("row %d has no reference block above level %d", row, level))
	}
	segs, err := ref.ParseVerseTokens(strings.TrimLeft(text, " \t"))
	if err != nil {
		return err
	}

	var nb *script.Block
	if old := owner.ReferenceBlock; old != nil {
		nb = old.CloneWithoutReferences()
		nb.ReferenceBlock = old.ReferenceBlock.Clone()
	} else {
		nb = placeholder(owner)
	}
	nb.Elements = nil
	for _, s := range segs {
		if !s.IsVerse() {
			nb.AppendText(s.Text)
			continue
		}
		start, end, err := ref.ParseVerseNumber(s.Verse)
		if err != nil {
			return err
		}
		nb.AppendVerse(script.NewVerse(start, end))
	}
	owner.ReferenceBlock = nb
	m.cascade(row, level)
	return nil
}

func (m *Matchup) cascade(row, level int) {
	prev := m.owner(row, level).ReferenceBlock
	for r := row + 1; r < len(m.portion.Blocks); r++ {
		owner := m.owner(r, level)
		if owner == nil || owner.ReferenceBlock == nil {
			return
		}
		rb := owner.ReferenceBlock
		anchor := prev.LastVerseNum()
		if rb.StartsAtVerseStart() || rb.InitialStartVerse == anchor {
			return
		}
		c := rb.Clone()
		for l := c; l != nil && !l.StartsAtVerseStart(); l = l.ReferenceBlock {
			l.InitialStartVerse, l.InitialEndVerse = anchor, anchor
		}
		owner.ReferenceBlock = c
		prev = c
	}
}

// InsertHeSaidText fills empty reference text of narrator rows, from row
// start on, with each layer's narrator tag. Rows whose speaker is unclear
// (Unknown or Ambiguous) are treated as narration and reassigned to the
// narrator once a tag is inserted for them. onInserted, if set, is called for
// every insertion. It returns the number of insertions.
func (m *Matchup) InsertHeSaidText(start int, onInserted func(row, level int, text string)) int {
	if start < 0 {
		start = 0
	}
	narrator := script.Narrator(m.book.BookID)
	inserted := 0
	for row := start; row < len(m.portion.Blocks); row++ {
		b := m.portion.Blocks[row]
		if !b.CharacterID.IsNarrator() && !b.CharacterID.IsUnclear() {
			continue
		}
		for level := 0; level < m.layers(); level++ {
			owner := m.owner(row, level)
			if owner == nil {
				break
			}
			rb := owner.ReferenceBlock
			if rb != nil && rb.HasText() {
				continue
			}
			var nb *script.Block
			if rb != nil {
				nb = rb.CloneWithoutReferences()
				nb.ReferenceBlock = rb.ReferenceBlock.Clone()
			} else {
				nb = placeholder(owner)
			}
			text := m.refText.HeSaid(level)
			nb.Elements = nil
			nb.AppendText(text)
			nb.SetCharacter(narrator, "")
			owner.ReferenceBlock = nb
			if b.CharacterID.IsUnclear() {
				b.SetCharacter(narrator, "")
			}
			inserted++
			if onInserted != nil {
				onInserted(row, level, text)
			}
		}
	}
	return inserted
}
