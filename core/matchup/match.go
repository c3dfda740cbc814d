package matchup

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperScript/core/reftext"
	"github.com/FocuswithJustin/JuniperScript/core/script"
)

// MatchAllBlocks gives every working block a reference block from the
// reference text. A lone match lends its speaker to a block whose own speaker
// is unclear; several reference blocks for one working block are combined;
// a working block with no reference text gets an empty placeholder. Each
// secondary layer is matched the same way for reference blocks that do not
// already carry it.
func (m *Matchup) MatchAllBlocks() {
	if m.refText == nil {
		return
	}
	m.matchLayer(m.portion.Blocks, m.refText, 0)
}

func (m *Matchup) matchLayer(owners []*script.Block, layer *reftext.ReferenceText, level int) {
	var scripture []*script.Block
	for _, b := range owners {
		if b.IsScripture() {
			scripture = append(scripture, b)
		} else if level == 0 || b.ReferenceBlock == nil {
			b.ReferenceBlock = placeholder(b)
		}
	}

	if len(scripture) > 0 {
		first, last := scripture[0], scripture[len(scripture)-1]
		refs := layer.Range(m.book.BookID, first.ChapterNumber, first.InitialStartVerse, last.LastVerseNum())
		for i, matched := range align(scripture, refs) {
			b := scripture[i]
			if level > 0 && b.ReferenceBlock != nil {
				continue
			}
			b.ReferenceBlock = build(b, matched, level == 0)
		}
	}

	if layer.Secondary != nil {
		next := make([]*script.Block, len(owners))
		for i, b := range owners {
			next[i] = b.ReferenceBlock
		}
		m.matchLayer(next, layer.Secondary, level+1)
	}
}

// align assigns reference blocks to vern in order. Both sides are cut into
// groups at verses where each has a block beginning; groups are then paired
// by that verse.
func align(vern, refs []*script.Block) [][]*script.Block {
	out := make([][]*script.Block, len(vern))
	common := make(map[int]bool)
	vs, rs := verseStarts(vern), verseStarts(refs)
	for v := range vs {
		if rs[v] {
			common[v] = true
		}
	}

	vKeys, vGroups := group(vern, common)
	_, rGroups := group(refs, common)
	for _, k := range vKeys {
		var rb []*script.Block
		for _, j := range rGroups[k] {
			rb = append(rb, refs[j])
		}
		assignGroup(vern, vGroups[k], rb, out)
	}
	return out
}

func verseStarts(blocks []*script.Block) map[int]bool {
	out := make(map[int]bool)
	for _, b := range blocks {
		if b.StartsAtVerseStart() {
			out[b.InitialStartVerse] = true
		}
	}
	return out
}

// group splits block indices at common verse starts. The blocks before the
// first common verse share key -1.
func group(blocks []*script.Block, common map[int]bool) ([]int, map[int][]int) {
	var keys []int
	groups := make(map[int][]int)
	key := -1
	for i, b := range blocks {
		if b.StartsAtVerseStart() && common[b.InitialStartVerse] {
			key = b.InitialStartVerse
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}
	return keys, groups
}

// assignGroup distributes rs over the working blocks vi without reordering
// either side, preferring pairs that share a speaker. Extra reference blocks
// are combined; working blocks left over get none.
func assignGroup(vern []*script.Block, vi []int, rs []*script.Block, out [][]*script.Block) {
	m, n := len(vi), len(rs)
	switch {
	case n == 0:
	case m == n:
		for i := range vi {
			out[vi[i]] = rs[i : i+1]
		}
	case n > m:
		p := 0
		for i := 0; i < m; i++ {
			if i == m-1 {
				out[vi[i]] = rs[p:]
				break
			}
			q := p
			limit := n - (m - i) // leave one for each later block
			for q < limit && sameSpeaker(rs[q+1], vern[vi[i]]) && !sameSpeaker(rs[q+1], vern[vi[i+1]]) {
				q++
			}
			out[vi[i]] = rs[p : q+1]
			p = q + 1
		}
	default:
		p := 0
		for j := 0; j < n; j++ {
			limit := m - (n - j)
			pick := p
			for i := p; i <= limit; i++ {
				if sameSpeaker(rs[j], vern[vi[i]]) {
					pick = i
					break
				}
			}
			out[vi[pick]] = rs[j : j+1]
			p = pick + 1
		}
	}
}

func sameSpeaker(r, v *script.Block) bool {
	if r.CharacterID.IsNarrator() && v.CharacterID.IsNarrator() {
		return true
	}
	if r.CharacterID == v.CharacterID {
		return true
	}
	return r.CharacterID.Role == script.RoleNamed && r.CharacterID.Name == v.ScriptCharacter()
}

// build turns the matched reference blocks into the reference block owned by
// b.
func build(b *script.Block, matched []*script.Block, adoptSpeaker bool) *script.Block {
	switch len(matched) {
	case 0:
		return placeholder(b)
	case 1:
		r := matched[0].Clone()
		if adoptSpeaker {
			adopt(b, r)
		}
		return r
	default:
		return combine(matched)
	}
}

// adopt takes the reference speaker for a block whose speaker is unclear, and
// picks the script name of a block whose speaker is a list of alternatives.
func adopt(b, r *script.Block) {
	rc := r.CharacterID
	if rc.IsUnclear() {
		return
	}
	switch {
	case b.CharacterID.IsUnclear():
		b.SetCharacter(rc, r.Delivery)
	case b.CharacterID.HasAlternatives():
		alts := b.CharacterID.Alternatives()
		choice := alts[0]
		for _, a := range alts {
			if a == rc.String() {
				choice = a
				break
			}
		}
		b.CharacterIDOverrideForScript = choice
	case b.CharacterID == rc && b.Delivery == "":
		b.Delivery = r.Delivery
	}
}

// combine joins several reference blocks into one, inserting a verse marker
// where a joined block continues a later verse than the text so far. Deeper
// layers are combined too when every block has one.
func combine(blocks []*script.Block) *script.Block {
	c := blocks[0].CloneWithoutReferences()
	c.CombinedReference = true
	for _, r := range blocks[1:] {
		if len(r.Elements) == 0 {
			continue
		}
		separate(c, r)
		if !r.StartsAtVerseStart() && r.InitialStartVerse > c.LastVerseNum() {
			c.AppendVerse(script.NewVerse(r.InitialStartVerse, r.InitialEndVerse))
		}
		for _, e := range r.Elements {
			c.AppendElement(e.Clone())
		}
	}
	deeper := make([]*script.Block, 0, len(blocks))
	for _, r := range blocks {
		if r.ReferenceBlock == nil {
			return c
		}
		deeper = append(deeper, r.ReferenceBlock)
	}
	c.ReferenceBlock = combine(deeper)
	return c
}

// separate adds a space between c's text and r's unless one is there.
func separate(c, r *script.Block) {
	text := c.Text()
	if text == "" {
		return
	}
	last, _ := lastRune(text)
	if unicode.IsSpace(last) {
		return
	}
	if t, ok := r.Elements[0].(*script.Text); ok && strings.IndexFunc(t.Content, unicode.IsSpace) == 0 {
		return
	}
	c.AppendText(" ")
}

func lastRune(s string) (rune, bool) {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0, false
	}
	return rs[len(rs)-1], true
}

// placeholder is an empty reference block standing in for missing text. It
// carries the owner's speaker and verse.
func placeholder(owner *script.Block) *script.Block {
	return &script.Block{
		ID:                uuid.NewString(),
		StyleTag:          owner.StyleTag,
		IsParagraphStart:  owner.IsParagraphStart,
		ChapterNumber:     owner.ChapterNumber,
		InitialStartVerse: owner.InitialStartVerse,
		InitialEndVerse:   owner.InitialEndVerse,
		CharacterID:       owner.CharacterID,
		Delivery:          owner.Delivery,
	}
}
