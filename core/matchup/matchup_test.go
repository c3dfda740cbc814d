package matchup

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"

	jserrors "github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/ref"
	"github.com/FocuswithJustin/JuniperScript/core/reftext"
	"github.com/FocuswithJustin/JuniperScript/core/script"
)

const book = "MAT"

// blk builds a block of chapter 1 from text with {n} verse tokens. verse is
// the initial verse when the text does not open with a marker.
func blk(t *testing.T, verse int, text string, who script.CharacterID) *script.Block {
	t.Helper()
	b := script.NewBlock("p", 1, verse, verse)
	b.IsParagraphStart = true
	segs, err := ref.ParseVerseTokens(text)
	if err != nil {
		t.Fatalf("ParseVerseTokens(%q): %v", text, err)
	}
	for _, s := range segs {
		if !s.IsVerse() {
			b.AppendText(s.Text)
			continue
		}
		start, end, err := ref.ParseVerseNumber(s.Verse)
		if err != nil {
			t.Fatalf("ParseVerseNumber(%q): %v", s.Verse, err)
		}
		b.AppendVerse(script.NewVerse(start, end))
	}
	b.SetCharacter(who, "")
	return b
}

func heading(text string) *script.Block {
	b := script.NewBlock("s", 1, 0, 0)
	b.IsParagraphStart = true
	b.SetCharacter(script.ExtraBiblical(book), "")
	b.AppendText(text)
	return b
}

func narrator() script.CharacterID { return script.Narrator(book) }

func refText(t *testing.T, lang string, blocks ...*script.Block) *reftext.ReferenceText {
	t.Helper()
	rt := reftext.New(lang, "")
	if err := rt.AddBook(script.NewBookScript(book, blocks)); err != nil {
		t.Fatalf("AddBook() error = %v", err)
	}
	return rt
}

func mustNew(t *testing.T, b *script.BookScript, anchor int, split func(*script.BookScript), include func(int) bool, rt *reftext.ReferenceText) *Matchup {
	t.Helper()
	m, err := New(b, anchor, split, include, rt)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestNewExpandsRun(t *testing.T) {
	tests := []struct {
		name    string
		blocks  func(t *testing.T) []*script.Block
		anchor  int
		include func(int) bool
		want    []int
	}{
		{
			name: "mid-verse anchor takes previous block",
			blocks: func(t *testing.T) []*script.Block {
				return []*script.Block{
					blk(t, 1, "{1}A. {2}B", narrator()),
					blk(t, 2, "still verse two.", narrator()),
					blk(t, 3, "{3}C.", narrator()),
				}
			},
			anchor: 1,
			want:   []int{0, 1},
		},
		{
			name: "section head inside the run",
			blocks: func(t *testing.T) []*script.Block {
				return []*script.Block{
					blk(t, 1, "{1}A", narrator()),
					heading("Heading"),
					blk(t, 1, "rest of verse one.", narrator()),
				}
			},
			anchor: 2,
			want:   []int{0, 1, 2},
		},
		{
			name: "include vetoes previous block",
			blocks: func(t *testing.T) []*script.Block {
				return []*script.Block{
					blk(t, 1, "{1}A. {2}B", narrator()),
					blk(t, 2, "still verse two.", narrator()),
				}
			},
			anchor:  1,
			include: func(i int) bool { return i != 0 },
			want:    []int{1},
		},
		{
			name: "continuation pulls following block",
			blocks: func(t *testing.T) []*script.Block {
				a := blk(t, 1, "{1}«Come", script.Named("Jesus"))
				a.MultiBlockQuote = script.MultiBlockStart
				b := blk(t, 2, "{2}and see.»", script.Named("Jesus"))
				b.MultiBlockQuote = script.MultiBlockContinuation
				return []*script.Block{a, b, blk(t, 3, "{3}C.", narrator())}
			},
			anchor: 0,
			want:   []int{0, 1},
		},
		{
			name: "structural anchor inside multi-block quote",
			blocks: func(t *testing.T) []*script.Block {
				a := blk(t, 1, "{1}«A", script.Named("Jesus"))
				a.MultiBlockQuote = script.MultiBlockStart
				b := blk(t, 1, "«B»", script.Named("Jesus"))
				b.MultiBlockQuote = script.MultiBlockContinuation
				return []*script.Block{a, heading("Heading"), b}
			},
			anchor: 1,
			want:   []int{0, 1, 2},
		},
		{
			name: "chapter change stops the run",
			blocks: func(t *testing.T) []*script.Block {
				b := blk(t, 1, "more text.", narrator())
				b.ChapterNumber = 2
				return []*script.Block{blk(t, 1, "{1}A", narrator()), b}
			},
			anchor: 1,
			want:   []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := tt.blocks(t)
			bs := script.NewBookScript(book, blocks)
			m := mustNew(t, bs, tt.anchor, nil, tt.include, nil)
			got := m.OriginalBlocks()
			if len(got) != len(tt.want) {
				t.Fatalf("OriginalBlocks() len = %d, want %d", len(got), len(tt.want))
			}
			for i, idx := range tt.want {
				if got[i] != blocks[idx] {
					t.Errorf("OriginalBlocks()[%d] is not book block %d", i, idx)
				}
			}
			if m.IndexOfStartBlockInBook() != tt.want[0] {
				t.Errorf("IndexOfStartBlockInBook() = %d, want %d", m.IndexOfStartBlockInBook(), tt.want[0])
			}
			if m.CorrelatedAnchorBlock().ID != blocks[tt.anchor].ID {
				t.Error("CorrelatedAnchorBlock() is not the anchor clone")
			}
			if m.CorrelatedAnchorBlock() == blocks[tt.anchor] {
				t.Error("CorrelatedAnchorBlock() must be a private copy")
			}
		})
	}
}

func TestNewInvalidAnchor(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}A", narrator())})
	for _, anchor := range []int{-1, 1} {
		if _, err := New(bs, anchor, nil, nil, nil); !errors.Is(err, jserrors.ErrInvalidInput) {
			t.Errorf("New(anchor %d) error = %v, want ErrInvalidInput", anchor, err)
		}
	}
}

func TestSessionIDIsULID(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}A", narrator())})
	m := mustNew(t, bs, 0, nil, nil, nil)
	if _, err := ulid.Parse(m.SessionID()); err != nil {
		t.Errorf("SessionID() = %q is not a ULID: %v", m.SessionID(), err)
	}
	other := mustNew(t, bs, 0, nil, nil, nil)
	if other.SessionID() == m.SessionID() {
		t.Error("sessions share an ID")
	}
}

func TestSplitCallback(t *testing.T) {
	orig := blk(t, 1, "{1}A. {2}B.", narrator())
	bs := script.NewBookScript(book, []*script.Block{orig})
	m := mustNew(t, bs, 0, func(p *script.BookScript) {
		if _, err := p.SplitBlock(p.Blocks[0], "2", 0); err != nil {
			t.Fatalf("SplitBlock() error = %v", err)
		}
	}, nil, nil)

	if m.CountOfBlocksAddedBySplitting() != 1 {
		t.Errorf("CountOfBlocksAddedBySplitting() = %d, want 1", m.CountOfBlocksAddedBySplitting())
	}
	blocks := m.CorrelatedBlocks()
	if len(blocks) != 2 {
		t.Fatalf("CorrelatedBlocks() len = %d, want 2", len(blocks))
	}
	if got := blocks[1].TextWithVerses(); got != "{2}B." {
		t.Errorf("second block = %q, want %q", got, "{2}B.")
	}
	if m.GetCorrespondingOriginalBlock(blocks[1]) != orig {
		t.Error("split half does not map back to the original block")
	}
	if orig.TextWithVerses() != "{1}A. {2}B." {
		t.Errorf("original modified: %q", orig.TextWithVerses())
	}
	if !m.IncludesBlock(orig) || !m.IncludesBlock(blocks[1]) {
		t.Error("IncludesBlock() = false for a session block")
	}
	if m.IncludesBlock(blk(t, 1, "{1}A", narrator())) {
		t.Error("IncludesBlock() = true for a foreign block")
	}
}

func TestSplitKeepsOriginalsCovered(t *testing.T) {
	a := blk(t, 1, "{1}A. {2}B", narrator())
	b := blk(t, 2, "still verse two.", narrator())
	bs := script.NewBookScript(book, []*script.Block{a, b, blk(t, 3, "{3}C.", narrator())})
	m := mustNew(t, bs, 1, func(p *script.BookScript) {
		if _, err := p.SplitBlock(p.Blocks[0], "2", 0); err != nil {
			t.Fatalf("SplitBlock() error = %v", err)
		}
	}, nil, nil)

	rows := m.CorrelatedBlocks()
	if len(rows) != 3 {
		t.Fatalf("CorrelatedBlocks() len = %d, want 3", len(rows))
	}
	covered := make(map[*script.Block]bool)
	for i, r := range rows {
		if !m.IncludesBlock(r) {
			t.Errorf("IncludesBlock(row %d) = false", i)
		}
		o := m.GetCorrespondingOriginalBlock(r)
		if o == nil {
			t.Errorf("row %d has no original", i)
			continue
		}
		covered[o] = true
	}
	for i, o := range m.OriginalBlocks() {
		if !covered[o] {
			t.Errorf("original %d is not the source of any row", i)
		}
		if !m.IncludesBlock(o) {
			t.Errorf("IncludesBlock(original %d) = false", i)
		}
	}
	for i, want := range []*script.Block{a, a, b} {
		if m.GetCorrespondingOriginalBlock(rows[i]) != want {
			t.Errorf("row %d maps to the wrong original", i)
		}
	}
}

func TestMatchAllBlocksAdoptsSpeaker(t *testing.T) {
	tests := []struct {
		name         string
		vern         script.CharacterID
		ref          script.CharacterID
		wantChar     script.CharacterID
		wantOverride string
	}{
		{"unknown takes reference", script.Unknown(), script.Named("Jesus"), script.Named("Jesus"), ""},
		{"ambiguous takes reference", script.Ambiguous(), script.Named("Peter"), script.Named("Peter"), ""},
		{"alternatives pick match", script.Named("Peter/John"), script.Named("John"), script.Named("Peter/John"), "John"},
		{"alternatives fall back to first", script.Named("Peter/John"), script.Named("Andrew"), script.Named("Peter/John"), "Peter"},
		{"known speaker kept", script.Named("Peter"), script.Named("John"), script.Named("Peter"), ""},
		{"unclear reference ignored", script.Unknown(), script.Unknown(), script.Unknown(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}«Vern.»", tt.vern)})
			rt := refText(t, "en", blk(t, 1, "{1}“Ref.”", tt.ref))
			m := mustNew(t, bs, 0, nil, nil, rt)
			m.MatchAllBlocks()

			b := m.CorrelatedBlocks()[0]
			if b.CharacterID != tt.wantChar {
				t.Errorf("CharacterID = %v, want %v", b.CharacterID, tt.wantChar)
			}
			if b.CharacterIDOverrideForScript != tt.wantOverride {
				t.Errorf("override = %q, want %q", b.CharacterIDOverrideForScript, tt.wantOverride)
			}
			if b.ReferenceBlock == nil || b.ReferenceBlock.Text() != "“Ref.”" {
				t.Errorf("ReferenceBlock = %+v, want the reference text", b.ReferenceBlock)
			}
			if bs.Blocks[0].CharacterID != tt.vern {
				t.Error("book block changed before Apply")
			}
		})
	}
}

func TestMatchAllBlocksCombines(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}A {2}B", narrator())})
	r0 := blk(t, 1, "{1}One", narrator())
	r1 := blk(t, 2, "{2}Two.", narrator())
	rt := refText(t, "en", r0, r1)
	m := mustNew(t, bs, 0, nil, nil, rt)
	m.MatchAllBlocks()

	rb := m.CorrelatedBlocks()[0].ReferenceBlock
	if rb == nil {
		t.Fatal("no reference block")
	}
	if !rb.CombinedReference {
		t.Error("CombinedReference = false")
	}
	if got := rb.TextWithVerses(); got != "{1}One {2}Two." {
		t.Errorf("combined text = %q, want %q", got, "{1}One {2}Two.")
	}
	if r0.TextWithVerses() != "{1}One" {
		t.Error("reference text modified by combining")
	}
}

func TestMatchAllBlocksCombinesMidVerse(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}A {2}B", narrator())})
	rt := refText(t, "en",
		blk(t, 1, "{1}One.", narrator()),
		blk(t, 2, "and two.", script.Named("Jesus")))
	m := mustNew(t, bs, 0, nil, nil, rt)
	m.MatchAllBlocks()

	if got := m.CorrelatedBlocks()[0].ReferenceBlock.TextWithVerses(); got != "{1}One. {2}and two." {
		t.Errorf("combined text = %q", got)
	}
}

func TestMatchAllBlocksPlaceholder(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{
		heading("Heading"),
		blk(t, 5, "{5}No reference here.", script.Named("Jesus")),
	})
	rt := refText(t, "en", blk(t, 1, "{1}One.", narrator()))
	m := mustNew(t, bs, 1, nil, nil, rt)
	m.MatchAllBlocks()

	rb := m.CorrelatedBlocks()[0].ReferenceBlock
	if rb == nil {
		t.Fatal("no placeholder")
	}
	if rb.HasText() {
		t.Errorf("placeholder text = %q", rb.Text())
	}
	if rb.InitialStartVerse != 5 || rb.CharacterID != script.Named("Jesus") {
		t.Errorf("placeholder = verse %d, %v", rb.InitialStartVerse, rb.CharacterID)
	}
	if err := m.Apply(context.Background()); err != nil {
		t.Errorf("Apply() with placeholder error = %v", err)
	}
}

func TestMatchAllBlocksSpreadsByVerse(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{
		blk(t, 1, "{1}Jesus said, ", narrator()),
		blk(t, 1, "«Follow me.» {2}Peter went.", script.Named("Jesus")),
	})
	bs.Blocks[1].IsParagraphStart = false
	bs.Blocks[1].MultiBlockQuote = script.MultiBlockNone
	rt := refText(t, "en",
		blk(t, 1, "{1}He said, ", narrator()),
		blk(t, 1, "“Follow me.”", script.Named("Jesus")),
		blk(t, 2, "{2}Peter went.", narrator()))
	m := mustNew(t, bs, 1, nil, nil, rt)
	m.MatchAllBlocks()

	blocks := m.CorrelatedBlocks()
	if len(blocks) != 2 {
		t.Fatalf("CorrelatedBlocks() len = %d, want 2", len(blocks))
	}
	if got := blocks[0].ReferenceBlock.Text(); got != "He said, " {
		t.Errorf("row 0 reference = %q", got)
	}
	if got := blocks[1].ReferenceBlock.TextWithVerses(); got != "“Follow me.” {2}Peter went." {
		t.Errorf("row 1 reference = %q", got)
	}
}

func TestMatchAllBlocksSecondaryLayer(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}A.", narrator())})
	fr := refText(t, "fr", blk(t, 1, "{1}Un.", narrator()))
	fr.Secondary = refText(t, "en", blk(t, 1, "{1}One.", narrator()))
	m := mustNew(t, bs, 0, nil, nil, fr)
	m.MatchAllBlocks()

	b := m.CorrelatedBlocks()[0]
	if b.ReferenceDepth() != 2 {
		t.Fatalf("ReferenceDepth() = %d, want 2", b.ReferenceDepth())
	}
	if b.ReferenceAt(0).Text() != "Un." || b.ReferenceAt(1).Text() != "One." {
		t.Errorf("layers = %q / %q", b.ReferenceAt(0).Text(), b.ReferenceAt(1).Text())
	}
}

func TestSetReferenceText(t *testing.T) {
	a := blk(t, 1, "{1}A", narrator())
	a.MultiBlockQuote = script.MultiBlockStart
	b := blk(t, 1, "more.", narrator())
	b.MultiBlockQuote = script.MultiBlockContinuation
	bs := script.NewBookScript(book, []*script.Block{a, b})
	source := blk(t, 1, "{1}Ra", narrator())
	m := mustNew(t, bs, 1, nil, nil, refText(t, "en", source))
	m.MatchAllBlocks()

	rows := m.CorrelatedBlocks()
	if len(rows) != 2 {
		t.Fatalf("CorrelatedBlocks() len = %d, want 2", len(rows))
	}
	before := rows[1].ReferenceBlock
	if before.HasText() || before.InitialStartVerse != 1 {
		t.Fatalf("row 1 reference = %q at %d, want an empty placeholder at 1", before.Text(), before.InitialStartVerse)
	}

	if err := m.SetReferenceText(0, " {3}New text", 0); err != nil {
		t.Fatalf("SetReferenceText() error = %v", err)
	}
	if got := rows[0].ReferenceBlock.TextWithVerses(); got != "{3}New text" {
		t.Errorf("row 0 reference = %q", got)
	}
	if rows[0].ReferenceBlock.InitialStartVerse != 3 {
		t.Errorf("row 0 initial verse = %d, want 3", rows[0].ReferenceBlock.InitialStartVerse)
	}
	if rows[1].ReferenceBlock.InitialStartVerse != 3 {
		t.Errorf("row 1 not re-anchored: verse %d", rows[1].ReferenceBlock.InitialStartVerse)
	}
	if before.InitialStartVerse != 1 {
		t.Error("replaced reference block was modified in place")
	}
	if source.TextWithVerses() != "{1}Ra" {
		t.Error("reference text source modified")
	}

	if err := m.SetReferenceText(5, "x", 0); !errors.Is(err, jserrors.ErrInvalidInput) {
		t.Errorf("bad row error = %v", err)
	}
	if err := m.SetReferenceText(0, "x", 1); !errors.Is(err, jserrors.ErrInvalidInput) {
		t.Errorf("bad level error = %v", err)
	}
}

func TestSetReferenceTextCascadesSecondaryLayer(t *testing.T) {
	a := blk(t, 1, "{1}A", narrator())
	a.MultiBlockQuote = script.MultiBlockStart
	b := blk(t, 1, "more.", narrator())
	b.MultiBlockQuote = script.MultiBlockContinuation
	bs := script.NewBookScript(book, []*script.Block{a, b})
	rt := refText(t, "fr", blk(t, 1, "{1}Ra", narrator()))
	rt.Secondary = refText(t, "en", blk(t, 1, "{1}One", narrator()))
	m := mustNew(t, bs, 1, nil, nil, rt)
	m.MatchAllBlocks()

	rows := m.CorrelatedBlocks()
	if len(rows) != 2 {
		t.Fatalf("CorrelatedBlocks() len = %d, want 2", len(rows))
	}
	for i, r := range rows {
		if r.ReferenceDepth() != 2 {
			t.Fatalf("row %d ReferenceDepth() = %d, want 2", i, r.ReferenceDepth())
		}
	}
	before := rows[1].ReferenceAt(1)
	if before.HasText() || before.InitialStartVerse != 1 {
		t.Fatalf("row 1 secondary = %q at %d, want an empty placeholder at 1", before.Text(), before.InitialStartVerse)
	}

	if err := m.SetReferenceText(0, "{3}Three", 1); err != nil {
		t.Fatalf("SetReferenceText() error = %v", err)
	}
	if got := rows[0].ReferenceAt(1).TextWithVerses(); got != "{3}Three" {
		t.Errorf("row 0 secondary = %q", got)
	}
	if got := rows[1].ReferenceAt(1).InitialStartVerse; got != 3 {
		t.Errorf("row 1 secondary verse = %d, want 3", got)
	}
	if got := rows[0].ReferenceAt(0).TextWithVerses(); got != "{1}Ra" {
		t.Errorf("row 0 primary = %q, want it untouched", got)
	}
	if got := rows[1].ReferenceAt(0).InitialStartVerse; got != 1 {
		t.Errorf("row 1 primary verse = %d, want 1", got)
	}
	if before.InitialStartVerse != 1 {
		t.Error("replaced secondary block was modified in place")
	}
}

func TestInsertHeSaidText(t *testing.T) {
	tests := []struct {
		name     string
		who      script.CharacterID
		want     int
		wantChar script.CharacterID
	}{
		{"unknown becomes narrator", script.Unknown(), 1, narrator()},
		{"ambiguous becomes narrator", script.Ambiguous(), 1, narrator()},
		{"narrator", narrator(), 1, narrator()},
		{"named speaker skipped", script.Named("Peter"), 0, script.Named("Peter")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := blk(t, 1, "{1}«Come,» ", script.Named("Jesus"))
			a.MultiBlockQuote = script.MultiBlockStart
			b := blk(t, 1, "he said.", tt.who)
			b.MultiBlockQuote = script.MultiBlockContinuation
			bs := script.NewBookScript(book, []*script.Block{a, b})
			rt := refText(t, "en", blk(t, 1, "{1}“Come,”", script.Named("Jesus")))
			rt.HeSaidText = "he said."
			m := mustNew(t, bs, 0, nil, nil, rt)
			m.MatchAllBlocks()

			var calls []int
			n := m.InsertHeSaidText(0, func(row, level int, text string) {
				calls = append(calls, row)
				if text != "he said." {
					t.Errorf("inserted %q", text)
				}
			})
			if n != tt.want || len(calls) != tt.want {
				t.Fatalf("InsertHeSaidText() = %d, calls %v; want %d", n, calls, tt.want)
			}
			row := m.CorrelatedBlocks()[1]
			if row.CharacterID != tt.wantChar {
				t.Errorf("row speaker = %v, want %v", row.CharacterID, tt.wantChar)
			}
			if tt.want == 0 {
				if row.ReferenceBlock.HasText() {
					t.Errorf("reference = %q, want it left empty", row.ReferenceBlock.Text())
				}
				return
			}
			if calls[0] != 1 {
				t.Errorf("inserted at row %d, want 1", calls[0])
			}
			if row.ReferenceBlock.Text() != "he said." || row.ReferenceBlock.CharacterID != narrator() {
				t.Errorf("reference = %q (%v)", row.ReferenceBlock.Text(), row.ReferenceBlock.CharacterID)
			}
			if m.InsertHeSaidText(0, nil) != 0 {
				t.Error("second InsertHeSaidText() inserted again")
			}
			if bs.Blocks[1].CharacterID != tt.who {
				t.Error("book block changed before Apply")
			}
		})
	}
}

func TestHasOutstandingChangesToApply(t *testing.T) {
	bs := script.NewBookScript(book, []*script.Block{blk(t, 1, "{1}A.", script.Unknown())})
	m := mustNew(t, bs, 0, nil, nil, refText(t, "en", blk(t, 1, "{1}One.", narrator())))
	if m.HasOutstandingChangesToApply() {
		t.Error("fresh matchup reports changes")
	}
	m.MatchAllBlocks()
	if !m.HasOutstandingChangesToApply() {
		t.Error("matched blocks report no changes")
	}
	if err := m.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if m.HasOutstandingChangesToApply() {
		t.Error("changes outstanding after Apply")
	}
}

func TestApplyRequiresEveryLayer(t *testing.T) {
	orig := blk(t, 1, "{1}A.", narrator())
	bs := script.NewBookScript(book, []*script.Block{orig})
	rt := refText(t, "fr", blk(t, 1, "{1}Un.", narrator()))
	rt.Secondary = refText(t, "en", blk(t, 1, "{1}One.", narrator()))
	m := mustNew(t, bs, 0, nil, nil, rt)

	err := m.Apply(context.Background())
	if !errors.Is(err, jserrors.ErrInvalidOperation) {
		t.Fatalf("Apply() error = %v, want ErrInvalidOperation", err)
	}
	if bs.Blocks[0] != orig || orig.ReferenceBlock != nil {
		t.Error("failed Apply changed the book")
	}
}

func TestApplyRefusedKeepsWork(t *testing.T) {
	a := blk(t, 1, "{1}A", narrator())
	b := blk(t, 1, "more.", narrator())
	bs := script.NewBookScript(book, []*script.Block{a, b})
	m := mustNew(t, bs, 1, nil, nil, refText(t, "en", blk(t, 1, "{1}One.", narrator())))
	if len(m.CorrelatedBlocks()) != 2 {
		t.Fatalf("CorrelatedBlocks() len = %d, want 2", len(m.CorrelatedBlocks()))
	}

	if err := m.SetReferenceText(0, "{1}One.", 0); err != nil {
		t.Fatalf("SetReferenceText() error = %v", err)
	}
	err := m.Apply(context.Background())
	if !errors.Is(err, jserrors.ErrInvalidOperation) {
		t.Fatalf("Apply() error = %v, want ErrInvalidOperation", err)
	}
	if bs.Blocks[0] != a || bs.Blocks[1] != b || a.ReferenceBlock != nil {
		t.Error("refused Apply changed the book")
	}
	if !m.HasOutstandingChangesToApply() {
		t.Error("refused Apply dropped the outstanding changes")
	}
	if got := m.CorrelatedBlocks()[0].ReferenceBlock.TextWithVerses(); got != "{1}One." {
		t.Errorf("row 0 reference = %q after refusal", got)
	}

	if err := m.SetReferenceText(1, "two.", 0); err != nil {
		t.Fatalf("SetReferenceText() error = %v", err)
	}
	if err := m.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() after resolving every row error = %v", err)
	}
	if m.HasOutstandingChangesToApply() {
		t.Error("changes outstanding after Apply")
	}
}

func TestApplyReplacesRun(t *testing.T) {
	first := heading("Heading")
	orig := blk(t, 1, "{1}A. {2}B.", script.Unknown())
	last := blk(t, 3, "{3}C.", narrator())
	bs := script.NewBookScript(book, []*script.Block{first, orig, last})
	rt := refText(t, "en",
		blk(t, 1, "{1}One.", narrator()),
		blk(t, 2, "{2}Two.", script.Named("Jesus")))
	m := mustNew(t, bs, 1, func(p *script.BookScript) {
		if _, err := p.SplitBlock(p.Blocks[0], "2", 0); err != nil {
			t.Fatalf("SplitBlock() error = %v", err)
		}
	}, nil, rt)
	m.MatchAllBlocks()

	if err := m.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(bs.Blocks) != 4 {
		t.Fatalf("book has %d blocks, want 4", len(bs.Blocks))
	}
	if bs.Blocks[0] != first || bs.Blocks[3] != last {
		t.Error("blocks outside the run were replaced")
	}
	if bs.Blocks[1].CharacterID != narrator() || bs.Blocks[2].CharacterID != script.Named("Jesus") {
		t.Errorf("speakers = %v, %v", bs.Blocks[1].CharacterID, bs.Blocks[2].CharacterID)
	}
	for i, b := range m.CorrelatedBlocks() {
		if bs.Blocks[1+i] == b {
			t.Error("book shares a block with the working copy")
		}
	}

	// The book now holds different blocks; a second Apply from a stale
	// session must not splice.
	stale := mustNew(t, script.NewBookScript(book, []*script.Block{orig}), 0, nil, nil, nil)
	stale.book = bs
	if err := stale.Apply(context.Background()); !errors.Is(err, jserrors.ErrInvalidOperation) {
		t.Errorf("stale Apply() error = %v, want ErrInvalidOperation", err)
	}
}

func TestApplyPropagatesSpeaker(t *testing.T) {
	a := blk(t, 1, "{1}«Hello", script.Unknown())
	a.MultiBlockQuote = script.MultiBlockStart
	b := blk(t, 1, "there.»", script.Unknown())
	b.MultiBlockQuote = script.MultiBlockContinuation
	bs := script.NewBookScript(book, []*script.Block{a, b})
	rt := refText(t, "en", blk(t, 1, "{1}“Hello there.”", script.Named("Jesus")))
	m := mustNew(t, bs, 0, nil, func(i int) bool { return i == 0 }, rt)
	if len(m.OriginalBlocks()) != 1 {
		t.Fatalf("run has %d blocks, want 1", len(m.OriginalBlocks()))
	}
	m.MatchAllBlocks()
	if err := m.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if bs.Blocks[1] != b {
		t.Fatal("block outside the run was replaced")
	}
	if b.CharacterID != script.Named("Jesus") {
		t.Errorf("continuation speaker = %v, want Jesus", b.CharacterID)
	}
}

func TestChangeAnchor(t *testing.T) {
	a := blk(t, 1, "{1}A", narrator())
	b := blk(t, 1, "rest.", narrator())
	bs := script.NewBookScript(book, []*script.Block{a, b})
	m := mustNew(t, bs, 1, nil, nil, nil)

	if err := m.ChangeAnchor(m.CorrelatedBlocks()[0]); err != nil {
		t.Fatalf("ChangeAnchor() error = %v", err)
	}
	if m.CorrelatedAnchorBlock() != m.CorrelatedBlocks()[0] {
		t.Error("anchor not changed")
	}
	if err := m.ChangeAnchor(a); !errors.Is(err, jserrors.ErrInvalidInput) {
		t.Errorf("ChangeAnchor(original) error = %v, want ErrInvalidInput", err)
	}
}
