package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/FocuswithJustin/JuniperScript/core/charverse"
	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/matchup"
	"github.com/FocuswithJustin/JuniperScript/core/quote"
	"github.com/FocuswithJustin/JuniperScript/core/quoteparse"
	"github.com/FocuswithJustin/JuniperScript/core/reftext"
	"github.com/FocuswithJustin/JuniperScript/core/script"
	"github.com/FocuswithJustin/JuniperScript/core/sqlite"
	"github.com/FocuswithJustin/JuniperScript/core/store"
	"github.com/FocuswithJustin/JuniperScript/core/usx"
	"github.com/FocuswithJustin/JuniperScript/internal/config"
	"github.com/FocuswithJustin/JuniperScript/internal/logging"
	"github.com/FocuswithJustin/JuniperScript/internal/validation"
)

// ScriptExt is the file extension of saved scripts.
const ScriptExt = ".jss"

// ImportCmd imports a USX book.
type ImportCmd struct {
	Path string `arg:"" help:"USX file" type:"existingfile"`
	Out  string `required:"" help:"Output script file" type:"path"`
}

func (c *ImportCmd) Run(env *Env) error {
	if err := validation.ValidatePath(c.Out); err != nil {
		return err
	}
	if err := requireType(c.Path, validation.FileTypeXML); err != nil {
		return err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return errors.NewIO("open", c.Path, err)
	}
	defer f.Close()
	book, err := usx.Import(f)
	if err != nil {
		return err
	}
	if err := store.Save(c.Out, book); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Imported %s: %d blocks -> %s\n", book.BookID, len(book.Blocks), c.Out)
	return nil
}

// ParseCmd runs the quote parser over a script file.
type ParseCmd struct {
	Script      string `arg:"" help:"Script file" type:"existingfile"`
	Out         string `help:"Output script file (default: overwrite input)" type:"path"`
	ControlData string `name:"control-data" help:"Control data (.tsv or SQLite); overrides the configuration" type:"path"`
}

func (c *ParseCmd) Run(env *Env) error {
	book, err := store.Load(c.Script)
	if err != nil {
		return err
	}
	path := c.ControlData
	if path == "" {
		path = env.Config.ControlData
	}
	lookup, err := loadControlData(path)
	if err != nil {
		return err
	}
	blocks, err := quoteparse.Parse(lookup, book.BookID, book.Blocks, env.Config.Quotes)
	if err != nil {
		return err
	}
	parsed := script.NewBookScript(book.BookID, blocks)
	out := outPath(c.Out, c.Script)
	if err := store.Save(out, parsed); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Parsed %s: %d -> %d blocks, %d unclear\n", book.BookID, len(book.Blocks), len(blocks), countUnclear(blocks))
	return nil
}

// UnparseCmd rebuilds paragraphs.
type UnparseCmd struct {
	Script string `arg:"" help:"Script file" type:"existingfile"`
	Out    string `help:"Output script file (default: overwrite input)" type:"path"`
}

func (c *UnparseCmd) Run(env *Env) error {
	book, err := store.Load(c.Script)
	if err != nil {
		return err
	}
	blocks := quoteparse.Unparse(book)
	if err := store.Save(outPath(c.Out, c.Script), script.NewBookScript(book.BookID, blocks)); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Unparsed %s: %d -> %d blocks\n", book.BookID, len(book.Blocks), len(blocks))
	return nil
}

// ShowCmd prints a script.
type ShowCmd struct {
	Script string `arg:"" help:"Script file" type:"existingfile"`
	JSON   bool   `help:"Print the script as JSON"`
}

func (c *ShowCmd) Run(env *Env) error {
	book, err := store.Load(c.Script)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(env.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(book)
	}
	for i, b := range book.Blocks {
		fmt.Fprintf(env.Out, "%4d %s %d:%s [%s] %s\n", i, b.StyleTag, b.ChapterNumber, b.InitialVerseNumber(), describe(b), b.TextWithVerses())
	}
	return nil
}

// Level2Cmd lists second-level quotation marks.
type Level2Cmd struct {
	Open     string `arg:"" help:"First-level open mark"`
	Close    string `arg:"" help:"First-level close mark"`
	Continue string `help:"First-level continuer (default: the open mark)"`
}

func (c *Level2Cmd) Run(env *Env) error {
	l1 := quote.QuotationMark{Level: 1, Open: c.Open, Close: c.Close, Continue: c.Continue}
	for i, m := range quote.Level2Possibilities(l1) {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(env.Out, "%s %s %s  continue %q\n", marker, m.Open, m.Close, m.Continuer())
	}
	l3 := quote.DefaultLevel3(l1, quote.DefaultLevel2(l1))
	fmt.Fprintf(env.Out, "level 3: %s %s  continue %q\n", l3.Open, l3.Close, l3.Continuer())
	return nil
}

// ControlDataImportCmd converts TSV control data to SQLite.
type ControlDataImportCmd struct {
	TSV string `arg:"" name:"tsv" help:"Tab-separated control data" type:"existingfile"`
	DB  string `required:"" name:"db" help:"SQLite database to write" type:"path"`
}

func (c *ControlDataImportCmd) Run(env *Env) error {
	if err := requireType(c.TSV, validation.FileTypeText); err != nil {
		return err
	}
	if err := validation.ValidatePath(c.DB); err != nil {
		return err
	}
	f, err := os.Open(c.TSV)
	if err != nil {
		return errors.NewIO("open", c.TSV, err)
	}
	defer f.Close()
	table, err := charverse.ReadTSV(f)
	if err != nil {
		return err
	}
	db, err := sqlite.Open(c.DB)
	if err != nil {
		return errors.NewIO("open", c.DB, err)
	}
	defer db.Close()
	if err := charverse.SaveSQLite(context.Background(), db, table); err != nil {
		return err
	}
	logging.Info("control_data_stored", "entries", table.Len(), "db", c.DB, "driver", sqlite.DriverType())
	fmt.Fprintf(env.Out, "Stored %d entries in %s (%s)\n", table.Len(), c.DB, sqlite.DriverType())
	return nil
}

// MatchupCmd aligns the blocks around an anchor with the reference text.
type MatchupCmd struct {
	Script       string `arg:"" help:"Parsed script file" type:"existingfile"`
	Anchor       int    `required:"" help:"Index of the anchor block"`
	InsertHeSaid bool   `name:"insert-he-said" help:"Fill empty narrator reference text"`
	Apply        bool   `help:"Write the matched blocks back to the script"`
	Out          string `help:"Output script file when applying (default: overwrite input)" type:"path"`
}

func (c *MatchupCmd) Run(env *Env) error {
	book, err := store.Load(c.Script)
	if err != nil {
		return err
	}
	rt, err := loadReferenceText(env.Config.Reference, book.BookID)
	if err != nil {
		return err
	}
	m, err := matchup.New(book, c.Anchor, nil, nil, rt)
	if err != nil {
		return err
	}
	m.MatchAllBlocks()
	if c.InsertHeSaid {
		m.InsertHeSaidText(0, nil)
	}

	for i, b := range m.CorrelatedBlocks() {
		fmt.Fprintf(env.Out, "%3d %d:%s [%s] %s\n", i, b.ChapterNumber, b.InitialVerseNumber(), describe(b), b.TextWithVerses())
		for level := 0; level < rt.Layers(); level++ {
			if r := b.ReferenceAt(level); r != nil {
				fmt.Fprintf(env.Out, "    %s: %s\n", rt.Layer(level).Language, r.TextWithVerses())
			}
		}
	}

	if !c.Apply {
		return nil
	}
	if !m.HasOutstandingChangesToApply() {
		fmt.Fprintln(env.Out, "Nothing to apply")
		return nil
	}
	if err := m.Apply(context.Background()); err != nil {
		return err
	}
	return store.Save(outPath(c.Out, c.Script), book)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(env.Out, "juniper-script version %s (sqlite: %s, %s)\n", version, info.Package, info.DriverType)
	return nil
}

// Helper functions

func outPath(out, in string) string {
	if out != "" {
		return out
	}
	return in
}

func loadControlData(path string) (*charverse.Table, error) {
	if path == "" {
		return nil, errors.NewValidation("control_data", "no control data configured")
	}
	kind, err := validation.DetectFile(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case validation.FileTypeSQLite:
		return charverse.OpenSQLite(context.Background(), path)
	case validation.FileTypeText:
		if err := validation.CheckFileSize(path, validation.MaxFileSize); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NewIO("open", path, err)
		}
		defer f.Close()
		return charverse.ReadTSV(f)
	}
	return nil, errors.NewUnsupported("control data", fmt.Sprintf("%s content in %s", kind, path))
}

// requireType checks the size and content type of an input file.
func requireType(path string, want validation.FileType) error {
	if err := validation.CheckFileSize(path, validation.MaxFileSize); err != nil {
		return err
	}
	got, err := validation.DetectFile(path)
	if err != nil {
		return err
	}
	if got != want {
		return errors.NewValidation("path", fmt.Sprintf("%s holds %s content, want %s", path, got, want))
	}
	return nil
}

// loadReferenceText loads book from every configured layer. A layer with no
// script for the book stays empty.
func loadReferenceText(rc *config.ReferenceConfig, bookID string) (*reftext.ReferenceText, error) {
	if rc == nil {
		return nil, errors.NewValidation("reference", "no reference text configured")
	}
	rt := rc.NewReferenceText()
	layer := rt
	for l := rc; l != nil; l, layer = l.Secondary, layer.Secondary {
		if l.Dir == "" {
			continue
		}
		path, err := validation.BookFile(l.Dir, bookID, ScriptExt)
		if err != nil {
			return nil, err
		}
		book, err := store.Load(path)
		if errors.Is(err, errors.ErrNotFound) {
			logging.Warn("reference_book_missing", "language", l.Language, "book", bookID, "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := layer.AddBook(book); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func describe(b *script.Block) string {
	s := b.ScriptCharacter()
	if b.Delivery != "" {
		s += " (" + b.Delivery + ")"
	}
	if b.MultiBlockQuote != script.MultiBlockNone {
		s += " " + b.MultiBlockQuote.String()
	}
	return s
}

func countUnclear(blocks []*script.Block) int {
	n := 0
	for _, b := range blocks {
		if b.CharacterID.IsUnclear() {
			n++
		}
	}
	return n
}
