package quoteparse

import (
	"github.com/FocuswithJustin/JuniperScript/core/script"
)

// Unparse rebuilds the blocks a parse started from. A block cut from the
// same source as the block before it is folded back into that block, so the
// element lists of the original blocks reappear, including blocks that did
// not start a paragraph. Speaker assignments are reset; structural blocks are
// returned as they are.
func Unparse(book *script.BookScript) []*script.Block {
	var out []*script.Block
	var para *script.Block
	var lineage string
	for _, b := range book.Blocks {
		if !b.IsScripture() {
			out = append(out, b.Clone())
			para = nil
			continue
		}
		if para != nil && b.SourceID != "" && b.SourceID == lineage && b.ChapterNumber == para.ChapterNumber {
			for _, e := range b.Elements {
				para.AppendElement(e.Clone())
			}
			continue
		}
		lineage = b.Lineage()
		para = b.CloneWithoutReferences()
		para.Elements = nil
		for _, e := range b.Elements {
			para.AppendElement(e.Clone())
		}
		para.InitialStartVerse, para.InitialEndVerse = b.InitialStartVerse, b.InitialEndVerse
		para.SetCharacter(script.Unknown(), "")
		para.CharacterIDOverrideForScript = ""
		para.MultiBlockQuote = script.MultiBlockNone
		para.UserConfirmed = false
		para.CombinedReference = false
		out = append(out, para)
	}
	return out
}
