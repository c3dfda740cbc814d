package charverse

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/ref"
)

// ReadTSV loads control data from tab-separated lines:
//
//	MAT 5:3-12	Jesus	teaching	Normal
//
// The delivery and quote-type columns may be empty or absent. Blank lines and
// lines starting with '#' are skipped. A verse range yields one entry per
// verse.
func ReadTSV(r io.Reader) (*Table, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 || strings.TrimSpace(cols[1]) == "" {
			return nil, errors.NewParse("control data", fmt.Sprintf("line %d", lineNo), "need a reference and a character")
		}
		vr, err := ref.Parse(cols[0])
		if err != nil {
			return nil, &errors.ParseError{Format: "control data", Path: fmt.Sprintf("line %d", lineNo), Message: err.Error(), Err: err}
		}
		if vr.Chapter == 0 || vr.Verse == 0 {
			return nil, errors.NewParse("control data", fmt.Sprintf("line %d", lineNo), "reference must name a verse")
		}
		c := Candidate{Character: strings.TrimSpace(cols[1])}
		if len(cols) > 2 {
			c.Delivery = strings.TrimSpace(cols[2])
		}
		if len(cols) > 3 {
			if c.QuoteType, err = ParseQuoteType(cols[3]); err != nil {
				return nil, errors.Wrapf(err, "control data line %d", lineNo)
			}
		}
		vr.Verses(func(v int) {
			entries = append(entries, Entry{Book: vr.Book, Chapter: vr.Chapter, Verse: v, Candidate: c})
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", "control data", err)
	}
	return NewTable(entries), nil
}
