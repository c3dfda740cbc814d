package quote

// pairing lists the second-level marks seen with a first-level pair in real
// orthographies. The first entry is the usual default.
type pairing struct {
	open, close string
	level2      [][2]string
}

var pairings = []pairing{
	{"“", "”", [][2]string{{"‘", "’"}, {"‹", "›"}, {"«", "»"}}},
	{"”", "”", [][2]string{{"’", "’"}, {"‘", "’"}}},
	{"„", "“", [][2]string{{"‚", "‘"}, {"»", "«"}, {"’", "’"}}},
	{"„", "”", [][2]string{{"‚", "’"}, {"«", "»"}, {"‘", "’"}}},
	{"«", "»", [][2]string{{"‹", "›"}, {"“", "”"}, {"‘", "’"}, {"„", "“"}, {"«", "»"}}},
	{"»", "«", [][2]string{{"›", "‹"}, {"»", "»"}}},
	{"»", "»", [][2]string{{"›", "›"}, {"’", "’"}}},
	{"‘", "’", [][2]string{{"“", "”"}, {"«", "»"}}},
	{"‹", "›", [][2]string{{"«", "»"}, {"“", "”"}}},
	{"「", "」", [][2]string{{"『", "』"}}},
	{"『", "』", [][2]string{{"「", "」"}}},
	{"\"", "\"", [][2]string{{"'", "'"}}},
	{"'", "'", [][2]string{{"\"", "\""}}},
}

// fallbackLevel2 applies when the first level is not a known pair.
var fallbackLevel2 = [][2]string{{"‘", "’"}, {"‹", "›"}, {"“", "”"}}

// Level2Possibilities returns the second-level marks plausible for level1,
// default first. Continuers prefix level 1's continuer.
func Level2Possibilities(level1 QuotationMark) []QuotationMark {
	candidates := fallbackLevel2
	for _, p := range pairings {
		if p.open == level1.Open && p.close == level1.Close {
			candidates = p.level2
			break
		}
	}
	prefix := level1.Continuer()
	out := make([]QuotationMark, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, QuotationMark{
			Level:    2,
			Open:     c[0],
			Close:    c[1],
			Continue: prefix + " " + c[0],
			Type:     Normal,
		})
	}
	return out
}

// DefaultLevel2 returns the most common second level for level1.
func DefaultLevel2(level1 QuotationMark) QuotationMark {
	return Level2Possibilities(level1)[0]
}

// DefaultLevel3 mirrors level 1, as most orthographies alternate.
func DefaultLevel3(level1, level2 QuotationMark) QuotationMark {
	return QuotationMark{
		Level:    3,
		Open:     level1.Open,
		Close:    level1.Close,
		Continue: level2.Continuer() + " " + level1.Open,
		Type:     Normal,
	}
}
