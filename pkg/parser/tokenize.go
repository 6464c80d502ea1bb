package parser

import "strings"

const trailingPunctuation = ",:.!\n"

// Tokenize splits a line the way the command surface does before handing it
// to Parse: split on whitespace, trim trailing punctuation from each piece,
// split each piece again on apostrophes (so "dall'11" becomes "dall", "11"),
// and lowercase everything. Empty pieces produced by this process are
// dropped.
func Tokenize(line string) []string {
	fields := strings.Fields(line)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimRight(f, trailingPunctuation)
		for _, piece := range strings.Split(f, "'") {
			piece = strings.ToLower(strings.TrimSpace(piece))
			if piece != "" {
				out = append(out, piece)
			}
		}
	}
	return out
}
