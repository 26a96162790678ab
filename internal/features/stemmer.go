package features

import "strings"

// Suffixes are tried longest-first; only one is stripped per token.
var stemSuffixes = []string{
	// Portuguese
	"amento", "imento", "adora", "mente", "ação", "ções", "ção",
	"ando", "endo", "indo", "adas", "idas", "ados", "idos",
	"ada", "ida", "ado", "ido",
	// English
	"ization", "ational", "fulness", "ations", "ments",
	"ment", "ness", "tion", "ings", "ing", "ies", "ers",
	"ed", "er", "ly", "es",
}

// Stem reduces a token to a root form with a light suffix stripper. The
// stripper is shared by the extractor and the history similarity scan so
// both sides normalize the same way.
func Stem(token string) string {
	if len(token) <= 3 {
		return token
	}

	for _, suffix := range stemSuffixes {
		if !strings.HasSuffix(token, suffix) {
			continue
		}
		stem := strings.TrimSuffix(token, suffix)
		if len(stem) >= 3 {
			return stem
		}
	}

	// Plural fallback, avoiding words that end in a double s.
	if strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") && len(token) > 4 {
		return token[:len(token)-1]
	}

	return token
}
