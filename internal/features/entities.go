package features

import "strings"

// knownPlaces is the gazetteer for the place-entity pass. Entries are
// accent-folded, lower-case, and matched as substrings of the folded
// description.
var knownPlaces = []string{
	"sao paulo",
	"rio de janeiro",
	"belo horizonte",
	"porto alegre",
	"brasilia",
	"curitiba",
	"salvador",
	"fortaleza",
	"recife",
	"campinas",
	"manaus",
	"goiania",
	"florianopolis",
	"new york",
	"miami",
	"lisbon",
}

// orgSuffixes mark the token preceding them as part of an organization name.
var orgSuffixes = map[string]struct{}{
	"ltda":   {},
	"eireli": {},
	"sa":     {},
	"me":     {},
	"inc":    {},
	"llc":    {},
	"corp":   {},
	"cia":    {},
}

// entityFeatures extracts place and organization entities from a
// lower-cased description. Finding nothing is the common case and yields
// no features.
func entityFeatures(lowered string) []string {
	folded := foldAccents(lowered)

	var features []string

	for _, place := range knownPlaces {
		if strings.Contains(folded, place) {
			features = append(features, "place_"+strings.ReplaceAll(place, " ", "_"))
		}
	}

	tokens := Tokenize(folded)
	for i, token := range tokens {
		if _, ok := orgSuffixes[token]; !ok || i == 0 {
			continue
		}
		features = append(features, "org_"+tokens[i-1])
	}

	return features
}
