package features

// stopWords holds function words stripped from the token stream before
// stemming. English and Brazilian Portuguese are both covered because bank
// descriptions mix the two freely.
var stopWords = map[string]struct{}{
	// English
	"a": {}, "an": {}, "and": {}, "at": {}, "by": {}, "for": {},
	"from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "with": {},
	// Portuguese
	"ao": {}, "aos": {}, "as": {}, "com": {}, "da": {}, "das": {},
	"de": {}, "do": {}, "dos": {}, "e": {}, "em": {}, "na": {},
	"nas": {}, "no": {}, "nos": {}, "o": {}, "os": {}, "ou": {},
	"para": {}, "por": {}, "que": {}, "sem": {}, "um": {}, "uma": {},
}

func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
