package features

import (
	"regexp"
	"strings"
)

// merchantRule is a single merchant-detection pattern. Rules are evaluated
// in declaration order and the first rule whose captured group is longer
// than two characters wins. Ordering is a precedence policy, not an
// optimization: earlier rules are more trustworthy extractors.
type merchantRule struct {
	re   *regexp.Regexp
	name string
}

var merchantRules = []merchantRule{
	// All-caps merchant header at the start of the description.
	{name: "caps_header", re: regexp.MustCompile(`^([A-Z][A-Z&' ]{2,}?)(?:\s{2,}|\s+\d|$)`)},
	// Title-case merchant name.
	{name: "title_case", re: regexp.MustCompile(`^([A-Z][a-z]+(?: [A-Z][a-z]+)*)`)},
	// Leading text before the first digit or reference symbol.
	{name: "prefix_before_digits", re: regexp.MustCompile(`^([^\d*#]+?)\s*[\d*#]`)},
	// Accented upper-case names common in Brazilian bank exports.
	{name: "accented_caps", re: regexp.MustCompile(`^([A-ZÀ-Ü][A-ZÀ-Ü ]{2,}?)(?:\s+\d|$)`)},
	// Merchant following a banking-term literal (pix/ted/compra/pagamento).
	{name: "banking_term", re: regexp.MustCompile(`(?i)(?:pix|ted|doc|compra|pagamento)(?:\s+(?:para|de|a|no|na|em))?\s+([a-zà-ü][a-zà-ü ]{2,})`)},
	// Company names carrying a legal suffix.
	{name: "company_suffix", re: regexp.MustCompile(`(?i)([a-zà-ü][a-zà-ü& ]+?(?:ltda|eireli|s\.a\.|sa|me|inc|llc|corp))(?:\s|$)`)},
	// Payment prefixes followed by the payee.
	{name: "payment_prefix", re: regexp.MustCompile(`(?i)(?:pagto|pag|deb|db)\s*[:\-]?\s*([a-zà-ü][a-zà-ü0-9 ]{2,})`)},
	// Leading text before a dd/mm date.
	{name: "prefix_before_date", re: regexp.MustCompile(`^(.+?)\s+\d{2}/\d{2}`)},
}

// ExtractMerchant returns the merchant name detected in a description, or
// the empty string when no rule matches. The result is lower-cased and
// trimmed. First match wins, not best match.
func ExtractMerchant(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}

	for _, rule := range merchantRules {
		m := rule.re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if len(candidate) > 2 {
			return strings.ToLower(candidate)
		}
	}

	return ""
}
