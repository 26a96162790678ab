package features

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// bankingTerms maps accent-folded Brazilian banking and payment vocabulary
// to the feature each term contributes. Any subset may fire; the features
// are independent booleans.
var bankingTerms = map[string]string{
	"pix":           "banking_transfer",
	"ted":           "banking_transfer",
	"doc":           "banking_transfer",
	"transferencia": "banking_transfer",
	"boleto":        "banking_billpay",
	"pagamento":     "banking_payment",
	"saque":         "banking_withdrawal",
	"deposito":      "banking_deposit",
	"cartao":        "banking_card",
	"debito":        "banking_debit",
	"credito":       "banking_credit",
	"parcela":       "banking_installment",
	"fatura":        "banking_invoice",
	"emprestimo":    "banking_loan",
	"rendimento":    "banking_yield",
	"estorno":       "banking_refund",
	"tarifa":        "banking_fee",
	"recarga":       "banking_topup",
}

var currencyWords = []string{"r$", "reais", "real ", "brl"}

// Brazilian taxpayer document formats. These match the fixed canonical
// punctuation, not bare digit runs.
var (
	cpfPattern  = regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d{2}`)
	cnpjPattern = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents strips combining marks so "transferência" compares equal to
// "transferencia". Returns the input unchanged if transformation fails.
func foldAccents(text string) string {
	folded, _, err := transform.String(accentFolder, text)
	if err != nil {
		return text
	}
	return folded
}

// brazilianFeatures scans a lower-cased description for Brazilian banking
// vocabulary, currency markers, and taxpayer document patterns.
func brazilianFeatures(lowered string) []string {
	folded := foldAccents(lowered)

	var features []string

	for _, token := range Tokenize(folded) {
		if feature, ok := bankingTerms[token]; ok {
			features = append(features, feature)
		}
	}

	for _, word := range currencyWords {
		if strings.Contains(folded, word) {
			features = append(features, "currency_brl")
			break
		}
	}

	if cpfPattern.MatchString(folded) {
		features = append(features, "doc_cpf")
	}
	if cnpjPattern.MatchString(folded) {
		features = append(features, "doc_cnpj")
	}

	return features
}
