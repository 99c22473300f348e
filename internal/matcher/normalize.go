package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// umlautReplacer transliterates German umlauts after case folding.
// Folding already turns ß into ss.
var umlautReplacer = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue")

// abbreviations maps standalone abbreviation tokens to their long form.
var abbreviations = map[string]string{
	"str": "strasse",
	"pl":  "platz",
}

// suffixAbbreviations maps abbreviated word endings to their long form,
// e.g. "hauptstr" becomes "hauptstrasse".
var suffixAbbreviations = []struct {
	short, long string
}{
	{"str", "strasse"},
	{"pl", "platz"},
}

// Normalize returns the canonical form of an address text: case folded,
// umlauts transliterated, punctuation removed, abbreviations expanded and
// whitespace collapsed. House number ranges such as "12-14" stay intact.
func Normalize(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// Tokenize splits s into normalized tokens. See Normalize.
func Tokenize(s string) []string {
	// cases.Caser is stateful, so each call gets its own.
	folded := cases.Fold().String(norm.NFC.String(s))
	folded = umlautReplacer.Replace(folded)

	runes := []rune(folded)
	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case isRangeSeparator(runes, i):
			b.WriteByte('-')
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		tokens[i] = expandAbbreviation(tok)
	}
	return tokens
}

// isRangeSeparator reports whether runes[i] joins two digits ("12-14", "12/14").
func isRangeSeparator(runes []rune, i int) bool {
	r := runes[i]
	if r != '-' && r != '/' && r != '–' {
		return false
	}
	return i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

func expandAbbreviation(tok string) string {
	if long, ok := abbreviations[tok]; ok {
		return long
	}
	if tok == "" || unicode.IsDigit(rune(tok[0])) {
		return tok
	}
	for _, a := range suffixAbbreviations {
		if len(tok) > len(a.short)+1 && strings.HasSuffix(tok, a.short) {
			return strings.TrimSuffix(tok, a.short) + a.long
		}
	}
	return tok
}

// joined concatenates tokens without separators. Street names are compared
// in this form so "Karl-Marx-Allee" and "Karl Marx Allee" are equal.
func joined(tokens []string) string {
	return strings.Join(tokens, "")
}

// isPostalCode reports whether tok looks like a German postal code.
func isPostalCode(tok string) bool {
	if len(tok) != 5 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
