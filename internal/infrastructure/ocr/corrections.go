package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

// Confusion classes: characters OCR backends habitually misread on scanned
// financial documents, and the digits they stand for.
var confusionReplacer = strings.NewReplacer(
	"O", "0", "o", "0",
	"I", "1", "i", "1", "l", "1",
	"S", "5", "s", "5",
)

// CorrectConfusions rewrites commonly confused characters to their digit
// counterparts, uniformly over the whole text.
func CorrectConfusions(text string) string {
	return confusionReplacer.Replace(text)
}

// ConfusionClasses counts how many distinct confusion classes occur in value.
func ConfusionClasses(value string) int {
	n := 0
	if strings.ContainsAny(value, "oO") {
		n++
	}
	if strings.ContainsAny(value, "iIl") {
		n++
	}
	if strings.ContainsAny(value, "sS") {
		n++
	}
	return n
}

// TolerantPattern returns a regexp fragment that matches word as written and
// in any state of confusion correction, so anchors like "Routing" still hit
// after the text has been rewritten to "R0ut1ng".
func TolerantPattern(word string) string {
	var b strings.Builder
	for _, r := range word {
		switch unicode.ToLower(r) {
		case 'o':
			b.WriteString("[oO0]")
		case 'i', 'l':
			b.WriteString("[iIl1]")
		case 's':
			b.WriteString("[sS5]")
		default:
			if unicode.IsLetter(r) {
				b.WriteString("[")
				b.WriteRune(unicode.ToLower(r))
				b.WriteRune(unicode.ToUpper(r))
				b.WriteString("]")
			} else {
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
	}
	return b.String()
}
