package extract

import "regexp"

// MICR transit symbol as printed by check fonts (U+2446).
var (
	micrRoutingRe = regexp.MustCompile(`⑆(\d{9})⑆`)
	micrAccountRe = regexp.MustCompile(`⑆\d{9}⑆\s*(\d{8,17})`)
)

// ParseMICR reads the routing and account numbers from a check's MICR line.
// Either value may be empty when the transit symbols did not survive OCR; the
// labeled field patterns are the fallback then.
func ParseMICR(text string) (routing, account string, ok bool) {
	if m := micrRoutingRe.FindStringSubmatch(text); m != nil {
		routing = m[1]
	}
	if m := micrAccountRe.FindStringSubmatch(text); m != nil {
		account = m[1]
	}
	return routing, account, routing != "" || account != ""
}
