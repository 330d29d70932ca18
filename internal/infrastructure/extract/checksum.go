package extract

// routingWeights is the ABA transit number weighting 3-7-1, repeated over the
// nine digits.
var routingWeights = [9]int{3, 7, 1, 3, 7, 1, 3, 7, 1}

// ValidRoutingNumber reports whether s is a nine digit ABA routing number
// whose weighted checksum is divisible by ten.
func ValidRoutingNumber(s string) bool {
	if len(s) != 9 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += routingWeights[i] * int(d-'0')
	}
	return sum%10 == 0
}
