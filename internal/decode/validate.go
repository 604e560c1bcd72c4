package decode

// IsValid checks a secret or guess: exactly length characters, all decimal
// digits, none repeated.
func IsValid(candidate string, length int) bool {
	if length <= 0 || len(candidate) != length {
		return false
	}

	var seen [10]bool
	for i := 0; i < len(candidate); i++ {
		ch := candidate[i]
		if ch < '0' || ch > '9' {
			return false
		}
		if seen[ch-'0'] {
			return false
		}
		seen[ch-'0'] = true
	}

	return true
}
