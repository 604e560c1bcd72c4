package decode

// Score compares guess against secret. Both must have the same length; the
// caller validates that before scoring.
//
// CorrectPosition counts indices holding the same digit. CorrectDigit counts
// every digit value present in both strings, capped at the smaller of its two
// occurrence counts, so it includes the positional matches.
func Score(secret, guess string) Feedback {
	var fb Feedback
	var secretCount, guessCount [10]int

	for i := 0; i < len(secret) && i < len(guess); i++ {
		if secret[i] == guess[i] {
			fb.CorrectPosition++
		}
	}

	for i := 0; i < len(secret); i++ {
		if d := secret[i]; d >= '0' && d <= '9' {
			secretCount[d-'0']++
		}
	}
	for i := 0; i < len(guess); i++ {
		if d := guess[i]; d >= '0' && d <= '9' {
			guessCount[d-'0']++
		}
	}

	for d := range secretCount {
		fb.CorrectDigit += min(secretCount[d], guessCount[d])
	}

	return fb
}
