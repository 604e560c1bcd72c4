package decode

const (
	// MinLength and MaxLength bound the secret length a room can be created with.
	// Ten digits exist, but anything past eight makes the game trivially short.
	MinLength     = 3
	MaxLength     = 8
	DefaultLength = 4
)

// Feedback is the result of scoring one guess against a secret.
type Feedback struct {
	CorrectDigit    int `json:"correctDigit"`
	CorrectPosition int `json:"correctPosition"`
}

// Solved reports whether every position matched.
func (f Feedback) Solved(length int) bool {
	return f.CorrectPosition == length
}

// LengthInRange reports whether n is a playable secret length.
func LengthInRange(n int) bool {
	return n >= MinLength && n <= MaxLength
}
