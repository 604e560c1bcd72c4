package server_test

import (
	"decode-server/internal/server"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRoomCodeFormat(t *testing.T) {
	assert := assert.New(t)

	for range 100 {
		code := server.GenerateRoomCode(nil)

		assert.Equal(6, len(code))

		for _, ch := range code {
			assert.True((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9'), "unexpected rune %q", ch)
		}
	}
}

func TestGenerateRoomCodeUniqueness(t *testing.T) {
	usedCodes := make(map[string]bool)
	inUse := func(code string) bool { return usedCodes[code] }

	for range 1000 {
		code := server.GenerateRoomCode(inUse)

		assert.False(t, usedCodes[code], "Code %s was generated twice", code)
		usedCodes[code] = true
	}

	assert.Equal(t, 1000, len(usedCodes))
}

func TestGenerateRoomCodeRetriesOnCollision(t *testing.T) {
	calls := 0
	inUse := func(string) bool {
		calls++
		return calls <= 3
	}

	code := server.GenerateRoomCode(inUse)

	assert.Len(t, code, 6)
	assert.Equal(t, 4, calls)
}

func TestValidateRoomCodeValidCodes(t *testing.T) {
	validCodes := []string{"BEAR42", "A1B2C3", "000000", "ZZZZZZ", "abc123"}

	for _, code := range validCodes {
		err := server.ValidateRoomCode(code)
		assert.NoError(t, err, "Code %s should be valid", code)
	}
}

func TestValidateRoomCodeInvalidLength(t *testing.T) {
	invalidCodes := []string{"", "A", "ABCD", "ABCDE", "ABCDEFG"}

	for _, code := range invalidCodes {
		err := server.ValidateRoomCode(code)
		assert.Error(t, err, "Code %s should be invalid (wrong length)", code)
		assert.Contains(t, err.Error(), "exactly 6 characters")
	}
}

func TestValidateRoomCodeInvalidCharacters(t *testing.T) {
	invalidCodes := []string{
		"A-B!CD", // special chars
		"T@STAB", // special chars
		"A BCDE", // space
	}

	for _, code := range invalidCodes {
		err := server.ValidateRoomCode(code)
		assert.Error(t, err, "Code %s should be invalid (bad characters)", code)
		assert.Contains(t, err.Error(), "only letters A-Z and digits")
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "AB12CD", server.NormalizeRoomCode("  ab12cd "))
	assert.Equal(t, strings.ToUpper("xyz789"), server.NormalizeRoomCode("xyz789"))
}
