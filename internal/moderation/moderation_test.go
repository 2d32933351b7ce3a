package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPhoneNumber(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		blocked bool
	}{
		{"empty", "", false},
		{"plain text", "see you tomorrow at the usual place", false},
		{"few digits", "meet at 7pm in room 42", false},
		{"six digits total", "codes 123 and 456", false},
		{"us dashed", "call me at 555-123-4567", true},
		{"us parens", "my number is (555) 123-4567", true},
		{"us dotted", "reach me 555.123.4567", true},
		{"international plus", "text +44 20 7946 0958", true},
		{"toll free", "support is 1-800-555-1234", true},
		{"emergency short code", "just dial 911 ok", true},
		{"spaced out digits", "5 5 5 1 2 3 4 5 6 7", true},
		{"seven digit run", "ping me on 5551234", true},
		{"digits across words", "12 cats, 34 dogs and 567 birds", true}, // seven digits total, still blocked
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.blocked, ContainsPhoneNumber(tc.text))
		})
	}
}
