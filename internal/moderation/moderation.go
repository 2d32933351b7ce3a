// Package moderation blocks text that tries to move the conversation off
// platform. The only rule today is phone-number detection.
package moderation

import "regexp"

var phonePatterns = []*regexp.Regexp{
	// US/Canada: (123) 456-7890, 123-456-7890, 123.456.7890
	regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	// International: +44 20 7946 0958
	regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}\b`),
	// Emergency short codes
	regexp.MustCompile(`\b(911|999|112|000)\b`),
	// Toll-free: 1-800-XXX-XXXX
	regexp.MustCompile(`(?i)\b1[-.\s]?800[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	// Digits spaced out one by one
	regexp.MustCompile(`\b\d(?:\s\d){9,}\b`),
}

// ContainsPhoneNumber reports whether the text carries something that looks
// like a phone number, including digit runs long enough to be one.
func ContainsPhoneNumber(text string) bool {
	if text == "" {
		return false
	}
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
			if digits >= 7 {
				return true
			}
		}
	}
	for _, p := range phonePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
