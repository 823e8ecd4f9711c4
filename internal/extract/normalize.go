package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Text repair for raw PDF page content. Everything here is pure and
// domain-agnostic: safe across any input using Latin letters and Arabic
// digits. The confusion repairs target misreads we see constantly in
// scanned legal filings (OCR'd exhibits, fax cover sheets).

var (
	horizontalWS   = regexp.MustCompile(`[ \t]+`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)

	// A lone vertical bar between word boundaries is almost always a
	// misread capital I.
	loneBar = regexp.MustCompile(`\b\|\b`)

	// "8/12/2023" or "H/12/2023" at the start of a fragment is a misread
	// leading zero on a date.
	misreadDatePrefix = regexp.MustCompile(`^[8H](\d/\d{2}/\d{2,4})`)

	mergedWords = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigit = regexp.MustCompile(`([A-Za-z])([0-9])`)
	digitLetter = regexp.MustCompile(`([0-9])([A-Za-z])`)
)

// NormalizeText cleans one raw text fragment: whitespace collapse,
// character-confusion repairs, spacing repairs, trim. Idempotent for inputs
// free of the confusable patterns.
func NormalizeText(raw string) string {
	text := horizontalWS.ReplaceAllString(raw, " ")
	text = excessNewlines.ReplaceAllString(text, "\n\n")

	text = loneBar.ReplaceAllString(text, "I")
	text = misreadDatePrefix.ReplaceAllString(text, "0$1")

	text = mergedWords.ReplaceAllString(text, "$1 $2")
	text = letterDigit.ReplaceAllString(text, "$1 $2")
	text = digitLetter.ReplaceAllString(text, "$1 $2")

	return strings.TrimSpace(text)
}

const (
	minNoiseJudgeLen = 5
	minAlphaRatio    = 0.4
	minVowelRatio    = 0.2
	vowelCheckMinLen = 12
)

// IsNoise classifies a cleaned fragment as unlikely to be genuine document
// content: logo marks, ruling artifacts, garbled OCR runs. Fragments under
// five runes are too short to judge and are never noise.
func IsNoise(text string) bool {
	runes := []rune(text)
	total := len(runes)
	if total < minNoiseJudgeLen {
		return false
	}

	alpha, vowels := 0, 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			alpha++
		}
		switch unicode.ToLower(r) {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		}
	}

	alphaRatio := float64(alpha) / float64(total)
	if alphaRatio < minAlphaRatio {
		return true
	}
	vowelRatio := float64(vowels) / float64(total)
	return vowelRatio < minVowelRatio && total > vowelCheckMinLen
}

// countAlpha measures text density: the number of alphabetic runes.
func countAlpha(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
