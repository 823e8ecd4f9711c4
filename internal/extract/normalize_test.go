package extract

import (
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapse spaces", "Plaintiff   was    injured", "Plaintiff was injured"},
		{"collapse tabs", "Date:\t\t01/02/2023", "Date: 01/02/2023"},
		{"cap newlines", "line one\n\n\n\n\nline two", "line one\n\nline two"},
		{"bar to I", "EXH|BIT A", "EXHIBIT A"},
		{"misread date 8", "81/12/2023 visit notes", "01/12/2023 visit notes"},
		{"misread date H", "H1/05/23 follow-up", "01/05/23 follow-up"},
		{"merged words", "totalAmount due", "total Amount due"},
		{"letter then digit", "Exhibit3", "Exhibit 3"},
		{"digit then letter", "3rd of May", "3 rd of May"},
		{"trim", "  padded  ", "padded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeText(tc.in); got != tc.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	inputs := []string{
		"The patient presented with lower back pain.",
		"Total billed: $4,512.33",
		"INSURANCE CLAIM FORM",
		"line one\n\nline two",
	}
	for _, in := range inputs {
		once := NormalizeText(in)
		twice := NormalizeText(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestIsNoise(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"short fragments never noise", "a1!", false},
		{"four chars never noise", "////", false},
		{"ordinary sentence", "The claimant was treated on site.", false},
		{"low alpha ratio", "|||| 123 ---", true},
		{"alpha ratio just below boundary", "ab3456", true}, // 2/6 ~= 0.33
		{"alpha ratio exactly at boundary", "ab345", false}, // 2/5 = 0.4, strict <
		{"consonant run over twelve chars", "bcdfghjklmnpq", true},
		{"vowel ratio at strict boundary", "abcdebcdebcdeak", false},
		{"twelve chars skips vowel check", "bcdfghjklmnp", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNoise(tc.in); got != tc.want {
				t.Errorf("IsNoise(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsNoiseRatioBoundaries(t *testing.T) {
	// 15 runes, 3 vowels: ratio exactly 0.2 is NOT noise (strict <).
	atBoundary := "bcdfg" + "a" + "bcdf" + "e" + "bcd" + "i" // 15 chars, vowels a,e,i
	if len([]rune(atBoundary)) != 15 {
		t.Fatalf("fixture length = %d, want 15", len([]rune(atBoundary)))
	}
	if IsNoise(atBoundary) {
		t.Errorf("vowel ratio exactly 0.2 must not be noise")
	}

	// 13 runes, 2 vowels: ratio ~0.15 with length > 12 IS noise.
	below := "bcdfgabcdfgeb"
	if len([]rune(below)) != 13 {
		t.Fatalf("fixture length = %d, want 13", len([]rune(below)))
	}
	if !IsNoise(below) {
		t.Errorf("vowel ratio 0.15 at length 13 must be noise")
	}
}

func TestCountAlphaDensityBoundary(t *testing.T) {
	const threshold = 50

	just := strings.Repeat("abcde", 10) // 50 alphabetic chars
	if countAlpha(just) < threshold {
		t.Errorf("50 alphabetic chars must not be degraded")
	}
	short := just[:49]
	if countAlpha(short) >= threshold {
		t.Errorf("49 alphabetic chars must be degraded")
	}
	mixed := strings.Repeat("a 1.", 13) // 13 letters among punctuation
	if countAlpha(mixed) != 13 {
		t.Errorf("countAlpha(mixed) = %d, want 13", countAlpha(mixed))
	}
}
