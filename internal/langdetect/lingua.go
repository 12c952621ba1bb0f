// Package langdetect classifies article text by language so the pipeline can
// keep only the configured target language.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Classification below this many letters is noise, treat as unknown.
const minLetters = 6

// Long bodies do not improve accuracy past a few hundred runes.
const maxSampleRunes = 600

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the lowercase two-letter language code of text, or
// empty when the text is too short to classify.
func DetectISO6391(text string) string {
	sample := sampleOf(text)
	if sample == "" {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// MatchesTarget reports whether detected text language equals the target
// ISO 639-1 code. Unclassifiable text counts as a match so that short
// headlines are not filtered out.
func MatchesTarget(text, target string) bool {
	code := DetectISO6391(text)
	if code == "" {
		return true
	}
	return code == strings.ToLower(strings.TrimSpace(target))
}

func sampleOf(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	runes := []rune(sample)
	if len(runes) > maxSampleRunes {
		runes = runes[:maxSampleRunes]
	}

	letters := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minLetters {
		return ""
	}
	return string(runes)
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
