package voc

import (
	"strings"
	"unicode"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// hinglishMarkers are romanized Hindi function words and common verbs that
// almost never appear in English retail messages. The list is deliberately
// small; a handful of hits against it is a strong code-mixing signal.
var hinglishMarkers = map[string]struct{}{
	"hai": {}, "hain": {}, "nahi": {}, "nahin": {}, "kya": {}, "kyun": {},
	"kab": {}, "kaise": {}, "kahan": {}, "mera": {}, "meri": {}, "mujhe": {},
	"aap": {}, "aapka": {}, "tum": {}, "hum": {}, "karo": {}, "karna": {},
	"kiya": {}, "hua": {}, "hoga": {}, "gaya": {}, "raha": {}, "rahi": {},
	"milega": {}, "chahiye": {}, "wapas": {}, "paisa": {}, "paise": {},
	"abhi": {}, "jaldi": {}, "bhai": {}, "yaar": {}, "acha": {}, "accha": {},
	"theek": {}, "thik": {}, "bahut": {}, "bhi": {}, "toh": {}, "lekin": {},
	"phir": {}, "aur": {},
}

const (
	devanagariRatioThreshold = 0.4
	hinglishRatioThreshold   = 0.15
)

// detectLanguages returns the language hypotheses for the text, most
// confident first.
func detectLanguages(text string) []models.DetectedLanguage {
	var devanagari, letters int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Devanagari, r) {
			devanagari++
		}
	}

	if letters > 0 {
		ratio := float64(devanagari) / float64(letters)
		if ratio > devanagariRatioThreshold {
			return []models.DetectedLanguage{{
				Language:   "hi",
				Confidence: min(0.6+ratio*0.4, 1),
				Script:     "devanagari",
			}}
		}
	}

	words := tokenize(text)
	if len(words) > 0 {
		hits := 0
		for _, w := range words {
			if _, ok := hinglishMarkers[w]; ok {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(words))
		if ratio > hinglishRatioThreshold {
			return []models.DetectedLanguage{
				{Language: "hinglish", Confidence: min(0.5+ratio, 1), Script: "latin"},
				{Language: "en", Confidence: max(0.3, 1-ratio), Script: "latin"},
			}
		}
	}

	return []models.DetectedLanguage{{Language: "en", Confidence: 0.9, Script: "latin"}}
}

// tokenize lowercases and splits on whitespace, stripping surrounding
// punctuation from each token.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
