package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonicalization is an ordered pipeline of pure filters over a
// candidate string. The output is only used for comparison, never
// displayed or persisted.
var canonSteps = []func(string) string{
	strings.ToLower,
	StripDiacritics,
	stripQuestionPrefix,
	stripPunctuation,
	dropStopwords,
}

// Question-opener boilerplate the assistant prepends to most
// clarification suggestions. Stripped before similarity comparison so
// "Pourriez-vous préciser le budget ?" and "Pouvez-vous préciser le
// budget ?" collapse to the same candidate.
var questionPrefixes = []string{
	"pourriez-vous",
	"pourriez vous",
	"pouvez-vous",
	"pouvez vous",
	"pourrais-tu",
	"peux-tu",
	"est-ce que",
	"est ce que",
	"serait-il possible de",
	"serait il possible de",
	"could you",
	"can you",
	"would you",
}

var stopwords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "de": {}, "des": {}, "du": {},
	"un": {}, "une": {}, "et": {}, "ou": {}, "a": {}, "au": {},
	"aux": {}, "en": {}, "pour": {}, "sur": {}, "dans": {}, "que": {},
	"qui": {}, "ce": {}, "cette": {}, "ces": {}, "est": {}, "sont": {},
	"il": {}, "elle": {}, "on": {}, "nous": {}, "vous": {}, "ils": {},
	"elles": {}, "ne": {}, "pas": {}, "plus": {}, "se": {}, "son": {},
	"sa": {}, "ses": {}, "votre": {}, "vos": {}, "notre": {}, "nos": {},
	"avec": {}, "par": {}, "si": {}, "d": {}, "l": {},
	"the": {}, "of": {}, "to": {}, "and": {}, "in": {}, "is": {},
}

var diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonicalize reduces a suggestion to a comparable form: lowercased,
// unaccented, boilerplate question prefixes removed, punctuation
// stripped and stopwords dropped.
func Canonicalize(s string) string {
	for _, step := range canonSteps {
		s = step(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// StripDiacritics removes combining marks ("précisément" -> "precisement").
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsRemover, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens returns the canonical token set of s.
func Tokens(s string) map[string]struct{} {
	fields := strings.Fields(Canonicalize(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func stripQuestionPrefix(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
}

func dropStopwords(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
