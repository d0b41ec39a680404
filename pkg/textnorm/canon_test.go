package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeStripsBoilerplate(t *testing.T) {
	a := Canonicalize("Pourriez-vous préciser le budget alloué ?")
	b := Canonicalize("Pouvez-vous préciser le budget alloué ?")
	assert.Equal(t, a, b, "question prefixes should not affect the canonical form")
	assert.NotContains(t, a, "é")
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "precisement", StripDiacritics("précisément"))
	assert.Equal(t, "reunion a l'ecole", StripDiacritics("réunion à l'école"))
}

func TestJaccardBounds(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(Tokens("budget alloué projet"), Tokens("budget alloué projet")))
	assert.Equal(t, 0.0, Jaccard(Tokens("budget"), Tokens("planning")))
}

func TestSimilarNearDuplicates(t *testing.T) {
	a := "Pourriez-vous préciser le budget alloué au projet ?"
	b := "Pouvez-vous préciser le budget alloué au projet"
	assert.True(t, Similar(a, b, 0.8))
	assert.False(t, Similar(a, "Quel est le calendrier de livraison ?", 0.8))
}

func TestDedupSimilarKeepsFirst(t *testing.T) {
	in := []string{
		"Pourriez-vous préciser le budget alloué au projet ?",
		"Pouvez-vous préciser le budget alloué au projet",
		"Quel est le calendrier de livraison ?",
		"   ",
	}
	out := DedupSimilar(in, 0.8)
	assert.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[2], out[1])
}

func TestDedupSimilarPairwiseProperty(t *testing.T) {
	in := []string{
		"Clarifier les délais de livraison du projet",
		"Pourriez-vous clarifier les délais de livraison du projet ?",
		"Explorer les options de financement",
	}
	out := DedupSimilar(in, 0.8)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			assert.False(t, Similar(out[i], out[j], 0.8),
				"retained items %q and %q are near-duplicates", out[i], out[j])
		}
	}
}
