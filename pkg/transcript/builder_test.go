package transcript

import (
	"strings"
	"testing"
	"time"
)

func TestDisplayTimestamps(t *testing.T) {
	chunks := []Chunk{
		{Seq: 0, Text: "Bonjour à tous"},
		{Seq: 1, Text: "Le budget est de 10000 euros"},
		{Seq: 2, Text: "On passe au point suivant"},
	}
	out := Display(chunks, 15*time.Second)
	for _, want := range []string{"[0:15] Bonjour", "[0:30] Le budget", "[0:45] On passe"} {
		if !strings.Contains(out, want) {
			t.Fatalf("display transcript missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n\n"); got != 2 {
		t.Fatalf("expected 2 block separators, got %d", got)
	}
}

func TestDisplayMinuteRollover(t *testing.T) {
	chunks := make([]Chunk, 5)
	for i := range chunks {
		chunks[i] = Chunk{Seq: i, Text: "segment"}
	}
	out := Display(chunks, 15*time.Second)
	if !strings.Contains(out, "[1:15] segment") {
		t.Fatalf("expected [1:15] marker for fifth chunk:\n%s", out)
	}
}

func TestCleanSentencesDropsShortAndContained(t *testing.T) {
	in := []string{
		"Le budget est de 10000 euros",
		"budget est de 10000",
		"Oui",
		"Nous validons le planning du second trimestre",
	}
	kept := CleanSentences(in)
	if len(kept) != 2 {
		t.Fatalf("expected 2 sentences, got %v", kept)
	}
	for _, s := range kept {
		if len(s) <= MinSentenceChars {
			t.Fatalf("retained sentence %q at or below %d chars", s, MinSentenceChars)
		}
	}
}

func TestCleanSentencesSupersetDisplaces(t *testing.T) {
	in := []string{
		"le planning est validé",
		"Comme convenu le planning est validé pour le trimestre",
	}
	kept := CleanSentences(in)
	if len(kept) != 1 {
		t.Fatalf("expected superset to displace the shorter sentence, got %v", kept)
	}
	if kept[0] != in[1] {
		t.Fatalf("expected %q, got %q", in[1], kept[0])
	}
}

func TestCleanSentencesNoSubstringPairProperty(t *testing.T) {
	in := SplitSentences("Bonjour à tous, commençons. Le budget est de 10000 euros! " +
		"Le budget est de 10000 euros pour cette année? On passe au point suivant.\n" +
		"Merci. On passe au point suivant")
	kept := CleanSentences(in)
	for i := range kept {
		for j := range kept {
			if i == j {
				continue
			}
			if strings.Contains(strings.ToLower(kept[i]), strings.ToLower(kept[j])) {
				t.Fatalf("retained sentences %q and %q violate dedup", kept[i], kept[j])
			}
		}
	}
}

func TestCleanJoinsWithTerminator(t *testing.T) {
	chunks := []Chunk{
		{Seq: 0, Text: "Bonjour à tous, commençons la réunion"},
		{Seq: 1, Text: "Le budget est de 10000 euros."},
	}
	out := Clean(chunks)
	if !strings.HasSuffix(out, ".") {
		t.Fatalf("clean transcript should end with a terminator: %q", out)
	}
	if !strings.Contains(out, "Bonjour à tous, commençons la réunion") {
		t.Fatalf("clean transcript lost content: %q", out)
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("le budget est de 10000 euros"); got != 6 {
		t.Fatalf("expected 6 words, got %d", got)
	}
	if got := WordCount("   "); got != 0 {
		t.Fatalf("expected 0 words, got %d", got)
	}
}
