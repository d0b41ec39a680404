package textnorm

// Jaccard computes token-set similarity in [0, 1]. Two empty sets are
// treated as identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similar reports whether two strings are near-duplicates after
// canonicalization.
func Similar(a, b string, threshold float64) bool {
	return Jaccard(Tokens(a), Tokens(b)) >= threshold
}

// DedupSimilar keeps the first occurrence of each group of
// near-duplicate strings, preserving input order. Blank strings are
// dropped.
func DedupSimilar(items []string, threshold float64) []string {
	kept := make([]string, 0, len(items))
	keptTokens := make([]map[string]struct{}, 0, len(items))
	for _, item := range items {
		toks := Tokens(item)
		if len(toks) == 0 {
			continue
		}
		dup := false
		for _, prev := range keptTokens {
			if Jaccard(toks, prev) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, item)
		keptTokens = append(keptTokens, toks)
	}
	return kept
}
