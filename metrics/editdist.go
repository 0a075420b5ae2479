// Package metrics scores transcripts against references: edit distance,
// word and character error rates, and the per-epoch aggregation of
// validation and test step outputs.
package metrics

import "strings"

// EditDistance computes the Levenshtein distance between two sequences.
func EditDistance[T comparable](a, b []T) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// single-row DP
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// WER returns the total word edit distance between hyps and refs and the
// total number of reference words. refs and hyps are paired by index; a
// missing hypothesis counts as empty.
func WER(refs, hyps []string) (numErrors, numWords int) {
	for i, ref := range refs {
		r := strings.Fields(ref)
		var h []string
		if i < len(hyps) {
			h = strings.Fields(hyps[i])
		}
		numErrors += EditDistance(r, h)
		numWords += len(r)
	}
	return numErrors, numWords
}

// CER is WER over characters, spaces included.
func CER(refs, hyps []string) (numErrors, numChars int) {
	for i, ref := range refs {
		r := []rune(ref)
		var h []rune
		if i < len(hyps) {
			h = []rune(hyps[i])
		}
		numErrors += EditDistance(r, h)
		numChars += len(r)
	}
	return numErrors, numChars
}
