package mathutil

import "sort"

// TopK returns the indices of the k largest values of v in descending value
// order, ignoring index skip (pass -1 to consider every index). Ties keep the
// lower index first.
func TopK(v []float64, k, skip int) []int {
	idx := make([]int, 0, len(v))
	for i := range v {
		if i != skip {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] > v[idx[b]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
