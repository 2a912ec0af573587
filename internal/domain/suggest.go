package domain

import (
	"cmp"
	"slices"
	"strings"
)

// MaxSuggestions bounds the number of names offered for a broken reference.
const MaxSuggestions = 3

// Rank returns at most MaxSuggestions names related to target. Only names
// that contain target, or are contained in it, qualify. They are ordered by
// absolute length difference to target, then lexicographically.
func Rank(target string, names []string) []string {
	if target == "" {
		return nil
	}
	type cand struct {
		name string
		diff int
	}
	var cands []cand
	for _, n := range names {
		if n == "" || !(strings.Contains(n, target) || strings.Contains(target, n)) {
			continue
		}
		d := len(n) - len(target)
		if d < 0 {
			d = -d
		}
		cands = append(cands, cand{name: n, diff: d})
	}
	slices.SortFunc(cands, func(a, b cand) int {
		if c := cmp.Compare(a.diff, b.diff); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	out := make([]string, 0, min(len(cands), MaxSuggestions))
	for i := 0; i < len(cands) && i < MaxSuggestions; i++ {
		out = append(out, cands[i].name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
