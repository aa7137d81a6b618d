package fuzzy

import "sort"

type Match struct {
	Choice string
	Index  int
	Score  int
}

// ExtractAll devolve as opções com pontuação >= cutoff, da melhor para a pior.
// Empates mantêm a ordem original.
func ExtractAll(query string, choices []string, scorer Scorer, cutoff int) []Match {
	if scorer == nil {
		scorer = WRatio
	}
	out := make([]Match, 0, len(choices))
	for i, c := range choices {
		if s := scorer(query, c); s >= cutoff {
			out = append(out, Match{Choice: c, Index: i, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ExtractOne devolve a melhor opção acima do cutoff.
func ExtractOne(query string, choices []string, scorer Scorer, cutoff int) (Match, bool) {
	all := ExtractAll(query, choices, scorer, cutoff)
	if len(all) == 0 {
		return Match{}, false
	}
	return all[0], true
}
