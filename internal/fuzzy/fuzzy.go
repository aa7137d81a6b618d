// Package fuzzy pontua a semelhança entre nomes (0 a 100) no estilo
// fuzzywuzzy: Ratio, PartialRatio, TokenSortRatio, TokenSetRatio e WRatio.
// Todas as funções comparam as versões normalizadas (sem acento, maiúsculas).
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
)

// Scorer compara dois textos e devolve 0..100.
type Scorer func(a, b string) int

// sem timeout o diff é mínimo (Myers completo) e a pontuação fica simétrica
var dmp = func() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0
	return d
}()

// Distance é a distância de Levenshtein entre os textos normalizados.
func Distance(a, b string) int {
	a, b = textnorm.Normalize(a), textnorm.Normalize(b)
	return dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
}

// Ratio = 2*M / T, onde M são os caracteres em comum na ordem e T a soma dos tamanhos.
func Ratio(a, b string) int {
	return ratio(textnorm.Normalize(a), textnorm.Normalize(b))
}

func ratio(a, b string) int {
	if a == b {
		if a == "" {
			return 0
		}
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	matches := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matches += utf8.RuneCountInString(d.Text)
		}
	}
	return round(200 * float64(matches) / float64(la+lb))
}

// PartialRatio: melhor Ratio do texto curto contra janelas do mesmo tamanho no longo.
func PartialRatio(a, b string) int {
	return partialRatio(textnorm.Normalize(a), textnorm.Normalize(b))
}

func partialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(s, string(long[i:i+len(short)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio ignora a ordem das palavras.
func TokenSortRatio(a, b string) int {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	t := textnorm.Tokens(s)
	sort.Strings(t)
	return strings.Join(t, " ")
}

// TokenSetRatio ignora palavras repetidas e extras: "ACME" x "ACME LTDA ME" = 100.
func TokenSetRatio(a, b string) int {
	setA, setB := tokenSet(a), tokenSet(b)
	var inter, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))

	return max(ratio(t0, t1), ratio(t0, t2), ratio(t1, t2))
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range textnorm.Tokens(s) {
		out[t] = true
	}
	return out
}

// WRatio combina os outros scorers ponderando pela diferença de tamanho.
func WRatio(a, b string) int {
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	if la == 0 || lb == 0 {
		return 0
	}
	base := float64(ratio(na, nb))
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))

	const unbase = 0.95
	if lenRatio < 1.5 {
		return round(math.Max(base, math.Max(
			float64(TokenSortRatio(na, nb))*unbase,
			float64(TokenSetRatio(na, nb))*unbase,
		)))
	}

	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	return round(math.Max(base, math.Max(
		float64(partialRatio(na, nb))*partialScale,
		float64(TokenSetRatio(na, nb))*unbase*partialScale,
	)))
}

func round(f float64) int {
	return int(math.Round(f))
}
