// Package textnorm normaliza nomes de empresas, pastas e arquivos para
// comparação: sem acentos, caixa alta e espaços colapsados.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents remove marcas diacríticas ("Imbé" -> "Imbe", "CERTIDÕES" -> "CERTIDOES").
func StripAccents(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize: sem acento, maiúsculo, pontuação vira espaço, espaços colapsados.
func Normalize(s string) string {
	s = strings.ToUpper(StripAccents(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeNoDigits é Normalize sem dígitos: "CERTIDAO FEDERAL (2)" -> "CERTIDAO FEDERAL".
func NormalizeNoDigits(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return ' '
		}
		return r
	}, s)
	return Normalize(s)
}

func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Digits devolve apenas os dígitos de s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func EqualFold(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
