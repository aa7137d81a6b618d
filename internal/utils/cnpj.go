package utils

import "unicode"

// remove qualquer coisa que não seja dígito
func SanitizeCNPJ(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ espera o CNPJ já sanitizado (14 dígitos) e confere os dígitos verificadores.
func ValidateCNPJ(cnpj string) bool {
	if len(cnpj) != 14 {
		return false
	}
	allEq := true
	for i := 1; i < 14; i++ {
		if cnpj[i] != cnpj[0] {
			allEq = false
			break
		}
	}
	if allEq {
		return false
	}
	for i := 0; i < 14; i++ {
		if cnpj[i] < '0' || cnpj[i] > '9' {
			return false
		}
	}
	return checkDigit(cnpj[:12], cnpjWeights1) == int(cnpj[12]-'0') &&
		checkDigit(cnpj[:13], cnpjWeights2) == int(cnpj[13]-'0')
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// FormatCNPJ: "11222333000181" -> "11.222.333/0001-81". Entrada fora do padrão volta como veio.
func FormatCNPJ(cnpj string) string {
	d := SanitizeCNPJ(cnpj)
	if len(d) != 14 {
		return cnpj
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}
