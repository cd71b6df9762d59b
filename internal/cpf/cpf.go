// Package cpf validates Brazilian CPF and CNPJ numbers for the import,
// registration and public lookup paths.
package cpf

import "strings"

// Digits strips everything but decimal digits from a document number.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether the value is a well-formed CPF: 11 digits, not all
// the same, with both check digits correct.
func Valid(s string) bool {
	digits := Digits(s)
	if len(digits) != 11 {
		return false
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	if int(digits[9]-'0') != checkDigit(digits, 9) {
		return false
	}
	return int(digits[10]-'0') == checkDigit(digits, 10)
}

// ValidCNPJ reports whether the value is a well-formed CNPJ: 14 digits, not
// all the same, with both check digits correct.
func ValidCNPJ(s string) bool {
	digits := Digits(s)
	if len(digits) != 14 {
		return false
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	if int(digits[12]-'0') != cnpjCheckDigit(digits, 12) {
		return false
	}
	return int(digits[13]-'0') == cnpjCheckDigit(digits, 13)
}

func checkDigit(digits string, length int) int {
	sum := 0
	for i := 0; i < length; i++ {
		sum += int(digits[i]-'0') * (length + 1 - i)
	}
	check := 11 - sum%11
	if check >= 10 {
		return 0
	}
	return check
}

// cnpjCheckDigit computes the CNPJ verifier over the first length digits.
// Weights descend from length-7 to 2 and wrap back to 9 after 2.
func cnpjCheckDigit(digits string, length int) int {
	weight := length - 7
	sum := 0
	for i := 0; i < length; i++ {
		sum += int(digits[i]-'0') * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}
