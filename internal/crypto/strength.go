package crypto

import "unicode"

// Score thresholds for PasswordStrength.
const (
	StrongThreshold     = 25
	VeryStrongThreshold = 40
)

// PasswordStrength scores a password. Length beyond eight characters,
// distinct characters and a mix of character classes add to the score;
// repeated characters and ascending or descending runs subtract from it.
func PasswordStrength(password string) int {
	runes := []rune(password)
	strength := 0
	if n := len(runes); n > 8 {
		strength += 10 + (n - 8)
	}

	var (
		digits, lower, upper, symbols int
		prev                          rune
		repeat, seq, invSeq           int
	)
	unique := make(map[rune]struct{}, len(runes))

	for _, ch := range runes {
		unique[ch] = struct{}{}

		repeat = runLength(ch == prev, repeat)
		seq = runLength(ch == prev+1, seq)
		invSeq = runLength(ch == prev-1, invSeq)
		strength -= repeat + seq + invSeq
		prev = ch

		switch {
		case unicode.IsLetter(ch):
			if unicode.IsUpper(ch) {
				upper++
			} else {
				lower++
			}
		case unicode.IsDigit(ch):
			digits++
		default:
			symbols++
		}
	}

	strength += len(unique) * 2
	strength += classBonus(upper, 2)
	strength += classBonus(lower, 2)
	strength += classBonus(digits, 2)
	strength += classBonus(symbols, 4)
	return strength
}

func runLength(continues bool, n int) int {
	if continues {
		return n + 1
	}
	return 0
}

func classBonus(count, bonus int) int {
	if count > 0 {
		return bonus
	}
	return -2
}

// IsWeak reports whether password scores below StrongThreshold.
func IsWeak(password string) bool { return PasswordStrength(password) < StrongThreshold }

// IsStrong reports whether password reaches StrongThreshold.
func IsStrong(password string) bool { return PasswordStrength(password) >= StrongThreshold }

// IsVeryStrong reports whether password reaches VeryStrongThreshold.
func IsVeryStrong(password string) bool { return PasswordStrength(password) >= VeryStrongThreshold }
