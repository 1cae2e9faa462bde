package engine

import "strings"

// Masking transforms. All of them clamp to the available length instead of
// slicing out of range: Classify must stay total even for values shorter than
// the shapes the detection patterns normally guarantee.

// firstRunes returns the first n runes of s, or all of s when shorter.
func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// lastRunes returns the last n runes of s, or all of s when shorter.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func maskPhone(v string) string {
	return firstRunes(v, 2) + "XXXXXX" + lastRunes(v, 2)
}

func maskAadhar(v string) string {
	return firstRunes(v, 4) + "XXXX" + lastRunes(v, 4)
}

// maskPassport keeps the first character only, regardless of input length.
func maskPassport(v string) string {
	return firstRunes(v, 1) + "XXXXXXX"
}

func maskUPI(v string) string {
	if !strings.Contains(v, "@") {
		return "XXX@XXX"
	}
	parts := strings.Split(v, "@")
	return firstRunes(parts[0], 2) + "XXX@" + parts[1]
}

// maskName keeps the first letter of the first and last whitespace-separated
// parts. A value without at least two parts keeps its first character only.
func maskName(v string) string {
	parts := strings.Fields(v)
	if len(parts) >= 2 {
		return firstRunes(parts[0], 1) + "XXX " + firstRunes(parts[len(parts)-1], 1) + "XXX"
	}
	return firstRunes(v, 1) + "XXX"
}

// maskEmail keeps up to two characters of the local part and the domain
// unchanged. A local part shorter than two characters yields the full prefix;
// a value without "@" yields the prefix with an empty domain.
func maskEmail(v string) string {
	parts := strings.Split(v, "@")
	if len(parts) < 2 {
		return firstRunes(v, 2) + "XXX@"
	}
	return firstRunes(parts[0], 2) + "XXX@" + parts[1]
}
