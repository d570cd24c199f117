package command

// Input validation helpers. Encoding itself never validates (the grammar
// functions are pure string assembly); callers are expected to check their
// inputs with these before encoding.

// IsPassword reports whether s is exactly 4 ASCII digits.
func IsPassword(s string) bool {
	return isDigits(s, 4)
}

// IsSerial reports whether s is exactly 3 ASCII digits.
func IsSerial(s string) bool {
	return isDigits(s, 3)
}

// IsLatchTime reports whether s is exactly 3 ASCII digits.
func IsLatchTime(s string) bool {
	return isDigits(s, 3)
}

// IsCommandTime reports whether s is a 10-digit YYMMDDHHMM string.
func IsCommandTime(s string) bool {
	return isDigits(s, 10)
}

// IsPhone reports whether s is non-empty and free of the '#' field
// terminator, which the grammar cannot escape.
func IsPhone(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '#' {
			return false
		}
	}
	return true
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
