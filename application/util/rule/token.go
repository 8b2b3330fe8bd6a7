package rule

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2-2
func IsValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if IsAlpha(c) || IsDigit(c) {
			continue
		}

		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+',
			'-', '.', '^', '_', '`', '|', '~':
			continue
		}

		return false
	}

	return true
}

// IsValidFieldValue reports whether v can be written on a single header line.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.5
func IsValidFieldValue(v string) bool {
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c == HTAB:
		case c < SP, c == 0x7F:
			return false
		}
	}
	return true
}
