package protocol

import (
	"strings"
)

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes text so it can travel as a single token. Every byte
// outside of A-Z, a-z, 0-9 and `-_.~` is encoded, which always covers the
// token delimiter (space), the tag separator (colon) and the escape
// character itself.
func Escape(text string) string {
	n := 0
	for i := 0; i < len(text); i++ {
		if shouldEscape(text[i]) {
			n++
		}
	}

	if n == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 2*n)

	for i := 0; i < len(text); i++ {
		c := text[i]
		if !shouldEscape(c) {
			b.WriteByte(c)
			continue
		}

		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}

	return b.String()
}

// Unescape reverses Escape. Any `%XX` sequence is decoded, whatever byte it
// encodes, so tokens escaped by the server with a different safe set decode
// too. A `%` that is not followed by two hex digits is a DecodeError.
func Unescape(token string) (string, error) {
	if strings.IndexByte(token, '%') < 0 {
		return token, nil
	}

	var b strings.Builder
	b.Grow(len(token))

	for i := 0; i < len(token); i++ {
		c := token[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}

		if i+2 >= len(token) || !isHex(token[i+1]) || !isHex(token[i+2]) {
			return "", &DecodeError{Token: token, Cause: ErrBadEscape}
		}

		b.WriteByte(unhex(token[i+1])<<4 | unhex(token[i+2]))
		i += 2
	}

	return b.String(), nil
}

func shouldEscape(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	case c == '-', c == '_', c == '.', c == '~':
		return false
	}

	return true
}

func isHex(c byte) bool {
	switch {
	case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		return true
	}

	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
