package services

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	maxExtractScanLength = 10 * 1024 * 1024 // 10MB max scan length
	maxExtractedLength   = 5 * 1024 * 1024  // 5MB max extracted value length
	maxUnwrapRecursion   = 2
)

// parseLenientJSONString parses a JSON string starting at the opening quote index.
// It allows raw \n/\r inside the string, which generated JSON sometimes contains.
// Returns (value, endIndexAfterClosingQuote, ok).
func parseLenientJSONString(s string, startQuote int) (string, int, bool) {
	if startQuote < 0 || startQuote >= len(s) || s[startQuote] != '"' {
		return "", 0, false
	}

	var b strings.Builder
	i := startQuote + 1

	for i < len(s) {
		ch := s[i]

		if ch == '"' {
			return b.String(), i + 1, true
		}

		if ch == '\\' {
			i++
			if i >= len(s) {
				return "", 0, false
			}
			esc := s[i]
			switch esc {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '/':
				b.WriteByte('/')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				if i+4 >= len(s) {
					return "", 0, false
				}
				u, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
				if err != nil {
					return "", 0, false
				}
				codePoint := rune(u)

				// High surrogate followed by a low surrogate combines into one code point.
				if codePoint >= 0xD800 && codePoint <= 0xDBFF {
					if i+10 < len(s) && s[i+5] == '\\' && s[i+6] == 'u' {
						u2, err2 := strconv.ParseUint(s[i+7:i+11], 16, 16)
						if err2 == nil {
							low := rune(u2)
							if low >= 0xDC00 && low <= 0xDFFF {
								b.WriteRune(0x10000 + (codePoint-0xD800)*0x400 + (low - 0xDC00))
								i += 11
								continue
							}
						}
					}
				}

				b.WriteRune(codePoint)
				i += 4
			default:
				b.WriteByte(esc)
			}
			i++
			continue
		}

		b.WriteByte(ch)
		i++
	}

	return "", 0, false
}

// ExtractJSONStringField extracts the string value of a top-level key from a JSON-ish payload,
// even when the payload is not valid JSON (raw newlines inside strings, trailing prose).
// Nested objects and string literals that merely contain the key are ignored.
func ExtractJSONStringField(s, field string) (string, bool) {
	if len(s) > maxExtractScanLength {
		return "", false
	}

	key := strconv.Quote(field)
	keyLen := len(key)
	depth := 0
	inString := false
	escapeNext := false
	i := 0

	for i < len(s) && s[i] != '{' {
		i++
	}
	if i >= len(s) {
		return "", false
	}
	depth = 1
	i++

	for i < len(s) {
		ch := s[i]

		if escapeNext {
			escapeNext = false
			i++
			continue
		}

		if ch == '\\' && inString {
			escapeNext = true
			i++
			continue
		}

		if ch == '"' {
			if depth == 1 && !inString && i+keyLen <= len(s) && s[i:i+keyLen] == key {
				i += keyLen
				for i < len(s) && isJSONSpace(s[i]) {
					i++
				}
				if i >= len(s) || s[i] != ':' {
					return "", false
				}
				i++
				for i < len(s) && isJSONSpace(s[i]) {
					i++
				}
				if i >= len(s) || s[i] != '"' {
					return "", false
				}
				val, _, ok := parseLenientJSONString(s, i)
				if !ok || len(val) > maxExtractedLength {
					return "", false
				}
				return val, true
			}
			inString = !inString
			i++
			continue
		}

		if !inString {
			switch ch {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth < 0 {
					return "", false
				}
			}
		}
		i++
	}

	return "", false
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// UnwrapJSONField returns the text carried by field when input is {"field": "..."}, a JSON-encoded
// string of such an object, or a malformed variant of either. Plain text comes back unchanged.
func UnwrapJSONField(input, field string) string {
	return unwrapJSONField(input, field, 0)
}

func unwrapJSONField(input, field string, depth int) string {
	if depth >= maxUnwrapRecursion {
		return input
	}

	s := strings.TrimSpace(input)
	if s == "" {
		return input
	}

	if strings.HasPrefix(s, "{") && strings.Contains(s, strconv.Quote(field)) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			switch v := obj[field].(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return unwrapJSONField(v, field, depth+1)
				}
			case map[string]any, []any:
				if marshaled, err := json.Marshal(v); err == nil {
					return unwrapJSONField(string(marshaled), field, depth+1)
				}
			}
		} else if v, ok := ExtractJSONStringField(s, field); ok && strings.TrimSpace(v) != "" {
			return unwrapJSONField(v, field, depth+1)
		}
	}

	if strings.HasPrefix(s, "\"") {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return unwrapJSONField(inner, field, depth+1)
		}
		if v, ok := ExtractJSONStringField(s, field); ok && strings.TrimSpace(v) != "" {
			return unwrapJSONField(v, field, depth+1)
		}
	}

	return input
}
