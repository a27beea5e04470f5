package schema

import (
	"strings"
	"unicode"
)

// MaxFieldNameLength is the registered-schema bound on property names.
const MaxFieldNameLength = 32

// fallbackPrefix is prepended when normalization yields an empty identifier
// or one that does not start with a letter.
const fallbackPrefix = "field"

// NormalizeFieldName converts an arbitrary source field name (dotted paths,
// punctuation, whitespace, non-ASCII text) into an identifier the schema
// store accepts: ASCII alphanumeric, at most MaxFieldNameLength characters,
// starting with a letter. Anything outside [A-Za-z0-9] acts as a separator,
// so accented and non-Latin characters are dropped rather than carried
// through. Segments are re-joined as camelCase; character case beyond the
// first letter of each segment is preserved. The mapping is deterministic
// and total.
func NormalizeFieldName(raw string) string {
	segments := splitSegments(raw)
	var b strings.Builder
	for i, seg := range segments {
		runes := []rune(seg)
		if i == 0 {
			runes[0] = unicode.ToLower(runes[0])
		} else {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	name := b.String()
	if name == "" || !isASCIILetter(rune(name[0])) {
		name = fallbackPrefix + name
	}
	if len(name) > MaxFieldNameLength {
		name = name[:MaxFieldNameLength]
	}
	return name
}

// DisplayFieldName derives a human-readable label from a source field name:
// segments are title-cased and joined with spaces, and camelCase boundaries
// inside a segment become word breaks ("createdDate" -> "Created Date").
func DisplayFieldName(raw string) string {
	var words []string
	for _, seg := range splitSegments(raw) {
		words = append(words, splitCamel(seg)...)
	}
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return "Field"
	}
	return strings.Join(words, " ")
}

// splitSegments breaks raw on every run of characters outside [A-Za-z0-9],
// dropping empty segments. Only ASCII alphanumerics survive; the schema
// store's name grammar admits nothing else.
func splitSegments(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return !isASCIILetter(r) && !isASCIIDigit(r)
	})
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// splitCamel splits one alphanumeric segment at lower-to-upper transitions.
func splitCamel(seg string) []string {
	var words []string
	runes := []rune(seg)
	start := 0
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return words
}
