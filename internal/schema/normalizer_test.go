package schema

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already clean", "title", "title"},
		{"punctuation and underscore", "user-name_2!", "userName2"},
		{"dotted path", "details.weight", "detailsWeight"},
		{"whitespace", "Created Date", "createdDate"},
		{"preserves inner case", "parentID", "parentID"},
		{"leading digit gets prefix", "9lives", "field9lives"},
		{"only punctuation gets prefix", "!!!", "field"},
		{"empty gets prefix", "", "field"},
		{"truncated to limit", strings.Repeat("a", 40), strings.Repeat("a", MaxFieldNameLength)},
		{"non-ascii dropped entirely", "日本語", "field"},
		{"accent splits segment", "café", "caf"},
		{"accent inside hyphenated name", "naïve-field", "naVeField"},
		{"mixed script keeps ascii runs", "名前name", "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFieldName(tt.raw))
		})
	}
}

// identifierPattern is the grammar every normalized name must satisfy:
// ASCII letter first, ASCII alphanumerics after.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

func TestNormalizeFieldNameInvariants(t *testing.T) {
	inputs := []string{
		"user-name_2!", "a.b.c", "  spaced  out  ", "UPPER_SNAKE", "mixed.Case-path",
		"日本語", "café", "naïve-field", "field@#$%name", "x", "Ωmega",
	}
	for _, raw := range inputs {
		got := NormalizeFieldName(raw)
		assert.LessOrEqual(t, len(got), MaxFieldNameLength, "raw=%q", raw)
		assert.Regexp(t, identifierPattern, got, "raw=%q", raw)
		// Deterministic: same input, same output.
		assert.Equal(t, got, NormalizeFieldName(raw))
	}
}

func TestDisplayFieldName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"createdDate", "Created Date"},
		{"user_name", "User Name"},
		{"title", "Title"},
		{"details.weight", "Details Weight"},
		{"日本語", "Field"},
		{"", "Field"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayFieldName(tt.raw), "raw=%q", tt.raw)
	}
}
