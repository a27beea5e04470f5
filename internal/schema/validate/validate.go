// Package validate enforces structural constraints on a candidate schema
// before it is published. Validation is pure and accumulates every violation
// rather than stopping at the first.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/internal/schema/labels"
)

const (
	// MinFieldCount and MaxFieldCount bound the number of schema properties.
	MinFieldCount = 1
	MaxFieldCount = 128
)

// fieldNamePattern is the schema store's name grammar. Normalized names
// always satisfy it; hand-built field lists are checked the same way.
var fieldNamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Result holds the outcome of a schema validation pass.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Schema checks the candidate field list against every structural rule and
// returns all violations.
func Schema(fields []schema.FieldDefinition) Result {
	var errs []string

	if len(fields) < MinFieldCount {
		errs = append(errs, fmt.Sprintf("schema must contain at least %d field", MinFieldCount))
	}
	if len(fields) > MaxFieldCount {
		errs = append(errs, fmt.Sprintf("schema must contain at most %d fields, got %d", MaxFieldCount, len(fields)))
	}

	seenNames := make(map[string]string, len(fields))
	seenLabels := make(map[schema.SemanticLabel]string, len(fields))

	for _, f := range fields {
		switch {
		case f.Name == "":
			errs = append(errs, "field name must not be empty")
		case utf8.RuneCountInString(f.Name) > schema.MaxFieldNameLength:
			errs = append(errs, fmt.Sprintf("field name %q exceeds %d characters", f.Name, schema.MaxFieldNameLength))
		case !fieldNamePattern.MatchString(f.Name):
			errs = append(errs, fmt.Sprintf("field name %q must contain only letters and digits", f.Name))
		}

		lower := strings.ToLower(f.Name)
		if prev, dup := seenNames[lower]; dup {
			errs = append(errs, fmt.Sprintf("field name %q duplicates %q (names are case-insensitive)", f.Name, prev))
		} else if f.Name != "" {
			seenNames[lower] = f.Name
		}

		label := f.SemanticLabel
		if label == "" || label == schema.LabelNone {
			continue
		}
		if prev, dup := seenLabels[label]; dup {
			errs = append(errs, fmt.Sprintf("semantic label %q assigned to both %q and %q", label, prev, f.Name))
		} else {
			seenLabels[label] = f.Name
		}
		if _, known := labels.PreferredType(label); !known {
			errs = append(errs, fmt.Sprintf("field %q carries unknown semantic label %q", f.Name, label))
		} else if !labels.Compatible(label, f.Type) {
			errs = append(errs, fmt.Sprintf("semantic label %q is not compatible with type %s on field %q", label, f.Type, f.Name))
		}
		if !f.IsRetrievable {
			errs = append(errs, fmt.Sprintf("field %q carries label %q and must be retrievable", f.Name, label))
		}
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}
