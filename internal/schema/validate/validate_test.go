package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphconnect/connector-platform/internal/schema"
)

func validField(name string) schema.FieldDefinition {
	return schema.FieldDefinition{
		Name:          name,
		Type:          schema.TypeString,
		IsRetrievable: true,
		SemanticLabel: schema.LabelNone,
	}
}

func TestSchemaValid(t *testing.T) {
	fields := []schema.FieldDefinition{
		{Name: "title", Type: schema.TypeString, IsRetrievable: true, SemanticLabel: schema.LabelTitle},
		{Name: "lastUpdated", Type: schema.TypeDateTime, IsRetrievable: true, SemanticLabel: schema.LabelLastModifiedDateTime},
		validField("price"),
	}
	result := Schema(fields)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestSchemaFieldCountBounds(t *testing.T) {
	result := Schema(nil)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "at least")

	many := make([]schema.FieldDefinition, MaxFieldCount+1)
	for i := range many {
		many[i] = validField(fmt.Sprintf("field%d", i))
	}
	result = Schema(many)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "at most")
}

func TestSchemaFieldNameRules(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"underscore rejected", "user_name", "letters and digits"},
		{"dash rejected", "user-name", "letters and digits"},
		{"empty rejected", "", "must not be empty"},
		{"too long rejected", strings.Repeat("a", schema.MaxFieldNameLength+1), "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Schema([]schema.FieldDefinition{validField(tt.raw)})
			assert.False(t, result.IsValid)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestSchemaDuplicateNamesCaseInsensitive(t *testing.T) {
	result := Schema([]schema.FieldDefinition{
		validField("Title"),
		validField("title"),
	})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "duplicates")
}

func TestSchemaDuplicateLabels(t *testing.T) {
	result := Schema([]schema.FieldDefinition{
		{Name: "title", Type: schema.TypeString, IsRetrievable: true, SemanticLabel: schema.LabelTitle},
		{Name: "heading", Type: schema.TypeString, IsRetrievable: true, SemanticLabel: schema.LabelTitle},
	})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assigned to both")
}

func TestSchemaLabelCompatibility(t *testing.T) {
	result := Schema([]schema.FieldDefinition{
		{Name: "authors", Type: schema.TypeInt64, IsRetrievable: true, SemanticLabel: schema.LabelAuthors},
	})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not compatible")

	result = Schema([]schema.FieldDefinition{
		{Name: "title", Type: schema.TypeString, IsRetrievable: true, SemanticLabel: schema.SemanticLabel("shiny")},
	})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unknown semantic label")
}

func TestSchemaLabeledFieldMustBeRetrievable(t *testing.T) {
	result := Schema([]schema.FieldDefinition{
		{Name: "title", Type: schema.TypeString, IsRetrievable: false, SemanticLabel: schema.LabelTitle},
	})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "must be retrievable")
}

func TestSchemaAccumulatesViolations(t *testing.T) {
	result := Schema([]schema.FieldDefinition{
		validField("bad_name"),
		validField("Title"),
		validField("title"),
		{Name: "when", Type: schema.TypeDateTime, IsRetrievable: false, SemanticLabel: schema.LabelCreatedDateTime},
	})
	assert.False(t, result.IsValid)
	// Charset, duplicate name, and retrievability violations all surface at
	// once instead of the first aborting the pass.
	assert.Len(t, result.Errors, 3)
}
