package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/internal/schema/validate"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
)

const productSample = `{
	"id": "prod-1",
	"name": "Widget",
	"price": 19.99,
	"tags": ["red", "sale"],
	"createdDate": "2024-01-15T09:30:00Z",
	"details": {"weight": 1.5, "inStock": true}
}`

func fieldNames(fields []schema.FieldDefinition) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func fieldByName(t *testing.T, fields []schema.FieldDefinition, name string) schema.FieldDefinition {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not found in %v", name, fieldNames(fields))
	return schema.FieldDefinition{}
}

func TestInferSchemaProductSample(t *testing.T) {
	fields, err := InferSchema([]byte(productSample))
	require.NoError(t, err)

	// Reserved id is skipped; nested object fields flatten into the parent
	// list in encounter order.
	assert.Equal(t,
		[]string{"name", "price", "tags", "createdDate", "weight", "inStock"},
		fieldNames(fields),
	)

	assert.Equal(t, schema.TypeString, fieldByName(t, fields, "name").Type)
	assert.Equal(t, schema.TypeDouble, fieldByName(t, fields, "price").Type)
	assert.Equal(t, schema.TypeStringCollection, fieldByName(t, fields, "tags").Type)
	assert.Equal(t, schema.TypeDateTime, fieldByName(t, fields, "createdDate").Type)
	assert.Equal(t, schema.TypeDouble, fieldByName(t, fields, "weight").Type)
	assert.Equal(t, schema.TypeBoolean, fieldByName(t, fields, "inStock").Type)

	weight := fieldByName(t, fields, "weight")
	assert.True(t, weight.IsNested)
	assert.Equal(t, "details.weight", weight.JSONPath)
}

func TestInferSchemaIsDeterministic(t *testing.T) {
	first, err := InferSchema([]byte(productSample))
	require.NoError(t, err)
	second, err := InferSchema([]byte(productSample))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInferSchemaReservedKeys(t *testing.T) {
	sample := `{
		"id": "1",
		"content": "full text",
		"acl": [{"type": "everyone"}],
		"acls": [],
		"properties": {"sku": "A-100", "id": "inner"}
	}`
	fields, err := InferSchema([]byte(sample))
	require.NoError(t, err)

	// Only the properties bag contributes, and it is treated as top-level:
	// its own reserved keys are skipped too.
	assert.Equal(t, []string{"sku"}, fieldNames(fields))
}

func TestInferSchemaArrayOfObjects(t *testing.T) {
	sample := `{
		"id": "1",
		"reviews": [
			{"rating": 5, "comment": "great"},
			{"rating": 1, "comment": "bad", "extra": "ignored"}
		]
	}`
	fields, err := InferSchema([]byte(sample))
	require.NoError(t, err)

	// Only the first element's shape is inferred.
	assert.Equal(t, []string{"rating", "comment"}, fieldNames(fields))
	assert.Equal(t, schema.TypeInt32, fieldByName(t, fields, "rating").Type)
}

func TestInferSchemaDuplicateNormalizedNames(t *testing.T) {
	fields, err := InferSchema([]byte(`{"user_name": "a", "userName": "b"}`))
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "userName", fields[0].Name)
}

func TestInferSchemaNonASCIIKeys(t *testing.T) {
	fields, err := InferSchema([]byte(`{"日本語": "x", "café": "y"}`))
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "field", fields[0].Name)
	assert.Equal(t, "caf", fields[1].Name)

	result := validate.Schema(fields)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
}

func TestInferSchemaInvalidInput(t *testing.T) {
	for name, sample := range map[string]string{
		"malformed": `{"name": `,
		"not an object": `[1, 2, 3]`,
		"trailing data": `{"a": 1} {"b": 2}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := InferSchema([]byte(sample))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   schema.DataType
	}{
		{"string", `{"v": "plain"}`, schema.TypeString},
		{"datetime rfc3339", `{"v": "2024-06-01T12:00:00+02:00"}`, schema.TypeDateTime},
		{"datetime no offset", `{"v": "2024-06-01T12:00:00"}`, schema.TypeDateTime},
		{"date only", `{"v": "2024-06-01"}`, schema.TypeDateTime},
		{"not a date", `{"v": "2024-13-45"}`, schema.TypeString},
		{"int32", `{"v": 42}`, schema.TypeInt32},
		{"int32 max", `{"v": 2147483647}`, schema.TypeInt32},
		{"int64", `{"v": 2147483648}`, schema.TypeInt64},
		{"int32 min", `{"v": -2147483648}`, schema.TypeInt32},
		{"int64 negative", `{"v": -2147483649}`, schema.TypeInt64},
		{"double", `{"v": 19.99}`, schema.TypeDouble},
		{"exponent", `{"v": 1e30}`, schema.TypeDouble},
		{"bool", `{"v": false}`, schema.TypeBoolean},
		{"null", `{"v": null}`, schema.TypeString},
		{"empty array", `{"v": []}`, schema.TypeStringCollection},
		{"scalar array", `{"v": [1, 2]}`, schema.TypeStringCollection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := InferSchema([]byte(tt.sample))
			require.NoError(t, err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.want, fields[0].Type)
		})
	}
}

func TestDefaultCapabilityFlags(t *testing.T) {
	fields, err := InferSchema([]byte(`{
		"title": "x",
		"when": "2024-01-01",
		"tags": ["a"],
		"count": 3,
		"ok": true
	}`))
	require.NoError(t, err)

	title := fieldByName(t, fields, "title")
	assert.True(t, title.IsSearchable)
	assert.True(t, title.IsQueryable)
	assert.True(t, title.IsRetrievable)
	assert.False(t, title.IsRefinable)

	when := fieldByName(t, fields, "when")
	assert.False(t, when.IsSearchable)
	assert.True(t, when.IsRefinable)

	tags := fieldByName(t, fields, "tags")
	assert.True(t, tags.IsSearchable)
	assert.True(t, tags.IsRefinable)

	count := fieldByName(t, fields, "count")
	assert.False(t, count.IsSearchable)
	assert.True(t, count.IsQueryable)
	assert.True(t, count.IsRetrievable)

	ok := fieldByName(t, fields, "ok")
	assert.False(t, ok.IsSearchable)
	assert.False(t, ok.IsRefinable)
}

func BenchmarkInferSchema(b *testing.B) {
	sample := []byte(productSample)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := InferSchema(sample); err != nil {
			b.Fatal(err)
		}
	}
}
