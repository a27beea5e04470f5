package jsonval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreservesMemberOrder(t *testing.T) {
	v, err := Parse([]byte(`{"zebra": 1, "alpha": 2, "middle": {"y": true, "x": null}}`))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind)

	var keys []string
	for _, m := range v.Members {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"zebra", "alpha", "middle"}, keys)

	nested, ok := v.Lookup("middle")
	require.True(t, ok)
	assert.Equal(t, "y", nested.Members[0].Key)
	assert.Equal(t, "x", nested.Members[1].Key)
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
	}{
		{"string", `"hello"`, KindString},
		{"number", `42`, KindNumber},
		{"bool", `true`, KindBool},
		{"null", `null`, KindNull},
		{"array", `[1, 2]`, KindArray},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind)
		})
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a": `))
	assert.Error(t, err)
}

func TestLookupMissing(t *testing.T) {
	v, err := Parse([]byte(`{"a": 1}`))
	require.NoError(t, err)

	_, ok := v.Lookup("b")
	assert.False(t, ok)

	arr, err := Parse([]byte(`[1]`))
	require.NoError(t, err)
	_, ok = arr.Lookup("a")
	assert.False(t, ok)
}

func TestToAnyNumberWidth(t *testing.T) {
	v, err := Parse([]byte(`{"int": 7, "big": 9007199254740993, "float": 1.25}`))
	require.NoError(t, err)

	got := v.ToAny().(map[string]any)
	assert.Equal(t, int64(7), got["int"])
	// Exactly representable as int64 even though a float64 would round it.
	assert.Equal(t, int64(9007199254740993), got["big"])
	assert.Equal(t, 1.25, got["float"])
}
