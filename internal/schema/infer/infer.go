// Package infer derives a flat property schema from a sample JSON document.
// It classifies every leaf value into the store's type vocabulary, flattens
// nested objects, and assigns default capability flags per type.
package infer

import (
	"math"
	"strconv"
	"time"

	"github.com/graphconnect/connector-platform/internal/jsonval"
	"github.com/graphconnect/connector-platform/internal/schema"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
)

// Reserved top-level keys that are never emitted as schema fields. A nested
// "properties" object is flattened in as if its children were top-level.
var reservedKeys = map[string]struct{}{
	"id":         {},
	"content":    {},
	"acl":        {},
	"acls":       {},
	"properties": {},
}

// IsReservedKey reports whether a top-level key is excluded from schemas.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// dateLayouts are the string shapes accepted as DateTime values, tried in
// order: full offset datetime first, then date-only.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTime parses s against the accepted datetime layouts.
func ParseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferType classifies a single decoded JSON value. It is total: every value
// maps to some DataType, with Object signalling "recurse, do not emit".
func InferType(v jsonval.Value) schema.DataType {
	switch v.Kind {
	case jsonval.KindString:
		if _, ok := ParseDateTime(v.Str); ok {
			return schema.TypeDateTime
		}
		return schema.TypeString
	case jsonval.KindNumber:
		return classifyNumber(v.Num.String())
	case jsonval.KindBool:
		return schema.TypeBoolean
	case jsonval.KindArray:
		if len(v.Items) == 0 {
			return schema.TypeStringCollection
		}
		if v.Items[0].Kind == jsonval.KindObject {
			return schema.TypeObject
		}
		// Arrays of scalars are collections of strings; numeric and boolean
		// elements are coerced to strings downstream.
		return schema.TypeStringCollection
	case jsonval.KindObject:
		return schema.TypeObject
	case jsonval.KindNull:
		return schema.TypeString
	default:
		return schema.TypeString
	}
}

// classifyNumber picks the narrowest numeric type the literal fits.
func classifyNumber(lit string) schema.DataType {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return schema.TypeInt32
		}
		return schema.TypeInt64
	}
	return schema.TypeDouble
}

// defaultFlags applies the per-type capability defaults to a field.
func defaultFlags(f *schema.FieldDefinition) {
	switch f.Type {
	case schema.TypeString:
		f.IsSearchable = true
		f.IsQueryable = true
		f.IsRetrievable = true
	case schema.TypeDateTime:
		f.IsQueryable = true
		f.IsRetrievable = true
		f.IsRefinable = true
	case schema.TypeBoolean:
		f.IsQueryable = true
		f.IsRetrievable = true
	case schema.TypeStringCollection:
		f.IsSearchable = true
		f.IsQueryable = true
		f.IsRetrievable = true
		f.IsRefinable = true
	default:
		// Int32/Int64/Double/Object.
		f.IsQueryable = true
		f.IsRetrievable = true
	}
}

// InferSchema walks a sample JSON document depth-first and returns the flat
// field list in order of first encounter. It fails only when the sample is
// not a syntactically valid JSON object.
func InferSchema(sample []byte) ([]schema.FieldDefinition, error) {
	root, err := jsonval.Parse(sample)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "sample is not valid JSON: %v", err)
	}
	if root.Kind != jsonval.KindObject {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "sample must be a JSON object")
	}

	w := &walker{seen: make(map[string]struct{})}
	w.walkObject(root, "", true)
	return w.fields, nil
}

// walker accumulates fields across the recursive flatten.
type walker struct {
	fields []schema.FieldDefinition
	seen   map[string]struct{}
}

// walkObject flattens one object node. Nested objects contribute their leaf
// fields directly to the parent's list; the dotted path survives only as a
// diagnostic.
func (w *walker) walkObject(obj jsonval.Value, path string, topLevel bool) {
	for _, m := range obj.Members {
		memberPath := m.Key
		if path != "" {
			memberPath = path + "." + m.Key
		}
		if topLevel && IsReservedKey(m.Key) {
			if m.Key == "properties" && m.Value.Kind == jsonval.KindObject {
				w.walkObject(m.Value, memberPath, true)
			}
			continue
		}
		w.walkValue(m.Key, memberPath, m.Value, path != "")
	}
}

func (w *walker) walkValue(key, path string, v jsonval.Value, nested bool) {
	inferred := InferType(v)
	if inferred != schema.TypeObject {
		w.emit(key, path, inferred, v.Kind == jsonval.KindArray, nested)
		return
	}
	switch v.Kind {
	case jsonval.KindObject:
		w.walkObject(v, path, false)
	case jsonval.KindArray:
		// Arrays of objects: the first element stands in for the shape of
		// every element; collection semantics are not preserved.
		w.walkObject(v.Items[0], path, false)
	}
}

// emit appends one field definition, skipping names already emitted earlier
// in the walk.
func (w *walker) emit(key, path string, t schema.DataType, isArray, nested bool) {
	name := schema.NormalizeFieldName(key)
	if _, dup := w.seen[name]; dup {
		return
	}
	w.seen[name] = struct{}{}

	f := schema.FieldDefinition{
		Name:          name,
		DisplayName:   schema.DisplayFieldName(key),
		Type:          t,
		SemanticLabel: schema.LabelNone,
		JSONPath:      path,
		IsArray:       isArray,
		IsNested:      nested,
	}
	defaultFlags(&f)
	w.fields = append(w.fields, f)
}
