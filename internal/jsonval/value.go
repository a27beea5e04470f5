// Package jsonval provides a tagged-union representation of decoded JSON
// values that preserves object member order. The standard map[string]any
// decoding loses insertion order, which the schema inference walk depends on.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind discriminates the JSON value variants.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of a JSON object, in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is one decoded JSON value. Exactly the fields implied by Kind are
// meaningful; the rest hold zero values.
type Value struct {
	Kind    Kind
	Str     string
	Num     json.Number
	Bool    bool
	Items   []Value
	Members []Member
}

// Lookup returns the value of the named object member. It returns false when
// the receiver is not an object or has no such member.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Parse decodes data into a Value tree. Numbers are kept as json.Number so
// integer width can be classified later without float64 round-off.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Num: t}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case nil:
		return Value{Kind: KindNull}, nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func parseObject(dec *json.Decoder) (Value, error) {
	obj := Value{Kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: val})
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	arr := Value{Kind: KindArray}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		arr.Items = append(arr.Items, val)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return arr, nil
}

// ToAny converts a Value back into the map/slice shape produced by
// encoding/json, for callers that hand values to JSON-typed sinks.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindString:
		return v.Str
	case KindNumber:
		if i, err := v.Num.Int64(); err == nil {
			return i
		}
		f, _ := v.Num.Float64()
		return f
	case KindBool:
		return v.Bool
	case KindArray:
		items := make([]any, 0, len(v.Items))
		for _, it := range v.Items {
			items = append(items, it.ToAny())
		}
		return items
	case KindObject:
		obj := make(map[string]any, len(v.Members))
		for _, m := range v.Members {
			obj[m.Key] = m.Value.ToAny()
		}
		return obj
	default:
		return nil
	}
}
