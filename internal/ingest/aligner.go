package ingest

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/graphconnect/connector-platform/internal/jsonval"
	"github.com/graphconnect/connector-platform/internal/schema"
	"github.com/graphconnect/connector-platform/internal/schema/infer"
	apperrors "github.com/graphconnect/connector-platform/pkg/errors"
	"github.com/graphconnect/connector-platform/pkg/logger"
)

const (
	odataTypeSuffix      = "@odata.type"
	stringCollectionType = "Collection(String)"
	fallbackURLTemplate  = "https://contoso.example/items/%s"
	fallbackIconURL      = "https://contoso.example/static/item-icon.png"
	fallbackContentBytes = 4 << 20
)

// AlignerConfig carries the connector-level defaults injected into items.
type AlignerConfig struct {
	URLTemplate string
	IconURL     string
	DefaultACLs []ACLEntry

	// MaxContentBytes caps the free-text content blob; zero means the sink's
	// documented 4MB limit.
	MaxContentBytes int64
}

// Aligner reconciles raw JSON documents against a registered schema. It is
// stateless beyond its configuration and safe for concurrent use.
type Aligner struct {
	cfg    AlignerConfig
	logger *slog.Logger
}

// NewAligner creates an Aligner with the given connector defaults.
func NewAligner(cfg AlignerConfig) *Aligner {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = fallbackURLTemplate
	}
	if cfg.IconURL == "" {
		cfg.IconURL = fallbackIconURL
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = fallbackContentBytes
	}
	return &Aligner{
		cfg:    cfg,
		logger: logger.WithComponent("aligner"),
	}
}

// flatDoc is the ordered fieldName -> value view of a flattened document.
type flatDoc struct {
	order  []string
	values map[string]any
}

func newFlatDoc() *flatDoc {
	return &flatDoc{values: make(map[string]any)}
}

// put stores a value under name unless an earlier field already claimed it.
func (d *flatDoc) put(name string, v any) {
	if _, exists := d.values[name]; exists {
		return
	}
	d.order = append(d.order, name)
	d.values[name] = v
}

func (d *flatDoc) delete(name string) {
	if _, exists := d.values[name]; !exists {
		return
	}
	delete(d.values, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *flatDoc) has(name string) bool {
	_, ok := d.values[name]
	return ok
}

// Align flattens raw against the same rules as schema inference, remaps
// aliases, injects defaults, and coerces every surviving value toward its
// registered type. Soft problems become Warnings; only a missing id or
// syntactically invalid JSON fail the call.
func (a *Aligner) Align(raw []byte, schemaCfg schema.SchemaConfiguration) (*AlignResult, error) {
	root, err := jsonval.Parse(raw)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "document is not valid JSON: %v", err)
	}
	if root.Kind != jsonval.KindObject {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "document must be a JSON object")
	}

	id, ok := documentID(root)
	if !ok {
		return nil, apperrors.New(apperrors.ErrMissingID, 400, "document has no usable top-level id")
	}

	var warnings []Warning
	warn := func(kind WarningKind, field, format string, args ...any) {
		w := Warning{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
		warnings = append(warnings, w)
		a.logger.Warn("alignment warning", "kind", string(kind), "field", field, "message", w.Message)
	}

	flat, content := a.flatten(root)

	// Alias remapping: only when the canonical name is registered and the
	// document did not supply it directly.
	for _, alias := range schemaCfg.AliasTable() {
		if flat.has(alias.CanonicalName) {
			continue
		}
		if _, registered := schemaCfg.Field(alias.CanonicalName); !registered {
			continue
		}
		if !flat.has(alias.SourceAlias) {
			continue
		}
		flat.put(alias.CanonicalName, flat.values[alias.SourceAlias])
		flat.delete(alias.SourceAlias)
		warn(WarnRemappedAlias, alias.CanonicalName, "remapped %q to %q", alias.SourceAlias, alias.CanonicalName)
	}

	if !flat.has("url") {
		flat.put("url", fmt.Sprintf(a.cfg.URLTemplate, id))
		warn(WarnInjectedDefault, "url", "synthesized url from item id")
	}
	if content == "" {
		if title, ok := flat.values["title"].(string); ok && title != "" {
			content = title
		} else {
			content = id
		}
		warn(WarnInjectedDefault, "content", "content was empty, defaulted")
	}
	if int64(len(content)) > a.cfg.MaxContentBytes {
		content = truncateUTF8(content, a.cfg.MaxContentBytes)
		warn(WarnCoercedValue, "content", "content truncated to %d bytes", a.cfg.MaxContentBytes)
	}

	props := make(map[string]any, len(flat.order))
	for _, name := range flat.order {
		value := flat.values[name]
		if strings.HasSuffix(name, odataTypeSuffix) {
			props[name] = value
			continue
		}
		field, registered := schemaCfg.Field(name)
		if !registered {
			warn(WarnDroppedField, name, "field is not registered in the schema")
			continue
		}
		coerced, annotation, w := coerceValue(name, value, field.Type)
		props[name] = coerced
		if annotation != "" {
			if _, present := props[name+odataTypeSuffix]; !present {
				props[name+odataTypeSuffix] = annotation
			}
		}
		if w != "" {
			warn(WarnCoercedValue, name, "%s", w)
		}
	}

	if _, registered := schemaCfg.Field("iconUrl"); registered {
		if _, present := props["iconUrl"]; !present {
			props["iconUrl"] = a.cfg.IconURL
			warn(WarnInjectedDefault, "iconUrl", "injected placeholder icon url")
		}
	}

	item := &NormalizedItem{
		ID:           id,
		ConnectionID: schemaCfg.ConnectionID,
		Properties:   props,
		Content:      content,
		ACL:          a.resolveACLs(root),
	}
	return &AlignResult{Item: item, Warnings: warnings}, nil
}

// documentID extracts the top-level id. String, number, and boolean ids are
// accepted (stringified); anything else is a hard failure.
func documentID(root jsonval.Value) (string, bool) {
	v, ok := root.Lookup("id")
	if !ok {
		return "", false
	}
	switch v.Kind {
	case jsonval.KindString:
		if v.Str == "" {
			return "", false
		}
		return v.Str, true
	case jsonval.KindNumber:
		return v.Num.String(), true
	case jsonval.KindBool:
		return strconv.FormatBool(v.Bool), true
	default:
		return "", false
	}
}

// flatten walks the document the same way schema inference does, building the
// ordered field map and accumulating the free-text content blob from every
// scalar string and number encountered. An explicit top-level "content"
// string overrides the accumulated blob.
func (a *Aligner) flatten(root jsonval.Value) (*flatDoc, string) {
	flat := newFlatDoc()
	var parts []string

	var walkValue func(key string, v jsonval.Value)
	var walkObject func(obj jsonval.Value, topLevel bool)

	collect := func(v jsonval.Value) {
		switch v.Kind {
		case jsonval.KindString:
			if v.Str != "" {
				parts = append(parts, v.Str)
			}
		case jsonval.KindNumber:
			parts = append(parts, v.Num.String())
		}
	}

	walkValue = func(key string, v jsonval.Value) {
		switch v.Kind {
		case jsonval.KindObject:
			walkObject(v, false)
		case jsonval.KindArray:
			if len(v.Items) > 0 && v.Items[0].Kind == jsonval.KindObject {
				walkObject(v.Items[0], false)
				return
			}
			for _, it := range v.Items {
				collect(it)
			}
			flat.put(schema.NormalizeFieldName(key), v.ToAny())
		default:
			collect(v)
			flat.put(schema.NormalizeFieldName(key), v.ToAny())
		}
	}

	walkObject = func(obj jsonval.Value, topLevel bool) {
		for _, m := range obj.Members {
			if topLevel && infer.IsReservedKey(m.Key) {
				if m.Key == "properties" && m.Value.Kind == jsonval.KindObject {
					walkObject(m.Value, true)
				}
				continue
			}
			walkValue(m.Key, m.Value)
		}
	}

	walkObject(root, true)

	if explicit, ok := root.Lookup("content"); ok && explicit.Kind == jsonval.KindString && explicit.Str != "" {
		return flat, explicit.Str
	}
	return flat, strings.Join(parts, " ")
}

// coerceValue nudges value toward the registered type. It returns the
// (possibly unchanged) value, an @odata.type annotation when one is needed,
// and a warning message when a coercion happened or failed.
func coerceValue(name string, value any, t schema.DataType) (any, string, string) {
	switch t {
	case schema.TypeStringCollection:
		switch v := value.(type) {
		case string:
			return []string{v}, stringCollectionType, fmt.Sprintf("wrapped bare string into a collection for %q", name)
		case []any:
			out := make([]string, 0, len(v))
			for _, el := range v {
				out = append(out, stringify(el))
			}
			return out, stringCollectionType, ""
		case []string:
			return v, stringCollectionType, ""
		default:
			return []string{stringify(v)}, stringCollectionType, fmt.Sprintf("converted %T into a collection for %q", value, name)
		}
	case schema.TypeString:
		if list, ok := value.([]any); ok {
			out := make([]string, 0, len(list))
			for _, el := range list {
				out = append(out, stringify(el))
			}
			return strings.Join(out, " "), "", fmt.Sprintf("joined %d collection elements into a string for %q", len(list), name)
		}
		return value, "", ""
	case schema.TypeDateTime:
		s, ok := value.(string)
		if !ok {
			return value, "", ""
		}
		if ts, ok := infer.ParseDateTime(s); ok {
			return ts.UTC().Format(time.RFC3339), "", ""
		}
		return value, "", fmt.Sprintf("value %q for %q is not a recognizable datetime", s, name)
	case schema.TypeDouble:
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, "", fmt.Sprintf("parsed %q into a double for %q", s, name)
			}
			return value, "", fmt.Sprintf("value %q for %q is not a double", s, name)
		}
		return value, "", ""
	case schema.TypeInt64, schema.TypeInt32:
		if s, ok := value.(string); ok {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, "", fmt.Sprintf("parsed %q into an integer for %q", s, name)
			}
			return value, "", fmt.Sprintf("value %q for %q is not an integer", s, name)
		}
		return value, "", ""
	case schema.TypeBoolean:
		if s, ok := value.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b, "", fmt.Sprintf("parsed %q into a boolean for %q", s, name)
			}
			return value, "", fmt.Sprintf("value %q for %q is not a boolean", s, name)
		}
		return value, "", ""
	default:
		return value, "", ""
	}
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int64) string {
	if int64(len(s)) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// resolveACLs prefers explicit document ACLs, then the connector defaults,
// then a single everyone/grant entry.
func (a *Aligner) resolveACLs(root jsonval.Value) []ACLEntry {
	explicit, ok := root.Lookup("acls")
	if !ok {
		explicit, ok = root.Lookup("acl")
	}
	if ok && explicit.Kind == jsonval.KindArray && len(explicit.Items) > 0 {
		entries := make([]ACLEntry, 0, len(explicit.Items))
		for _, it := range explicit.Items {
			if it.Kind != jsonval.KindObject {
				continue
			}
			entries = append(entries, ACLEntry{
				Type:       memberString(it, "type", EveryoneGrant.Type),
				Value:      memberString(it, "value", EveryoneGrant.Value),
				AccessType: memberString(it, "accessType", EveryoneGrant.AccessType),
			})
		}
		if len(entries) > 0 {
			return entries
		}
	}
	if len(a.cfg.DefaultACLs) > 0 {
		out := make([]ACLEntry, len(a.cfg.DefaultACLs))
		copy(out, a.cfg.DefaultACLs)
		return out
	}
	return []ACLEntry{EveryoneGrant}
}

func memberString(obj jsonval.Value, key, fallback string) string {
	v, ok := obj.Lookup(key)
	if !ok || v.Kind != jsonval.KindString || v.Str == "" {
		return fallback
	}
	return v.Str
}
