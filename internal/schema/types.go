// Package schema defines the field and schema model shared by the inference,
// validation, and ingestion-alignment paths, along with the canonical
// field-name normalizer.
package schema

// DataType is the property-type vocabulary of the external schema store.
type DataType string

const (
	TypeString           DataType = "String"
	TypeInt32            DataType = "Int32"
	TypeInt64            DataType = "Int64"
	TypeDouble           DataType = "Double"
	TypeBoolean          DataType = "Boolean"
	TypeDateTime         DataType = "DateTime"
	TypeStringCollection DataType = "StringCollection"
	// TypeObject is an inference-time signal that a value must be flattened
	// rather than emitted as a leaf field. It is never persisted.
	TypeObject DataType = "Object"
)

// SemanticLabel is a reserved role downstream consumers use for rendering
// and ranking. At most one field per schema may carry a given label.
type SemanticLabel string

const (
	LabelNone                 SemanticLabel = "none"
	LabelTitle                SemanticLabel = "title"
	LabelURL                  SemanticLabel = "url"
	LabelCreatedBy            SemanticLabel = "createdBy"
	LabelLastModifiedBy       SemanticLabel = "lastModifiedBy"
	LabelAuthors              SemanticLabel = "authors"
	LabelCreatedDateTime      SemanticLabel = "createdDateTime"
	LabelLastModifiedDateTime SemanticLabel = "lastModifiedDateTime"
	LabelFileName             SemanticLabel = "fileName"
	LabelFileExtension        SemanticLabel = "fileExtension"
	LabelContainerName        SemanticLabel = "containerName"
	LabelContainerURL         SemanticLabel = "containerUrl"
	LabelIconURL              SemanticLabel = "iconUrl"
)

// FieldDefinition is one inferred or registered schema property.
type FieldDefinition struct {
	Name          string        `json:"name"`
	DisplayName   string        `json:"displayName,omitempty"`
	Type          DataType      `json:"type"`
	IsSearchable  bool          `json:"isSearchable"`
	IsQueryable   bool          `json:"isQueryable"`
	IsRetrievable bool          `json:"isRetrievable"`
	IsRefinable   bool          `json:"isRefinable"`
	SemanticLabel SemanticLabel `json:"semanticLabel,omitempty"`

	// Inference diagnostics, not persisted into the registered schema.
	JSONPath string `json:"-"`
	IsArray  bool   `json:"-"`
	IsNested bool   `json:"-"`
}

// FieldAlias maps a producer-side field name onto the canonical registered
// name. Aliases are applied in order during ingestion alignment.
type FieldAlias struct {
	SourceAlias   string `json:"sourceAlias"`
	CanonicalName string `json:"canonicalName"`
}

// DefaultAliases is the remap table used when a registered schema carries no
// aliases of its own.
var DefaultAliases = []FieldAlias{
	{SourceAlias: "publishedDate", CanonicalName: "lastUpdated"},
	{SourceAlias: "score", CanonicalName: "price"},
	{SourceAlias: "isActive", CanonicalName: "inStock"},
}

// SchemaConfiguration is the registered, read-only view of a connection's
// schema consumed by the ingestion path.
type SchemaConfiguration struct {
	ConnectionID   string                     `json:"connectionId"`
	Fields         map[string]FieldDefinition `json:"fields"`
	RequiredFields []string                   `json:"requiredFields,omitempty"`
	Aliases        []FieldAlias               `json:"aliases,omitempty"`
}

// Field returns the definition for name, if registered.
func (c SchemaConfiguration) Field(name string) (FieldDefinition, bool) {
	f, ok := c.Fields[name]
	return f, ok
}

// AliasTable returns the schema's alias remaps, falling back to the
// documented defaults when none were published.
func (c SchemaConfiguration) AliasTable() []FieldAlias {
	if len(c.Aliases) > 0 {
		return c.Aliases
	}
	return DefaultAliases
}

// NewConfiguration builds a SchemaConfiguration from an ordered field list,
// collapsing inference-only types into their persisted form (Int32 widens to
// Int64; Object is never registered).
func NewConfiguration(connectionID string, fields []FieldDefinition) SchemaConfiguration {
	cfg := SchemaConfiguration{
		ConnectionID: connectionID,
		Fields:       make(map[string]FieldDefinition, len(fields)),
	}
	for _, f := range fields {
		if f.Type == TypeObject {
			continue
		}
		if f.Type == TypeInt32 {
			f.Type = TypeInt64
		}
		cfg.Fields[f.Name] = f
	}
	return cfg
}

// DefaultConfiguration is the documented fallback used when the store holds
// no schema for a connection yet: a minimal title/url shape that any item
// can satisfy.
func DefaultConfiguration(connectionID string) SchemaConfiguration {
	return NewConfiguration(connectionID, []FieldDefinition{
		{
			Name:          "title",
			DisplayName:   "Title",
			Type:          TypeString,
			IsSearchable:  true,
			IsQueryable:   true,
			IsRetrievable: true,
			SemanticLabel: LabelTitle,
		},
		{
			Name:          "url",
			DisplayName:   "Url",
			Type:          TypeString,
			IsQueryable:   true,
			IsRetrievable: true,
			SemanticLabel: LabelURL,
		},
		{
			Name:          "lastUpdated",
			DisplayName:   "Last Updated",
			Type:          TypeDateTime,
			IsQueryable:   true,
			IsRetrievable: true,
			IsRefinable:   true,
			SemanticLabel: LabelLastModifiedDateTime,
		},
	})
}
