// Package labels maps inferred fields onto the closed catalogue of semantic
// roles (title, url, createdDateTime, ...) using name heuristics and type
// compatibility, enforcing one field per label.
package labels

import (
	"strings"

	"github.com/graphconnect/connector-platform/internal/schema"
)

// rule describes one catalogue entry: the label, the type it prefers, and the
// common name substrings that suggest it. Rules are evaluated in order.
type rule struct {
	label     schema.SemanticLabel
	preferred schema.DataType
	patterns  []string
}

// catalogue is the fixed, ordered label catalogue. Order matters: for each
// field the first matching unconsumed label wins.
var catalogue = []rule{
	{schema.LabelTitle, schema.TypeString, []string{"title", "name", "subject", "heading"}},
	{schema.LabelURL, schema.TypeString, []string{"url", "link", "href", "uri"}},
	{schema.LabelCreatedBy, schema.TypeString, []string{"createdby", "creator", "owner"}},
	{schema.LabelLastModifiedBy, schema.TypeString, []string{"modifiedby", "editor", "updatedby"}},
	{schema.LabelAuthors, schema.TypeStringCollection, []string{"authors", "contributors", "writers"}},
	{schema.LabelCreatedDateTime, schema.TypeDateTime, []string{"createddate", "createdat", "datecreated", "published"}},
	{schema.LabelLastModifiedDateTime, schema.TypeDateTime, []string{"modifieddate", "modifiedat", "lastmodified", "updatedat", "lastupdate"}},
	{schema.LabelFileName, schema.TypeString, []string{"filename"}},
	{schema.LabelFileExtension, schema.TypeString, []string{"extension", "filetype"}},
	{schema.LabelContainerName, schema.TypeString, []string{"containername", "folder", "parentname"}},
	{schema.LabelContainerURL, schema.TypeString, []string{"containerurl", "folderurl", "parenturl"}},
	{schema.LabelIconURL, schema.TypeString, []string{"icon", "thumbnail"}},
}

// PreferredType returns the catalogue's preferred data type for a label.
func PreferredType(label schema.SemanticLabel) (schema.DataType, bool) {
	for _, r := range catalogue {
		if r.label == label {
			return r.preferred, true
		}
	}
	return "", false
}

// Compatible reports whether a field of type t may carry the label. The rule
// is deliberately permissive: an exact type match, or a String-preferring
// label on any field.
func Compatible(label schema.SemanticLabel, t schema.DataType) bool {
	preferred, ok := PreferredType(label)
	if !ok {
		return false
	}
	return t == preferred || preferred == schema.TypeString
}

// Assign labels the fields in place. Each label is consumed by at most one
// field; fields that match nothing keep LabelNone. A field must be
// retrievable to receive a label.
func Assign(fields []schema.FieldDefinition) {
	consumed := make(map[schema.SemanticLabel]struct{})

	for i := range fields {
		f := &fields[i]
		if f.SemanticLabel != "" && f.SemanticLabel != schema.LabelNone {
			consumed[f.SemanticLabel] = struct{}{}
			continue
		}
		f.SemanticLabel = schema.LabelNone
		if !f.IsRetrievable {
			continue
		}
		name := strings.ToLower(f.Name)
		display := strings.ToLower(f.DisplayName)
		for _, r := range catalogue {
			if _, taken := consumed[r.label]; taken {
				continue
			}
			if !Compatible(r.label, f.Type) {
				continue
			}
			if matchesAny(name, display, r.patterns) {
				f.SemanticLabel = r.label
				consumed[r.label] = struct{}{}
				break
			}
		}
	}

	// Fallback heuristics for fields the catalogue pass left unlabeled.
	for i := range fields {
		f := &fields[i]
		if f.SemanticLabel != schema.LabelNone || !f.IsRetrievable {
			continue
		}
		name := strings.ToLower(f.Name)
		var candidate schema.SemanticLabel
		switch {
		case f.Type == schema.TypeDateTime && (strings.Contains(name, "created") || strings.Contains(name, "date")):
			candidate = schema.LabelCreatedDateTime
		case f.Type == schema.TypeDateTime && (strings.Contains(name, "modified") || strings.Contains(name, "updated")):
			candidate = schema.LabelLastModifiedDateTime
		case f.Type == schema.TypeString && (strings.Contains(name, "url") || strings.Contains(name, "link")):
			candidate = schema.LabelURL
		case f.Type == schema.TypeString && (strings.Contains(name, "filename") || strings.Contains(name, "file")):
			candidate = schema.LabelFileName
		case f.Type == schema.TypeString && (strings.Contains(name, "extension") || strings.Contains(name, "type")):
			candidate = schema.LabelFileExtension
		}
		if candidate == "" {
			continue
		}
		if _, taken := consumed[candidate]; taken {
			continue
		}
		f.SemanticLabel = candidate
		consumed[candidate] = struct{}{}
	}
}

func matchesAny(name, display string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) || strings.Contains(display, p) {
			return true
		}
	}
	return false
}
