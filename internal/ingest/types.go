// Package ingest aligns arbitrary raw JSON documents against a registered
// schema and submits the resulting items to the external sink, either one at
// a time through the queue or in bounded-concurrency batches.
package ingest

import "context"

// ACLEntry is one access-control entry attached to a normalized item.
type ACLEntry struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	AccessType string `json:"accessType"`
}

// EveryoneGrant is the fallback ACL applied when neither the document nor the
// connector configuration supplies one.
var EveryoneGrant = ACLEntry{Type: "everyone", Value: "everyone", AccessType: "grant"}

// NormalizedItem is the aligned form of a raw document: only registered field
// names survive in Properties (plus @odata.type annotations).
type NormalizedItem struct {
	ID           string         `json:"id"`
	ConnectionID string         `json:"connectionId"`
	Properties   map[string]any `json:"properties"`
	Content      string         `json:"content"`
	ACL          []ACLEntry     `json:"acl"`
}

// WarningKind classifies a soft alignment condition.
type WarningKind string

const (
	WarnDroppedField    WarningKind = "dropped_field"
	WarnCoercedValue    WarningKind = "coerced_value"
	WarnInjectedDefault WarningKind = "injected_default"
	WarnRemappedAlias   WarningKind = "remapped_alias"
)

// Warning records one soft condition resolved during alignment. Warnings
// never abort processing.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
}

// AlignResult is a successfully aligned item plus everything that had to be
// reconciled along the way.
type AlignResult struct {
	Item     *NormalizedItem `json:"item"`
	Warnings []Warning       `json:"warnings"`
}

// BatchError identifies one failed document within a batch.
type BatchError struct {
	Index   int    `json:"index"`
	ItemID  string `json:"itemId,omitempty"`
	Message string `json:"message"`
}

// BatchResult aggregates per-document outcomes. A single failure never
// aborts the rest of the batch.
type BatchResult struct {
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	Warnings     []Warning    `json:"warnings,omitempty"`
	Errors       []BatchError `json:"errors,omitempty"`
}

// ItemSink is the downstream store that receives normalized items. Size and
// charset limits on individual items are enforced on its side.
type ItemSink interface {
	Upsert(ctx context.Context, item *NormalizedItem) error
	Delete(ctx context.Context, connectionID, itemID string) error
}
