package model

import "time"

// PromptTemplate is a tier's prompt text plus its trusted content hash.
// The hash is computed over the raw template, before placeholder substitution.
type PromptTemplate struct {
	Tier          TierID
	Text          string
	CanonicalHash string // hex sha256
	RegisteredAt  time.Time
}

// SecurityIncident is an append-only audit record for template tampering and
// response-injection detections. Writing one is a hard requirement, never
// best-effort.
type SecurityIncident struct {
	ID         string
	Kind       IncidentKind
	Tier       TierID
	BatchID    string
	Expected   string // canonical hash / issued token
	Observed   string // offending hash / received payload excerpt
	OccurredAt time.Time
}

type IncidentKind string

const (
	IncidentTemplateTampered IncidentKind = "template_tampered"
	IncidentTokenMismatch    IncidentKind = "token_mismatch"
	IncidentManualOverride   IncidentKind = "manual_override"
)
