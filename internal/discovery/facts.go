// Package discovery turns a set of source and template files into a
// converged resource catalog with provenance, gaps and a confidence level.
// It runs as an ordered stage pipeline: extract, exports, evaluate,
// recognize, template-facts, assemble, register, scope, snapshot. Only
// extraction is incremental (per-file fact caching); the cross-file stages
// re-run whole each refresh because they are cheap next to parsing.
package discovery

import (
	"weft/internal/catalog"
	"weft/internal/core/span"
)

// PatternKind classifies why the partial evaluator could not prove a value.
type PatternKind string

const (
	PatternFunctionCall   PatternKind = "function-call"
	PatternVariableRef    PatternKind = "variable-reference"
	PatternConditional    PatternKind = "conditional"
	PatternSpreadVariable PatternKind = "spread-variable"
	PatternPropertyAccess PatternKind = "property-access"
	PatternOther          PatternKind = "other"
)

// Gap is one place analysis gave up. Gaps are data: they flow into the
// result and demote confidence, they never abort a run.
type Gap struct {
	Pattern PatternKind          `json:"pattern"`
	Rank    catalog.EvidenceRank `json:"rank"`
	Detail  string               `json:"detail"`
	Span    span.SourceSpan      `json:"span"`
}

// Registration is one activation decision from the register stage. An
// unresolvable guard keeps the registration active but marks it
// conservative, with the gap explaining why.
type Registration struct {
	Target       string          `json:"target"`
	File         span.FileId     `json:"file"`
	Active       bool            `json:"active"`
	Conservative bool            `json:"conservative,omitempty"`
	Gap          *Gap            `json:"gap,omitempty"`
	Span         span.SourceSpan `json:"span"`
}

// Result is one full discovery run.
type Result struct {
	Catalog       *catalog.Catalog
	Resources     []*catalog.ResourceDef
	Registrations []Registration
	Scope         *ScopeNode
	Snapshot      *Snapshot
	Gaps          []Gap
	Stats         RefreshStats
}
