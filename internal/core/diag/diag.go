// Package diag carries structured diagnostics from the engine to a
// caller-supplied sink. The engine never formats, routes, or persists
// diagnostics itself.
package diag

import (
	"sync"

	"weft/internal/core/span"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// Stage names the part of the engine a diagnostic originated from.
type Stage string

const (
	StageExtract       Stage = "extract"
	StageExports       Stage = "exports"
	StageEvaluate      Stage = "evaluate"
	StageRecognize     Stage = "recognize"
	StageTemplateFacts Stage = "template-facts"
	StageAssemble      Stage = "assemble"
	StageRegister      Stage = "register"
	StageScope         Stage = "scope"
	StageSnapshot      Stage = "snapshot"
	StageLower         Stage = "lower"
	StageLink          Stage = "link"
	StageBind          Stage = "bind"
	StageTypecheck     Stage = "typecheck"
	StageOverlay       Stage = "overlay"
	StageSsr           Stage = "ssr"
)

type Diagnostic struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Span     span.SourceSpan        `json:"span"`
	Severity Severity               `json:"severity"`
	Stage    Stage                  `json:"stage"`
	Data     map[string]interface{} `json:"data,omitempty"`
	// Suppressed marks diagnostics that cascade from a stub whose root
	// cause was already reported.
	Suppressed bool `json:"suppressed,omitempty"`
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// Collector is a Sink that accumulates diagnostics, for tests and for batch
// callers that want the full list after a run.
type Collector struct {
	mu   sync.Mutex
	list []Diagnostic
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, d)
}

// All returns a copy of everything reported so far.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.list))
	copy(out, c.list)
	return out
}

// Visible returns reported diagnostics with suppressed entries filtered out.
func (c *Collector) Visible() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, 0, len(c.list))
	for _, d := range c.list {
		if !d.Suppressed {
			out = append(out, d)
		}
	}
	return out
}

func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

// Discard drops everything reported to it.
type Discard struct{}

func (Discard) Report(Diagnostic) {}
