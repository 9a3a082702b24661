package pipeline

import (
	"weft/internal/core/span"
)

// Segment pairs one access-chain piece in the template with its overlay
// copy. Both sides have identical length.
type Segment struct {
	Html    span.SourceSpan `json:"html"`
	Overlay span.SourceSpan `json:"overlay"`
}

// MappingEntry maps one expression between the template and the overlay.
type MappingEntry struct {
	ExprId      span.ExprId     `json:"exprId"`
	FrameId     span.FrameId    `json:"frameId"`
	HtmlSpan    span.SourceSpan `json:"htmlSpan"`
	OverlaySpan span.SourceSpan `json:"overlaySpan"`
	Segments    []Segment       `json:"segments,omitempty"`
}

// Mapping translates positions between a template and its overlay. One
// entry exists per expression; segments refine the entry down to access
// chains for precise diagnostics relocation.
type Mapping struct {
	File        span.FileId
	OverlayFile span.FileId
	Entries     []MappingEntry

	byExpr map[span.ExprId]int
}

// Entry returns the mapping row for an expression.
func (m *Mapping) Entry(id span.ExprId) (MappingEntry, bool) {
	idx, ok := m.byExpr[id]
	if !ok {
		return MappingEntry{}, false
	}
	return m.Entries[idx], true
}

// OverlayOffsetToHtml maps an overlay offset back into the template. The
// narrowest enclosing segment wins; an offset inside an entry but outside
// every segment falls back to the whole-expression shift.
func (m *Mapping) OverlayOffsetToHtml(off int) (int, bool) {
	bestLen := -1
	best := 0
	found := false
	for _, e := range m.Entries {
		if off < e.OverlaySpan.Start || off >= e.OverlaySpan.End {
			continue
		}
		entryLen := e.OverlaySpan.End - e.OverlaySpan.Start
		if !found || entryLen < bestLen {
			found = true
			bestLen = entryLen
			best = e.HtmlSpan.Start + (off - e.OverlaySpan.Start)
		}
		for _, seg := range e.Segments {
			if off < seg.Overlay.Start || off >= seg.Overlay.End {
				continue
			}
			segLen := seg.Overlay.End - seg.Overlay.Start
			if segLen < bestLen {
				bestLen = segLen
				best = seg.Html.Start + (off - seg.Overlay.Start)
			}
		}
	}
	return best, found
}

// OverlaySpanToHtml maps a whole overlay span; both ends must land in the
// same entry.
func (m *Mapping) OverlaySpanToHtml(s span.SourceSpan) (span.SourceSpan, bool) {
	start, ok := m.OverlayOffsetToHtml(s.Start)
	if !ok {
		return span.SourceSpan{}, false
	}
	// End is exclusive; map the last covered byte and extend by one.
	end := start + 1
	if s.End > s.Start {
		last, ok := m.OverlayOffsetToHtml(s.End - 1)
		if !ok {
			return span.SourceSpan{}, false
		}
		end = last + 1
	}
	return span.New(m.File, start, end), true
}

// HtmlOffsetToOverlay maps a template offset into the overlay.
func (m *Mapping) HtmlOffsetToOverlay(off int) (int, bool) {
	bestLen := -1
	best := 0
	found := false
	for _, e := range m.Entries {
		if off < e.HtmlSpan.Start || off >= e.HtmlSpan.End {
			continue
		}
		entryLen := e.HtmlSpan.End - e.HtmlSpan.Start
		if !found || entryLen < bestLen {
			found = true
			bestLen = entryLen
			best = e.OverlaySpan.Start + (off - e.HtmlSpan.Start)
		}
	}
	return best, found
}
