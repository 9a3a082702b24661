package span

import (
	"fmt"
)

// FileId identifies one source file by workspace-relative path. Content
// changes are tracked separately via ContentHash so a FileId survives edits.
type FileId string

// ExprId identifies one parsed expression occurrence. Identical
// (file, byte range, kind, code) tuples always produce the same id.
type ExprId string

// NodeId identifies one template node by its tree path within a single
// lowering run. Stable under unrelated sibling edits only within that run.
type NodeId string

// SymbolId identifies one discovered resource (name + kind + origin).
type SymbolId string

// FrameId identifies one scope frame within a template's frame tree.
type FrameId string

// SourceSpan is a byte-offset range into one source file's original,
// un-normalized text. Offsets always refer to the text as read from disk;
// CRLF normalization never shifts them.
type SourceSpan struct {
	File  FileId `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func New(file FileId, start, end int) SourceSpan {
	if start > end {
		panic(fmt.Sprintf("span: start %d > end %d in %s", start, end, file))
	}
	return SourceSpan{File: file, Start: start, End: end}
}

func (s SourceSpan) Len() int {
	return s.End - s.Start
}

// Contains reports whether offset falls inside the span. Spans from
// different files never contain each other's offsets.
func (s SourceSpan) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// ContainsSpan reports whether other lies fully inside s. False when the
// spans belong to different files.
func (s SourceSpan) ContainsSpan(other SourceSpan) bool {
	if s.File != other.File {
		return false
	}
	return other.Start >= s.Start && other.End <= s.End
}

// Slice reads the span's text out of the original source. Callers must pass
// the un-normalized text of the span's file.
func (s SourceSpan) Slice(source string) string {
	if s.Start < 0 || s.End > len(source) {
		return ""
	}
	return source[s.Start:s.End]
}

func (s SourceSpan) String() string {
	return fmt.Sprintf("%s[%d:%d]", s.File, s.Start, s.End)
}
