// Package exprtab deduplicates parsed expression ASTs within one
// compilation. Identical (file, byte range, kind, code) occurrences share a
// single immutable entry with a stable content-derived id.
package exprtab

import (
	"fmt"

	"weft/internal/core/span"
	"weft/internal/expr"
)

// BadExpression stands in for an expression that failed to parse. It is a
// value, not an error: one bad expression never aborts lowering.
type BadExpression struct {
	Kind    expr.Kind
	Code    string
	Message string
}

type Entry struct {
	Id   span.ExprId
	Kind expr.Kind
	Code string
	// Start/End locate the first-seen occurrence in the source file. AST
	// ranges are relative to Start.
	Start int
	End   int
	// Ast is nil when Bad is set.
	Ast expr.Node
	Bad *BadExpression
}

func (e *Entry) IsBad() bool {
	return e.Bad != nil
}

type key struct {
	fileHashKey string
	start, end  int
	kind        expr.Kind
	code        string
}

// Table is owned by one compilation; entries are immutable once created.
type Table struct {
	fileHashKey string
	entries     map[key]*Entry
	byId        map[span.ExprId]*Entry
	order       []span.ExprId
}

// New creates a table for one source file, identified by its content hash
// key so expression ids change when the file's content does.
func New(fileHashKey string) *Table {
	return &Table{
		fileHashKey: fileHashKey,
		entries:     make(map[key]*Entry),
		byId:        make(map[span.ExprId]*Entry),
	}
}

// Parse returns the entry for the expression occurrence, parsing on first
// sight and reusing the entry for identical occurrences.
func (t *Table) Parse(start, end int, kind expr.Kind, code string) *Entry {
	k := key{fileHashKey: t.fileHashKey, start: start, end: end, kind: kind, code: code}
	if e, ok := t.entries[k]; ok {
		return e
	}

	id := span.ExprIdFor(t.fileHashKey, start, end, string(kind), code)
	e := &Entry{Id: id, Kind: kind, Code: code, Start: start, End: end}

	ast, err := expr.Parse(code, kind)
	if err != nil {
		e.Bad = &BadExpression{Kind: kind, Code: code, Message: err.Error()}
	} else {
		e.Ast = ast
	}

	t.entries[k] = e
	if _, dup := t.byId[id]; !dup {
		t.byId[id] = e
		t.order = append(t.order, id)
	}
	return e
}

func (t *Table) Lookup(id span.ExprId) (*Entry, bool) {
	e, ok := t.byId[id]
	return e, ok
}

// Ids returns entry ids in first-seen order.
func (t *Table) Ids() []span.ExprId {
	out := make([]span.ExprId, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Len() int {
	return len(t.byId)
}

func (t *Table) String() string {
	return fmt.Sprintf("exprtab(%s, %d entries)", t.fileHashKey, len(t.byId))
}
