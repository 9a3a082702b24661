// Package host declares the boundary the engine's pipeline talks to:
// markup tokenization, source-file fact extraction, and type queries.
// Implementations live in subpackages; the pipeline only sees interfaces.
package host

import (
	"weft/internal/core/span"
)

// NodeKind classifies markup nodes.
type NodeKind string

const (
	NodeElement NodeKind = "element"
	NodeText    NodeKind = "text"
	NodeComment NodeKind = "comment"
)

// Attr is one attribute on an element. ValueSpan covers exactly the value
// text, excluding the name, the equals sign and both quote characters, so
// expression offsets computed inside the value are byte-exact.
type Attr struct {
	Name  string
	Value string

	NameSpan  span.SourceSpan
	ValueSpan span.SourceSpan
	// HasValue is false for bare boolean attributes (<details open>).
	HasValue bool
}

// Node is one markup tree node. Span offsets refer to the original,
// un-normalized file text even when the tokenizer normalized line endings
// before parsing.
type Node struct {
	Kind NodeKind
	// Tag is the element name, lowercased. Empty for text and comments.
	Tag string
	// Text holds the content of text and comment nodes. The tokenizer may
	// return it with line endings normalized; consumers that need byte-exact
	// text must slice Document.Source through Span instead.
	Text string

	Span     span.SourceSpan
	Attrs    []Attr
	Children []*Node
}

// Attr finds an attribute by name.
func (n *Node) Attr(name string) (Attr, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Document is one tokenized markup file. Source is the raw file content;
// all spans in the tree index into it.
type Document struct {
	File   span.FileId
	Source string
	Roots  []*Node
}

// Walk visits every node depth-first. Returning false from fn skips the
// node's children.
func (d *Document) Walk(fn func(n *Node, path []int) bool) {
	var rec func(n *Node, path []int)
	rec = func(n *Node, path []int) {
		if !fn(n, path) {
			return
		}
		for i, c := range n.Children {
			rec(c, append(path[:len(path):len(path)], i))
		}
	}
	for i, r := range d.Roots {
		rec(r, []int{i})
	}
}

// Tokenizer turns template text into a markup tree with byte-exact spans.
type Tokenizer interface {
	Tokenize(file span.FileId, source string) (*Document, error)
}

// TypeInfo describes one named type the oracle knows about. Members maps
// property names to their type names.
type TypeInfo struct {
	Name    string
	Members map[string]string
}

// Member looks up a property's type.
func (t TypeInfo) Member(name string) (string, bool) {
	typ, ok := t.Members[name]
	return typ, ok
}

// TypeOracle answers type queries for the overlay checker. The engine
// queries it fresh per request and caches nothing on its behalf.
type TypeOracle interface {
	LookupType(name string) (TypeInfo, bool)
}

// StaticOracle is a map-backed oracle for tests and offline runs.
type StaticOracle struct {
	Types map[string]TypeInfo
}

func NewStaticOracle(types ...TypeInfo) *StaticOracle {
	m := make(map[string]TypeInfo, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	return &StaticOracle{Types: m}
}

func (o *StaticOracle) LookupType(name string) (TypeInfo, bool) {
	t, ok := o.Types[name]
	return t, ok
}
