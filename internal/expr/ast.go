// Package expr parses binding expressions into span-carrying ASTs. Offsets
// in a Range are relative to the parsed code string; callers translate them
// into file offsets by adding the expression's start offset.
package expr

// Kind tags what surface position an expression was parsed for.
type Kind string

const (
	KindProperty      Kind = "IsProperty"
	KindIterator      Kind = "IsIterator"
	KindListener      Kind = "IsFunction"
	KindInterpolation Kind = "Interpolation"
	KindCustom        Kind = "IsCustom"
)

type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Node interface {
	Span() Range
}

// AccessScope is a bare identifier resolved against the current scope.
type AccessScope struct {
	Name string
	Loc  Range
}

// AccessMember is `.name` or `?.name` on a base expression. LinkLoc covers
// only the link text, starting exactly at the base's end (dot or optional
// chain token included), which is what keeps overlay segments contiguous.
type AccessMember struct {
	Base     Node
	Name     string
	Optional bool
	Loc      Range
	LinkLoc  Range
}

// AccessKeyed is `[key]` or `?.[key]` on a base expression.
type AccessKeyed struct {
	Base     Node
	Key      Node
	Optional bool
	Loc      Range
	LinkLoc  Range
}

// Call is a call expression; Base is nil for scope calls like `save()`.
type Call struct {
	Base     Node
	Name     string
	Args     []Node
	Optional bool
	Loc      Range
}

type LiteralKind int

const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
	LitNull
	LitUndefined
)

type Literal struct {
	Kind LiteralKind
	Raw  string
	Loc  Range
}

type Unary struct {
	Op      string
	Operand Node
	Loc     Range
}

type Binary struct {
	Op    string
	Left  Node
	Right Node
	Loc   Range
}

type Conditional struct {
	Cond Node
	Yes  Node
	No   Node
	Loc  Range
}

// ForOf is the iterator declaration form `local of iterable`.
type ForOf struct {
	DeclName string
	DeclLoc  Range
	Iterable Node
	Loc      Range
}

func (n *AccessScope) Span() Range  { return n.Loc }
func (n *AccessMember) Span() Range { return n.Loc }
func (n *AccessKeyed) Span() Range  { return n.Loc }
func (n *Call) Span() Range         { return n.Loc }
func (n *Literal) Span() Range      { return n.Loc }
func (n *Unary) Span() Range        { return n.Loc }
func (n *Binary) Span() Range       { return n.Loc }
func (n *Conditional) Span() Range  { return n.Loc }
func (n *ForOf) Span() Range        { return n.Loc }

// Walk visits every node in the tree, parents before children.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch t := n.(type) {
	case *AccessMember:
		Walk(t.Base, visit)
	case *AccessKeyed:
		Walk(t.Base, visit)
		Walk(t.Key, visit)
	case *Call:
		Walk(t.Base, visit)
		for _, a := range t.Args {
			Walk(a, visit)
		}
	case *Unary:
		Walk(t.Operand, visit)
	case *Binary:
		Walk(t.Left, visit)
		Walk(t.Right, visit)
	case *Conditional:
		Walk(t.Cond, visit)
		Walk(t.Yes, visit)
		Walk(t.No, visit)
	case *ForOf:
		Walk(t.Iterable, visit)
	}
}

// Roots collects the leading identifiers an expression reads from scope.
func Roots(n Node) []string {
	var out []string
	seen := map[string]bool{}
	Walk(n, func(m Node) {
		if s, ok := m.(*AccessScope); ok && !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s.Name)
		}
		if c, ok := m.(*Call); ok && c.Base == nil && !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
	})
	return out
}
