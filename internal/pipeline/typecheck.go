package pipeline

import (
	"fmt"
	"strings"

	"weft/internal/core/diag"
	"weft/internal/core/span"
	"weft/internal/expr"
	"weft/internal/host"
)

// Strictness selects which mismatch categories the checker reports.
// Lenient reports only names that resolve nowhere; standard adds member
// accesses on known types that lack the member.
type Strictness string

const (
	StrictnessLenient  Strictness = "lenient"
	StrictnessStandard Strictness = "standard"
)

// Typechecker resolves template expressions against the view-model type
// through the host's type oracle. Frames introduced by controllers shadow
// the view model the same way the runtime scope chain does.
type Typechecker struct {
	oracle     host.TypeOracle
	strictness Strictness
	sink       diag.Sink
}

func NewTypechecker(oracle host.TypeOracle, strictness Strictness, sink diag.Sink) *Typechecker {
	if sink == nil {
		sink = diag.Discard{}
	}
	if strictness == "" {
		strictness = StrictnessStandard
	}
	return &Typechecker{oracle: oracle, strictness: strictness, sink: sink}
}

// Check types every expression the template binds. vmType is the name of
// the template's view-model type; when the oracle does not know it the
// checker degrades to reporting nothing rather than flooding false
// positives.
func (tc *Typechecker) Check(bt *BoundTemplate, vmType string) {
	vm, vmKnown := tc.oracle.LookupType(vmType)
	if !vmKnown {
		return
	}

	run := &checkRun{
		tc:    tc,
		bt:    bt,
		vm:    vm,
		types: make(map[span.ExprId]string),
	}
	for _, id := range bt.Linked.IR.Exprs.Ids() {
		run.typeOf(id)
	}
}

type checkRun struct {
	tc    *Typechecker
	bt    *BoundTemplate
	vm    host.TypeInfo
	types map[span.ExprId]string
}

// typeOf computes and memoizes an expression's type. Memoization doubles
// as cycle protection: a let local defined in terms of itself settles on
// unknown instead of recursing.
func (r *checkRun) typeOf(id span.ExprId) string {
	if t, ok := r.types[id]; ok {
		return t
	}
	r.types[id] = ""

	entry, ok := r.bt.Linked.IR.Exprs.Lookup(id)
	if !ok || entry.Ast == nil {
		return ""
	}
	frame := r.bt.FrameOf(id)
	if frame == nil {
		frame = r.bt.Root
	}
	t := r.typeNode(entry.Ast, frame, entry.Start)
	r.types[id] = t
	return t
}

func (r *checkRun) typeNode(n expr.Node, frame *ScopeFrame, base int) string {
	switch t := n.(type) {
	case *expr.AccessScope:
		return r.typeScope(t, frame, base)
	case *expr.AccessMember:
		return r.typeMember(t, frame, base)
	case *expr.AccessKeyed:
		baseType := r.typeNode(t.Base, frame, base)
		r.typeNode(t.Key, frame, base)
		return elementType(baseType)
	case *expr.Call:
		if t.Base != nil {
			r.typeNode(t.Base, frame, base)
		}
		for _, a := range t.Args {
			r.typeNode(a, frame, base)
		}
		return ""
	case *expr.Literal:
		switch t.Kind {
		case expr.LitString:
			return "string"
		case expr.LitNumber:
			return "number"
		case expr.LitBool:
			return "boolean"
		}
		return ""
	case *expr.Unary:
		r.typeNode(t.Operand, frame, base)
		if t.Op == "!" {
			return "boolean"
		}
		return ""
	case *expr.Binary:
		r.typeNode(t.Left, frame, base)
		r.typeNode(t.Right, frame, base)
		switch t.Op {
		case "==", "===", "!=", "!==", "<", ">", "<=", ">=", "&&", "||":
			return "boolean"
		}
		return ""
	case *expr.Conditional:
		r.typeNode(t.Cond, frame, base)
		yes := r.typeNode(t.Yes, frame, base)
		no := r.typeNode(t.No, frame, base)
		if yes == no {
			return yes
		}
		return ""
	case *expr.ForOf:
		return r.typeNode(t.Iterable, frame, base)
	}
	return ""
}

// typeScope resolves a bare name through the frame chain, then the view
// model. Unresolved names are the one category every preset reports.
func (r *checkRun) typeScope(s *expr.AccessScope, frame *ScopeFrame, base int) string {
	for cur := frame; cur != nil; cur = cur.Parent {
		if local, ok := cur.Locals[s.Name]; ok {
			return r.localType(local, cur)
		}
		if cur.Origin == FrameWith && cur.Subject != "" {
			if subjectType, ok := r.lookupInfo(r.typeOf(cur.Subject)); ok {
				if t, found := subjectType.Member(s.Name); found {
					return t
				}
			}
		}
	}
	if t, ok := r.vm.Member(s.Name); ok {
		return t
	}

	r.tc.sink.Report(diag.Diagnostic{
		Code:     "unknown-name",
		Message:  fmt.Sprintf("%q does not exist on %s or any enclosing scope", s.Name, r.vm.Name),
		Span:     spanAt(r.bt, base, s.Loc),
		Severity: diag.SeverityError,
		Stage:    diag.StageTypecheck,
	})
	return ""
}

func (r *checkRun) typeMember(m *expr.AccessMember, frame *ScopeFrame, base int) string {
	baseType := r.typeNode(m.Base, frame, base)
	info, ok := r.lookupInfo(baseType)
	if !ok {
		return ""
	}
	if t, found := info.Member(m.Name); found {
		return t
	}
	if r.tc.strictness == StrictnessStandard && !m.Optional {
		r.tc.sink.Report(diag.Diagnostic{
			Code:     "unknown-member",
			Message:  fmt.Sprintf("property %q does not exist on type %s", m.Name, info.Name),
			Span:     spanAt(r.bt, base, m.LinkLoc),
			Severity: diag.SeverityError,
			Stage:    diag.StageTypecheck,
		})
	}
	return ""
}

// localType resolves what a frame local holds: the iterable's element type
// for iterator locals, the initializer's type for let locals.
func (r *checkRun) localType(local Local, owner *ScopeFrame) string {
	if local.FromExpr == "" {
		return ""
	}
	t := r.typeOf(local.FromExpr)
	if owner.Origin == FrameIterator {
		return elementType(t)
	}
	return t
}

func (r *checkRun) lookupInfo(typeName string) (host.TypeInfo, bool) {
	if typeName == "" || isPrimitive(typeName) {
		return host.TypeInfo{}, false
	}
	return r.tc.oracle.LookupType(typeName)
}

func elementType(typeName string) string {
	if s, ok := strings.CutSuffix(typeName, "[]"); ok {
		return s
	}
	if inner, ok := strings.CutPrefix(typeName, "Array<"); ok {
		return strings.TrimSuffix(inner, ">")
	}
	return ""
}

func isPrimitive(typeName string) bool {
	switch typeName {
	case "string", "number", "boolean", "null", "undefined", "any", "unknown", "void", "object", "FileList":
		return true
	}
	return false
}

func spanAt(bt *BoundTemplate, base int, loc expr.Range) span.SourceSpan {
	return span.New(bt.Linked.IR.File, base+loc.Start, base+loc.End)
}
