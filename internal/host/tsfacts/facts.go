// Package tsfacts extracts declaration-level facts from TypeScript and
// JavaScript sources via tree-sitter. The output is a pure function of file
// content: no cross-file resolution happens here, so the result is cacheable
// by content hash and later stages own all linking between files.
package tsfacts

import (
	"weft/internal/core/span"
)

// FileFacts is everything extraction learned about one source file.
type FileFacts struct {
	Path span.FileId `json:"path"`

	Classes   []ClassFact    `json:"classes,omitempty"`
	Imports   []ImportFact   `json:"imports,omitempty"`
	Exports   []ExportFact   `json:"exports,omitempty"`
	Variables []VariableFact `json:"variables,omitempty"`
	// Calls lists top-level call expressions whose callee matters to
	// registration analysis (define/register shapes and the like).
	Calls []CallFact `json:"calls,omitempty"`
}

// Class finds a class fact by name.
func (f *FileFacts) Class(name string) (*ClassFact, bool) {
	for i := range f.Classes {
		if f.Classes[i].Name == name {
			return &f.Classes[i], true
		}
	}
	return nil, false
}

// ClassFact is one class declaration.
type ClassFact struct {
	Name       string          `json:"name"`
	Exported   bool            `json:"exported"`
	IsDefault  bool            `json:"isDefault"`
	Extends    string          `json:"extends,omitempty"`
	Decorators []DecoratorFact `json:"decorators,omitempty"`
	Fields     []FieldFact     `json:"fields,omitempty"`
	Methods    []string        `json:"methods,omitempty"`
	Span       span.SourceSpan `json:"span"`
}

// StaticField finds a static field by name.
func (c *ClassFact) StaticField(name string) (*FieldFact, bool) {
	for i := range c.Fields {
		if c.Fields[i].Static && c.Fields[i].Name == name {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// DecoratorFact is one decorator application, on a class or a field.
type DecoratorFact struct {
	Name string `json:"name"`
	// Called is true for @dec(...) as opposed to bare @dec.
	Called bool            `json:"called"`
	Args   []Value         `json:"args,omitempty"`
	Span   span.SourceSpan `json:"span"`
}

// FieldFact is one class property declaration.
type FieldFact struct {
	Name       string          `json:"name"`
	Static     bool            `json:"static"`
	TypeName   string          `json:"typeName,omitempty"`
	Value      *Value          `json:"value,omitempty"`
	Decorators []DecoratorFact `json:"decorators,omitempty"`
	Span       span.SourceSpan `json:"span"`
}

// ImportFact is one import statement.
type ImportFact struct {
	Module    string          `json:"module"`
	Default   string          `json:"default,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Named     []ImportedName  `json:"named,omitempty"`
	Span      span.SourceSpan `json:"span"`
}

type ImportedName struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// ExportKind distinguishes the export statement shapes resolution handles.
type ExportKind string

const (
	// ExportNamed covers `export class C`, `export const x` and
	// `export { a as b }` without a module clause.
	ExportNamed ExportKind = "named"
	// ExportDefault covers `export default ...`.
	ExportDefault ExportKind = "default"
	// ExportReexport covers `export { a } from './m'`.
	ExportReexport ExportKind = "reexport"
	// ExportStar covers `export * from './m'` and `export * as ns from './m'`.
	ExportStar ExportKind = "star"
)

// ExportFact is one exported binding. Name is the local name, Alias the
// exported spelling when they differ, From the source module for re-exports.
type ExportFact struct {
	Kind  ExportKind      `json:"kind"`
	Name  string          `json:"name,omitempty"`
	Alias string          `json:"alias,omitempty"`
	From  string          `json:"from,omitempty"`
	Span  span.SourceSpan `json:"span"`
}

// VariableFact is one module-level variable with its initializer, kept for
// partial evaluation of configuration objects.
type VariableFact struct {
	Name     string          `json:"name"`
	Exported bool            `json:"exported"`
	Value    *Value          `json:"value,omitempty"`
	Span     span.SourceSpan `json:"span"`
}

// CallFact is one module-level call expression. Callee is the dotted path
// as written (`CustomElement.define`, `au.register`).
type CallFact struct {
	Callee string          `json:"callee"`
	Args   []Value         `json:"args,omitempty"`
	Span   span.SourceSpan `json:"span"`
}

// ValueKind classifies initializer expressions for partial evaluation. The
// evaluator folds literal kinds and reports the rest as gaps, keyed by this
// kind.
type ValueKind string

const (
	ValString      ValueKind = "string"
	ValNumber      ValueKind = "number"
	ValBool        ValueKind = "bool"
	ValNull        ValueKind = "null"
	ValArray       ValueKind = "array"
	ValObject      ValueKind = "object"
	ValTemplate    ValueKind = "template"
	ValIdent       ValueKind = "identifier"
	ValMember      ValueKind = "member"
	ValCall        ValueKind = "call"
	ValConditional ValueKind = "conditional"
	ValSpread      ValueKind = "spread"
	ValUnknown     ValueKind = "unknown"
)

// Value is one initializer expression, shallowly structured. Literal shapes
// carry their payload; dynamic shapes carry just enough (Name, Raw) for the
// evaluator to classify the gap.
type Value struct {
	Kind ValueKind `json:"kind"`

	Str  string  `json:"str,omitempty"`
	Num  float64 `json:"num,omitempty"`
	Bool bool    `json:"bool,omitempty"`

	// Name holds the identifier, dotted member path, or callee path.
	Name string `json:"name,omitempty"`

	// Elems holds array elements, call arguments, or the spread operand.
	Elems []Value `json:"elems,omitempty"`
	Props []Prop  `json:"props,omitempty"`

	// Raw is the source text, for diagnostics on unevaluable values.
	Raw  string          `json:"raw,omitempty"`
	Span span.SourceSpan `json:"span"`
}

// Prop is one object-literal property.
type Prop struct {
	Key      string `json:"key"`
	Computed bool   `json:"computed,omitempty"`
	Spread   bool   `json:"spread,omitempty"`
	Val      Value  `json:"val"`
}

// Prop finds an object property by key.
func (v *Value) Prop(key string) (*Value, bool) {
	if v.Kind != ValObject {
		return nil, false
	}
	for i := range v.Props {
		if !v.Props[i].Spread && v.Props[i].Key == key {
			return &v.Props[i].Val, true
		}
	}
	return nil, false
}
