package discovery

import (
	"fmt"

	"weft/internal/catalog"
	"weft/internal/host/tsfacts"
)

// EvalResult is one best-effort evaluation. Known carries a concrete Go
// value (string, float64, bool, nil, []interface{}, map[string]interface{});
// when the value is unprovable, Known is false and Gaps explain why.
type EvalResult struct {
	Known bool
	Value interface{}
	Gaps  []Gap
}

// Evaluator folds initializer expressions down to concrete values where it
// can. Defines are substituted for matching identifier and member paths
// before anything else, so build flags discharge guards deterministically.
// Env holds the same file's module-level variables.
type Evaluator struct {
	Defines map[string]interface{}
	Env     map[string]*tsfacts.Value
}

// Eval never fails: anything it cannot prove degrades to a gap.
func (e *Evaluator) Eval(v *tsfacts.Value) EvalResult {
	if v == nil {
		return EvalResult{}
	}
	switch v.Kind {
	case tsfacts.ValString:
		return EvalResult{Known: true, Value: v.Str}
	case tsfacts.ValNumber:
		return EvalResult{Known: true, Value: v.Num}
	case tsfacts.ValBool:
		return EvalResult{Known: true, Value: v.Bool}
	case tsfacts.ValNull:
		return EvalResult{Known: true, Value: nil}
	case tsfacts.ValTemplate:
		return e.gap(v, PatternOther, "template string with substitutions")
	case tsfacts.ValArray:
		return e.evalArray(v)
	case tsfacts.ValObject:
		return e.evalObject(v)
	case tsfacts.ValIdent:
		return e.evalIdent(v)
	case tsfacts.ValMember:
		if val, ok := e.Defines[v.Name]; ok {
			return EvalResult{Known: true, Value: val}
		}
		return e.gap(v, PatternPropertyAccess, v.Name)
	case tsfacts.ValCall:
		return e.gap(v, PatternFunctionCall, v.Name)
	case tsfacts.ValConditional:
		return e.evalConditional(v)
	case tsfacts.ValSpread:
		return e.gap(v, PatternSpreadVariable, v.Raw)
	default:
		return e.gap(v, PatternOther, v.Raw)
	}
}

func (e *Evaluator) evalIdent(v *tsfacts.Value) EvalResult {
	if val, ok := e.Defines[v.Name]; ok {
		return EvalResult{Known: true, Value: val}
	}
	if def, ok := e.Env[v.Name]; ok {
		return e.Eval(def)
	}
	return e.gap(v, PatternVariableRef, v.Name)
}

func (e *Evaluator) evalArray(v *tsfacts.Value) EvalResult {
	out := make([]interface{}, 0, len(v.Elems))
	var gaps []Gap
	known := true
	for i := range v.Elems {
		elem := &v.Elems[i]
		if elem.Kind == tsfacts.ValSpread {
			inner := e.Eval(&elem.Elems[0])
			gaps = append(gaps, inner.Gaps...)
			if list, ok := inner.Value.([]interface{}); inner.Known && ok {
				out = append(out, list...)
				continue
			}
			gaps = append(gaps, Gap{
				Pattern: PatternSpreadVariable,
				Rank:    catalog.RankExplicit,
				Detail:  elem.Raw,
				Span:    elem.Span,
			})
			known = false
			continue
		}
		r := e.Eval(elem)
		gaps = append(gaps, r.Gaps...)
		if !r.Known {
			known = false
			continue
		}
		out = append(out, r.Value)
	}
	return EvalResult{Known: known, Value: out, Gaps: gaps}
}

func (e *Evaluator) evalObject(v *tsfacts.Value) EvalResult {
	out := make(map[string]interface{}, len(v.Props))
	var gaps []Gap
	known := true
	for i := range v.Props {
		p := &v.Props[i]
		if p.Spread {
			inner := e.Eval(&p.Val)
			gaps = append(gaps, inner.Gaps...)
			if m, ok := inner.Value.(map[string]interface{}); inner.Known && ok {
				for k, val := range m {
					out[k] = val
				}
				continue
			}
			gaps = append(gaps, Gap{
				Pattern: PatternSpreadVariable,
				Rank:    catalog.RankExplicit,
				Detail:  p.Val.Raw,
				Span:    p.Val.Span,
			})
			known = false
			continue
		}
		r := e.Eval(&p.Val)
		gaps = append(gaps, r.Gaps...)
		if !r.Known {
			known = false
			continue
		}
		out[p.Key] = r.Value
	}
	return EvalResult{Known: known, Value: out, Gaps: gaps}
}

// evalConditional discharges the guard when the condition folds to a
// boolean; otherwise the whole conditional is a gap.
func (e *Evaluator) evalConditional(v *tsfacts.Value) EvalResult {
	if len(v.Elems) != 3 {
		return e.gap(v, PatternOther, v.Raw)
	}
	cond := e.Eval(&v.Elems[0])
	if !cond.Known {
		r := e.gap(v, PatternConditional, v.Elems[0].Raw)
		r.Gaps = append(cond.Gaps, r.Gaps...)
		return r
	}
	if truthy(cond.Value) {
		return e.Eval(&v.Elems[1])
	}
	return e.Eval(&v.Elems[2])
}

func (e *Evaluator) gap(v *tsfacts.Value, pattern PatternKind, detail string) EvalResult {
	return EvalResult{Gaps: []Gap{{
		Pattern: pattern,
		Rank:    catalog.RankExplicit,
		Detail:  detail,
		Span:    v.Span,
	}}}
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}

// EvalString is a convenience for callers that need a string or nothing.
func (e *Evaluator) EvalString(v *tsfacts.Value) (string, []Gap, bool) {
	r := e.Eval(v)
	if s, ok := r.Value.(string); r.Known && ok {
		return s, r.Gaps, true
	}
	return "", r.Gaps, false
}

// FormatValue renders an evaluated value for diagnostics.
func FormatValue(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
