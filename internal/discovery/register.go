package discovery

import (
	"strings"

	"weft/internal/catalog"
	"weft/internal/core/span"
	"weft/internal/host/tsfacts"
)

// ResolveRegistrations turns register call sites into activation decisions.
// A guard the evaluator cannot discharge keeps the registration active
// (dropping a possibly-live resource is worse than keeping a dead one) and
// marks the decision conservative with the gap attached.
func ResolveRegistrations(file span.FileId, ff *tsfacts.FileFacts, ev *Evaluator) []Registration {
	known := knownNames(ff)
	var out []Registration
	for i := range ff.Calls {
		call := &ff.Calls[i]
		if !isRegisterCallee(call.Callee) {
			continue
		}
		for j := range call.Args {
			out = append(out, resolveRegisterArg(file, &call.Args[j], ev, known)...)
		}
	}
	return out
}

func isRegisterCallee(callee string) bool {
	return callee == "register" || strings.HasSuffix(callee, ".register")
}

// knownNames collects identifiers the file can legitimately register:
// its own classes and everything it imports.
func knownNames(ff *tsfacts.FileFacts) map[string]bool {
	names := make(map[string]bool)
	for _, cls := range ff.Classes {
		names[cls.Name] = true
	}
	for _, imp := range ff.Imports {
		if imp.Default != "" {
			names[imp.Default] = true
		}
		if imp.Namespace != "" {
			names[imp.Namespace] = true
		}
		for _, n := range imp.Named {
			if n.Alias != "" {
				names[n.Alias] = true
			} else {
				names[n.Name] = true
			}
		}
	}
	return names
}

func resolveRegisterArg(file span.FileId, arg *tsfacts.Value, ev *Evaluator, known map[string]bool) []Registration {
	switch arg.Kind {
	case tsfacts.ValIdent:
		reg := Registration{Target: arg.Name, File: file, Active: true, Span: arg.Span}
		if !known[arg.Name] {
			reg.Conservative = true
			reg.Gap = &Gap{
				Pattern: PatternVariableRef,
				Rank:    catalog.RankExplicit,
				Detail:  arg.Name,
				Span:    arg.Span,
			}
		}
		return []Registration{reg}

	case tsfacts.ValMember:
		// Plugin namespaces register as a unit (e.g. RouterConfiguration).
		return []Registration{{Target: arg.Name, File: file, Active: true, Span: arg.Span}}

	case tsfacts.ValCall:
		// A customize()/configure() result cannot be proven; assume it
		// activates.
		return []Registration{{
			Target:       arg.Name,
			File:         file,
			Active:       true,
			Conservative: true,
			Span:         arg.Span,
			Gap: &Gap{
				Pattern: PatternFunctionCall,
				Rank:    catalog.RankExplicit,
				Detail:  arg.Raw,
				Span:    arg.Span,
			},
		}}

	case tsfacts.ValConditional:
		return resolveConditionalArg(file, arg, ev, known)

	case tsfacts.ValSpread:
		return resolveSpreadArg(file, arg, ev, known)

	case tsfacts.ValArray:
		var out []Registration
		for i := range arg.Elems {
			out = append(out, resolveRegisterArg(file, &arg.Elems[i], ev, known)...)
		}
		return out
	}
	return nil
}

// resolveConditionalArg discharges the guard when the condition folds; an
// undischarged guard conservatively activates both branches.
func resolveConditionalArg(file span.FileId, arg *tsfacts.Value, ev *Evaluator, known map[string]bool) []Registration {
	if len(arg.Elems) != 3 {
		return nil
	}
	cond := ev.Eval(&arg.Elems[0])
	if cond.Known {
		branch := &arg.Elems[2]
		if truthy(cond.Value) {
			branch = &arg.Elems[1]
		}
		return resolveRegisterArg(file, branch, ev, known)
	}
	gap := &Gap{
		Pattern: PatternConditional,
		Rank:    catalog.RankExplicit,
		Detail:  arg.Elems[0].Raw,
		Span:    arg.Span,
	}
	var out []Registration
	for _, branch := range []*tsfacts.Value{&arg.Elems[1], &arg.Elems[2]} {
		for _, reg := range resolveRegisterArg(file, branch, ev, known) {
			reg.Conservative = true
			// The undischarged guard is the root cause: it overrides any
			// gap the branch carries on its own.
			reg.Gap = gap
			out = append(out, reg)
		}
	}
	return out
}

func resolveSpreadArg(file span.FileId, arg *tsfacts.Value, ev *Evaluator, known map[string]bool) []Registration {
	if len(arg.Elems) == 1 && arg.Elems[0].Kind == tsfacts.ValIdent {
		// A spread of a known module-level array unrolls into its elements.
		if def, ok := ev.Env[arg.Elems[0].Name]; ok && def.Kind == tsfacts.ValArray {
			var out []Registration
			for i := range def.Elems {
				out = append(out, resolveRegisterArg(file, &def.Elems[i], ev, known)...)
			}
			return out
		}
	}
	return []Registration{{
		Target:       arg.Raw,
		File:         file,
		Active:       true,
		Conservative: true,
		Span:         arg.Span,
		Gap: &Gap{
			Pattern: PatternSpreadVariable,
			Rank:    catalog.RankExplicit,
			Detail:  arg.Raw,
			Span:    arg.Span,
		},
	}}
}
