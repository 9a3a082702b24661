package discovery

import (
	"path"
	"strings"

	"weft/internal/core/span"
	"weft/internal/host/tsfacts"
)

// Definition is where an exported name is actually declared.
type Definition struct {
	File span.FileId `json:"file"`
	Name string      `json:"name"`
}

// ExportMap flattens re-export chains into (file, exported name) ->
// definition site lookups.
type ExportMap struct {
	bindings map[exportKey]Definition
	// unresolvedImports lists relative module specifiers that matched no
	// known file; their presence demotes catalog confidence.
	unresolvedImports []string
}

type exportKey struct {
	file span.FileId
	name string
}

// Lookup resolves one exported name to its definition site.
func (m *ExportMap) Lookup(file span.FileId, name string) (Definition, bool) {
	def, ok := m.bindings[exportKey{file: file, name: name}]
	return def, ok
}

// UnresolvedImports lists relative imports that resolution could not map to
// a file in the project.
func (m *ExportMap) UnresolvedImports() []string {
	return m.unresolvedImports
}

// ResolveExports walks every file's export statements and flattens
// re-export and star chains. Cyclic re-exports terminate via the visited
// set and contribute no bindings beyond their first visit.
func ResolveExports(facts map[span.FileId]*tsfacts.FileFacts) *ExportMap {
	r := &exportResolver{
		facts:    facts,
		bindings: make(map[exportKey]Definition),
		seen:     make(map[string]bool),
	}
	for file := range facts {
		r.resolveFile(file, make(map[span.FileId]bool))
	}
	return &ExportMap{bindings: r.bindings, unresolvedImports: r.unresolved}
}

type exportResolver struct {
	facts      map[span.FileId]*tsfacts.FileFacts
	bindings   map[exportKey]Definition
	seen       map[string]bool
	unresolved []string
}

// resolveFile computes the full export surface of one file, following
// chains. visited guards the star-expansion recursion against cycles.
func (r *exportResolver) resolveFile(file span.FileId, visited map[span.FileId]bool) map[string]Definition {
	if visited[file] {
		return nil
	}
	visited[file] = true

	ff, ok := r.facts[file]
	if !ok {
		return nil
	}
	surface := make(map[string]Definition)

	for _, exp := range ff.Exports {
		switch exp.Kind {
		case tsfacts.ExportNamed:
			name := exp.Name
			if exp.Alias != "" {
				name = exp.Alias
			}
			surface[name] = Definition{File: file, Name: exp.Name}
		case tsfacts.ExportDefault:
			surface["default"] = Definition{File: file, Name: exp.Name}
		case tsfacts.ExportReexport:
			target, ok := r.resolveModule(file, exp.From)
			if !ok {
				continue
			}
			inner := r.resolveFile(target, visited)
			if def, ok := inner[exp.Name]; ok {
				name := exp.Name
				if exp.Alias != "" {
					name = exp.Alias
				}
				surface[name] = def
			}
		case tsfacts.ExportStar:
			target, ok := r.resolveModule(file, exp.From)
			if !ok {
				continue
			}
			inner := r.resolveFile(target, visited)
			if exp.Alias != "" {
				// `export * as ns` re-exports one namespace binding, not
				// the individual names.
				surface[exp.Alias] = Definition{File: target, Name: "*"}
				continue
			}
			for name, def := range inner {
				if name == "default" {
					continue
				}
				if _, taken := surface[name]; !taken {
					surface[name] = def
				}
			}
		}
	}

	for name, def := range surface {
		r.bindings[exportKey{file: file, name: name}] = def
	}
	return surface
}

// resolveModule maps an import specifier to a project file. Bare package
// specifiers are external and resolve to nothing without being failures;
// relative specifiers that match no file are recorded as unresolved.
func (r *exportResolver) resolveModule(from span.FileId, spec string) (span.FileId, bool) {
	if !strings.HasPrefix(spec, ".") {
		return "", false
	}
	base := path.Join(path.Dir(string(from)), spec)
	candidates := []string{
		base,
		base + ".ts", base + ".mts", base + ".js", base + ".mjs",
		path.Join(base, "index.ts"), path.Join(base, "index.js"),
	}
	for _, c := range candidates {
		if _, ok := r.facts[span.FileId(c)]; ok {
			return span.FileId(c), true
		}
	}
	key := string(from) + " -> " + spec
	if !r.seen[key] {
		r.seen[key] = true
		r.unresolved = append(r.unresolved, key)
	}
	return "", false
}
