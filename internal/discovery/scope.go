package discovery

import (
	"path"
	"sort"
	"strings"

	"weft/internal/catalog"
	"weft/internal/core/span"
)

type ScopeKind string

const (
	ScopeGlobal ScopeKind = "global"
	ScopeFile   ScopeKind = "file"
)

// ScopeNode is one node of the resource-visibility tree. The global root
// lists resources registered for the whole project; each file child lists
// the resources declared in or imported into that file.
type ScopeNode struct {
	Kind      ScopeKind    `json:"kind"`
	File      span.FileId  `json:"file,omitempty"`
	Resources []string     `json:"resources,omitempty"`
	Children  []*ScopeNode `json:"children,omitempty"`
}

// Lookup reports whether a resource name is visible from the given file:
// its own file scope first, then the global scope.
func (s *ScopeNode) Lookup(file span.FileId, name string) bool {
	for _, child := range s.Children {
		if child.File != file {
			continue
		}
		for _, r := range child.Resources {
			if r == name {
				return true
			}
		}
	}
	for _, r := range s.Resources {
		if r == name {
			return true
		}
	}
	return false
}

// BuildScope derives the visibility tree from converged resources,
// registration decisions and template imports.
func BuildScope(resources []*catalog.ResourceDef, regs []Registration, templates []TemplateFact) *ScopeNode {
	root := &ScopeNode{Kind: ScopeGlobal}

	byClass := make(map[string]*catalog.ResourceDef)
	byFileBase := make(map[string][]*catalog.ResourceDef)
	for _, r := range resources {
		if cls, stubbed := r.DeclName.OrStub(""); !stubbed && cls != "" {
			byClass[cls] = r
		}
		if file, stubbed := r.DeclFile.OrStub(""); !stubbed && file != "" {
			base := trimExt(path.Base(file))
			byFileBase[base] = append(byFileBase[base], r)
		}
	}

	// Globally registered resources surface at the root. A registration
	// target that matches no discovered resource still stays listed: it may
	// be an external plugin the project can legitimately use.
	seen := make(map[string]bool)
	for _, reg := range regs {
		if !reg.Active {
			continue
		}
		name := reg.Target
		if r, ok := byClass[reg.Target]; ok {
			name, _ = r.Name.OrStub(reg.Target)
		}
		if !seen[name] {
			seen[name] = true
			root.Resources = append(root.Resources, name)
		}
	}
	sort.Strings(root.Resources)

	// Each declaring file sees its own resources without registration.
	fileScopes := make(map[span.FileId]*ScopeNode)
	scopeFor := func(file span.FileId) *ScopeNode {
		node, ok := fileScopes[file]
		if !ok {
			node = &ScopeNode{Kind: ScopeFile, File: file}
			fileScopes[file] = node
			root.Children = append(root.Children, node)
		}
		return node
	}
	for _, r := range resources {
		file, stubbed := r.DeclFile.OrStub("")
		if stubbed || file == "" {
			continue
		}
		name, stubbed := r.Name.OrStub("")
		if stubbed {
			continue
		}
		node := scopeFor(span.FileId(file))
		node.Resources = append(node.Resources, name)
	}

	// Template <import from="./x"> pulls x's resources into that
	// template's scope.
	for _, tf := range templates {
		if len(tf.Imports) == 0 {
			continue
		}
		node := scopeFor(tf.File)
		for _, spec := range tf.Imports {
			base := trimExt(path.Base(spec))
			for _, r := range byFileBase[base] {
				if name, stubbed := r.Name.OrStub(""); !stubbed {
					node.Resources = append(node.Resources, name)
				}
			}
		}
	}

	for _, node := range root.Children {
		sort.Strings(node.Resources)
	}
	sort.Slice(root.Children, func(i, j int) bool { return root.Children[i].File < root.Children[j].File })
	return root
}

func trimExt(base string) string {
	return strings.TrimSuffix(base, path.Ext(base))
}
