package discovery

import (
	"fmt"
	"sort"

	"weft/internal/catalog"
	"weft/internal/core/span"
)

// Snapshot is the stable, sorted, hash-identified projection of one
// discovery run. External tooling diffs snapshots across runs, so the field
// shapes here are a compatibility surface: extend, don't rearrange.
type Snapshot struct {
	Hash       string             `json:"hash"`
	Confidence string             `json:"confidence"`
	Resources  []ResourceSnapshot `json:"resources"`
	Gaps       []Gap              `json:"gaps,omitempty"`
}

type ResourceSnapshot struct {
	Id            span.SymbolId      `json:"id"`
	Kind          string             `json:"kind"`
	Name          string             `json:"name"`
	Aliases       []string           `json:"aliases,omitempty"`
	DeclFile      string             `json:"declFile,omitempty"`
	DeclName      string             `json:"declName,omitempty"`
	Bindables     []BindableSnapshot `json:"bindables,omitempty"`
	Containerless bool               `json:"containerless,omitempty"`
	ShadowMode    string             `json:"shadowMode,omitempty"`
	HasSlots      bool               `json:"hasSlots,omitempty"`
}

type BindableSnapshot struct {
	Property  string `json:"property"`
	Attribute string `json:"attribute,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Primary   bool   `json:"primary,omitempty"`
	TypeName  string `json:"typeName,omitempty"`
}

// BuildSnapshot projects the converged state. Resources arrive sorted from
// the assembler; gaps are re-sorted here so the hash never depends on stage
// iteration order.
func BuildSnapshot(resources []*catalog.ResourceDef, gaps []Gap, confidence catalog.Confidence) *Snapshot {
	snap := &Snapshot{Confidence: confidence.String()}

	for _, r := range resources {
		rs := ResourceSnapshot{
			Id:   r.Id,
			Kind: string(r.Kind),
			Name: r.Name.Value,
		}
		if v, stubbed := r.Aliases.OrStub(nil); !stubbed {
			rs.Aliases = append([]string(nil), v...)
			sort.Strings(rs.Aliases)
		}
		rs.DeclFile, _ = r.DeclFile.OrStub("")
		rs.DeclName, _ = r.DeclName.OrStub("")
		rs.Containerless, _ = r.Containerless.OrStub(false)
		rs.ShadowMode, _ = r.ShadowMode.OrStub("")
		rs.HasSlots, _ = r.HasSlots.OrStub(false)
		for _, b := range r.SortedBindables() {
			bs := BindableSnapshot{Property: b.Property}
			bs.Attribute, _ = b.Attribute.OrStub("")
			bs.Mode, _ = b.Mode.OrStub("")
			bs.Primary, _ = b.Primary.OrStub(false)
			bs.TypeName, _ = b.TypeName.OrStub("")
			rs.Bindables = append(rs.Bindables, bs)
		}
		snap.Resources = append(snap.Resources, rs)
	}

	snap.Gaps = append([]Gap(nil), gaps...)
	sort.Slice(snap.Gaps, func(i, j int) bool {
		a, b := snap.Gaps[i], snap.Gaps[j]
		if a.Span.File != b.Span.File {
			return a.Span.File < b.Span.File
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.Pattern < b.Pattern
	})

	snap.Hash = snapshotHash(snap)
	return snap
}

func snapshotHash(s *Snapshot) string {
	h := span.NewHasher().Field("confidence", s.Confidence)
	for _, r := range s.Resources {
		h.Field("resource", fmt.Sprintf("%s|%s|%s|%s|%s|%t|%s|%t",
			r.Id, r.Kind, r.Name, r.DeclFile, r.DeclName, r.Containerless, r.ShadowMode, r.HasSlots))
		h.Sorted("aliases", r.Aliases)
		for _, b := range r.Bindables {
			h.Field("bindable", fmt.Sprintf("%s|%s|%s|%t|%s", b.Property, b.Attribute, b.Mode, b.Primary, b.TypeName))
		}
	}
	for _, g := range s.Gaps {
		h.Field("gap", fmt.Sprintf("%s|%d|%s|%s", g.Pattern, g.Rank, g.Span, g.Detail))
	}
	return h.Sum()
}
