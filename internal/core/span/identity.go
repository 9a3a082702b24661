package span

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Identity hashing. Every stable id in the engine funnels through Hasher so
// the labeling scheme stays in one place: same logical identity, same id,
// across runs and machines.

type Hasher struct {
	h *xxhash.Digest
}

func NewHasher() *Hasher {
	return &Hasher{h: xxhash.New()}
}

// Field writes one labeled component. Labels keep adjacent fields from
// colliding ("ab"+"c" vs "a"+"bc").
func (h *Hasher) Field(label, value string) *Hasher {
	fmt.Fprintf(h.h, "%s:%s\n", label, value)
	return h
}

func (h *Hasher) Int(label string, value int) *Hasher {
	fmt.Fprintf(h.h, "%s:%d\n", label, value)
	return h
}

// Sorted writes a list-valued component sorted for determinism.
func (h *Hasher) Sorted(label string, values []string) *Hasher {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	fmt.Fprintf(h.h, "%s:%s\n", label, strings.Join(sorted, ","))
	return h
}

func (h *Hasher) Sum() string {
	return fmt.Sprintf("%016x", h.h.Sum64())
}

// ContentHash hashes raw file content. Used as the facts-cache key and as
// the expression table's file hash key.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

func FileIdFor(relPath string) FileId {
	return FileId(relPath)
}

// ExprIdFor derives the stable id for one expression occurrence.
func ExprIdFor(fileHashKey string, start, end int, kind string, code string) ExprId {
	sum := NewHasher().
		Field("file", fileHashKey).
		Int("start", start).
		Int("end", end).
		Field("kind", kind).
		Field("code", code).
		Sum()
	return ExprId("expr-" + sum)
}

// SymbolIdFor derives the stable id for a discovered resource.
func SymbolIdFor(name, kind, origin string) SymbolId {
	sum := NewHasher().
		Field("name", name).
		Field("kind", kind).
		Field("origin", origin).
		Sum()
	return SymbolId("sym-" + sum)
}

// NodeIdFor derives a template node id from its tree path, e.g. [0 2 1]
// for the second child of the third child of the root.
func NodeIdFor(path []int) NodeId {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return NodeId("n" + strings.Join(parts, "."))
}

// FrameIdFor derives a frame id from the frame's position in the frame tree.
func FrameIdFor(parent FrameId, ordinal int) FrameId {
	if parent == "" {
		return FrameId("f0")
	}
	return FrameId(fmt.Sprintf("%s.%d", parent, ordinal))
}
