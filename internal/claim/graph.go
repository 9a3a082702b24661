// Package claim implements the incremental dependency/evaluation graph that
// both project discovery and template analysis run on. Nodes hold a "green"
// value (content-only, compared by identity for cutoff) and a "red" value
// (what consumers read). Staleness is pushed eagerly along dependent edges;
// re-evaluation is pulled lazily and stops propagating the moment a
// recomputed green is identical to the previous one.
//
// A Graph is owned by exactly one evaluation session. Pull is ordinary
// call-stack recursion and cycle detection relies on that single stack, so
// two pulls must never run concurrently against the same instance.
package claim

import (
	"fmt"

	"weft/internal/core/diag"
	"weft/internal/core/errors"
	"weft/internal/shared/observability"
)

type NodeId string

type Freshness int

const (
	Unevaluated Freshness = iota
	Stale
	Fresh
)

func (f Freshness) String() string {
	switch f {
	case Unevaluated:
		return "unevaluated"
	case Stale:
		return "stale"
	case Fresh:
		return "fresh"
	}
	return fmt.Sprintf("freshness(%d)", int(f))
}

type EdgeKind int

const (
	// EdgeData: failure of the dependency becomes a gap in the dependent.
	EdgeData EdgeKind = iota
	// EdgeCompleteness: failure demotes confidence, not the value itself.
	EdgeCompleteness
)

type Edge struct {
	From NodeId
	To   NodeId
	Kind EdgeKind
}

// unverified marks a dependency observation that must never satisfy shallow
// verification (explicit edges, cyclic or failed pulls).
var unverified = new(struct{})

type depEdge struct {
	to   NodeId
	kind EdgeKind
	// seen is the dependency's green as observed by the last evaluation of
	// the owning node. Shallow verification compares against it.
	seen interface{}
}

type node struct {
	id   NodeId
	kind string
	key  string

	freshness     Freshness
	green         interface{}
	red           interface{}
	everEvaluated bool

	// stackPos is the node's position on the evaluation stack, -1 when the
	// node is not currently evaluating.
	stackPos int

	fref *ForwardRef
}

// Node is the read-only projection handed out by observation APIs.
type Node struct {
	Id        NodeId
	Kind      string
	Key       string
	Freshness Freshness
	Green     interface{}
	Red       interface{}
}

type PullResult struct {
	Value      interface{}
	Green      interface{}
	IsCycle    bool
	ForwardRef *ForwardRef
}

// Callback evaluates one node. It must encode recoverable dependency
// failures as gap-carrying values rather than errors; a returned error
// propagates to the caller of Pull untouched.
type Callback func(ctx *EvaluationContext) (green, red interface{}, err error)

// ConvergeResult reports the outcome of re-running a cyclic node group.
type ConvergeResult struct {
	Converged  bool
	Iterations int
}

type Graph struct {
	nodes     map[NodeId]*node
	callbacks map[string]Callback

	// edgesFrom[n] lists n's dependencies; edgesTo[n] lists n's dependents.
	edgesFrom map[NodeId][]depEdge
	edgesTo   map[NodeId][]Edge

	stack []NodeId

	// cycle bookkeeping for the pull currently in flight
	cycleMembers map[NodeId]bool
	cycleOrder   []NodeId
	cycleHeadPos int
	converging   map[NodeId]bool

	convergeBudget int
	staleHandler   func(NodeId)
	tracer         *diag.Tracer
}

const DefaultConvergeBudget = 8

func NewGraph(convergeBudget int, tracer *diag.Tracer) *Graph {
	if convergeBudget <= 0 {
		convergeBudget = DefaultConvergeBudget
	}
	return &Graph{
		nodes:          make(map[NodeId]*node),
		callbacks:      make(map[string]Callback),
		edgesFrom:      make(map[NodeId][]depEdge),
		edgesTo:        make(map[NodeId][]Edge),
		cycleMembers:   make(map[NodeId]bool),
		converging:     make(map[NodeId]bool),
		cycleHeadPos:   -1,
		convergeBudget: convergeBudget,
		tracer:         tracer,
	}
}

// RegisterCallback installs the single evaluation function for a node kind.
// Kinds without a callback are input nodes set via SetInputValue.
func (g *Graph) RegisterCallback(kind string, cb Callback) {
	g.callbacks[kind] = cb
}

// OnStale registers a handler notified of every newly-stale node. The graph
// decides what must be recomputed; the handler decides when to pull.
func (g *Graph) OnStale(handler func(NodeId)) {
	g.staleHandler = handler
}

func nodeIdFor(kind, key string) NodeId {
	return NodeId(kind + "/" + key)
}

// CreateNode is idempotent: the same (kind, key) always returns the same id.
func (g *Graph) CreateNode(kind, key string) NodeId {
	id := nodeIdFor(kind, key)
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &node{id: id, kind: kind, key: key, stackPos: -1}
		observability.GraphNodes.Set(float64(len(g.nodes)))
	}
	return id
}

// FindNode returns the id for (kind, key) if the node exists.
func (g *Graph) FindNode(kind, key string) (NodeId, bool) {
	id := nodeIdFor(kind, key)
	_, ok := g.nodes[id]
	return id, ok
}

// AddEdge records a dependency explicitly. Normal edges are recorded
// implicitly when a callback pulls; the explicit form exists for
// bootstrapping root inputs.
func (g *Graph) AddEdge(from, to NodeId, kind EdgeKind) error {
	if _, ok := g.nodes[from]; !ok {
		return errors.Newf(errors.CodeNotFound, "unknown node %s", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return errors.Newf(errors.CodeNotFound, "unknown node %s", to)
	}
	g.recordEdge(from, to, kind, unverified)
	return nil
}

func (g *Graph) recordEdge(from, to NodeId, kind EdgeKind, seen interface{}) {
	edges := g.edgesFrom[from]
	for i, e := range edges {
		if e.to == to && e.kind == kind {
			edges[i].seen = seen
			return
		}
	}
	g.edgesFrom[from] = append(edges, depEdge{to: to, kind: kind, seen: seen})
	g.edgesTo[to] = append(g.edgesTo[to], Edge{From: from, To: to, Kind: kind})
	observability.GraphEdges.Set(float64(g.EdgeCount()))
}

func (g *Graph) dropOutgoingEdges(from NodeId) {
	for _, e := range g.edgesFrom[from] {
		deps := g.edgesTo[e.to]
		for i, d := range deps {
			if d.From == from && d.Kind == e.kind {
				g.edgesTo[e.to] = append(deps[:i], deps[i+1:]...)
				break
			}
		}
	}
	delete(g.edgesFrom, from)
}

// MarkStale sets the node stale and pushes staleness to every dependent
// reachable over the current edge set. Idempotent under repeated marking and
// terminates on cycles: already-stale nodes stop the walk.
func (g *Graph) MarkStale(id NodeId) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "unknown node %s", id)
	}
	g.markStale(n)
	return nil
}

func (g *Graph) markStale(n *node) {
	if n.freshness == Stale {
		return
	}
	n.freshness = Stale
	observability.GraphStaleMarksTotal.Inc()
	g.tracer.Tracef(diag.ChannelGraph, "stale %s", n.id)
	if g.staleHandler != nil {
		g.staleHandler(n.id)
	}
	for _, e := range g.edgesTo[n.id] {
		if dep, ok := g.nodes[e.From]; ok {
			g.markStale(dep)
		}
	}
}

// Invalidate marks a node stale and discards its memoized evaluation, so
// the next pull must re-run its callback and adopt the fresh result even
// when every dependency green is unchanged. MarkStale is the cooperative
// form that shallow verification may still satisfy; this is the forced one
// for explicit cache invalidation, where the callback's environment changed
// behind the graph's back.
func (g *Graph) Invalidate(id NodeId) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "unknown node %s", id)
	}
	n.everEvaluated = false
	g.markStale(n)
	return nil
}

// SetInputValue sets a leaf node's value directly. An identical green (by
// the interned-identity rule) is a no-op: nothing propagates. A different
// green installs the new value and marks dependents stale.
func (g *Graph) SetInputValue(id NodeId, green, red interface{}) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "unknown node %s", id)
	}
	if n.everEvaluated && Identical(green, n.green) {
		n.freshness = Fresh
		return nil
	}
	n.green = green
	n.red = red
	n.everEvaluated = true
	n.freshness = Fresh
	for _, e := range g.edgesTo[n.id] {
		if dep, ok := g.nodes[e.From]; ok {
			g.markStale(dep)
		}
	}
	return nil
}

// Pull returns the node's current value, recomputing it (and, recursively,
// its stale dependencies) first when needed.
func (g *Graph) Pull(id NodeId) (PullResult, error) {
	n, ok := g.nodes[id]
	if !ok {
		return PullResult{}, errors.Newf(errors.CodeNotFound, "unknown node %s", id)
	}

	if g.converging[id] {
		// Inside a convergence round, group members read each other's
		// previous-round values.
		observability.GraphPullsTotal.WithLabelValues("cycle").Inc()
		return PullResult{Value: n.red, Green: n.green, IsCycle: true, ForwardRef: g.forwardRefFor(n)}, nil
	}

	if n.stackPos >= 0 {
		// Cycle: the node is mid-evaluation further up this call stack.
		g.noteCycle(n)
		observability.GraphPullsTotal.WithLabelValues("cycle").Inc()
		return PullResult{Value: n.red, Green: n.green, IsCycle: true, ForwardRef: g.forwardRefFor(n)}, nil
	}

	if n.freshness == Fresh {
		observability.GraphPullsTotal.WithLabelValues("fresh").Inc()
		return PullResult{Value: n.red, Green: n.green}, nil
	}

	// Shallow verification: a stale node whose freshened dependencies all
	// report greens identical to what its last run observed can be marked
	// fresh without re-running its callback. This is what stops a change
	// from cascading past the first node whose content stops changing.
	if n.freshness == Stale && n.everEvaluated && g.verifyDeps(n) {
		n.freshness = Fresh
		observability.GraphPullsTotal.WithLabelValues("cutoff").Inc()
		g.tracer.Tracef(diag.ChannelGraph, "verified %s without recompute", n.id)
		return PullResult{Value: n.red, Green: n.green}, nil
	}

	return g.evaluate(n)
}

func (g *Graph) verifyDeps(n *node) bool {
	edges := g.edgesFrom[n.id]
	if len(edges) == 0 {
		return false
	}
	for _, e := range edges {
		if e.seen == unverified {
			return false
		}
		res, err := g.Pull(e.to)
		if err != nil || res.IsCycle {
			return false
		}
		if !Identical(res.Green, e.seen) {
			return false
		}
	}
	return true
}

func (g *Graph) forwardRefFor(n *node) *ForwardRef {
	if n.fref == nil || n.fref.Resolved() {
		n.fref = newForwardRef(n.everEvaluated, n.green, n.red)
	} else {
		// The ref must always hand out the previous round's value, not the
		// snapshot taken when the cycle was first entered.
		n.fref.refresh(n.everEvaluated, n.green, n.red)
	}
	return n.fref
}

func (g *Graph) noteCycle(n *node) {
	if !g.cycleMembers[n.id] {
		g.cycleMembers[n.id] = true
		g.cycleOrder = append(g.cycleOrder, n.id)
	}
	for i := n.stackPos; i < len(g.stack); i++ {
		id := g.stack[i]
		if !g.cycleMembers[id] {
			g.cycleMembers[id] = true
			g.cycleOrder = append(g.cycleOrder, id)
		}
	}
	if g.cycleHeadPos < 0 || n.stackPos < g.cycleHeadPos {
		g.cycleHeadPos = n.stackPos
	}
}

func (g *Graph) evaluate(n *node) (PullResult, error) {
	cb := g.callbacks[n.kind]
	if cb == nil {
		if !n.everEvaluated {
			return PullResult{}, errors.Newf(errors.CodeValidationError,
				"input node %s has no value and kind %q has no callback", n.id, n.kind)
		}
		// A stale input keeps its last value until SetInputValue replaces it.
		n.freshness = Fresh
		return PullResult{Value: n.red, Green: n.green}, nil
	}

	n.stackPos = len(g.stack)
	g.stack = append(g.stack, n.id)
	g.dropOutgoingEdges(n.id)

	green, red, err := cb(&EvaluationContext{graph: g, self: n.id})

	g.stack = g.stack[:len(g.stack)-1]
	myPos := n.stackPos
	n.stackPos = -1

	if err != nil {
		g.resetCycleIfHead(myPos)
		return PullResult{}, err
	}

	if n.everEvaluated && Identical(green, n.green) {
		observability.GraphPullsTotal.WithLabelValues("cutoff").Inc()
		g.tracer.Tracef(diag.ChannelGraph, "cutoff %s", n.id)
	} else {
		n.green = green
		n.red = red
		n.everEvaluated = true
		observability.GraphPullsTotal.WithLabelValues("recomputed").Inc()
	}
	n.freshness = Fresh

	// If this node is where the cycle re-entered, run the group to a fixed
	// point before handing the value out.
	if g.cycleHeadPos == myPos && len(g.cycleOrder) > 0 {
		participants := g.cycleOrder
		g.resetCycle()
		res, cerr := g.Converge(participants, g.convergeBudget)
		if cerr != nil {
			return PullResult{}, cerr
		}
		if !res.Converged {
			return PullResult{Value: n.red, Green: n.green}, errors.Newf(errors.CodeCycleUnconverged,
				"cycle through %s did not converge within %d iterations", n.id, g.convergeBudget)
		}
	}

	return PullResult{Value: n.red, Green: n.green}, nil
}

func (g *Graph) resetCycleIfHead(pos int) {
	if g.cycleHeadPos == pos {
		g.resetCycle()
	}
}

func (g *Graph) resetCycle() {
	g.cycleMembers = make(map[NodeId]bool)
	g.cycleOrder = nil
	g.cycleHeadPos = -1
}

// Converge re-runs a set of mutually cyclic nodes until every green value
// stabilizes or the iteration budget runs out. Exceeding the budget is
// reported, never silently treated as converged.
func (g *Graph) Converge(participants []NodeId, budget int) (ConvergeResult, error) {
	if budget <= 0 {
		budget = g.convergeBudget
	}

	members := make([]*node, 0, len(participants))
	for _, id := range participants {
		n, ok := g.nodes[id]
		if !ok {
			return ConvergeResult{}, errors.Newf(errors.CodeNotFound, "unknown node %s", id)
		}
		members = append(members, n)
	}

	for _, n := range members {
		g.converging[n.id] = true
	}
	defer func() {
		for _, n := range members {
			delete(g.converging, n.id)
		}
	}()

	for iter := 1; iter <= budget; iter++ {
		changed := false
		for _, n := range members {
			cb := g.callbacks[n.kind]
			if cb == nil {
				continue // inputs cannot participate in re-evaluation
			}
			g.dropOutgoingEdges(n.id)
			green, red, err := cb(&EvaluationContext{graph: g, self: n.id})
			if err != nil {
				return ConvergeResult{Iterations: iter}, err
			}
			if !n.everEvaluated || !Identical(green, n.green) {
				n.green = green
				n.red = red
				n.everEvaluated = true
				changed = true
			}
			n.freshness = Fresh
		}
		if !changed {
			for _, n := range members {
				if n.fref != nil && !n.fref.Resolved() {
					n.fref.resolve(n.green, n.red)
				}
			}
			observability.GraphConvergeIterations.Observe(float64(iter))
			g.tracer.Tracef(diag.ChannelGraph, "converged %d nodes in %d iterations", len(members), iter)
			return ConvergeResult{Converged: true, Iterations: iter}, nil
		}
	}

	observability.GraphConvergeIterations.Observe(float64(budget))
	return ConvergeResult{Converged: false, Iterations: budget}, nil
}

// Observation APIs. These exist for tests and telemetry; invariant checks
// (stale counts after propagation, edge counts after re-evaluation) lean on
// them to make engine bugs loud.

func (g *Graph) GetNode(id NodeId) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return Node{Id: n.id, Kind: n.kind, Key: n.key, Freshness: n.freshness, Green: n.green, Red: n.red}, true
}

func (g *Graph) GetEdgesFrom(id NodeId) []Edge {
	edges := g.edgesFrom[id]
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = Edge{From: id, To: e.to, Kind: e.kind}
	}
	return out
}

func (g *Graph) GetEdgesTo(id NodeId) []Edge {
	out := make([]Edge, len(g.edgesTo[id]))
	copy(out, g.edgesTo[id])
	return out
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	total := 0
	for _, edges := range g.edgesFrom {
		total += len(edges)
	}
	return total
}

func (g *Graph) StaleCount() int {
	total := 0
	for _, n := range g.nodes {
		if n.freshness == Stale {
			total++
		}
	}
	return total
}

// EvaluationContext is what a callback sees of the graph: pulls record
// dependency edges from the evaluating node as a side effect.
type EvaluationContext struct {
	graph *Graph
	self  NodeId
}

func (ctx *EvaluationContext) Self() NodeId {
	return ctx.self
}

// Pull freshens and reads a dependency, recording a data edge.
func (ctx *EvaluationContext) Pull(id NodeId) (PullResult, error) {
	return ctx.pull(id, EdgeData)
}

// PullCompleteness reads a dependency whose failure should demote
// confidence rather than invalidate the dependent's value.
func (ctx *EvaluationContext) PullCompleteness(id NodeId) (PullResult, error) {
	return ctx.pull(id, EdgeCompleteness)
}

func (ctx *EvaluationContext) pull(id NodeId, kind EdgeKind) (PullResult, error) {
	res, err := ctx.graph.Pull(id)
	seen := res.Green
	if err != nil || res.IsCycle {
		seen = unverified
	}
	ctx.graph.recordEdge(ctx.self, id, kind, seen)
	return res, err
}

func (ctx *EvaluationContext) FindNode(kind, key string) (NodeId, bool) {
	return ctx.graph.FindNode(kind, key)
}

func (ctx *EvaluationContext) CreateNode(kind, key string) NodeId {
	return ctx.graph.CreateNode(kind, key)
}
