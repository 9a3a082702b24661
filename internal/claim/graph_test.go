package claim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestGraph() *Graph {
	return NewGraph(DefaultConvergeBudget, nil)
}

func TestCreateNodeIdempotent(t *testing.T) {
	g := newTestGraph()
	a := g.CreateNode("file-text", "src/app.ts")
	b := g.CreateNode("file-text", "src/app.ts")
	if a != b {
		t.Fatalf("expected same id, got %s and %s", a, b)
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestPullInputWithoutValueFails(t *testing.T) {
	g := newTestGraph()
	id := g.CreateNode("file-text", "a")
	_, err := g.Pull(id)
	require.Error(t, err)
}

func TestPullChainAndEdgeRecording(t *testing.T) {
	g := newTestGraph()
	input := g.CreateNode("file-text", "a")
	require.NoError(t, g.SetInputValue(input, "v1", "v1"))

	calls := 0
	g.RegisterCallback("upper", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		calls++
		res, err := ctx.Pull(input)
		if err != nil {
			return nil, nil, err
		}
		v := res.Value.(string) + "!"
		return v, v, nil
	})
	derived := g.CreateNode("upper", "a")

	res, err := g.Pull(derived)
	require.NoError(t, err)
	require.Equal(t, "v1!", res.Value)
	require.Equal(t, 1, calls)

	// Pull again: fresh fast path, no recompute.
	_, err = g.Pull(derived)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// The pull recorded the dependency edge.
	edges := g.GetEdgesFrom(derived)
	require.Len(t, edges, 1)
	require.Equal(t, input, edges[0].To)
	require.Equal(t, EdgeData, edges[0].Kind)
}

func TestSetInputValueIdenticalGreenDoesNotPropagate(t *testing.T) {
	g := newTestGraph()
	input := g.CreateNode("file-text", "a")
	green := "same"
	require.NoError(t, g.SetInputValue(input, green, "red1"))

	calls := 0
	g.RegisterCallback("derived", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		calls++
		res, err := ctx.Pull(input)
		if err != nil {
			return nil, nil, err
		}
		return res.Green, res.Value, nil
	})
	d := g.CreateNode("derived", "a")
	_, err := g.Pull(d)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// An edit that changes nothing (identical green) must not mark the
	// dependent stale nor re-run its callback.
	require.NoError(t, g.SetInputValue(input, green, "red1"))
	n, _ := g.GetNode(d)
	require.Equal(t, Fresh, n.Freshness)
	_, err = g.Pull(d)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestStalenessPropagationCompleteness(t *testing.T) {
	// input <- mid <- top, plus side <- mid: every node reachable from the
	// changed input over dependent edges is stale before any pull.
	g := newTestGraph()
	input := g.CreateNode("file-text", "a")
	require.NoError(t, g.SetInputValue(input, "v1", "v1"))

	pull := func(target NodeId) Callback {
		return func(ctx *EvaluationContext) (interface{}, interface{}, error) {
			res, err := ctx.Pull(target)
			if err != nil {
				return nil, nil, err
			}
			v := fmt.Sprintf("%v+", res.Value)
			return v, v, nil
		}
	}

	mid := g.CreateNode("mid", "a")
	g.RegisterCallback("mid", pull(input))
	top := g.CreateNode("top", "a")
	g.RegisterCallback("top", pull(mid))
	side := g.CreateNode("side", "a")
	g.RegisterCallback("side", pull(mid))

	for _, id := range []NodeId{top, side} {
		_, err := g.Pull(id)
		require.NoError(t, err)
	}
	require.Equal(t, 0, g.StaleCount())

	var notified []NodeId
	g.OnStale(func(id NodeId) { notified = append(notified, id) })

	require.NoError(t, g.SetInputValue(input, "v2", "v2"))

	for _, id := range []NodeId{mid, top, side} {
		n, ok := g.GetNode(id)
		require.True(t, ok)
		require.Equal(t, Stale, n.Freshness, "node %s should be stale before any pull", id)
	}
	require.Len(t, notified, 3)
}

func TestMarkStaleIdempotentOnCycles(t *testing.T) {
	g := newTestGraph()
	a := g.CreateNode("k", "a")
	b := g.CreateNode("k", "b")
	require.NoError(t, g.AddEdge(a, b, EdgeData))
	require.NoError(t, g.AddEdge(b, a, EdgeData))

	// Must terminate despite the mutual edge.
	require.NoError(t, g.MarkStale(a))
	require.NoError(t, g.MarkStale(a))
	require.Equal(t, 2, g.StaleCount())
}

func TestInvalidateForcesRecompute(t *testing.T) {
	// MarkStale alone is satisfied by shallow verification when the
	// dependency greens are unchanged; Invalidate must re-run the callback
	// and adopt its result even though the green stays identical.
	g := newTestGraph()
	input := g.CreateNode("file-text", "a")
	require.NoError(t, g.SetInputValue(input, "v1", "v1"))

	calls := 0
	g.RegisterCallback("derived", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		calls++
		res, err := ctx.Pull(input)
		if err != nil {
			return nil, nil, err
		}
		return res.Green, fmt.Sprintf("%v#%d", res.Value, calls), nil
	})
	d := g.CreateNode("derived", "a")

	_, err := g.Pull(d)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, g.MarkStale(d))
	_, err = g.Pull(d)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "unchanged dependency greens verify a merely stale node")

	require.NoError(t, g.Invalidate(d))
	res, err := g.Pull(d)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, "v1#2", res.Value, "the recomputed red must be adopted despite the identical green")
}

func TestCutoffStopsPropagationMidChain(t *testing.T) {
	// input -> normalize -> consume. The normalize green collapses distinct
	// inputs to the same interned value, so consume must not recompute even
	// though normalize did.
	g := newTestGraph()
	interner := NewInterner()

	input := g.CreateNode("file-text", "a")
	require.NoError(t, g.SetInputValue(input, "v1 ", "v1 "))

	normCalls, consumeCalls := 0, 0
	g.RegisterCallback("normalize", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		normCalls++
		res, err := ctx.Pull(input)
		if err != nil {
			return nil, nil, err
		}
		trimmed := interner.Intern("trim:"+res.Value.(string)[:2], func() interface{} { return res.Value.(string)[:2] })
		return trimmed, trimmed, nil
	})
	norm := g.CreateNode("normalize", "a")

	g.RegisterCallback("consume", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		consumeCalls++
		res, err := ctx.Pull(norm)
		if err != nil {
			return nil, nil, err
		}
		return res.Green, res.Value, nil
	})
	consume := g.CreateNode("consume", "a")

	_, err := g.Pull(consume)
	require.NoError(t, err)
	require.Equal(t, 1, normCalls)
	require.Equal(t, 1, consumeCalls)

	// Whitespace-only edit: normalize recomputes, green is identical, the
	// chain cuts off and consume's cached red is served without its
	// callback running.
	require.NoError(t, g.SetInputValue(input, "v1  ", "v1  "))
	res, err := g.Pull(consume)
	require.NoError(t, err)
	require.Equal(t, "v1", res.Value)
	require.Equal(t, 2, normCalls)
	require.Equal(t, 1, consumeCalls)
}

func TestTwoNodeCycleConverges(t *testing.T) {
	// a = min(b_prev+1, 5); b = min(a_prev+1, 5). Pure functions of each
	// other's previous value with fixed point 5/5.
	g := newTestGraph()

	var aId, bId NodeId
	step := func(other *NodeId) Callback {
		return func(ctx *EvaluationContext) (interface{}, interface{}, error) {
			res, err := ctx.Pull(*other)
			if err != nil {
				return nil, nil, err
			}
			prev := 0
			if res.IsCycle {
				if _, red, ok := res.ForwardRef.Provisional(); ok {
					prev = red.(int)
				}
			} else if res.Value != nil {
				prev = res.Value.(int)
			}
			next := prev + 1
			if next > 5 {
				next = 5
			}
			return next, next, nil
		}
	}
	g.RegisterCallback("a", step(&bId))
	g.RegisterCallback("b", step(&aId))
	aId = g.CreateNode("a", "x")
	bId = g.CreateNode("b", "x")

	res, err := g.Pull(aId)
	require.NoError(t, err)
	require.Equal(t, 5, res.Value)

	bRes, err := g.Pull(bId)
	require.NoError(t, err)
	require.Equal(t, 5, bRes.Value)

	// Idempotence: pulling again after convergence changes nothing.
	again, err := g.Pull(aId)
	require.NoError(t, err)
	require.Equal(t, 5, again.Value)
}

func TestConvergeBudgetExceededIsReported(t *testing.T) {
	// Unbounded counters feeding each other never reach a fixed point. The
	// budget must run out and be reported, never silently accepted as
	// converged.
	g := NewGraph(4, nil)

	var aId, bId NodeId
	grow := func(other *NodeId) Callback {
		return func(ctx *EvaluationContext) (interface{}, interface{}, error) {
			res, err := ctx.Pull(*other)
			if err != nil {
				return nil, nil, err
			}
			prev := 0
			if res.IsCycle {
				if _, red, ok := res.ForwardRef.Provisional(); ok {
					prev = red.(int)
				}
			} else if res.Value != nil {
				prev = res.Value.(int)
			}
			return prev + 1, prev + 1, nil
		}
	}
	g.RegisterCallback("a", grow(&bId))
	g.RegisterCallback("b", grow(&aId))
	aId = g.CreateNode("a", "x")
	bId = g.CreateNode("b", "x")

	_, err := g.Pull(aId)
	require.Error(t, err)

	res, err := g.Converge([]NodeId{aId, bId}, 4)
	require.NoError(t, err)
	require.False(t, res.Converged)
	require.Equal(t, 4, res.Iterations)
}

func TestForwardRefReadBeforeResolvePanics(t *testing.T) {
	f := newForwardRef(false, nil, nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on premature Final read")
		}
	}()
	f.Final()
}

func TestCallbackErrorPropagates(t *testing.T) {
	g := newTestGraph()
	boom := fmt.Errorf("boom")
	g.RegisterCallback("bad", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		return nil, nil, boom
	})
	id := g.CreateNode("bad", "x")
	_, err := g.Pull(id)
	require.ErrorIs(t, err, boom)

	// The node stays re-evaluatable after the failure.
	g.RegisterCallback("bad", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		return "ok", "ok", nil
	})
	res, err := g.Pull(id)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Value)
}

func TestEdgesRecordedPerEvaluationRun(t *testing.T) {
	// Dependencies are dynamic: an evaluation that stops pulling a node
	// drops the old edge.
	g := newTestGraph()
	x := g.CreateNode("file-text", "x")
	y := g.CreateNode("file-text", "y")
	require.NoError(t, g.SetInputValue(x, "x1", "x1"))
	require.NoError(t, g.SetInputValue(y, "y1", "y1"))

	useX := true
	g.RegisterCallback("pick", func(ctx *EvaluationContext) (interface{}, interface{}, error) {
		target := y
		if useX {
			target = x
		}
		res, err := ctx.Pull(target)
		if err != nil {
			return nil, nil, err
		}
		return res.Value, res.Value, nil
	})
	pick := g.CreateNode("pick", "p")

	_, err := g.Pull(pick)
	require.NoError(t, err)
	require.Equal(t, []Edge{{From: pick, To: x, Kind: EdgeData}}, g.GetEdgesFrom(pick))

	// A real content change forces re-evaluation, which re-records the
	// dependency set from scratch.
	useX = false
	require.NoError(t, g.SetInputValue(x, "x2", "x2"))
	_, err = g.Pull(pick)
	require.NoError(t, err)
	require.Equal(t, []Edge{{From: pick, To: y, Kind: EdgeData}}, g.GetEdgesFrom(pick))

	// Changing x no longer reaches pick.
	stale := g.StaleCount()
	require.NoError(t, g.SetInputValue(x, "x3", "x3"))
	require.Equal(t, stale, g.StaleCount())
}

func TestIdentical(t *testing.T) {
	type big struct{ xs []int }
	p1 := &big{xs: []int{1}}
	p2 := &big{xs: []int{1}}

	if !Identical(p1, p1) {
		t.Error("same pointer must be identical")
	}
	if Identical(p1, p2) {
		t.Error("distinct pointers are not identical even when equal")
	}
	if !Identical("a", "a") {
		t.Error("equal strings are identical")
	}
	if Identical(nil, "a") || !Identical(nil, nil) {
		t.Error("nil handling")
	}
}
