package claim

import "fmt"

// ForwardRef is the placeholder handed back when a pull re-enters a node
// that is already mid-evaluation. It is a two-state value: unresolved while
// the cyclic group is still iterating, resolved exactly once when the group
// converges. Only the convergence loop may ever observe it unresolved;
// reading the final value earlier is an engine bug and fails loudly.
type ForwardRef struct {
	resolved bool
	hasPrev  bool
	green    interface{}
	red      interface{}
}

func newForwardRef(hasPrev bool, green, red interface{}) *ForwardRef {
	return &ForwardRef{hasPrev: hasPrev, green: green, red: red}
}

func (f *ForwardRef) Resolved() bool {
	return f.resolved
}

// Provisional returns the previous iteration's value. ok is false the first
// time the cycle is seen, when no previous value exists yet; callers must
// treat the value as provisional either way.
func (f *ForwardRef) Provisional() (green, red interface{}, ok bool) {
	return f.green, f.red, f.hasPrev
}

// Final returns the converged value. Calling it before the ref resolves is
// a hard error.
func (f *ForwardRef) Final() (green, red interface{}) {
	if !f.resolved {
		panic(fmt.Sprintf("claim: forward ref read before resolution (provisional=%v)", f.hasPrev))
	}
	return f.green, f.red
}

// refresh replaces the provisional value between convergence rounds.
func (f *ForwardRef) refresh(hasPrev bool, green, red interface{}) {
	if f.resolved {
		panic("claim: refresh of a resolved forward ref")
	}
	f.hasPrev = hasPrev
	f.green = green
	f.red = red
}

func (f *ForwardRef) resolve(green, red interface{}) {
	if f.resolved {
		panic("claim: forward ref resolved twice")
	}
	f.green = green
	f.red = red
	f.hasPrev = true
	f.resolved = true
}
