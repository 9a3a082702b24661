package catalog

// Origin records where a resource field's value came from.
type Origin string

const (
	OriginSource  Origin = "source"
	OriginConfig  Origin = "config"
	OriginBuiltin Origin = "builtin"
)

// State distinguishes values analysis proved from values it could not.
type State string

const (
	StateKnown   State = "known"
	StateUnknown State = "unknown"
)

// Sourced wraps every resource field with provenance. A field analysis
// could not determine is StateUnknown and must surface as a stub downstream,
// never as a silently-defaulted value. OrStub is the single place that rule
// lives.
type Sourced[T any] struct {
	Value  T      `json:"value"`
	Origin Origin `json:"origin"`
	State  State  `json:"state"`
}

func Known[T any](value T, origin Origin) Sourced[T] {
	return Sourced[T]{Value: value, Origin: origin, State: StateKnown}
}

func Unknown[T any]() Sourced[T] {
	return Sourced[T]{State: StateUnknown}
}

func (s Sourced[T]) IsKnown() bool {
	return s.State == StateKnown
}

// OrStub returns the value, or the stub replacement plus stubbed=true when
// the field is unknown. All unwrapping goes through here so no call site
// can accidentally default an unknown field.
func (s Sourced[T]) OrStub(stub T) (value T, stubbed bool) {
	if s.State == StateKnown {
		return s.Value, false
	}
	return stub, true
}
