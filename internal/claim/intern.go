package claim

import (
	"reflect"
)

// Identical is the cutoff comparison: identity on an interned
// representation, never a deep structural walk. Deep comparison happens
// once, at interning time.
func Identical(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	tb := reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}

// Interner canonicalizes green values: equal content keys share one
// instance, so cutoff can compare by pointer.
type Interner struct {
	byKey map[string]interface{}
}

func NewInterner() *Interner {
	return &Interner{byKey: make(map[string]interface{})}
}

// Intern returns the canonical instance for key, building it on first use.
func (i *Interner) Intern(key string, build func() interface{}) interface{} {
	if v, ok := i.byKey[key]; ok {
		return v
	}
	v := build()
	i.byKey[key] = v
	return v
}

func (i *Interner) Len() int {
	return len(i.byKey)
}
