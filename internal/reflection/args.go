package reflection

import (
	"math"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
)

// Args are the arguments of a method call. Index helpers are 0-based;
// errors report 1-based positions the way scripts count them.
type Args struct {
	Method string
	Values []any
}

func (a Args) Len() int {
	return len(a.Values)
}

// Any returns argument n, or nil when it was not passed.
func (a Args) Any(n int) any {
	if n < 0 || n >= len(a.Values) {
		return nil
	}
	return a.Values[n]
}

func (a Args) bad(n int, want string) error {
	return &ArgError{Method: a.Method, Index: n + 1, Want: want, Got: TypeName(a.Any(n))}
}

func (a Args) String(n int) (string, error) {
	s, ok := a.Any(n).(string)
	if !ok {
		return "", a.bad(n, "string")
	}
	return s, nil
}

func (a Args) Number(n int) (float64, error) {
	f, ok := ToNumber(a.Any(n))
	if !ok {
		return 0, a.bad(n, "number")
	}
	return f, nil
}

// OptNumber returns def when argument n is nil.
func (a Args) OptNumber(n int, def float64) (float64, error) {
	if a.Any(n) == nil {
		return def, nil
	}
	return a.Number(n)
}

// Bool follows script truthiness: only nil and false are false.
func (a Args) Bool(n int) bool {
	switch v := a.Any(n).(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}

func (a Args) Instance(n int) (*engine.Instance, error) {
	inst, ok := a.Any(n).(*engine.Instance)
	if !ok || inst == nil {
		return nil, a.bad(n, "Instance")
	}
	return inst, nil
}

// OptInstance accepts nil as well as an instance.
func (a Args) OptInstance(n int) (*engine.Instance, error) {
	if a.Any(n) == nil {
		return nil, nil
	}
	return a.Instance(n)
}

func (a Args) Vector3(n int) (datatypes.Vector3, error) {
	v, ok := a.Any(n).(datatypes.Vector3)
	if !ok {
		return datatypes.Vector3{}, a.bad(n, "Vector3")
	}
	return v, nil
}

// ToNumber converts any Go numeric kind to float64.
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	default:
		return math.NaN(), false
	}
}

// TypeName names a value's type the way scripts see it.
func TypeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case string:
		return "string"
	case *engine.Instance:
		if x == nil {
			return "nil"
		}
		return "Instance"
	case datatypes.Vector3:
		return "Vector3"
	case datatypes.Color3:
		return "Color3"
	case datatypes.EnumItem:
		return "EnumItem"
	case *engine.Signal:
		return "Signal"
	case BoundMethod:
		return "function"
	}
	if _, ok := ToNumber(v); ok {
		return "number"
	}
	return "userdata"
}
