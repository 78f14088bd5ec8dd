// Package classes defines the built-in class catalogue: the object model
// classes every script sees, plugged into the reflection registry.
package classes

import (
	"fmt"
	"os"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// Executor runs a script's source on behalf of LuaSourceContainer.Execute.
type Executor interface {
	Execute(inst *engine.Instance, source string) error
}

// Env holds the collaborators a few classes need at call time. Fields may
// be filled in after Register, once the host has built them.
type Env struct {
	// Classes is the bound table, used by Clone.
	Classes  *reflection.Classes
	Executor Executor
	Enums    *datatypes.EnumRegistry
	ReadFile func(path string) ([]byte, error)
}

func (e *Env) readFile(path string) ([]byte, error) {
	if e.ReadFile != nil {
		return e.ReadFile(path)
	}
	return os.ReadFile(path)
}

// Register adds every built-in class to r.
func Register(r *reflection.Registry, env *Env) {
	if env.Enums == nil {
		env.Enums = datatypes.DefaultEnums()
	}
	registerObject(r)
	registerInstance(r, env)
	registerFolder(r)
	registerServices(r)
	registerParts(r, env)
	registerScripts(r, env)
}

func typeError(want string, v any) error {
	return fmt.Errorf("%s expected, got %s", want, reflection.TypeName(v))
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("string", v)
	}
	return s, nil
}

// toBool follows script truthiness.
func toBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	default:
		return true
	}
}

func toNumber(v any) (float64, error) {
	f, ok := reflection.ToNumber(v)
	if !ok {
		return 0, typeError("number", v)
	}
	return f, nil
}

func toVector3(v any) (datatypes.Vector3, error) {
	x, ok := v.(datatypes.Vector3)
	if !ok {
		return datatypes.Vector3{}, typeError("Vector3", v)
	}
	return x, nil
}

func toColor3(v any) (datatypes.Color3, error) {
	x, ok := v.(datatypes.Color3)
	if !ok {
		return datatypes.Color3{}, typeError("Color3", v)
	}
	return x, nil
}

// field builds a getter and setter pair over a pointer into the class data
// of type T.
func field[T any, V any](ptr func(*T) *V, conv func(any) (V, error)) (reflection.Getter, reflection.Setter) {
	get := func(inst *engine.Instance) (any, error) {
		d, err := data[T](inst)
		if err != nil {
			return nil, err
		}
		return *ptr(d), nil
	}
	set := func(inst *engine.Instance, v any) error {
		d, err := data[T](inst)
		if err != nil {
			return err
		}
		x, err := conv(v)
		if err != nil {
			return err
		}
		*ptr(d) = x
		return nil
	}
	return get, set
}

func data[T any](inst *engine.Instance) (*T, error) {
	d, ok := engine.As[*T](inst)
	if !ok {
		return nil, fmt.Errorf("%s has no %T data", inst.ClassName(), d)
	}
	return d, nil
}

func boolConv(v any) (bool, error) { return toBool(v), nil }

func float32Conv(v any) (float32, error) {
	f, err := toNumber(v)
	return float32(f), err
}

func none() ([]any, error) { return nil, nil }

func one(v any) ([]any, error) { return []any{v}, nil }
