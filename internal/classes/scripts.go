package classes

import (
	"errors"

	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// Source is the class data of every LuaSourceContainer.
type Source struct {
	Enabled    bool
	Source     string
	SourcePath string
	// Linked is the path Source was last loaded from. Writing Source
	// directly clears it.
	Linked string
}

func newSourceInstance(w *engine.World, className string) *engine.Instance {
	return w.New(className, &Source{Enabled: true})
}

// LoadFromPath replaces the source with the contents of path.
func LoadFromPath(env *Env, inst *engine.Instance, path string) error {
	s, err := data[Source](inst)
	if err != nil {
		return err
	}
	b, err := env.readFile(path)
	if err != nil {
		return err
	}
	s.Source = string(b)
	s.SourcePath = path
	s.Linked = path
	inst.FirePropertyChanged("Source")
	return nil
}

// Execute runs a script's source. It reports false without running
// anything when the script is disabled or has no source.
func Execute(env *Env, inst *engine.Instance) (bool, error) {
	s, err := data[Source](inst)
	if err != nil {
		return false, err
	}
	if !s.Enabled {
		return false, nil
	}
	if s.Source == "" && s.SourcePath != "" {
		if err := LoadFromPath(env, inst, s.SourcePath); err != nil {
			return false, err
		}
	}
	if s.Source == "" {
		return false, nil
	}
	if env.Executor == nil {
		return false, errors.New("no script executor is attached")
	}
	if err := env.Executor.Execute(inst, s.Source); err != nil {
		return false, err
	}
	return true, nil
}

func stringConv(v any) (string, error) { return toString(v) }

func registerScripts(r *reflection.Registry, env *Env) {
	c := r.Class("LuaSourceContainer", "Instance")
	c.Property(fieldPair("Enabled", func(s *Source) *bool { return &s.Enabled }, boolConv))
	c.Property("Source",
		func(i *engine.Instance) (any, error) {
			s, err := data[Source](i)
			if err != nil {
				return nil, err
			}
			return s.Source, nil
		},
		func(i *engine.Instance, v any) error {
			s, err := data[Source](i)
			if err != nil {
				return err
			}
			if s.Source, err = toString(v); err != nil {
				return err
			}
			s.Linked = ""
			return nil
		})
	c.Property(fieldPair("SourcePath", func(s *Source) *string { return &s.SourcePath }, stringConv))
	c.Method("Execute", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		ok, err := Execute(env, i)
		if err != nil {
			return nil, err
		}
		return one(ok)
	})
	c.Method("LoadFromPath", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		path, err := a.String(0)
		if err != nil {
			return nil, err
		}
		if err := LoadFromPath(env, i, path); err != nil {
			return []any{false, err.Error()}, nil
		}
		return one(true)
	})

	r.Class("Script", "LuaSourceContainer").
		Constructor(func(w *engine.World) (*engine.Instance, error) {
			return newSourceInstance(w, "Script"), nil
		})

	r.Class("ModuleScript", "LuaSourceContainer").
		ReadOnly("LinkedSource", func(i *engine.Instance) (any, error) {
			s, err := data[Source](i)
			if err != nil {
				return nil, err
			}
			return s.Linked, nil
		}).
		Constructor(func(w *engine.World) (*engine.Instance, error) {
			return newSourceInstance(w, "ModuleScript"), nil
		})
}
