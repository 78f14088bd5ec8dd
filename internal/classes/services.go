package classes

import (
	"fmt"
	"math"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// DataModelName is the name of the root instance scripts see as game.
const DataModelName = "Game"

// Workspace is the class data of the Workspace service.
type Workspace struct {
	Gravity datatypes.Vector3
}

// Lighting is the class data of the Lighting service.
type Lighting struct {
	Ambient            datatypes.Color3
	Brightness         float64
	ClockTime          float64
	GeographicLatitude float64
}

// SunDirection is the unit vector pointing at the sun for the current
// clock time and latitude.
func (l *Lighting) SunDirection() datatypes.Vector3 {
	t := l.ClockTime / 24 * 2 * math.Pi
	lat := l.GeographicLatitude * math.Pi / 180
	elevation := math.Sin(t) * math.Cos(lat)
	azimuth := t - math.Pi/2
	return datatypes.NewVector3(
		float32(math.Cos(elevation)*math.Cos(azimuth)),
		float32(math.Sin(elevation)),
		float32(math.Cos(elevation)*math.Sin(azimuth)),
	).Unit()
}

var services = map[string]func(*engine.World) *engine.Instance{
	"Workspace": newWorkspace,
	"Lighting":  newLighting,
}

func newWorkspace(w *engine.World) *engine.Instance {
	return w.New("Workspace", &Workspace{Gravity: datatypes.NewVector3(0, -196.2, 0)})
}

func newLighting(w *engine.World) *engine.Instance {
	return w.New("Lighting", &Lighting{Brightness: 1})
}

// IsService reports whether className is created through GetService rather
// than Instance.new.
func IsService(className string) bool {
	_, ok := services[className]
	return ok
}

// NewDataModel creates the root of a place with its services attached.
func NewDataModel(w *engine.World) (*engine.Instance, error) {
	dm := w.New("DataModel", nil)
	dm.SetName(DataModelName)
	for _, name := range []string{"Workspace", "Lighting"} {
		if _, err := GetService(dm, name); err != nil {
			return nil, err
		}
	}
	return dm, nil
}

// FindService returns the child of provider whose class is className.
func FindService(provider *engine.Instance, className string) *engine.Instance {
	return provider.FindFirstChildOfClass(className)
}

// GetService returns the service named className, creating it under
// provider on first use.
func GetService(provider *engine.Instance, className string) (*engine.Instance, error) {
	if s := FindService(provider, className); s != nil {
		return s, nil
	}
	factory, ok := services[className]
	if !ok {
		return nil, fmt.Errorf("'%s' is not a valid Service name", className)
	}
	s := factory(provider.World())
	if err := s.SetParent(provider); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func registerServices(r *reflection.Registry) {
	r.Class("ServiceProvider", "Instance").
		Method("GetService", func(i *engine.Instance, a reflection.Args) ([]any, error) {
			name, err := a.String(0)
			if err != nil {
				return nil, err
			}
			s, err := GetService(i, name)
			if err != nil {
				return nil, err
			}
			return one(s)
		}).
		Method("FindService", finder(FindService))

	r.Class("DataModel", "ServiceProvider")

	gravity, setGravity := field(func(w *Workspace) *datatypes.Vector3 { return &w.Gravity }, toVector3)
	r.Class("Workspace", "Instance").
		Property("Gravity", gravity, setGravity).
		ReadOnly("CurrentCamera", func(*engine.Instance) (any, error) { return nil, nil })

	c := r.Class("Lighting", "Instance")
	c.Property(fieldPair("Ambient", func(l *Lighting) *datatypes.Color3 { return &l.Ambient }, toColor3))
	c.Property(fieldPair("Brightness", func(l *Lighting) *float64 { return &l.Brightness }, toNumber))
	c.Property(fieldPair("ClockTime", func(l *Lighting) *float64 { return &l.ClockTime }, clockTime))
	c.Property(fieldPair("GeographicLatitude", func(l *Lighting) *float64 { return &l.GeographicLatitude }, toNumber))
	c.Method("GetSunDirection", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		l, err := data[Lighting](i)
		if err != nil {
			return nil, err
		}
		return one(l.SunDirection())
	})
}

// clockTime wraps hours into [0, 24).
func clockTime(v any) (float64, error) {
	f, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	f = math.Mod(f, 24)
	if f < 0 {
		f += 24
	}
	return f, nil
}

func fieldPair[T any, V any](name string, ptr func(*T) *V, conv func(any) (V, error)) (string, reflection.Getter, reflection.Setter) {
	get, set := field(ptr, conv)
	return name, get, set
}
