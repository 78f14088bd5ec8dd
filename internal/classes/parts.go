package classes

import (
	"fmt"
	"math"
	"slices"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// Shapes a Part can take.
var Shapes = []string{"Block", "Sphere", "Cylinder", "Wedge", "CornerWedge"}

// Part is the class data shared by every BasePart.
type Part struct {
	Position         datatypes.Vector3
	Rotation         datatypes.Vector3
	Size             datatypes.Vector3
	Velocity         datatypes.Vector3
	RotationVelocity datatypes.Vector3
	Color            datatypes.Color3
	Transparency     float64
	Anchored         bool
	CanCollide       bool
	CanQuery         bool
	CanTouch         bool
	CastShadow       bool
	Shape            string

	Touched    *engine.Signal
	TouchEnded *engine.Signal
}

// NewPart returns part data with the engine defaults.
func NewPart() *Part {
	return &Part{
		Position:   datatypes.NewVector3(0, 0.5, 0),
		Size:       datatypes.NewVector3(4, 1, 2),
		Color:      datatypes.FromRGB(163, 162, 165),
		Anchored:   true,
		CanCollide: true,
		CanQuery:   true,
		CanTouch:   true,
		CastShadow: true,
		Shape:      "Block",
		Touched:    engine.NewSignal("Touched"),
		TouchEnded: engine.NewSignal("TouchEnded"),
	}
}

// Mass is the part's volume; density is uniform.
func (p *Part) Mass() float64 {
	return math.Abs(float64(p.Size.X) * float64(p.Size.Y) * float64(p.Size.Z))
}

// Signals implements engine.SignalOwner, so Destroy disconnects the part
// signals with the instance's own.
func (p *Part) Signals() []*engine.Signal {
	return []*engine.Signal{p.Touched, p.TouchEnded}
}

func newPartInstance(w *engine.World, className string) *engine.Instance {
	return w.New(className, NewPart())
}

// shapeConv accepts an Enum.PartType item, its value, or a shape name.
func shapeConv(enums *datatypes.EnumRegistry) func(any) (string, error) {
	return func(v any) (string, error) {
		switch x := v.(type) {
		case datatypes.EnumItem:
			if x.EnumType != "PartType" {
				return "", fmt.Errorf("attempt to set invalid Part.Shape value of '%s'", x)
			}
			return shapeOf(x), nil
		case string:
			if !slices.Contains(Shapes, x) {
				return "", fmt.Errorf("attempt to set invalid Part.Shape value of '%s'", x)
			}
			return x, nil
		}
		if f, ok := reflection.ToNumber(v); ok {
			e, _ := enums.Get("PartType")
			if item, ok := e.FromValue(int(f)); ok && float64(int(f)) == f {
				return shapeOf(item), nil
			}
			return "", fmt.Errorf("attempt to set invalid Part.Shape value of '%g'", f)
		}
		return "", typeError("PartType", v)
	}
}

func shapeOf(item datatypes.EnumItem) string {
	if item.Name == "Ball" {
		return "Sphere"
	}
	return item.Name
}

func partField[V any](name string, ptr func(*Part) *V, conv func(any) (V, error)) (string, reflection.Getter, reflection.Setter) {
	return fieldPair(name, ptr, conv)
}

func registerParts(r *reflection.Registry, env *Env) {
	b := r.Class("BasePart", "Instance")
	b.Property(partField("Position", func(p *Part) *datatypes.Vector3 { return &p.Position }, toVector3))
	b.Property(partField("Rotation", func(p *Part) *datatypes.Vector3 { return &p.Rotation }, toVector3))
	b.Property(partField("Size", func(p *Part) *datatypes.Vector3 { return &p.Size }, toVector3))
	b.Property(partField("Velocity", func(p *Part) *datatypes.Vector3 { return &p.Velocity }, toVector3))
	b.Property(partField("RotationVelocity", func(p *Part) *datatypes.Vector3 { return &p.RotationVelocity }, toVector3))
	b.Property(partField("Color", func(p *Part) *datatypes.Color3 { return &p.Color }, toColor3))
	b.Property(partField("Transparency", func(p *Part) *float64 { return &p.Transparency }, toNumber))
	b.Property(partField("Anchored", func(p *Part) *bool { return &p.Anchored }, boolConv))
	b.Property(partField("CanCollide", func(p *Part) *bool { return &p.CanCollide }, boolConv))
	b.Property(partField("CanQuery", func(p *Part) *bool { return &p.CanQuery }, boolConv))
	b.Property(partField("CanTouch", func(p *Part) *bool { return &p.CanTouch }, boolConv))
	b.Property(partField("CastShadow", func(p *Part) *bool { return &p.CastShadow }, boolConv))
	b.ReadOnly("Mass", func(i *engine.Instance) (any, error) {
		p, err := data[Part](i)
		if err != nil {
			return nil, err
		}
		return p.Mass(), nil
	})
	b.ReadOnly("Touched", func(i *engine.Instance) (any, error) {
		p, err := data[Part](i)
		if err != nil {
			return nil, err
		}
		return p.Touched, nil
	})
	b.ReadOnly("TouchEnded", func(i *engine.Instance) (any, error) {
		p, err := data[Part](i)
		if err != nil {
			return nil, err
		}
		return p.TouchEnded, nil
	})
	b.Method("GetMass", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		p, err := data[Part](i)
		if err != nil {
			return nil, err
		}
		return one(p.Mass())
	})

	r.Class("Part", "BasePart").
		Property(partField("Shape", func(p *Part) *string { return &p.Shape }, shapeConv(env.Enums))).
		Constructor(func(w *engine.World) (*engine.Instance, error) {
			return newPartInstance(w, "Part"), nil
		})
}
