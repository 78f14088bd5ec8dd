package viewer

import (
	"fmt"
	"math"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"

	"blockengine/internal/classes"
	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
)

// Drawable is the render state of one part, captured after the frame's
// scheduler step.
type Drawable struct {
	Position rl.Vector3
	Rotation rl.Vector3 // degrees
	Size     rl.Vector3
	Color    rl.Color
	Shape    string
}

// Collect gathers every visible part under root in tree order. Fully
// transparent parts are skipped.
func Collect(root *engine.Instance, light *classes.Lighting) []Drawable {
	var out []Drawable
	for _, inst := range root.GetDescendants() {
		p, ok := engine.As[*classes.Part](inst)
		if !ok || p.Transparency >= 1 {
			continue
		}
		out = append(out, Drawable{
			Position: p.Position.RL(),
			Rotation: p.Rotation.RL(),
			Size:     p.Size.RL(),
			Color:    Shade(p.Color, p.Transparency, light),
			Shape:    p.Shape,
		})
	}
	return out
}

// Shade lights a part color with the Lighting service: ambient plus a
// brightness term that fades as the sun sets.
func Shade(c datatypes.Color3, transparency float64, light *classes.Lighting) rl.Color {
	if light == nil {
		return c.RL(float32(1 - transparency))
	}
	sun := light.SunDirection()
	day := float32(0.35 + 0.65*math.Max(0, float64(sun.Y)))
	k := float32(light.Brightness) * day
	lit := datatypes.NewColor3(
		c.R*k+light.Ambient.R,
		c.G*k+light.Ambient.G,
		c.B*k+light.Ambient.B,
	)
	return lit.RL(float32(1 - transparency))
}

func (d Drawable) Draw() {
	rl.PushMatrix()
	rl.Translatef(d.Position.X, d.Position.Y, d.Position.Z)
	rl.Rotatef(d.Rotation.Y, 0, 1, 0)
	rl.Rotatef(d.Rotation.X, 1, 0, 0)
	rl.Rotatef(d.Rotation.Z, 0, 0, 1)
	origin := rl.Vector3{}
	switch d.Shape {
	case "Sphere":
		r := min(d.Size.X, d.Size.Y, d.Size.Z) / 2
		rl.DrawSphere(origin, r, d.Color)
		rl.DrawSphereWires(origin, r, 8, 8, rl.Fade(rl.Black, 0.3))
	case "Cylinder":
		// Cylinders lie along X.
		r := min(d.Size.Y, d.Size.Z) / 2
		half := rl.Vector3{X: d.Size.X / 2}
		rl.DrawCylinderEx(rl.Vector3Negate(half), half, r, r, 16, d.Color)
	case "Wedge", "CornerWedge":
		drawWedge(d.Size, d.Color, d.Shape == "CornerWedge")
	default:
		rl.DrawCubeV(origin, d.Size, d.Color)
		rl.DrawCubeWiresV(origin, d.Size, rl.Fade(rl.Black, 0.3))
	}
	rl.PopMatrix()
}

// drawWedge draws a ramp rising towards -Z, or a corner wedge rising to
// one corner.
func drawWedge(size rl.Vector3, col rl.Color, corner bool) {
	x, y, z := size.X/2, size.Y/2, size.Z/2
	v := func(a, b, c float32) rl.Vector3 { return rl.Vector3{X: a, Y: b, Z: c} }
	bl, br, fl, fr := v(-x, -y, -z), v(x, -y, -z), v(-x, -y, z), v(x, -y, z)
	tl, tr := v(-x, y, -z), v(x, y, -z)
	if corner {
		tr = tl
	}
	quad := func(a, b, c, d rl.Vector3) {
		rl.DrawTriangle3D(a, b, c, col)
		rl.DrawTriangle3D(a, c, d, col)
		rl.DrawTriangle3D(a, c, b, col)
		rl.DrawTriangle3D(a, d, c, col)
	}
	quad(bl, br, fr, fl) // bottom
	quad(bl, tl, tr, br) // back
	quad(fl, fr, tr, tl) // slope
	rl.DrawTriangle3D(bl, fl, tl, col)
	rl.DrawTriangle3D(bl, tl, fl, col)
	rl.DrawTriangle3D(br, tr, fr, col)
	rl.DrawTriangle3D(br, fr, tr, col)
}

// ExplorerLine is one row of the explorer panel.
type ExplorerLine struct {
	Depth int
	Text  string
}

// Explorer lists root and its descendants, indented by depth, up to limit
// rows.
func Explorer(root *engine.Instance, limit int) []ExplorerLine {
	var out []ExplorerLine
	var walk func(inst *engine.Instance, depth int)
	walk = func(inst *engine.Instance, depth int) {
		if len(out) >= limit {
			return
		}
		out = append(out, ExplorerLine{Depth: depth, Text: explorerText(inst)})
		for _, c := range inst.GetChildren() {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return out
}

func explorerText(inst *engine.Instance) string {
	if inst.Name() == inst.ClassName() {
		return inst.Name()
	}
	return fmt.Sprintf("%s (%s)", inst.Name(), inst.ClassName())
}

func (l ExplorerLine) String() string {
	return strings.Repeat("  ", l.Depth) + l.Text
}
