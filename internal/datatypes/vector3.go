package datatypes

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Vector3 is the engine's 3D vector value. It shares its layout with
// rl.Vector3 so positions and sizes can be handed to the renderer without
// copying field by field.
type Vector3 rl.Vector3

var (
	Vector3Zero  = Vector3{}
	Vector3One   = Vector3{X: 1, Y: 1, Z: 1}
	Vector3XAxis = Vector3{X: 1}
	Vector3YAxis = Vector3{Y: 1}
	Vector3ZAxis = Vector3{Z: 1}
)

func NewVector3(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// RL converts to the raylib vector type.
func (v Vector3) RL() rl.Vector3 {
	return rl.Vector3(v)
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3(rl.Vector3Add(v.RL(), o.RL()))
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3(rl.Vector3Subtract(v.RL(), o.RL()))
}

// Mul multiplies component-wise.
func (v Vector3) Mul(o Vector3) Vector3 {
	return Vector3(rl.Vector3Multiply(v.RL(), o.RL()))
}

// Div divides component-wise.
func (v Vector3) Div(o Vector3) Vector3 {
	return Vector3(rl.Vector3Divide(v.RL(), o.RL()))
}

func (v Vector3) Scale(s float32) Vector3 {
	return Vector3(rl.Vector3Scale(v.RL(), s))
}

func (v Vector3) Neg() Vector3 {
	return Vector3(rl.Vector3Negate(v.RL()))
}

func (v Vector3) Magnitude() float32 {
	return rl.Vector3Length(v.RL())
}

// Unit returns the normalized vector. The zero vector stays zero.
func (v Vector3) Unit() Vector3 {
	return Vector3(rl.Vector3Normalize(v.RL()))
}

func (v Vector3) Dot(o Vector3) float32 {
	return rl.Vector3DotProduct(v.RL(), o.RL())
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3(rl.Vector3CrossProduct(v.RL(), o.RL()))
}

func (v Vector3) Lerp(o Vector3, alpha float32) Vector3 {
	return Vector3(rl.Vector3Lerp(v.RL(), o.RL(), alpha))
}

func (v Vector3) Abs() Vector3 {
	return Vector3{X: abs32(v.X), Y: abs32(v.Y), Z: abs32(v.Z)}
}

func (v Vector3) Floor() Vector3 {
	return Vector3{
		X: float32(math.Floor(float64(v.X))),
		Y: float32(math.Floor(float64(v.Y))),
		Z: float32(math.Floor(float64(v.Z))),
	}
}

func (v Vector3) Ceil() Vector3 {
	return Vector3{
		X: float32(math.Ceil(float64(v.X))),
		Y: float32(math.Ceil(float64(v.Y))),
		Z: float32(math.Ceil(float64(v.Z))),
	}
}

// FuzzyEq reports whether every component differs by at most epsilon.
func (v Vector3) FuzzyEq(o Vector3, epsilon float32) bool {
	return abs32(v.X-o.X) <= epsilon && abs32(v.Y-o.Y) <= epsilon && abs32(v.Z-o.Z) <= epsilon
}

func (v Vector3) String() string {
	return fmt.Sprintf("%g, %g, %g", v.X, v.Y, v.Z)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
