package viewer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	fovy       = 60
	boostScale = 3
	maxPitch   = 89
)

// FlyCamera is a free camera: WASD moves on the look plane, Q/E move down
// and up, and the mouse looks around while the right button is held.
type FlyCamera struct {
	Position  rl.Vector3
	Yaw       float32 // degrees, 0 looks down +X
	Pitch     float32
	MoveSpeed float32 // units per second
	LookSpeed float32 // degrees per pixel
}

// FlyInput is one frame of camera controls.
type FlyInput struct {
	Forward, Strafe, Lift float32 // each in [-1, 1]; Strafe is positive to the right
	Boost                 bool
	LookX, LookY          float32 // mouse delta in pixels
}

func NewFlyCamera(pos rl.Vector3) *FlyCamera {
	return &FlyCamera{
		Position:  pos,
		Yaw:       -135,
		Pitch:     -30,
		MoveSpeed: 16,
		LookSpeed: 0.1,
	}
}

func axis(pos, neg int32) float32 {
	var v float32
	if rl.IsKeyDown(pos) {
		v++
	}
	if rl.IsKeyDown(neg) {
		v--
	}
	return v
}

func readFlyInput() FlyInput {
	in := FlyInput{
		Forward: axis(rl.KeyW, rl.KeyS),
		Strafe:  axis(rl.KeyD, rl.KeyA),
		Lift:    axis(rl.KeyE, rl.KeyQ),
		Boost:   rl.IsKeyDown(rl.KeyLeftShift),
	}
	if rl.IsMouseButtonDown(rl.MouseRightButton) {
		d := rl.GetMouseDelta()
		in.LookX, in.LookY = d.X, d.Y
	}
	return in
}

// Update polls raylib input and applies it.
func (c *FlyCamera) Update(dt float32) {
	c.Apply(readFlyInput(), dt)
}

func (c *FlyCamera) Apply(in FlyInput, dt float32) {
	c.Look(in.LookX*c.LookSpeed, -in.LookY*c.LookSpeed)
	speed := c.MoveSpeed
	if in.Boost {
		speed *= boostScale
	}
	c.Move(in.Forward, in.Strafe, in.Lift, speed*dt)
}

// Look turns the camera by yaw and pitch degrees. Pitch stays short of
// straight up or down.
func (c *FlyCamera) Look(yaw, pitch float32) {
	c.Yaw = float32(math.Mod(float64(c.Yaw+yaw), 360))
	c.Pitch = min(max(c.Pitch+pitch, -maxPitch), maxPitch)
}

// Move steps dist along the combined heading, strafe and world up
// directions. Diagonal input is normalized.
func (c *FlyCamera) Move(fwd, strafe, lift, dist float32) {
	heading := c.heading()
	right := rl.Vector3{X: -heading.Z, Z: heading.X}
	dir := rl.Vector3Add(rl.Vector3Scale(heading, fwd), rl.Vector3Scale(right, strafe))
	dir.Y = lift
	if rl.Vector3LengthSqr(dir) == 0 {
		return
	}
	c.Position = rl.Vector3Add(c.Position, rl.Vector3Scale(rl.Vector3Normalize(dir), dist))
}

// heading is the look direction flattened onto the ground.
func (c *FlyCamera) heading() rl.Vector3 {
	s, co := math.Sincos(float64(c.Yaw) * rl.Deg2rad)
	return rl.Vector3{X: float32(co), Z: float32(s)}
}

// Forward is the unit look direction.
func (c *FlyCamera) Forward() rl.Vector3 {
	sp, cp := math.Sincos(float64(c.Pitch) * rl.Deg2rad)
	h := c.heading()
	return rl.Vector3{X: h.X * float32(cp), Y: float32(sp), Z: h.Z * float32(cp)}
}

func (c *FlyCamera) Camera3D() rl.Camera3D {
	return rl.Camera3D{
		Position:   c.Position,
		Target:     rl.Vector3Add(c.Position, c.Forward()),
		Up:         rl.Vector3{Y: 1},
		Fovy:       fovy,
		Projection: rl.CameraPerspective,
	}
}
