package viewer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	nearPlane = 0.01
	farPlane  = 1000.0
)

// Frustum holds the six planes of a view volume: left, right, bottom, top,
// near and far.
type Frustum struct {
	planes [6]plane
}

// plane is ax + by + cz + d = 0 with a unit normal.
type plane struct {
	normal   rl.Vector3
	distance float32
}

// ExtractFrustum builds the frustum of a perspective camera from its
// basis vectors. Fovy is vertical, in degrees.
func ExtractFrustum(cam rl.Camera3D, aspect float32) Frustum {
	forward := rl.Vector3Normalize(rl.Vector3Subtract(cam.Target, cam.Position))
	right := rl.Vector3Normalize(rl.Vector3CrossProduct(forward, cam.Up))
	up := rl.Vector3CrossProduct(right, forward)

	tanY := float32(math.Tan(float64(cam.Fovy*rl.Deg2rad) / 2))
	tanX := tanY * aspect
	through := func(n rl.Vector3, p rl.Vector3) plane {
		return normalizePlane(plane{normal: n, distance: -rl.Vector3DotProduct(n, p)})
	}
	side := func(axis rl.Vector3, tan float32) rl.Vector3 {
		return rl.Vector3Add(axis, rl.Vector3Scale(forward, tan))
	}

	var f Frustum
	f.planes[0] = through(side(right, tanX), cam.Position)
	f.planes[1] = through(side(rl.Vector3Negate(right), tanX), cam.Position)
	f.planes[2] = through(side(up, tanY), cam.Position)
	f.planes[3] = through(side(rl.Vector3Negate(up), tanY), cam.Position)
	f.planes[4] = through(forward, rl.Vector3Add(cam.Position, rl.Vector3Scale(forward, nearPlane)))
	f.planes[5] = through(rl.Vector3Negate(forward), rl.Vector3Add(cam.Position, rl.Vector3Scale(forward, farPlane)))
	return f
}

func normalizePlane(p plane) plane {
	length := rl.Vector3Length(p.normal)
	if length == 0 {
		return p
	}
	return plane{
		normal:   rl.Vector3Scale(p.normal, 1/length),
		distance: p.distance / length,
	}
}

// ContainsSphere reports whether a sphere is at least partly inside.
func (f *Frustum) ContainsSphere(center rl.Vector3, radius float32) bool {
	for _, p := range f.planes {
		if rl.Vector3DotProduct(p.normal, center)+p.distance < -radius {
			return false
		}
	}
	return true
}

// Bounds returns a sphere enclosing the part whatever its rotation.
func (d Drawable) Bounds() (rl.Vector3, float32) {
	return d.Position, rl.Vector3Length(d.Size) / 2
}

// Cull keeps the drawables whose bounding sphere touches the frustum.
func Cull(f Frustum, ds []Drawable) []Drawable {
	out := ds[:0:0]
	for _, d := range ds {
		if c, r := d.Bounds(); f.ContainsSphere(c, r) {
			out = append(out, d)
		}
	}
	return out
}
