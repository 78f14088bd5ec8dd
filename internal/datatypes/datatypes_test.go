package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector3Arithmetic(t *testing.T) {
	a := NewVector3(1, 2, 3)
	b := NewVector3(4, 5, 6)

	assert.Equal(t, NewVector3(5, 7, 9), a.Add(b))
	assert.Equal(t, NewVector3(3, 3, 3), b.Sub(a))
	assert.Equal(t, NewVector3(4, 10, 18), a.Mul(b))
	assert.Equal(t, NewVector3(2, 4, 6), a.Scale(2))
	assert.Equal(t, NewVector3(-1, -2, -3), a.Neg())
	assert.InDelta(t, 32, a.Dot(b), 1e-6)
	assert.Equal(t, NewVector3(-3, 6, -3), a.Cross(b))
}

func TestVector3Magnitude(t *testing.T) {
	v := NewVector3(3, 4, 0)
	assert.InDelta(t, 5, v.Magnitude(), 1e-6)
	assert.True(t, v.Unit().FuzzyEq(NewVector3(0.6, 0.8, 0), 1e-6))
	assert.Equal(t, Vector3Zero, Vector3Zero.Unit())
}

func TestVector3Rounding(t *testing.T) {
	v := NewVector3(-1.5, 2.25, 0.5)
	assert.Equal(t, NewVector3(1.5, 2.25, 0.5), v.Abs())
	assert.Equal(t, NewVector3(-2, 2, 0), v.Floor())
	assert.Equal(t, NewVector3(-1, 3, 1), v.Ceil())
	assert.Equal(t, NewVector3(0, 1, 0.25), Vector3Zero.Lerp(NewVector3(0, 2, 0.5), 0.5))
}

func TestColor3Clamps(t *testing.T) {
	c := NewColor3(2, -1, 0.5)
	assert.Equal(t, Color3{R: 1, G: 0, B: 0.5}, c)
}

func TestColor3FromRGB(t *testing.T) {
	c := FromRGB(255, 0, 51)
	assert.InDelta(t, 1, c.R, 1e-6)
	assert.InDelta(t, 0, c.G, 1e-6)
	assert.InDelta(t, 0.2, c.B, 1e-6)
}

func TestColor3HSVRoundTrip(t *testing.T) {
	cases := []Color3{
		{R: 1, G: 0, B: 0},
		{R: 0, G: 1, B: 0},
		{R: 0, G: 0, B: 1},
		{R: 1, G: 1, B: 0},
		{R: 0.25, G: 0.5, B: 0.75},
	}
	for _, c := range cases {
		h, s, v := c.ToHSV()
		back := FromHSV(h, s, v)
		assert.InDelta(t, c.R, back.R, 1e-5, "red for %v", c)
		assert.InDelta(t, c.G, back.G, 1e-5, "green for %v", c)
		assert.InDelta(t, c.B, back.B, 1e-5, "blue for %v", c)
	}
}

func TestColor3Lerp(t *testing.T) {
	red := NewColor3(1, 0, 0)
	blue := NewColor3(0, 0, 1)
	assert.Equal(t, NewColor3(0.5, 0, 0.5), red.Lerp(blue, 0.5))
}

func TestColor3RL(t *testing.T) {
	c := FromRGB(10, 20, 30).RL(1)
	assert.Equal(t, uint8(10), c.R)
	assert.Equal(t, uint8(20), c.G)
	assert.Equal(t, uint8(30), c.B)
	assert.Equal(t, uint8(255), c.A)
}

func TestDefaultEnums(t *testing.T) {
	r := DefaultEnums()
	pt, ok := r.Get("PartType")
	require.True(t, ok)

	ball, ok := pt.Item("Ball")
	require.True(t, ok)
	assert.Equal(t, 0, ball.Value)
	assert.Equal(t, "Enum.PartType.Ball", ball.String())

	corner, ok := pt.FromValue(4)
	require.True(t, ok)
	assert.Equal(t, "CornerWedge", corner.Name)

	_, ok = pt.Item("Sphere")
	assert.False(t, ok)
	assert.Equal(t, []string{"PartType"}, r.Names())
}

func TestEnumRegisterDuplicatePanics(t *testing.T) {
	r := DefaultEnums()
	assert.Panics(t, func() { r.Register("PartType", 0, "A") })
}
