package domain

import "math"

// Epsilon is the tolerance used by approximate comparisons of positions,
// rotations and colors.
const Epsilon = 1e-4

// Vec3 is a point or direction in world or local space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Up is the world vertical axis.
var Up = Vec3{Y: 1}

// V3 is shorthand for constructing a Vec3.
func V3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec3) float64 { return a.Sub(b).Length() }

// ApproxEqual reports whether both vectors are within tol on every axis.
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol && math.Abs(v.Z-o.Z) <= tol
}

// Quat is a unit quaternion rotation.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// Identity is the zero rotation.
var Identity = Quat{W: 1}

// YawDegrees builds a rotation about the world up axis.
func YawDegrees(deg float64) Quat {
	half := deg * math.Pi / 360
	return Quat{Y: math.Sin(half), W: math.Cos(half)}
}

// Mul composes q then o (o applied first, q second).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Inverse returns the conjugate, which is the inverse of a unit quaternion.
func (q Quat) Inverse() Quat { return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W} }

// Normalize rescales q to unit length. A zero quaternion becomes Identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n < 1e-12 {
		return Identity
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// ApproxEqual treats q and -q as the same rotation.
func (q Quat) ApproxEqual(o Quat, tol float64) bool {
	dot := q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
	return math.Abs(math.Abs(dot)-1) <= tol
}

// Transform is a rigid pose (no scale).
type Transform struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation"`
}

// At returns a transform at p with no rotation.
func At(p Vec3) Transform { return Transform{Position: p, Rotation: Identity} }

// Compose returns the world pose of a child with local pose l under parent t.
func (t Transform) Compose(l Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(l.Position)),
		Rotation: t.Rotation.Mul(l.Rotation).Normalize(),
	}
}

// Relative returns the local pose that places world pose w under parent t.
func (t Transform) Relative(w Transform) Transform {
	inv := t.Rotation.Inverse()
	return Transform{
		Position: inv.Rotate(w.Position.Sub(t.Position)),
		Rotation: inv.Mul(w.Rotation).Normalize(),
	}
}

// ApproxEqual compares position and rotation within tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	return t.Position.ApproxEqual(o.Position, tol) && t.Rotation.ApproxEqual(o.Rotation, tol)
}

// Color is a linear RGBA color with components in [0,1].
type Color struct {
	R float64 `json:"r" yaml:"r"`
	G float64 `json:"g" yaml:"g"`
	B float64 `json:"b" yaml:"b"`
	A float64 `json:"a" yaml:"a"`
}

// ApproxEqual compares every channel within tol.
func (c Color) ApproxEqual(o Color, tol float64) bool {
	return math.Abs(c.R-o.R) <= tol && math.Abs(c.G-o.G) <= tol &&
		math.Abs(c.B-o.B) <= tol && math.Abs(c.A-o.A) <= tol
}
