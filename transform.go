package cm3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a rigid transformation: a rotation followed by a translation.
//
//	p' = Rotation * p + Position
//
// Rotation is kept normalized by every constructor and by Body.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// NewTransformIdentity creates and returns an identity transformation.
func NewTransformIdentity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// NewTransform returns a transform with the given translation and rotation.
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	return Transform{Position: position, Rotation: rotation.Normalize()}
}

// NewTransformTranslate returns a pure translation.
func NewTransformTranslate(translate mgl64.Vec3) Transform {
	return Transform{Position: translate, Rotation: mgl64.QuatIdent()}
}

// NewTransformRotate returns a rotation of angle radians around axis.
func NewTransformRotate(angle float64, axis mgl64.Vec3) Transform {
	return Transform{Rotation: mgl64.QuatRotate(angle, axis.Normalize())}
}

func (t Transform) String() string {
	return fmt.Sprintf("Transform{%v, %v}", t.Position, t.Rotation)
}

// Apply transforms a point.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Position)
}

// ApplyVector rotates a direction, ignoring the translation.
func (t Transform) ApplyVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(v)
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position.Mul(-1)),
		Rotation: inv,
	}
}

// Mul returns the transform that applies other first and then t.
func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Position: t.Apply(other.Position),
		Rotation: t.Rotation.Mul(other.Rotation).Normalize(),
	}
}

// RotationMatrix returns the 3x3 rotation matrix of t.
func (t Transform) RotationMatrix() mgl64.Mat3 {
	return t.Rotation.Mat4().Mat3()
}
