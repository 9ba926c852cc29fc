package cm3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeClass is the geometry behind a Shape.
type ShapeClass interface {
	// CacheData updates the world space geometry for the transform and returns its bounding box.
	CacheData(transform Transform) AABB
	// Inertia returns the local inertia tensor of a solid with the given mass.
	Inertia(mass float64) mgl64.Mat3
}

// ShapeType orders shape classes for the collision dispatch table.
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
	ShapeTypeNum
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeBox:
		return "box"
	case ShapeTypePlane:
		return "plane"
	default:
		return "unknown"
	}
}

// Shape is the collision geometry attached to a body. Shapes are centered on the body's center of mass.
type Shape struct {
	Class    ShapeClass
	Body     *Body
	UserData any
	Filter   ShapeFilter
	// Sensor shapes report contact events but never generate contact constraints.
	Sensor bool
	BB     AABB
}

func NewShape(class ShapeClass, body *Body) *Shape {
	return &Shape{
		Class:  class,
		Body:   body,
		Filter: ShapeFilterAll,
	}
}

func (s Shape) String() string {
	return fmt.Sprintf("%T", s.Class)
}

// Order returns the position of the shape class in the collision dispatch table.
func (s *Shape) Order() ShapeType {
	switch s.Class.(type) {
	case *Sphere:
		return ShapeTypeSphere
	case *Box:
		return ShapeTypeBox
	case *Plane:
		return ShapeTypePlane
	default:
		return ShapeTypeNum
	}
}

// SetSensor sets Shape.Sensor.
// Sensors only call contact listeners, and never generate real collisions.
func (sh *Shape) SetSensor(sensor bool) {
	sh.Sensor = sensor
}

func (sh *Shape) SetShapeFilter(filter ShapeFilter) {
	sh.Filter = filter
}

// CacheBB refreshes the world geometry from the body transform.
func (sh *Shape) CacheBB() AABB {
	return sh.Update(sh.Body.transform)
}

func (sh *Shape) Update(transform Transform) AABB {
	sh.BB = sh.Class.CacheData(transform)
	return sh.BB
}
