package cm3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType for bodies; Dynamic, Kinematic or Static
type BodyType uint8

const (
	Dynamic   BodyType = 0
	Kinematic BodyType = 1
	Static    BodyType = 2
)

func (t BodyType) String() string {
	switch t {
	case Dynamic:
		return "dynamic"
	case Kinematic:
		return "kinematic"
	case Static:
		return "static"
	default:
		return fmt.Sprintf("BodyType(%d)", uint8(t))
	}
}

// BodyID identifies a body inside one World. Zero means the body was never added.
type BodyID uint32

// BodyVelocityFunc is rigid body velocity update function type.
type BodyVelocityFunc func(body *Body, gravity mgl64.Vec3, damping float64, dt float64)

// BodyPositionFunc is rigid body position update function type.
type BodyPositionFunc func(body *Body, dt float64)

// Body is a rigid body. Its position is the center of mass.
type Body struct {
	// UserData is an object that this body is associated with.
	//
	// You can use this get a reference to your game object or controller object from within callbacks.
	UserData any
	World    *World
	Shape    *Shape

	// Friction and Restitution are combined with the other body's values for each contact pair.
	Friction    float64
	Restitution float64

	id                  BodyID
	bodyType            BodyType
	velocityFunc        BodyVelocityFunc
	positionFunc        BodyPositionFunc
	mass                float64
	massInverse         float64
	inertia             mgl64.Mat3 // Local inertia tensor
	inertiaInverse      mgl64.Mat3 // Local inverse inertia tensor
	inertiaInverseWorld mgl64.Mat3 // R * inertiaInverse * R^T, refreshed on rotation change
	transform           Transform
	velocity            mgl64.Vec3
	w                   mgl64.Vec3 // Angular velocity
	force               mgl64.Vec3
	torque              mgl64.Vec3
	vBias               mgl64.Vec3 // position correction velocity, cleared every step
	wBias               mgl64.Vec3
}

// String returns body id as string
func (b *Body) String() string {
	return fmt.Sprint("Body ", b.id, " (", b.bodyType, ")")
}

// NewBody initializes a dynamic rigid body with the given mass and local inertia tensor.
//
// Use the moment helpers MomentForSphere and MomentForBox instead of guessing the tensor.
func NewBody(mass float64, inertia mgl64.Mat3) *Body {
	body := &Body{
		transform:    NewTransformIdentity(),
		velocityFunc: BodyUpdateVelocity,
		positionFunc: BodyUpdatePosition,
		Friction:     0.2,
	}
	body.SetMass(mass)
	body.SetInertia(inertia)
	return body
}

// NewStaticBody allocates and initializes a Body, and set it as a static body.
func NewStaticBody() *Body {
	body := NewBody(0, mgl64.Mat3{})
	body.SetType(Static)
	return body
}

// NewKinematicBody allocates and initializes a Body, and set it as a kinematic body.
func NewKinematicBody() *Body {
	body := NewBody(0, mgl64.Mat3{})
	body.SetType(Kinematic)
	return body
}

// ID returns the identifier assigned by the World, or 0.
func (body *Body) ID() BodyID {
	return body.id
}

// Type returns the type of the body.
func (body *Body) Type() BodyType {
	return body.bodyType
}

// SetType sets the type of the body.
//
// Static and kinematic bodies get zero inverse mass and inverse inertia. Static bodies also lose their velocity.
func (body *Body) SetType(bt BodyType) error {
	if body.World != nil && body.World.IsLocked() {
		return fmt.Errorf("set type of %v: %w", body, ErrWorldLocked)
	}
	body.bodyType = bt
	if bt == Dynamic {
		body.massInverse = inverseOrZero(body.mass)
		body.inertiaInverse = body.inertia.Inv()
	} else {
		body.massInverse = 0
		body.inertiaInverse = mgl64.Mat3{}
	}
	if bt == Static {
		body.velocity = mgl64.Vec3{}
		body.w = mgl64.Vec3{}
	}
	body.updateInertiaWorld()
	return nil
}

// Mass returns mass of the body
func (body *Body) Mass() float64 {
	return body.mass
}

// SetMass sets mass of the body
func (body *Body) SetMass(mass float64) {
	body.mass = mass
	if body.bodyType == Dynamic {
		body.massInverse = inverseOrZero(mass)
	}
}

// InverseMass returns the inverse mass, 0 for static and kinematic bodies.
func (body *Body) InverseMass() float64 {
	return body.massInverse
}

// Inertia returns the local inertia tensor.
func (body *Body) Inertia() mgl64.Mat3 {
	return body.inertia
}

// SetInertia sets the local inertia tensor of the body.
func (body *Body) SetInertia(inertia mgl64.Mat3) {
	body.inertia = inertia
	if body.bodyType == Dynamic {
		body.inertiaInverse = inertia.Inv()
	}
	body.updateInertiaWorld()
}

// InverseInertiaWorld returns the world space inverse inertia tensor, zero for non-dynamic bodies.
func (body *Body) InverseInertiaWorld() mgl64.Mat3 {
	return body.inertiaInverseWorld
}

func (body *Body) updateInertiaWorld() {
	if body.bodyType != Dynamic {
		body.inertiaInverseWorld = mgl64.Mat3{}
		return
	}
	r := body.transform.RotationMatrix()
	body.inertiaInverseWorld = r.Mul3(body.inertiaInverse).Mul3(r.Transpose())
}

// Position returns the position of the body.
func (body *Body) Position() mgl64.Vec3 {
	return body.transform.Position
}

// SetPosition sets the position of the body.
func (body *Body) SetPosition(position mgl64.Vec3) {
	body.transform.Position = position
}

// Rotation returns the orientation of the body.
func (body *Body) Rotation() mgl64.Quat {
	return body.transform.Rotation
}

// SetRotation sets the orientation of the body.
func (body *Body) SetRotation(rotation mgl64.Quat) {
	body.transform.Rotation = rotation.Normalize()
	body.updateInertiaWorld()
}

// SetTransform sets transform
func (body *Body) SetTransform(t Transform) {
	body.transform.Position = t.Position
	body.SetRotation(t.Rotation)
}

// Transform returns body's transform
func (body *Body) Transform() Transform {
	return body.transform
}

// CenterOfMass returns the center of mass in world coordinates.
func (body *Body) CenterOfMass() mgl64.Vec3 {
	return body.transform.Position
}

// Velocity returns the velocity of the body.
func (body *Body) Velocity() mgl64.Vec3 {
	return body.velocity
}

// SetVelocity sets the velocity of the body. Static bodies ignore it.
func (body *Body) SetVelocity(v mgl64.Vec3) {
	if body.bodyType == Static {
		return
	}
	body.velocity = v
}

// AngularVelocity returns the angular velocity of the body.
func (body *Body) AngularVelocity() mgl64.Vec3 {
	return body.w
}

// SetAngularVelocity sets the angular velocity of the body. Static bodies ignore it.
func (body *Body) SetAngularVelocity(w mgl64.Vec3) {
	if body.bodyType == Static {
		return
	}
	body.w = w
}

// Force returns the force applied to the body for the next time step.
func (body *Body) Force() mgl64.Vec3 {
	return body.force
}

// SetForce sets the force applied to the body for the next time step.
func (body *Body) SetForce(force mgl64.Vec3) {
	body.force = force
}

// Torque returns the torque applied to the body for the next time step.
func (body *Body) Torque() mgl64.Vec3 {
	return body.torque
}

// SetTorque sets the torque applied to the body for the next time step.
func (body *Body) SetTorque(torque mgl64.Vec3) {
	body.torque = torque
}

// WorldToLocal converts from world to body local coordinates.
func (body *Body) WorldToLocal(point mgl64.Vec3) mgl64.Vec3 {
	return body.transform.Inverse().Apply(point)
}

// LocalToWorld converts from body local to world coordinates.
func (body *Body) LocalToWorld(point mgl64.Vec3) mgl64.Vec3 {
	return body.transform.Apply(point)
}

// ApplyForceAtWorldPoint applies a force at world point.
func (body *Body) ApplyForceAtWorldPoint(force, point mgl64.Vec3) {
	body.force = body.force.Add(force)
	r := point.Sub(body.transform.Position)
	body.torque = body.torque.Add(r.Cross(force))
}

// ApplyImpulseAtWorldPoint applies impulse at world point
func (body *Body) ApplyImpulseAtWorldPoint(impulse, point mgl64.Vec3) {
	r := point.Sub(body.transform.Position)
	applyImpulse(body, impulse, r)
}

// VelocityAtWorldPoint returns the world velocity of a point given in world coordinates.
func (body *Body) VelocityAtWorldPoint(point mgl64.Vec3) mgl64.Vec3 {
	r := point.Sub(body.transform.Position)
	return body.velocity.Add(body.w.Cross(r))
}

// KineticEnergy returns the kinetic energy of this body. Non-dynamic bodies report 0.
func (body *Body) KineticEnergy() float64 {
	if body.bodyType != Dynamic {
		return 0
	}
	r := body.transform.RotationMatrix()
	inertiaWorld := r.Mul3(body.inertia).Mul3(r.Transpose())
	return 0.5*body.mass*body.velocity.Dot(body.velocity) + 0.5*body.w.Dot(inertiaWorld.Mul3x1(body.w))
}

// MotionState returns a snapshot of the body's mass properties and velocities.
func (body *Body) MotionState() MotionState {
	state := MotionState{
		Type:            body.bodyType,
		InverseMass:     body.massInverse,
		InverseInertia:  body.inertiaInverseWorld,
		CenterOfMass:    body.transform.Position,
		LinearVelocity:  body.velocity,
		AngularVelocity: body.w,
	}
	if body.bodyType == Static {
		state.LinearVelocity = mgl64.Vec3{}
		state.AngularVelocity = mgl64.Vec3{}
	}
	return state
}

// SetVelocityUpdateFunc sets the callback used to update a body's velocity.
func (body *Body) SetVelocityUpdateFunc(f BodyVelocityFunc) {
	body.velocityFunc = f
}

// SetPositionUpdateFunc sets the callback used to update a body's position.
func (body *Body) SetPositionUpdateFunc(f BodyPositionFunc) {
	body.positionFunc = f
}

// BodyUpdateVelocity is default velocity integration function.
func BodyUpdateVelocity(body *Body, gravity mgl64.Vec3, damping, dt float64) {
	if body.bodyType != Dynamic {
		return
	}

	body.velocity = body.velocity.Mul(damping).Add(gravity.Add(body.force.Mul(body.massInverse)).Mul(dt))
	body.w = body.w.Mul(damping).Add(body.inertiaInverseWorld.Mul3x1(body.torque).Mul(dt))

	body.force = mgl64.Vec3{}
	body.torque = mgl64.Vec3{}
}

// BodyUpdatePosition is default position integration function.
func BodyUpdatePosition(body *Body, dt float64) {
	if body.bodyType == Static {
		return
	}
	body.transform.Position = body.transform.Position.Add(body.velocity.Add(body.vBias).Mul(dt))

	// q' = q + 0.5 * (0, w) * q * dt
	spin := mgl64.Quat{W: 0, V: body.w.Add(body.wBias).Mul(0.5 * dt)}
	q := body.transform.Rotation
	body.SetRotation(q.Add(spin.Mul(q)))

	body.vBias = mgl64.Vec3{}
	body.wBias = mgl64.Vec3{}
}

func applyImpulse(body *Body, j, r mgl64.Vec3) {
	body.velocity = body.velocity.Add(j.Mul(body.massInverse))
	body.w = body.w.Add(body.inertiaInverseWorld.Mul3x1(r.Cross(j)))
}

func applyImpulses(a, b *Body, r1, r2, j mgl64.Vec3) {
	applyImpulse(a, j.Mul(-1), r1)
	applyImpulse(b, j, r2)
}

func applyBiasImpulse(body *Body, j, r mgl64.Vec3) {
	body.vBias = body.vBias.Add(j.Mul(body.massInverse))
	body.wBias = body.wBias.Add(body.inertiaInverseWorld.Mul3x1(r.Cross(j)))
}

func applyBiasImpulses(a, b *Body, r1, r2, j mgl64.Vec3) {
	applyBiasImpulse(a, j.Mul(-1), r1)
	applyBiasImpulse(b, j, r2)
}

func inverseOrZero(f float64) float64 {
	if f == 0 || f == infinity {
		return 0
	}
	return 1 / f
}

// MotionState is a read-only snapshot of the mass properties and velocities of a body.
//
// It is a plain value so it can be handed to EstimateCollisionResponse from any goroutine.
type MotionState struct {
	Type BodyType
	// InverseMass is 0 for static and kinematic bodies.
	InverseMass float64
	// InverseInertia is the world space inverse inertia tensor, zero for static and kinematic bodies.
	InverseInertia  mgl64.Mat3
	CenterOfMass    mgl64.Vec3
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// KineticEnergy returns the kinetic energy for the given mass and local-to-world inertia.
// Useful when the caller only holds inverse quantities.
func (s MotionState) KineticEnergy(mass float64, inertiaWorld mgl64.Mat3) float64 {
	return 0.5*mass*s.LinearVelocity.Dot(s.LinearVelocity) + 0.5*s.AngularVelocity.Dot(inertiaWorld.Mul3x1(s.AngularVelocity))
}
