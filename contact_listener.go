package cm3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ValidateResult is the outcome of a contact validation callback.
type ValidateResult uint8

const (
	// AcceptAll lets the pair generate contacts this step.
	AcceptAll ValidateResult = iota
	// RejectAll excludes the pair for this step. No Added, Persisted or Removed
	// event fires for it until it is accepted again.
	RejectAll
)

func (r ValidateResult) String() string {
	switch r {
	case AcceptAll:
		return "accept"
	case RejectAll:
		return "reject"
	default:
		return fmt.Sprintf("ValidateResult(%d)", uint8(r))
	}
}

// ContactSettings are the per pair parameters the solver uses.
//
// They are created from the combined body materials before OnContactAdded or
// OnContactPersisted runs, and the listener may change them in place.
type ContactSettings struct {
	CombinedFriction    float64
	CombinedRestitution float64
	// Relative surface velocity of B with respect to A, for conveyor belts and the like.
	RelativeLinearSurfaceVelocity  mgl64.Vec3
	RelativeAngularSurfaceVelocity mgl64.Vec3
	// IsSensor turns the contact into an event only contact. It starts true if either shape is a sensor.
	IsSensor bool
}

// Validate checks that the coefficients are finite and non-negative.
func (s *ContactSettings) Validate() error {
	if !isFinite(s.CombinedFriction) || s.CombinedFriction < 0 {
		return fmt.Errorf("%w: friction %g", ErrInvalidSettings, s.CombinedFriction)
	}
	if !isFinite(s.CombinedRestitution) || s.CombinedRestitution < 0 {
		return fmt.Errorf("%w: restitution %g", ErrInvalidSettings, s.CombinedRestitution)
	}
	if !isFiniteVec(s.RelativeLinearSurfaceVelocity) || !isFiniteVec(s.RelativeAngularSurfaceVelocity) {
		return fmt.Errorf("%w: non-finite surface velocity", ErrInvalidSettings)
	}
	return nil
}

// ContactListener receives the contact lifecycle of every body pair.
//
// Callbacks run on narrow phase worker goroutines, concurrently for unrelated
// pairs, while the world is locked. They must not block. Bodies may be read but
// not modified; use World.AddPostStepCallback to defer changes. A panic inside
// a callback aborts the step and is returned from World.Step.
type ContactListener interface {
	// OnContactValidate is called once per candidate pair before contacts are committed.
	OnContactValidate(a, b *Body, baseOffset mgl64.Vec3, m *Manifold) ValidateResult
	// OnContactAdded is called when a pair without contact last step has one now.
	OnContactAdded(a, b *Body, m *Manifold, settings *ContactSettings)
	// OnContactPersisted is called when a pair in contact last step is still in contact.
	OnContactPersisted(a, b *Body, m *Manifold, settings *ContactSettings)
	// OnContactRemoved is called when a pair in contact last step no longer is.
	// Bodies may already be gone, so only their ids are given.
	OnContactRemoved(pair BodyPair)
}

type ContactValidateFunc func(a, b *Body, baseOffset mgl64.Vec3, m *Manifold, userData any) ValidateResult

type ContactAddedFunc func(a, b *Body, m *Manifold, settings *ContactSettings, userData any)

type ContactPersistedFunc func(a, b *Body, m *Manifold, settings *ContactSettings, userData any)

type ContactRemovedFunc func(pair BodyPair, userData any)

// CollisionHandler is a ContactListener built from optional callbacks.
// Nil callbacks accept every pair and ignore every event.
type CollisionHandler struct {
	ValidateFunc  ContactValidateFunc
	AddedFunc     ContactAddedFunc
	PersistedFunc ContactPersistedFunc
	RemovedFunc   ContactRemovedFunc
	// This is a user definable context pointer that is passed to all of the callbacks.
	UserData any
}

func (h *CollisionHandler) OnContactValidate(a, b *Body, baseOffset mgl64.Vec3, m *Manifold) ValidateResult {
	if h.ValidateFunc == nil {
		return AlwaysCollide(a, b, baseOffset, m, h.UserData)
	}
	return h.ValidateFunc(a, b, baseOffset, m, h.UserData)
}

func (h *CollisionHandler) OnContactAdded(a, b *Body, m *Manifold, settings *ContactSettings) {
	if h.AddedFunc != nil {
		h.AddedFunc(a, b, m, settings, h.UserData)
	}
}

func (h *CollisionHandler) OnContactPersisted(a, b *Body, m *Manifold, settings *ContactSettings) {
	if h.PersistedFunc != nil {
		h.PersistedFunc(a, b, m, settings, h.UserData)
	}
}

func (h *CollisionHandler) OnContactRemoved(pair BodyPair) {
	if h.RemovedFunc != nil {
		h.RemovedFunc(pair, h.UserData)
	}
}

// AlwaysCollide accepts every pair.
func AlwaysCollide(_, _ *Body, _ mgl64.Vec3, _ *Manifold, _ any) ValidateResult {
	return AcceptAll
}

// CollisionHandlerDoNothing accepts everything and ignores all events.
var CollisionHandlerDoNothing = &CollisionHandler{}

// ContactListeners fans events out to several listeners in order.
// A pair is accepted only if every listener accepts it.
type ContactListeners []ContactListener

func (ls ContactListeners) OnContactValidate(a, b *Body, baseOffset mgl64.Vec3, m *Manifold) ValidateResult {
	for _, l := range ls {
		if l.OnContactValidate(a, b, baseOffset, m) == RejectAll {
			return RejectAll
		}
	}
	return AcceptAll
}

func (ls ContactListeners) OnContactAdded(a, b *Body, m *Manifold, settings *ContactSettings) {
	for _, l := range ls {
		l.OnContactAdded(a, b, m, settings)
	}
}

func (ls ContactListeners) OnContactPersisted(a, b *Body, m *Manifold, settings *ContactSettings) {
	for _, l := range ls {
		l.OnContactPersisted(a, b, m, settings)
	}
}

func (ls ContactListeners) OnContactRemoved(pair BodyPair) {
	for _, l := range ls {
		l.OnContactRemoved(pair)
	}
}
