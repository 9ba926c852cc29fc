package cm3d

import "errors"

var (
	// ErrInvalidManifold is returned when a manifold has no points, non-finite
	// values, a non-unit normal or does not reference two distinct bodies.
	ErrInvalidManifold = errors.New("cm3d: invalid contact manifold")
	// ErrInvalidRestitution is returned by the estimator for a NaN restitution.
	ErrInvalidRestitution = errors.New("cm3d: invalid restitution")
	// ErrInvalidSettings is returned when a listener leaves negative or
	// non-finite coefficients in ContactSettings.
	ErrInvalidSettings = errors.New("cm3d: invalid contact settings")
	// ErrListenerPanic wraps a panic recovered from a contact listener callback.
	ErrListenerPanic = errors.New("cm3d: contact listener panicked")
	// ErrDuplicatePair is returned when the same body pair is dispatched twice in one step.
	ErrDuplicatePair = errors.New("cm3d: body pair dispatched twice in one step")
	// ErrNoStep is returned when contacts are dispatched outside of a step.
	ErrNoStep = errors.New("cm3d: no step in progress")
	// ErrStepInProgress is returned when a step is started before the previous one finished.
	ErrStepInProgress = errors.New("cm3d: step already in progress")
	// ErrWorldLocked is returned for operations that are not allowed while the world is stepping.
	ErrWorldLocked = errors.New("cm3d: world is locked")
	// ErrBodyInWorld is returned when adding a body that already belongs to a world.
	ErrBodyInWorld = errors.New("cm3d: body already belongs to a world")
	// ErrBodyNotInWorld is returned when removing a body the world does not own.
	ErrBodyNotInWorld = errors.New("cm3d: body does not belong to this world")
)
