package cm3d

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

// CombineFunc mixes a material coefficient of two bodies.
type CombineFunc func(a, b *Body) float64

// CombineFrictionGeometric returns sqrt(a * b).
func CombineFrictionGeometric(a, b *Body) float64 {
	return math.Sqrt(a.Friction * b.Friction)
}

// CombineRestitutionMax returns the larger restitution.
func CombineRestitutionMax(a, b *Body) float64 {
	return math.Max(a.Restitution, b.Restitution)
}

// Stats describes the last step.
type Stats struct {
	Stamp          uint
	CandidatePairs int
	Manifolds      int
	Rejected       int
	Sensors        int
	Constraints    int
	ContactPoints  int
}

// World is the basic unit of simulation. You add rigid bodies to it and then step them all forward through time together.
type World struct {
	// Number of iterations to use in the impulse solver to solve contacts and other constraints.
	Iterations uint

	// Gravity to pass to rigid bodies when integrating velocity.
	Gravity mgl64.Vec3

	// Damping rate expressed as the fraction of velocity bodies retain each second.
	//
	// A value of 0.9 would mean that each body's velocity will drop 10% per second.
	// The default value is 1.0, meaning no damping is applied.
	Damping float64

	// Amount of encouraged penetration between colliding shapes.
	//
	// Used to reduce oscillating contacts and keep the collision cache warm.
	// Defaults to 0.01.
	CollisionSlop float64

	// Determines how fast overlapping shapes are pushed apart.
	//
	// Expressed as a fraction of the error remaining after each second.
	// Defaults to pow(1.0 - 0.1, 60.0) meaning that the world attempts to correct 10% of error ever 1/60th of a second.
	CollisionBias float64

	// Approach speeds below this value do not bounce. Defaults to 1.
	MinVelocityForRestitution float64

	// Maximum number of goroutines used by the narrow phase. Defaults to GOMAXPROCS.
	Workers int

	// BroadPhase finds candidate pairs. Defaults to SweepAndPrune.
	BroadPhase BroadPhase

	// Solver resolves accepted contacts. When nil a SequentialImpulseSolver configured from the fields above is used.
	Solver Solver

	CombineFriction    CombineFunc
	CombineRestitution CombineFunc

	Logger *slog.Logger

	// UserData is a user definable field
	UserData any

	bodies            []*Body
	bodyByID          map[BodyID]*Body
	bodyIDCounter     BodyID
	shapes            []*Shape
	pairs             [][2]*Shape
	dispatcher        *ContactDispatcher
	constraints       []*ContactConstraint
	constraintsMu     sync.Mutex
	stamp             uint
	currDT            float64
	locked            bool
	postStepMu        sync.Mutex
	PostStepCallbacks []*PostStepCallback
	skipPostStep      bool
	stats             Stats
}

// NewWorld allocates and initializes a World
func NewWorld() *World {
	return &World{
		Iterations:                10,
		Gravity:                   mgl64.Vec3{0, -9.81, 0},
		Damping:                   1.0,
		CollisionSlop:             0.01,
		CollisionBias:             math.Pow(1.0-0.1, 60.0),
		MinVelocityForRestitution: 1,
		Workers:                   runtime.GOMAXPROCS(0),
		BroadPhase:                NewSweepAndPrune(),
		CombineFriction:           CombineFrictionGeometric,
		CombineRestitution:        CombineRestitutionMax,
		Logger:                    slog.New(slog.NewTextHandler(io.Discard, nil)),
		bodyByID:                  make(map[BodyID]*Body),
		dispatcher:                NewContactDispatcher(nil),
		PostStepCallbacks:         []*PostStepCallback{},
	}
}

// SetContactListener sets the listener that receives contact events. Nil restores the default that accepts everything.
func (w *World) SetContactListener(listener ContactListener) error {
	if w.locked {
		return fmt.Errorf("set contact listener: %w", ErrWorldLocked)
	}
	w.dispatcher.SetListener(listener)
	return nil
}

func (w *World) ContactListener() ContactListener {
	return w.dispatcher.Listener()
}

// AddBody adds a body to the world and assigns its id.
func (w *World) AddBody(body *Body) error {
	if body.World != nil {
		return fmt.Errorf("add %v: %w", body, ErrBodyInWorld)
	}
	if w.locked {
		return fmt.Errorf("add %v: %w", body, ErrWorldLocked)
	}
	w.bodyIDCounter++
	body.id = w.bodyIDCounter
	body.World = w
	w.bodies = append(w.bodies, body)
	w.bodyByID[body.id] = body
	if body.Shape != nil {
		body.Shape.CacheBB()
	}
	return nil
}

// RemoveBody removes a body from the world and reports the end of all its contacts.
//
// While the world is locked the removal is deferred to a post-step callback and nil is returned.
func (w *World) RemoveBody(body *Body) error {
	if body.World != w {
		return fmt.Errorf("remove %v: %w", body, ErrBodyNotInWorld)
	}
	if w.locked {
		w.AddPostStepCallback(func(w *World, key, _ any) {
			if err := w.RemoveBody(key.(*Body)); err != nil {
				w.logger().Warn("deferred body removal failed", "body", key, "error", err)
			}
		}, body, nil)
		return nil
	}

	w.bodies = slices.DeleteFunc(w.bodies, func(b *Body) bool { return b == body })
	delete(w.bodyByID, body.id)
	err := w.dispatcher.RemoveBody(body.id)
	body.World = nil
	body.id = 0
	return err
}

// Body returns the body with the given id, or nil.
func (w *World) Body(id BodyID) *Body {
	return w.bodyByID[id]
}

// Bodies returns the bodies in the order they were added.
func (w *World) Bodies() []*Body {
	return slices.Clone(w.bodies)
}

// EachBody calls f for every body in the world.
func (w *World) EachBody(f func(body *Body)) {
	for _, body := range w.bodies {
		f(body)
	}
}

func (w *World) BodyCount() int {
	return len(w.bodies)
}

// ContainsBody returns true if body is in the world.
func (w *World) ContainsBody(body *Body) bool {
	return body.World == w
}

// Clear removes every body without reporting contact removals.
func (w *World) Clear() error {
	if w.locked {
		return fmt.Errorf("clear: %w", ErrWorldLocked)
	}
	for _, body := range w.bodies {
		body.World = nil
		body.id = 0
	}
	w.bodies = w.bodies[:0]
	clear(w.bodyByID)
	w.constraints = w.constraints[:0]
	w.dispatcher.Reset()
	return nil
}

// Step makes the world step forward in time by dt.
//
// A failure while collecting contacts, such as a panicking listener, aborts
// the step before any body moves. No contact state is committed, no removal is
// reported and post-step callbacks stay queued for the next successful step.
// A panic inside OnContactRemoved also stops the step, after the contact state
// has been committed.
func (w *World) Step(dt float64) error {
	// don't step if the timestep is 0!
	if dt == 0 {
		return nil
	}
	if w.locked {
		return fmt.Errorf("step: %w", ErrWorldLocked)
	}

	w.stamp++
	w.currDT = dt
	w.stats = Stats{Stamp: w.stamp}
	w.constraints = w.constraints[:0]

	w.Lock()
	if err := w.collide(); err != nil {
		w.dispatcher.AbortStep()
		w.Unlock(false)
		w.logger().Warn("step aborted", "stamp", w.stamp, "error", err)
		return err
	}
	if err := w.dispatcher.EndStep(); err != nil {
		w.Unlock(false)
		w.logger().Warn("contact removal failed", "stamp", w.stamp, "error", err)
		return err
	}

	slices.SortFunc(w.constraints, func(x, y *ContactConstraint) int {
		return compareBodyPair(x.Pair(), y.Pair())
	})
	w.stats.Constraints = len(w.constraints)
	for _, c := range w.constraints {
		w.stats.ContactPoints += c.Manifold.Count()
	}

	// Integrate velocities.
	damping := math.Pow(w.Damping, dt)
	for _, body := range w.bodies {
		body.velocityFunc(body, w.Gravity, damping, dt)
	}

	w.solver().Solve(w.constraints, dt)

	// Integrate positions.
	for _, body := range w.bodies {
		body.positionFunc(body, dt)
	}

	w.logger().Debug("step",
		"stamp", w.stamp,
		"pairs", w.stats.CandidatePairs,
		"manifolds", w.stats.Manifolds,
		"constraints", w.stats.Constraints,
		"contacts", w.dispatcher.ContactCount())

	w.Unlock(true)
	return nil
}

// collide runs the broad phase and then the narrow phase and contact dispatch on a worker pool.
func (w *World) collide() error {
	if err := w.dispatcher.BeginStep(); err != nil {
		return err
	}

	w.shapes = w.shapes[:0]
	for _, body := range w.bodies {
		if body.Shape != nil {
			body.Shape.CacheBB()
			w.shapes = append(w.shapes, body.Shape)
		}
	}

	w.pairs = w.pairs[:0]
	w.broadPhase().Pairs(w.shapes, func(a, b *Shape) {
		if QueryReject(a, b) {
			return
		}
		if a.Body.id > b.Body.id {
			a, b = b, a
		}
		w.pairs = append(w.pairs, [2]*Shape{a, b})
	})
	w.stats.CandidatePairs = len(w.pairs)

	var manifolds, rejected, sensors atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, w.Workers))
	for _, pair := range w.pairs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			a, b := pair[0], pair[1]
			m := Collide(a, b)
			if m.Count() == 0 {
				return nil
			}
			manifolds.Add(1)

			settings, accepted, err := w.dispatcher.Dispatch(a.Body, b.Body, &m, w.contactSettings(a, b))
			if err != nil {
				return err
			}
			if !accepted {
				rejected.Add(1)
				return nil
			}
			if settings.IsSensor {
				sensors.Add(1)
				return nil
			}
			c := NewContactConstraint(a.Body, b.Body, m, settings)
			w.constraintsMu.Lock()
			w.constraints = append(w.constraints, c)
			w.constraintsMu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	w.stats.Manifolds = int(manifolds.Load())
	w.stats.Rejected = int(rejected.Load())
	w.stats.Sensors = int(sensors.Load())
	return err
}

// contactSettings returns the settings a new manifold starts with.
func (w *World) contactSettings(a, b *Shape) ContactSettings {
	friction, restitution := w.CombineFriction, w.CombineRestitution
	if friction == nil {
		friction = CombineFrictionGeometric
	}
	if restitution == nil {
		restitution = CombineRestitutionMax
	}
	return ContactSettings{
		CombinedFriction:    friction(a.Body, b.Body),
		CombinedRestitution: restitution(a.Body, b.Body),
		IsSensor:            a.Sensor || b.Sensor,
	}
}

func (w *World) broadPhase() BroadPhase {
	if w.BroadPhase == nil {
		w.BroadPhase = NewSweepAndPrune()
	}
	return w.BroadPhase
}

func (w *World) solver() Solver {
	if w.Solver != nil {
		return w.Solver
	}
	return &SequentialImpulseSolver{
		Iterations:                w.Iterations,
		CollisionSlop:             w.CollisionSlop,
		CollisionBias:             w.CollisionBias,
		MinVelocityForRestitution: w.MinVelocityForRestitution,
	}
}

func (w *World) logger() *slog.Logger {
	if w.Logger == nil {
		w.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.Logger
}

func (w *World) Lock() {
	w.locked = true
}

// IsLocked returns true from inside a callback when objects cannot be added/removed.
func (w *World) IsLocked() bool {
	return w.locked
}

func (w *World) Unlock(runPostStep bool) {
	w.locked = false

	if runPostStep && !w.skipPostStep {
		w.skipPostStep = true

		for i := 0; i < len(w.PostStepCallbacks); i++ {
			callback := w.PostStepCallbacks[i]
			f := callback.callback

			// Mark the func as nil in case calling it adds more callbacks for the same key.
			callback.callback = nil

			if f != nil {
				f(w, callback.key, callback.data)
			}
		}

		w.PostStepCallbacks = w.PostStepCallbacks[:0]
		w.skipPostStep = false
	}
}

// TimeStep returns the dt of the current or last step.
func (w *World) TimeStep() float64 {
	return w.currDT
}

// Stamp returns the number of steps taken.
func (w *World) Stamp() uint {
	return w.stamp
}

// Stats returns counters for the last step.
func (w *World) Stats() Stats {
	return w.stats
}

// Dispatcher returns the contact dispatcher of the world.
func (w *World) Dispatcher() *ContactDispatcher {
	return w.dispatcher
}

// Contacts returns the constraints solved by the last step, sorted by body pair.
func (w *World) Contacts() []*ContactConstraint {
	return w.constraints
}

// HasContact returns true if a and b were touching at the end of the last step.
func (w *World) HasContact(a, b *Body) bool {
	return w.dispatcher.HasContact(NewBodyPair(a.id, b.id))
}

// ContactCount returns the number of body pairs touching at the end of the last step.
func (w *World) ContactCount() int {
	return w.dispatcher.ContactCount()
}

func (w *World) PostStepCallback(key any) *PostStepCallback {
	w.postStepMu.Lock()
	defer w.postStepMu.Unlock()
	return w.postStepCallback(key)
}

func (w *World) postStepCallback(key any) *PostStepCallback {
	for _, callback := range w.PostStepCallbacks {
		if callback != nil && callback.key == key {
			return callback
		}
	}
	return nil
}

// AddPostStepCallback defines a callback to be run just before w.Step() finishes.
//
// Post-step callbacks are the way to add and remove bodies from a contact listener.
// You can only schedule one post-step callback per key value, this prevents you from accidentally removing an object twice.
// Registering a second callback for the same key is a no-op and returns false.
// It is safe to call from contact listeners running concurrently.
func (w *World) AddPostStepCallback(f PostStepCallbackFunc, key, data any) bool {
	w.postStepMu.Lock()
	defer w.postStepMu.Unlock()
	if key == nil || w.postStepCallback(key) == nil {
		callback := &PostStepCallback{
			key:  key,
			data: data,
		}
		if f != nil {
			callback.callback = f
		} else {
			callback.callback = PostStepDoNothing
		}
		w.PostStepCallbacks = append(w.PostStepCallbacks, callback)
		return true
	}
	return false
}

func PostStepDoNothing(world *World, key, data any) {}

type PostStepCallback struct {
	callback PostStepCallbackFunc
	key      any
	data     any
}

type PostStepCallbackFunc func(world *World, key any, data any)

// QueryAABB calls f for every shape whose cached bounds overlap bb and whose filter accepts filter.
func (w *World) QueryAABB(bb AABB, filter ShapeFilter, f func(shape *Shape)) {
	for _, body := range w.bodies {
		shape := body.Shape
		if shape == nil || filter.Reject(shape.Filter) || !shape.BB.Intersects(bb) {
			continue
		}
		f(shape)
	}
}

// ShapeQuery collides shape against every shape in the world and calls callback for each contact.
// It returns true if any contact was found with a non-sensor shape.
func (w *World) ShapeQuery(shape *Shape, callback func(other *Shape, m *Manifold)) (bool, error) {
	if w.locked {
		return false, fmt.Errorf("shape query: %w", ErrWorldLocked)
	}
	bb := shape.CacheBB()

	var anyCollision bool
	w.QueryAABB(bb, shape.Filter, func(other *Shape) {
		if other == shape || other.Body == shape.Body {
			return
		}
		other.CacheBB()
		m := Collide(shape, other)
		if m.Count() == 0 {
			return
		}
		if callback != nil {
			callback(other, &m)
		}
		if !shape.Sensor && !other.Sensor {
			anyCollision = true
		}
	})
	return anyCollision, nil
}

// KineticEnergy returns the total kinetic energy of the dynamic bodies.
func (w *World) KineticEnergy() float64 {
	var sum float64
	for _, body := range w.bodies {
		sum += body.KineticEnergy()
	}
	return sum
}

// DebugInfo returns a summary of the world state.
func (w *World) DebugInfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stamp %d, dt %g, bodies %d\n", w.stamp, w.currDT, len(w.bodies))
	fmt.Fprintf(&sb, "pairs %d, manifolds %d, rejected %d, sensors %d, constraints %d, points %d\n",
		w.stats.CandidatePairs, w.stats.Manifolds, w.stats.Rejected, w.stats.Sensors,
		w.stats.Constraints, w.stats.ContactPoints)
	for _, pair := range w.dispatcher.Pairs() {
		fmt.Fprintf(&sb, "contact %v\n", pair)
	}
	fmt.Fprintf(&sb, "kinetic energy %.6g\n", w.KineticEnergy())
	return sb.String()
}
