package trace

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/setanarut/cm3d"
)

// Estimate is the predicted response stored with Added and Persisted events.
type Estimate struct {
	Impulses         []float64  `json:"impulses"`
	LinearVelocityA  [3]float64 `json:"linear_velocity_a"`
	AngularVelocityA [3]float64 `json:"angular_velocity_a"`
	LinearVelocityB  [3]float64 `json:"linear_velocity_b"`
	AngularVelocityB [3]float64 `json:"angular_velocity_b"`
}

// Recorder is a ContactListener that forwards every callback to an inner
// listener and records the event it saw. Callbacks may run concurrently.
//
// Listener callbacks cannot fail, so the first write error is kept and
// reported by Err.
type Recorder struct {
	inner  cm3d.ContactListener
	writer *Writer
	world  *cm3d.World

	mu      sync.Mutex
	err     error
	elapsed float64
}

// NewRecorder wraps inner. A nil inner listener accepts everything.
func NewRecorder(writer *Writer, world *cm3d.World, inner cm3d.ContactListener) *Recorder {
	if inner == nil {
		inner = cm3d.CollisionHandlerDoNothing
	}
	return &Recorder{inner: inner, writer: writer, world: world}
}

// Err returns the first error hit while recording.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

func (r *Recorder) step() uint64 {
	if r.world == nil {
		return 0
	}
	return uint64(r.world.Stamp())
}

func (r *Recorder) OnContactValidate(a, b *cm3d.Body, baseOffset mgl64.Vec3, m *cm3d.Manifold) cm3d.ValidateResult {
	res := r.inner.OnContactValidate(a, b, baseOffset, m)
	if res == cm3d.RejectAll {
		r.fail(r.writer.AppendEvent(Event{
			Step:   r.step(),
			Kind:   KindRejected,
			BodyA:  uint32(a.ID()),
			BodyB:  uint32(b.ID()),
			Points: m.Count(),
		}))
	}
	return res
}

func (r *Recorder) OnContactAdded(a, b *cm3d.Body, m *cm3d.Manifold, settings *cm3d.ContactSettings) {
	r.inner.OnContactAdded(a, b, m, settings)
	r.record(KindAdded, a, b, m, settings)
}

func (r *Recorder) OnContactPersisted(a, b *cm3d.Body, m *cm3d.Manifold, settings *cm3d.ContactSettings) {
	r.inner.OnContactPersisted(a, b, m, settings)
	r.record(KindPersisted, a, b, m, settings)
}

func (r *Recorder) OnContactRemoved(pair cm3d.BodyPair) {
	r.inner.OnContactRemoved(pair)
	r.fail(r.writer.AppendEvent(Event{
		Step:  r.step(),
		Kind:  KindRemoved,
		BodyA: uint32(pair.A),
		BodyB: uint32(pair.B),
	}))
}

// record runs after the inner listener so the stored settings are the ones
// the solver will use.
func (r *Recorder) record(kind string, a, b *cm3d.Body, m *cm3d.Manifold, settings *cm3d.ContactSettings) {
	e := Event{
		Step:        r.step(),
		Kind:        kind,
		BodyA:       uint32(a.ID()),
		BodyB:       uint32(b.ID()),
		Points:      m.Count(),
		Friction:    settings.CombinedFriction,
		Restitution: settings.CombinedRestitution,
		Sensor:      settings.IsSensor,
	}
	if !settings.IsSensor {
		est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, settings.CombinedRestitution)
		if err != nil {
			r.fail(err)
		} else {
			e.Estimate = &Estimate{
				Impulses:         est.Impulses,
				LinearVelocityA:  est.LinearVelocityA,
				AngularVelocityA: est.AngularVelocityA,
				LinearVelocityB:  est.LinearVelocityB,
				AngularVelocityB: est.AngularVelocityB,
			}
		}
	}
	r.fail(r.writer.AppendEvent(e))
}

// CaptureFrame appends the state of every body in w. Call it after Step.
func (r *Recorder) CaptureFrame(w *cm3d.World) error {
	r.mu.Lock()
	r.elapsed += w.TimeStep()
	elapsed := r.elapsed
	r.mu.Unlock()

	bodies := w.Bodies()
	frame := Frame{
		Step:   uint64(w.Stamp()),
		Time:   elapsed,
		Bodies: make([]BodyState, 0, len(bodies)),
	}
	for _, b := range bodies {
		q := b.Rotation()
		frame.Bodies = append(frame.Bodies, BodyState{
			ID:              uint32(b.ID()),
			Type:            uint8(b.Type()),
			Position:        b.Position(),
			Rotation:        [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
			Velocity:        b.Velocity(),
			AngularVelocity: b.AngularVelocity(),
		})
	}
	err := r.writer.AppendFrame(frame)
	r.fail(err)
	return err
}

var _ cm3d.ContactListener = (*Recorder)(nil)
