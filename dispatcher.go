package cm3d

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// contactRecord is what the dispatcher remembers about a pair in contact.
type contactRecord struct {
	settings ContactSettings
	points   int
	// Step that last produced an accepted manifold for the pair.
	stamp uint
}

// ContactDispatcher classifies the manifolds of each step as added, persisted
// or removed and reports them to a ContactListener.
//
// A step is BeginStep, any number of concurrent Dispatch calls, then EndStep or
// AbortStep. A pair whose Dispatch failed counts as rejected for the rest of
// the step, so EndStep keeps its previous state. The previous step's pairs are only read while a step runs, so
// Dispatch needs no lock for them. The current step's pairs are guarded by a
// mutex that is never held while the listener runs.
type ContactDispatcher struct {
	listener ContactListener
	previous map[BodyPair]contactRecord

	mu       sync.Mutex
	current  map[BodyPair]contactRecord
	rejected map[BodyPair]struct{}
	stepping bool
	stamp    uint
}

// NewContactDispatcher returns a dispatcher reporting to listener. A nil listener accepts everything.
func NewContactDispatcher(listener ContactListener) *ContactDispatcher {
	d := &ContactDispatcher{
		previous: make(map[BodyPair]contactRecord),
		current:  make(map[BodyPair]contactRecord),
		rejected: make(map[BodyPair]struct{}),
	}
	d.SetListener(listener)
	return d
}

// SetListener replaces the listener. It must not be called during a step.
func (d *ContactDispatcher) SetListener(listener ContactListener) {
	if listener == nil {
		listener = CollisionHandlerDoNothing
	}
	d.listener = listener
}

func (d *ContactDispatcher) Listener() ContactListener {
	return d.listener
}

// Stamp returns the number of steps begun.
func (d *ContactDispatcher) Stamp() uint {
	return d.stamp
}

// BeginStep starts collecting the manifolds of a new step.
func (d *ContactDispatcher) BeginStep() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stepping {
		return ErrStepInProgress
	}
	d.stepping = true
	d.stamp++
	return nil
}

// Dispatch runs the lifecycle of one candidate pair for the current step.
//
// The listener validates the pair first. An accepted pair is then reported as
// added or persisted with a copy of settings the listener may modify. The
// returned settings are the ones the solver must use, and accepted is false
// when the listener rejected the pair.
//
// Dispatch is safe for concurrent use with distinct pairs. Dispatching the same
// pair twice in one step returns ErrDuplicatePair, also after a failed Dispatch.
func (d *ContactDispatcher) Dispatch(a, b *Body, m *Manifold, settings ContactSettings) (_ ContactSettings, accepted bool, err error) {
	if err := m.Validate(); err != nil {
		return settings, false, err
	}
	if m.BodyA != a.id || m.BodyB != b.id {
		return settings, false, fmt.Errorf("%w: manifold for (%d, %d) dispatched for (%d, %d)",
			ErrInvalidManifold, m.BodyA, m.BodyB, a.id, b.id)
	}
	pair := NewBodyPair(a.id, b.id)

	if err := d.claim(pair); err != nil {
		return settings, false, err
	}
	defer func() {
		if err != nil {
			d.release(pair)
		}
	}()

	var result ValidateResult
	err = d.call(pair, "OnContactValidate", func() {
		result = d.listener.OnContactValidate(a, b, m.BaseOffset, m)
	})
	if err != nil {
		return settings, false, err
	}
	if result == RejectAll {
		d.release(pair)
		return settings, false, nil
	}

	if _, persisted := d.previous[pair]; persisted {
		err = d.call(pair, "OnContactPersisted", func() {
			d.listener.OnContactPersisted(a, b, m, &settings)
		})
	} else {
		err = d.call(pair, "OnContactAdded", func() {
			d.listener.OnContactAdded(a, b, m, &settings)
		})
	}
	if err != nil {
		return settings, false, err
	}
	if err := settings.Validate(); err != nil {
		return settings, false, fmt.Errorf("pair %v: %w", pair, err)
	}

	d.mu.Lock()
	d.current[pair] = contactRecord{settings: settings, points: m.Count(), stamp: d.stamp}
	d.mu.Unlock()
	return settings, true, nil
}

// claim reserves pair for the current step.
func (d *ContactDispatcher) claim(pair BodyPair) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.stepping {
		return ErrNoStep
	}
	_, seen := d.current[pair]
	_, rejected := d.rejected[pair]
	if seen || rejected {
		return fmt.Errorf("%w: %v", ErrDuplicatePair, pair)
	}
	d.current[pair] = contactRecord{stamp: d.stamp}
	return nil
}

// release turns a claimed pair into a rejected one.
func (d *ContactDispatcher) release(pair BodyPair) {
	d.mu.Lock()
	delete(d.current, pair)
	d.rejected[pair] = struct{}{}
	d.mu.Unlock()
}

// EndStep commits the current step and reports every pair that was in
// contact last step and has no manifold now.
//
// Pairs rejected this step keep their previous record and report nothing.
// The step is committed before OnContactRemoved runs, so a failing listener
// never receives the same removal twice. Every removal is reported even if an
// earlier callback panics, and the failures are joined.
func (d *ContactDispatcher) EndStep() error {
	d.mu.Lock()
	if !d.stepping {
		d.mu.Unlock()
		return ErrNoStep
	}
	var removed []BodyPair
	for pair, record := range d.previous {
		if _, ok := d.current[pair]; ok {
			continue
		}
		if _, ok := d.rejected[pair]; ok {
			d.current[pair] = record
			continue
		}
		removed = append(removed, pair)
	}
	old := d.previous
	clear(old)
	d.previous = d.current
	d.current = old
	clear(d.rejected)
	d.stepping = false
	d.mu.Unlock()

	return d.notifyRemoved(removed)
}

// AbortStep drops everything collected since BeginStep. No event fires and
// the previous step stays the reference for the next one.
func (d *ContactDispatcher) AbortStep() {
	d.mu.Lock()
	clear(d.current)
	clear(d.rejected)
	d.stepping = false
	d.mu.Unlock()
}

// RemoveBody reports and forgets every pair involving id.
func (d *ContactDispatcher) RemoveBody(id BodyID) error {
	d.mu.Lock()
	if d.stepping {
		d.mu.Unlock()
		return ErrStepInProgress
	}
	var removed []BodyPair
	for pair := range d.previous {
		if pair.Contains(id) {
			removed = append(removed, pair)
			delete(d.previous, pair)
		}
	}
	d.mu.Unlock()

	return d.notifyRemoved(removed)
}

// Reset forgets all pairs without reporting them.
func (d *ContactDispatcher) Reset() {
	d.mu.Lock()
	clear(d.previous)
	clear(d.current)
	clear(d.rejected)
	d.stepping = false
	d.mu.Unlock()
}

func (d *ContactDispatcher) notifyRemoved(removed []BodyPair) error {
	slices.SortFunc(removed, compareBodyPair)
	var errs []error
	for _, pair := range removed {
		err := d.call(pair, "OnContactRemoved", func() {
			d.listener.OnContactRemoved(pair)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// call runs a listener callback and turns a panic into ErrListenerPanic.
func (d *ContactDispatcher) call(pair BodyPair, callback string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s for pair %v: %v", ErrListenerPanic, callback, pair, r)
		}
	}()
	f()
	return nil
}

// HasContact returns true if the pair was in contact at the end of the last committed step.
func (d *ContactDispatcher) HasContact(pair BodyPair) bool {
	_, ok := d.previous[pair]
	return ok
}

// Settings returns the settings the pair was last committed with.
func (d *ContactDispatcher) Settings(pair BodyPair) (ContactSettings, bool) {
	record, ok := d.previous[pair]
	return record.settings, ok
}

// ContactCount returns the number of pairs in contact after the last committed step.
func (d *ContactDispatcher) ContactCount() int {
	return len(d.previous)
}

// Pairs returns the pairs in contact after the last committed step, sorted.
func (d *ContactDispatcher) Pairs() []BodyPair {
	return slices.SortedFunc(maps.Keys(d.previous), compareBodyPair)
}

func compareBodyPair(x, y BodyPair) int {
	if c := cmp.Compare(x.A, y.A); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}
