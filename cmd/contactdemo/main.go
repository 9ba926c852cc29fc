// Command contactdemo drops a few bodies on a floor and logs contact events,
// estimated collision responses and the resulting body velocities.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/setanarut/cm3d"
	"github.com/setanarut/cm3d/internal/config"
	"github.com/setanarut/cm3d/internal/logging"
	"github.com/setanarut/cm3d/trace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "contactdemo:", err)
		os.Exit(1)
	}
}

type scene struct {
	world  *cm3d.World
	box1   *cm3d.Body
	box2   *cm3d.Body
	sphere *cm3d.Body
	heavy  *cm3d.Body
}

func newScene(cfg *config.Config, logger *slog.Logger) (*scene, error) {
	world := cm3d.NewWorld()
	world.Gravity = cfg.Gravity
	world.Iterations = cfg.Iterations
	world.Workers = cfg.Workers
	world.Logger = logger

	floor := cm3d.NewStaticBody()
	cm3d.NewPlaneShape(floor, mgl64.Vec3{0, 1, 0}, 0)

	boxExtents := mgl64.Vec3{0.5, 1, 2}
	box1 := cm3d.NewBoxBody(1, boxExtents)
	box1.SetPosition(mgl64.Vec3{0, 10, 0})

	box2 := cm3d.NewBoxBody(1, boxExtents)
	box2.SetTransform(cm3d.NewTransform(mgl64.Vec3{5, 10, 0}, mgl64.QuatRotate(0.25*math.Pi, mgl64.Vec3{1, 0, 0})))

	sphere := cm3d.NewSphereBody(10, 2)
	sphere.SetPosition(mgl64.Vec3{10, 10, 0})

	heavy := cm3d.NewBoxBody(50, mgl64.Vec3{1, 5, 1})
	heavy.SetTransform(cm3d.NewTransform(mgl64.Vec3{15, 10, 0}, mgl64.QuatRotate(0.25*math.Pi, mgl64.Vec3{1, 0, 0})))

	for _, b := range []*cm3d.Body{floor, box1, box2, sphere, heavy} {
		if err := world.AddBody(b); err != nil {
			return nil, err
		}
	}
	return &scene{world: world, box1: box1, box2: box2, sphere: sphere, heavy: heavy}, nil
}

// listener rejects the box1 and box2 pair, makes box1 bounce on new contacts
// and logs the estimated response of every new contact.
func (s *scene) listener(logger *slog.Logger) cm3d.ContactListener {
	return &cm3d.CollisionHandler{
		ValidateFunc: func(a, b *cm3d.Body, _ mgl64.Vec3, _ *cm3d.Manifold, _ any) cm3d.ValidateResult {
			if (a == s.box1 && b == s.box2) || (a == s.box2 && b == s.box1) {
				return cm3d.RejectAll
			}
			return cm3d.AcceptAll
		},
		AddedFunc: func(a, b *cm3d.Body, m *cm3d.Manifold, settings *cm3d.ContactSettings, _ any) {
			if a == s.box1 || b == s.box1 {
				settings.CombinedRestitution = 1
			}
			est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, settings.CombinedRestitution)
			if err != nil {
				logger.Error("estimate failed", "pair", m.Pair(), "error", err)
				return
			}
			logger.Info("estimated velocity after collision",
				"body1", a.ID(),
				logging.Vec("v1", est.LinearVelocityA),
				logging.Vec("w1", est.AngularVelocityA),
				"body2", b.ID(),
				logging.Vec("v2", est.LinearVelocityB),
				logging.Vec("w2", est.AngularVelocityB),
				"impulses", formatImpulses(est.Impulses))
		},
		RemovedFunc: func(pair cm3d.BodyPair, _ any) {
			logger.Debug("contact removed", "pair", pair)
		},
	}
}

func formatImpulses(impulses []float64) string {
	parts := make([]string, len(impulses))
	for i, j := range impulses {
		parts[i] = fmt.Sprintf("%f", j)
	}
	return strings.Join(parts, " ")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	s, err := newScene(cfg, logger)
	if err != nil {
		return err
	}
	var listener cm3d.ContactListener = s.listener(logger)

	var (
		writer   *trace.Writer
		recorder *trace.Recorder
	)
	if cfg.Trace.Enabled() {
		writer, _, err = trace.NewWriter(cfg.Trace.Dir, cfg.Trace.Name, nil)
		if err != nil {
			return err
		}
		defer writer.Close()
		recorder = trace.NewRecorder(writer, s.world, listener)
		listener = recorder
		logger.Info("recording trace", "dir", writer.Directory())
	}
	if err := s.world.SetContactListener(listener); err != nil {
		return err
	}

	for range cfg.Steps {
		if err := s.world.Step(cfg.TimeStep); err != nil {
			return err
		}
		for _, b := range []*cm3d.Body{s.box1, s.box2, s.sphere, s.heavy} {
			logger.Info("state",
				"body", b.ID(),
				logging.Vec("v", b.Velocity()),
				logging.Vec("w", b.AngularVelocity()))
		}
		if recorder != nil {
			if err := recorder.CaptureFrame(s.world); err != nil {
				return err
			}
		}
	}

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return err
		}
		return writer.Close()
	}
	return nil
}
