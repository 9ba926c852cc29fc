// Package config reads the settings of the command line tools from CM3D_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultSteps is the number of simulation steps the demo runs.
	DefaultSteps = 120
	// DefaultTimeStep is the fixed step length in seconds.
	DefaultTimeStep = 1.0 / 60.0
	// DefaultIterations is the number of solver iterations per step.
	DefaultIterations = 10
	// DefaultLogLevel controls verbosity.
	DefaultLogLevel = "info"
	// DefaultLogFormat selects the slog handler.
	DefaultLogFormat = "text"
	// DefaultTraceName prefixes trace bundle directories.
	DefaultTraceName = "contactdemo"
)

// DefaultGravity pulls along negative y.
var DefaultGravity = mgl64.Vec3{0, -9.81, 0}

// Config captures the tunables of the demo and tools.
type Config struct {
	Steps      int
	TimeStep   float64
	Workers    int
	Iterations uint
	Gravity    mgl64.Vec3
	Logging    LoggingConfig
	Trace      TraceConfig
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string
	Format string
}

// TraceConfig enables trace recording when Dir is set.
type TraceConfig struct {
	Dir  string
	Name string
}

// Enabled reports whether a trace should be written.
func (c TraceConfig) Enabled() bool {
	return c.Dir != ""
}

// Load reads the configuration from the environment, applying defaults and
// reporting every invalid override at once.
func Load() (*Config, error) {
	cfg := &Config{
		Steps:      DefaultSteps,
		TimeStep:   DefaultTimeStep,
		Workers:    runtime.GOMAXPROCS(0),
		Iterations: DefaultIterations,
		Gravity:    DefaultGravity,
		Logging: LoggingConfig{
			Level:  strings.ToLower(getString("CM3D_LOG_LEVEL", DefaultLogLevel)),
			Format: strings.ToLower(getString("CM3D_LOG_FORMAT", DefaultLogFormat)),
		},
		Trace: TraceConfig{
			Dir:  strings.TrimSpace(os.Getenv("CM3D_TRACE_DIR")),
			Name: getString("CM3D_TRACE_NAME", DefaultTraceName),
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("CM3D_STEPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CM3D_STEPS must be a positive integer, got %q", raw))
		} else {
			cfg.Steps = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CM3D_TIME_STEP")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(value > 0) || value > 1 {
			problems = append(problems, fmt.Sprintf("CM3D_TIME_STEP must be a number in (0, 1], got %q", raw))
		} else {
			cfg.TimeStep = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CM3D_WORKERS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CM3D_WORKERS must be a positive integer, got %q", raw))
		} else {
			cfg.Workers = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CM3D_ITERATIONS")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 0)
		if err != nil || value == 0 {
			problems = append(problems, fmt.Sprintf("CM3D_ITERATIONS must be a positive integer, got %q", raw))
		} else {
			cfg.Iterations = uint(value)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CM3D_GRAVITY")); raw != "" {
		value, err := parseVec3(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("CM3D_GRAVITY must be three comma separated numbers, got %q", raw))
		} else {
			cfg.Gravity = value
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("CM3D_LOG_LEVEL must be debug, info, warn or error, got %q", cfg.Logging.Level))
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("CM3D_LOG_FORMAT must be text or json, got %q", cfg.Logging.Format))
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseVec3(raw string) (mgl64.Vec3, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("want 3 components, got %d", len(parts))
	}
	var v mgl64.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return mgl64.Vec3{}, err
		}
		v[i] = f
	}
	return v, nil
}
