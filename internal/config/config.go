package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/tethermap/internal/integrators"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/tether"
	"github.com/san-kum/tethermap/internal/voxel"
	"github.com/san-kum/tethermap/internal/world"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.01
	DefaultDuration   = 10.0
	DefaultResolution = 0.25
	DefaultMass       = 2.0
	DefaultInertia    = 0.5
	DefaultMaxCells   = 1 << 22
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Sim    SimConfig    `yaml:"sim"`
	World  WorldConfig  `yaml:"world"`
	Map    MapConfig    `yaml:"map"`
	Tether TetherConfig `yaml:"tether"`
	Log    LogConfig    `yaml:"log"`
}

type SimConfig struct {
	Dt             float64 `yaml:"dt"`
	Duration       float64 `yaml:"duration"`
	Integrator     string  `yaml:"integrator"`
	RealTimeFactor float64 `yaml:"real_time_factor"`
}

// WorldConfig describes the simulated scene. A non-empty Preset replaces
// Bounds and Shapes.
type WorldConfig struct {
	Preset string        `yaml:"preset,omitempty"`
	Bounds ShapeConfig   `yaml:"bounds"`
	Shapes []ShapeConfig `yaml:"shapes"`
	// ReadyAfter holds the geometry back for this many seconds of sim time.
	ReadyAfter float64 `yaml:"ready_after"`
}

// ShapeConfig is a box (center + size) or a sphere (center + radius).
type ShapeConfig struct {
	Kind   string     `yaml:"kind"`
	Center [3]float64 `yaml:"center"`
	Size   [3]float64 `yaml:"size,omitempty"`
	Radius float64    `yaml:"radius,omitempty"`
}

type MapConfig struct {
	Origin       [3]float64 `yaml:"origin"`
	Extents      [3]int     `yaml:"extents"`
	Resolution   float64    `yaml:"resolution"`
	Workers      int        `yaml:"workers"`
	Method       string     `yaml:"method"`
	SkipGradient bool       `yaml:"skip_gradient"`
	QueueSize    int        `yaml:"queue_size"`
	MaxCells     int        `yaml:"max_cells"`
	StoreDir     string     `yaml:"store_dir"`
}

type TetherConfig struct {
	tether.Config  `yaml:",inline"`
	Mass           float64    `yaml:"mass"`
	Inertia        float64    `yaml:"inertia"`
	LinearDamping  float64    `yaml:"linear_damping"`
	AngularDamping float64    `yaml:"angular_damping"`
	Start          [3]float64 `yaml:"start"`
	Target         [3]float64 `yaml:"target"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func DefaultConfig() *Config {
	return &Config{
		Sim: SimConfig{
			Dt:         DefaultDt,
			Duration:   DefaultDuration,
			Integrator: "rk4",
		},
		World: WorldConfig{Preset: "pillars"},
		Map: MapConfig{
			Origin:     [3]float64{-2, -2, 0},
			Extents:    [3]int{16, 16, 8},
			Resolution: DefaultResolution,
			Workers:    4,
			Method:     sdf.Exact.String(),
			QueueSize:  16,
			MaxCells:   DefaultMaxCells,
			StoreDir:   ".tethermap",
		},
		Tether: TetherConfig{
			Config:         tether.DefaultConfig(),
			Mass:           DefaultMass,
			Inertia:        DefaultInertia,
			LinearDamping:  0.1,
			AngularDamping: 0.1,
			Target:         [3]float64{1, 1, 1},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Sim.Dt <= 0 {
		invalid("sim.dt must be positive, got %v", c.Sim.Dt)
	}
	if c.Sim.Duration <= 0 {
		invalid("sim.duration must be positive, got %v", c.Sim.Duration)
	}
	if _, e := integrators.ByName(c.Sim.Integrator); e != nil {
		invalid("sim.integrator: %v", e)
	}
	if c.Sim.RealTimeFactor < 0 {
		invalid("sim.real_time_factor must not be negative")
	}

	if _, e := c.World.Resolve(); e != nil {
		err = multierr.Append(err, e)
	}
	if c.World.ReadyAfter < 0 {
		invalid("world.ready_after must not be negative")
	}

	if c.Map.MaxCells < 0 {
		invalid("map.max_cells must not be negative")
	}
	if e := c.Region().CheckSize(c.Map.MaxCells); e != nil {
		err = multierr.Append(err, fmt.Errorf("map: %w", e))
	}
	if _, e := sdf.ParseMethod(c.Map.Method); e != nil {
		invalid("map.method: %v", e)
	}
	if c.Map.Workers < 0 {
		invalid("map.workers must not be negative")
	}

	if e := c.Tether.Config.Validate(); e != nil {
		err = multierr.Append(err, e)
	}
	if c.Tether.Mass <= 0 || c.Tether.Inertia <= 0 {
		invalid("tether mass and inertia must be positive")
	}

	switch c.Log.Format {
	case "", "json", "console":
	default:
		invalid("log.format must be json or console, got %q", c.Log.Format)
	}
	return err
}

// Region is the default mapping region.
func (c *Config) Region() voxel.Region {
	return voxel.Region{
		Origin:     vec(c.Map.Origin),
		Extents:    c.Map.Extents,
		Resolution: c.Map.Resolution,
	}
}

func (c *Config) Method() sdf.Method {
	m, _ := sdf.ParseMethod(c.Map.Method)
	return m
}

// Resolve applies the preset, if any.
func (w WorldConfig) Resolve() (WorldConfig, error) {
	if w.Preset == "" {
		return w, nil
	}
	p := GetPreset(w.Preset)
	if p == nil {
		return w, fmt.Errorf("%w: unknown world preset %q", ErrInvalid, w.Preset)
	}
	out := *p
	out.Preset = w.Preset
	out.ReadyAfter = w.ReadyAfter
	return out, nil
}

// BuildScene resolves the preset and constructs the scene geometry.
func (w WorldConfig) BuildScene() (*world.Scene, error) {
	w, err := w.Resolve()
	if err != nil {
		return nil, err
	}
	if w.Bounds.Kind != "" && w.Bounds.Kind != "box" {
		return nil, fmt.Errorf("%w: world bounds must be a box", ErrInvalid)
	}
	bounds := world.NewBox(vec(w.Bounds.Center), vec(w.Bounds.Size))

	shapes := make([]world.Shape, 0, len(w.Shapes))
	for i, s := range w.Shapes {
		sh, err := s.Shape()
		if err != nil {
			return nil, fmt.Errorf("world.shapes[%d]: %w", i, err)
		}
		shapes = append(shapes, sh)
	}
	return world.NewScene(bounds, shapes...), nil
}

func (s ShapeConfig) Shape() (world.Shape, error) {
	switch s.Kind {
	case "box", "":
		for _, v := range s.Size {
			if v <= 0 {
				return nil, fmt.Errorf("%w: box size must be positive", ErrInvalid)
			}
		}
		return world.NewBox(vec(s.Center), vec(s.Size)), nil
	case "sphere":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("%w: sphere radius must be positive", ErrInvalid)
		}
		return world.Sphere{Center: vec(s.Center), Radius: s.Radius}, nil
	default:
		return nil, fmt.Errorf("%w: unknown shape kind %q", ErrInvalid, s.Kind)
	}
}

// NewLink builds the simulated tethered body at its start position.
func (t TetherConfig) NewLink() *world.Link {
	pose := tether.IdentityPose()
	pose.Position = mgl64.Vec3(t.Start)
	l := world.NewLink(t.Link, t.Mass, t.Inertia, pose)
	l.LinearDamping = t.LinearDamping
	l.AngularDamping = t.AngularDamping
	return l
}

// InitialTarget is the target commanded at start-up.
func (t TetherConfig) InitialTarget() tether.Target {
	pose := tether.IdentityPose()
	pose.Position = mgl64.Vec3(t.Target)
	return tether.Target{Pose: pose}
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
