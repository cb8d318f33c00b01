// Package scenario scripts asynchronous commands against a running
// simulation: map requests and tether commands fired at given sim times
// from a goroutine outside the physics loop.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/tethermap/internal/tether"
	"github.com/san-kum/tethermap/internal/voxel"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("scenario: invalid")

type Kind string

const (
	KindMap     Kind = "map"
	KindTarget  Kind = "target"
	KindEnable  Kind = "enable"
	KindDisable Kind = "disable"
	KindStop    Kind = "stop"
)

// Scenario is a timeline of events, loaded from YAML.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Seed        int64   `yaml:"seed"`
	Events      []Event `yaml:"events"`
}

// Event fires once the sim clock reaches At seconds.
//
// Map events use Origin, Extents and Resolution when given and the default
// region otherwise. Target events command Position and Velocity, with Yaw in
// degrees about +z; Jitter adds uniform noise of that half-width to the
// position, drawn from the scenario seed.
type Event struct {
	At   float64 `yaml:"at"`
	Kind Kind    `yaml:"kind"`
	ID   string  `yaml:"id,omitempty"`

	Origin     *[3]float64 `yaml:"origin,omitempty"`
	Extents    *[3]int     `yaml:"extents,omitempty"`
	Resolution *float64    `yaml:"resolution,omitempty"`

	Position [3]float64 `yaml:"position,omitempty"`
	Velocity [3]float64 `yaml:"velocity,omitempty"`
	Yaw      float64    `yaml:"yaw,omitempty"`
	Jitter   float64    `yaml:"jitter,omitempty"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a scenario; events are sorted by time.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(sc.Events, func(i, j int) bool { return sc.Events[i].At < sc.Events[j].At })
	return &sc, nil
}

// Validate checks event kinds and times. Region values are not checked here:
// a malformed map request is the dispatcher's to reject.
func (s *Scenario) Validate() error {
	var err error
	for i, ev := range s.Events {
		if ev.At < 0 || math.IsNaN(ev.At) {
			err = multierr.Append(err, fmt.Errorf("%w: event %d: negative time %v", ErrInvalidScenario, i, ev.At))
		}
		switch ev.Kind {
		case KindMap, KindTarget, KindEnable, KindDisable, KindStop:
		default:
			err = multierr.Append(err, fmt.Errorf("%w: event %d: unknown kind %q", ErrInvalidScenario, i, ev.Kind))
		}
		if ev.Jitter < 0 {
			err = multierr.Append(err, fmt.Errorf("%w: event %d: negative jitter", ErrInvalidScenario, i))
		}
	}
	return err
}

// Region overlays the event's region fields on def.
func (ev Event) Region(def voxel.Region) voxel.Region {
	r := def
	if ev.Origin != nil {
		o := *ev.Origin
		r.Origin = r3.Vec{X: o[0], Y: o[1], Z: o[2]}
	}
	if ev.Extents != nil {
		r.Extents = *ev.Extents
	}
	if ev.Resolution != nil {
		r.Resolution = *ev.Resolution
	}
	return r
}

// Target builds the tether command. rng may be nil when Jitter is zero.
func (ev Event) Target(rng *rand.Rand) tether.Target {
	pos := mgl64.Vec3(ev.Position)
	if ev.Jitter > 0 && rng != nil {
		for i := range pos {
			pos[i] += (rng.Float64() - 0.5) * 2 * ev.Jitter
		}
	}
	return tether.Target{
		Pose: tether.Pose{
			Position:    pos,
			Orientation: mgl64.QuatRotate(mgl64.DegToRad(ev.Yaw), mgl64.Vec3{0, 0, 1}),
		},
		Velocity: mgl64.Vec3(ev.Velocity),
	}
}
