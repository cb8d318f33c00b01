package tether

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

type wrench struct {
	link          string
	force, torque mgl64.Vec3
}

// recordingSink records every applied wrench.
type recordingSink struct {
	mu    sync.Mutex
	calls []wrench
	err   error
}

func (s *recordingSink) ApplyForce(link string, force, torque mgl64.Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, wrench{link, force, torque})
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *recordingSink) last() wrench {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func newTestController(t *testing.T, mutate func(*Config)) *Controller {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func stateAt(x, y, z float64) LinkState {
	return LinkState{Pose: Pose{
		Position:    mgl64.Vec3{x, y, z},
		Orientation: mgl64.QuatIdent(),
	}}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Link = ""
	cfg.Velocity.Limit = 0
	_, err := New(cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestZeroErrorGivesZeroForce(t *testing.T) {
	c := newTestController(t, nil)
	sink := &recordingSink{}

	state := stateAt(1, 2, 3)
	state.Velocity = mgl64.Vec3{0.2, 0, 0}
	if err := c.SetTarget(Target{Pose: state.Pose, Velocity: state.Velocity}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		out, err := c.OnUpdate(0.01, state, sink)
		if err != nil {
			t.Fatal(err)
		}
		if out.Force.Len() != 0 || out.Torque.Len() != 0 {
			t.Fatalf("step %d: expected zero wrench, got force=%v torque=%v", i, out.Force, out.Torque)
		}
	}
	if sink.count() != 5 {
		t.Errorf("expected 5 applied wrenches, got %d", sink.count())
	}
}

func TestOutputsClampExactly(t *testing.T) {
	c := newTestController(t, nil)
	cfg := c.Config()
	sink := &recordingSink{}

	if err := c.SetTarget(Target{Pose: Pose{Position: mgl64.Vec3{100, -100, 0}}}); err != nil {
		t.Fatal(err)
	}
	state := stateAt(0, 0, 0)
	state.Velocity = mgl64.Vec3{-100, 100, 0}

	for i := 0; i < 20; i++ {
		out, err := c.OnUpdate(0.01, state, sink)
		if err != nil {
			t.Fatal(err)
		}
		if out.VelocitySetpoint[0] != cfg.Position.Limit || out.VelocitySetpoint[1] != -cfg.Position.Limit {
			t.Fatalf("velocity setpoint not clamped at max: %v", out.VelocitySetpoint)
		}
		if out.Force[0] != cfg.Velocity.Limit || out.Force[1] != -cfg.Velocity.Limit {
			t.Fatalf("force not clamped at max: %v", out.Force)
		}
		for _, f := range out.Force {
			if math.Abs(f) > cfg.Velocity.Limit {
				t.Fatalf("force exceeds max: %v", out.Force)
			}
		}
	}
}

func TestForcePointsTowardTarget(t *testing.T) {
	c := newTestController(t, nil)
	sink := &recordingSink{}
	if err := c.SetTarget(Target{Pose: Pose{Position: mgl64.Vec3{0.1, 0, -0.1}}}); err != nil {
		t.Fatal(err)
	}

	out, err := c.OnUpdate(0.01, stateAt(0, 0, 0), sink)
	if err != nil {
		t.Fatal(err)
	}
	if out.Force[0] <= 0 || out.Force[2] >= 0 || out.Force[1] != 0 {
		t.Errorf("expected force toward target, got %v", out.Force)
	}
	if got := sink.last().link; got != "tether" {
		t.Errorf("expected wrench on link tether, got %q", got)
	}
}

func TestNonFiniteTargetRejected(t *testing.T) {
	c := newTestController(t, nil)
	good := Target{Pose: Pose{Position: mgl64.Vec3{1, 0, 0}, Orientation: mgl64.QuatIdent()}}
	if err := c.SetTarget(good); err != nil {
		t.Fatal(err)
	}

	bad := []Target{
		{Pose: Pose{Position: mgl64.Vec3{math.NaN(), 0, 0}}},
		{Pose: Pose{Position: mgl64.Vec3{0, math.Inf(1), 0}}},
		{Velocity: mgl64.Vec3{0, 0, math.Inf(-1)}},
		{Pose: Pose{Orientation: mgl64.Quat{W: math.NaN()}}},
	}
	for _, b := range bad {
		if err := c.SetTarget(b); !errors.Is(err, ErrNonFiniteTarget) {
			t.Errorf("expected ErrNonFiniteTarget for %+v, got %v", b, err)
		}
	}
	if c.Target() != good {
		t.Errorf("previous target should be retained, got %+v", c.Target())
	}
}

func TestDisableHoldsInertAndReEnableResumes(t *testing.T) {
	c := newTestController(t, nil)
	sink := &recordingSink{}
	if err := c.SetTarget(Target{Pose: Pose{Position: mgl64.Vec3{0.5, 0, 0}}}); err != nil {
		t.Fatal(err)
	}
	state := stateAt(0, 0, 0)

	for i := 0; i < 3; i++ {
		if _, err := c.OnUpdate(0.01, state, sink); err != nil {
			t.Fatal(err)
		}
	}
	_, velIntegral := c.Integrals()
	calls := sink.count()

	c.SetEnabled(false)
	out, err := c.OnUpdate(0.01, state, sink)
	if err != nil {
		t.Fatal(err)
	}
	if out.Applied || out.Force.Len() != 0 {
		t.Errorf("disabled controller must be inert, got %+v", out)
	}
	if sink.count() != calls {
		t.Error("disabled controller must not apply a force")
	}
	if _, frozen := c.Integrals(); frozen != velIntegral {
		t.Errorf("integral state should be frozen while disabled: %v -> %v", velIntegral, frozen)
	}

	c.SetEnabled(true)
	out, err = c.OnUpdate(0.01, state, sink)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Applied || out.Force[0] <= 0 {
		t.Errorf("re-enabled controller should push toward target, got %+v", out)
	}
	if _, resumed := c.Integrals(); resumed[0] <= velIntegral[0] {
		t.Errorf("integral should resume from frozen value %v, got %v", velIntegral, resumed)
	}
}

func TestResetOnEnable(t *testing.T) {
	c := newTestController(t, func(cfg *Config) { cfg.ResetOnEnable = true })
	sink := &recordingSink{}
	if err := c.SetTarget(Target{Pose: Pose{Position: mgl64.Vec3{0.5, 0, 0}}}); err != nil {
		t.Fatal(err)
	}
	state := stateAt(0, 0, 0)
	for i := 0; i < 10; i++ {
		c.OnUpdate(0.01, state, sink)
	}
	_, before := c.Integrals()

	c.SetEnabled(false)
	c.OnUpdate(0.01, state, sink)
	c.SetEnabled(true)
	c.OnUpdate(0.01, state, sink)

	_, after := c.Integrals()
	if after[0] >= before[0] {
		t.Errorf("expected integral restarted after re-enable: before=%v after=%v", before, after)
	}
}

func TestStopHoldsCurrentPose(t *testing.T) {
	tests := []struct {
		name     string
		velocity mgl64.Vec3
	}{
		{"at rest", mgl64.Vec3{}},
		{"moving", mgl64.Vec3{0.5, -0.2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(t, nil)
			sink := &recordingSink{}
			if err := c.SetTarget(Target{Pose: Pose{Position: mgl64.Vec3{5, 0, 0}}, Velocity: mgl64.Vec3{1, 0, 0}}); err != nil {
				t.Fatal(err)
			}
			state := stateAt(0, 0, 0)
			for i := 0; i < 5; i++ {
				c.OnUpdate(0.01, state, sink)
			}

			c.Stop()
			held := stateAt(0.3, 0.1, 0)
			held.Velocity = tt.velocity
			out, err := c.OnUpdate(0.01, held, sink)
			if err != nil {
				t.Fatal(err)
			}
			if out.Force.Len() > 1e-12 {
				t.Errorf("expected no corrective effort right after stop, got %v", out.Force)
			}
			if got := c.Target().Pose.Position; got != held.Pose.Position {
				t.Errorf("expected target at current pose %v, got %v", held.Pose.Position, got)
			}
			if got := c.Target().Velocity; got != tt.velocity {
				t.Errorf("expected target velocity %v, got %v", tt.velocity, got)
			}
		})
	}
}

func TestStopWithBrakeClearsVelocity(t *testing.T) {
	c := newTestController(t, func(cfg *Config) { cfg.BrakeOnStop = true })
	sink := &recordingSink{}
	c.Stop()
	moving := stateAt(1, 0, 0)
	moving.Velocity = mgl64.Vec3{0.5, 0, 0}
	out, err := c.OnUpdate(0.01, moving, sink)
	if err != nil {
		t.Fatal(err)
	}
	if c.Target().Velocity.Len() != 0 {
		t.Errorf("brake should clear the target velocity, got %v", c.Target().Velocity)
	}
	if out.Force.X() >= 0 {
		t.Errorf("expected a braking force, got %v", out.Force)
	}
}

func TestFirstUpdateHoldsInitialPose(t *testing.T) {
	c := newTestController(t, nil)
	out, err := c.OnUpdate(0.01, stateAt(2, 2, 2), &recordingSink{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Force.Len() != 0 {
		t.Errorf("controller without a command should hold, got %v", out.Force)
	}
}

func TestRotationLoop(t *testing.T) {
	c := newTestController(t, func(cfg *Config) {
		cfg.Orientation = LoopConfig{Gains: Gains{Kp: 2}, Limit: 1}
		cfg.AngularVelocity = LoopConfig{Gains: Gains{Kp: 5}, Limit: 3}
	})
	target := Target{Pose: Pose{Orientation: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})}}
	if err := c.SetTarget(target); err != nil {
		t.Fatal(err)
	}

	out, err := c.OnUpdate(0.01, stateAt(0, 0, 0), &recordingSink{})
	if err != nil {
		t.Fatal(err)
	}
	if out.AngularSetpoint[2] != 1 {
		t.Errorf("expected angular setpoint clamped at 1, got %v", out.AngularSetpoint)
	}
	if out.Torque[2] != 3 {
		t.Errorf("expected torque clamped at 3, got %v", out.Torque)
	}
}

func TestSinkErrorsPropagate(t *testing.T) {
	c := newTestController(t, nil)
	boom := errors.New("link gone")
	_, err := c.OnUpdate(0.01, stateAt(0, 0, 0), &recordingSink{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("expected sink error, got %v", err)
	}
	if _, err := c.OnUpdate(0.01, stateAt(0, 0, 0), nil); !errors.Is(err, ErrNoSink) {
		t.Errorf("expected ErrNoSink, got %v", err)
	}
}

func TestConcurrentCommands(t *testing.T) {
	c := newTestController(t, nil)
	sink := &recordingSink{}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.SetTarget(Target{Pose: Pose{Position: mgl64.Vec3{float64(g), float64(i), 0}}})
				if i%10 == 0 {
					c.SetEnabled(i%20 == 0)
				}
			}
		}(g)
	}

	for i := 0; i < 200; i++ {
		if _, err := c.OnUpdate(0.001, stateAt(0, 0, 0), sink); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

func TestSetGain(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetGain("velocity.kp", 12); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetGain("Position.Limit", 0.5); err != nil {
		t.Fatal(err)
	}
	if cfg.Velocity.Kp != 12 || cfg.Position.Limit != 0.5 {
		t.Errorf("gains not applied: %+v", cfg)
	}

	for _, name := range []string{"kp", "thrust.kp", "velocity.kx"} {
		if err := cfg.SetGain(name, 1); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("SetGain(%q) = %v, want ErrInvalidConfig", name, err)
		}
	}
}
