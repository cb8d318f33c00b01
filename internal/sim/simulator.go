package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")

type Simulator struct {
	body       Body
	integrator Integrator
	hooks      []Hook
	metrics    []Metric
	observers  []Observer
	clock      *Clock
	logger     *zap.Logger
}

type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a simulator. body may be nil when only hooks need stepping.
func New(body Body, integrator Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		body:       body,
		integrator: integrator,
		hooks:      make([]Hook, 0),
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		clock:      &Clock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddHook(h Hook)         { s.hooks = append(s.hooks, h) }
func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) Clock() *Clock          { return s.clock }

// Run steps the simulation for cfg.Duration. Hook errors are recorded in the
// result and never stop the loop; an invalid body state does.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	if cfg.Record {
		result.States = make([]State, 0, steps+1)
		result.Controls = make([]Control, 0, steps)
		result.Times = make([]float64, 0, steps+1)
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	t := 0.0
	dt := cfg.Dt
	s.clock.set(t, 0)

	var pace *time.Ticker
	if cfg.RealTimeFactor > 0 {
		pace = time.NewTicker(time.Duration(float64(time.Second) * dt / cfg.RealTimeFactor))
		defer pace.Stop()
	}

	if cfg.Record && s.body != nil {
		result.States = append(result.States, s.body.State().Clone())
		result.Times = append(result.Times, t)
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		step := Step{Index: i, Time: t, Dt: dt}
		for _, h := range s.hooks {
			if err := h.OnUpdate(step); err != nil {
				s.logger.Warn("update hook failed", zap.Int("step", i), zap.Float64("time", t), zap.Error(err))
				result.Errors = append(result.Errors, &StepError{Step: i, Time: t, Err: err})
			}
		}

		if s.body != nil {
			x, u := s.body.State(), s.body.Control()
			for _, m := range s.metrics {
				m.Observe(x, u, t)
			}
			for _, obs := range s.observers {
				obs.OnStep(x, u, t)
			}

			if err := s.body.Advance(s.integrator, t, dt); err != nil {
				result.Errors = append(result.Errors, &StepError{Step: i, Time: t, Err: err})
				break
			}
			if cfg.ValidateState && !s.body.State().IsValid() {
				result.Errors = append(result.Errors, &StepError{Step: i, Time: t, Err: ErrInvalidState})
				break
			}
			if cfg.Record {
				result.States = append(result.States, s.body.State().Clone())
				result.Controls = append(result.Controls, u)
			}
		}

		t += dt
		result.StepsTaken++
		s.clock.set(t, result.StepsTaken)
		if cfg.Record {
			result.Times = append(result.Times, t)
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-pace.C:
			}
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if s.body != nil && s.integrator == nil {
		return fmt.Errorf("integrator required when a body is simulated")
	}
	return nil
}
