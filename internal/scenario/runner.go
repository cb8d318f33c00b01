package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/tether"
	"github.com/san-kum/tethermap/internal/voxel"
	"go.uber.org/zap"
)

// Mapper accepts map requests. *mapping.Dispatcher implements it.
type Mapper interface {
	Submit(ctx context.Context, req mapping.Request) (*mapping.Ticket, error)
}

// Commander receives tether commands. *tether.Controller implements it.
type Commander interface {
	SetTarget(t tether.Target) error
	SetEnabled(enabled bool)
	Stop()
}

// Clock reports sim time. *sim.Clock implements it.
type Clock interface {
	Now() float64
}

type Runner struct {
	mapper    Mapper
	commander Commander
	region    voxel.Region
	poll      time.Duration
	logger    *zap.Logger

	fired atomic.Int64
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPollInterval sets how often the clock is checked.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.poll = d
		}
	}
}

func NewRunner(m Mapper, c Commander, defaultRegion voxel.Region, opts ...Option) *Runner {
	r := &Runner{
		mapper:    m,
		commander: c,
		region:    defaultRegion,
		poll:      time.Millisecond,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report lists what the run did. Tickets are in firing order of the map
// events.
type Report struct {
	Fired   int
	Tickets []*mapping.Ticket
	Errors  []error
}

// Run fires each event once the clock reaches its time. It returns when
// every event has fired or ctx ends; command errors are collected in the
// report rather than stopping the run.
func (r *Runner) Run(ctx context.Context, sc *Scenario, clock Clock) (*Report, error) {
	report := &Report{}
	r.fired.Store(0)
	rng := rand.New(rand.NewSource(sc.Seed))

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for i, ev := range sc.Events {
		for clock.Now() < ev.At {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-ticker.C:
			}
		}

		if err := r.fire(ctx, ev, rng, report); err != nil {
			r.logger.Warn("scenario event failed",
				zap.Int("event", i),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
			report.Errors = append(report.Errors, fmt.Errorf("event %d (%s at %.3fs): %w", i, ev.Kind, ev.At, err))
		}
		report.Fired++
		r.fired.Add(1)
	}
	return report, nil
}

// Fired is the number of events handled so far by the current Run. It is
// safe to call from other goroutines.
func (r *Runner) Fired() int {
	return int(r.fired.Load())
}

func (r *Runner) fire(ctx context.Context, ev Event, rng *rand.Rand, report *Report) error {
	switch ev.Kind {
	case KindMap:
		t, err := r.mapper.Submit(ctx, mapping.Request{ID: ev.ID, Region: ev.Region(r.region)})
		if err != nil {
			return err
		}
		report.Tickets = append(report.Tickets, t)
		r.logger.Debug("map requested", zap.String("request_id", t.ID), zap.Float64("at", ev.At))
	case KindTarget:
		return r.commander.SetTarget(ev.Target(rng))
	case KindEnable:
		r.commander.SetEnabled(true)
	case KindDisable:
		r.commander.SetEnabled(false)
	case KindStop:
		r.commander.Stop()
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScenario, ev.Kind)
	}
	return nil
}
