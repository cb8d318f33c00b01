// Package session runs the tethered link, its controller and the map
// dispatcher on one simulator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/tethermap/internal/config"
	"github.com/san-kum/tethermap/internal/integrators"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/metrics"
	"github.com/san-kum/tethermap/internal/probe"
	"github.com/san-kum/tethermap/internal/scenario"
	"github.com/san-kum/tethermap/internal/sim"
	"github.com/san-kum/tethermap/internal/tether"
	"github.com/san-kum/tethermap/internal/world"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSyncTimeout bounds how long a step waits for scenario events that
// are already due.
const DefaultSyncTimeout = 100 * time.Millisecond

type Option func(*options)

type options struct {
	logger      *zap.Logger
	sinks       []mapping.VisualizationSink
	world       probe.WorldQuery
	observers   []sim.Observer
	syncTimeout time.Duration
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSink adds a visualization sink next to the built-in build timer.
func WithSink(s mapping.VisualizationSink) Option {
	return func(o *options) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithWorld replaces the scene built from the config as the mapping target.
func WithWorld(w probe.WorldQuery) Option {
	return func(o *options) { o.world = w }
}

func WithObserver(obs sim.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func WithSyncTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.syncTimeout = d
		}
	}
}

// Session wires one simulated tethered link, its controller and the map
// dispatcher onto a single simulator. All three are driven from the
// simulator's update hook; commands and map requests may come from any
// goroutine.
type Session struct {
	cfg    *config.Config
	scene  *world.Scene
	world  probe.WorldQuery
	link   *world.Link
	ctrl   *tether.Controller
	disp   *mapping.Dispatcher
	sim    *sim.Simulator
	timer  *metrics.BuildTimer
	effort *metrics.ControlEffort
	track  *metrics.TrackingError
	logger *zap.Logger

	runner      *scenario.Runner
	due         []float64
	syncTimeout time.Duration
}

func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop(), syncTimeout: DefaultSyncTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	scene, err := cfg.World.BuildScene()
	if err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(cfg.Sim.Integrator)
	if err != nil {
		return nil, err
	}
	ctrl, err := tether.New(cfg.Tether.Config, tether.WithLogger(o.logger.Named("tether")))
	if err != nil {
		return nil, err
	}
	if err := ctrl.SetTarget(cfg.Tether.InitialTarget()); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:         cfg,
		scene:       scene,
		world:       scene,
		link:        cfg.Tether.NewLink(),
		ctrl:        ctrl,
		timer:       metrics.NewBuildTimer(),
		effort:      metrics.NewControlEffort(),
		logger:      o.logger,
		syncTimeout: o.syncTimeout,
	}
	if o.world != nil {
		s.world = o.world
	}
	s.track = metrics.NewTrackingError(func() mgl64.Vec3 {
		return s.ctrl.Target().Pose.Position
	})

	sinks := append([]mapping.VisualizationSink{s.timer}, o.sinks...)
	s.disp = NewDispatcher(cfg, o.logger, fanout(sinks))

	s.sim = sim.New(s.link, integ, sim.WithLogger(o.logger.Named("sim")))
	s.sim.AddHook(sim.HookFunc(s.syncScenario))
	s.sim.AddHook(s)
	s.sim.AddMetric(s.effort)
	s.sim.AddMetric(s.track)
	for _, obs := range o.observers {
		s.sim.AddObserver(obs)
	}
	return s, nil
}

// NewDispatcher builds a dispatcher from the map section of cfg.
func NewDispatcher(cfg *config.Config, logger *zap.Logger, sink mapping.VisualizationSink) *mapping.Dispatcher {
	prober := probe.New(
		probe.WithWorkers(cfg.Map.Workers),
		probe.WithLogger(logger.Named("probe")),
	)
	opts := []mapping.Option{
		mapping.WithLogger(logger.Named("mapping")),
		mapping.WithProber(prober),
		mapping.WithMethod(cfg.Method()),
		mapping.WithQueueSize(cfg.Map.QueueSize),
		mapping.WithMaxCells(cfg.Map.MaxCells),
	}
	if sink != nil {
		opts = append(opts, mapping.WithSink(sink))
	}
	return mapping.New(opts...)
}

func (s *Session) Dispatcher() *mapping.Dispatcher { return s.disp }
func (s *Session) Controller() *tether.Controller  { return s.ctrl }
func (s *Session) Link() *world.Link               { return s.link }
func (s *Session) Scene() *world.Scene             { return s.scene }
func (s *Session) Simulator() *sim.Simulator       { return s.sim }

// Ready reports whether the world geometry may be queried at sim time t.
func (s *Session) Ready(t float64) bool {
	return t >= s.cfg.World.ReadyAfter
}

// OnUpdate is the per-step hook: at most one map build, then one control
// update against the link.
func (s *Session) OnUpdate(step sim.Step) error {
	if res := s.disp.OnUpdate(s.world, s.Ready(step.Time)); res != nil && !res.OK() {
		s.logger.Debug("map build failed",
			zap.String("request_id", res.RequestID),
			zap.Error(res.Err))
	}
	if _, err := s.ctrl.OnUpdate(step.Dt, s.link.LinkState(), s.link); err != nil {
		return fmt.Errorf("tether: %w", err)
	}
	return nil
}

// Submit queues req as given. Gradients are skipped when either the request
// or the map config asks for it.
func (s *Session) Submit(ctx context.Context, req mapping.Request) (*mapping.Ticket, error) {
	req.SkipGradient = req.SkipGradient || s.cfg.Map.SkipGradient
	return s.disp.Submit(ctx, req)
}

// SubmitDefault queues a map request over the configured region.
func (s *Session) SubmitDefault(ctx context.Context, id string) (*mapping.Ticket, error) {
	return s.Submit(ctx, mapping.Request{ID: id, Region: s.cfg.Region()})
}

type Report struct {
	Sim      *sim.Result
	Scenario *scenario.Report
	// Maps holds the resolution of every scenario map request, in firing
	// order. Requests still queued when the run ended fail with
	// mapping.ErrClosed.
	Maps    []mapping.Result
	Builds  map[string]float64
	Elapsed time.Duration
}

// Run steps the simulation for the configured duration while sc, if any,
// fires its events against the controller and dispatcher. The dispatcher is
// closed when the run ends, so a session runs once.
func (s *Session) Run(ctx context.Context, sc *scenario.Scenario) (*Report, error) {
	report := &Report{}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	runnerCtx, stopRunner := context.WithCancel(gctx)
	defer stopRunner()

	if sc != nil {
		s.runner = scenario.NewRunner(s, s.ctrl, s.cfg.Region(),
			scenario.WithLogger(s.logger.Named("scenario")),
			scenario.WithPollInterval(100*time.Microsecond))
		s.due = make([]float64, len(sc.Events))
		for i, ev := range sc.Events {
			s.due[i] = ev.At
		}
		sort.Float64s(s.due)

		g.Go(func() error {
			rep, err := s.runner.Run(runnerCtx, sc, s.sim.Clock())
			report.Scenario = rep
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				// The simulation ended before the remaining events were due.
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		defer stopRunner()
		res, err := s.sim.Run(gctx, sim.Config{
			Dt:             s.cfg.Sim.Dt,
			Duration:       s.cfg.Sim.Duration,
			RealTimeFactor: s.cfg.Sim.RealTimeFactor,
			ValidateState:  true,
		})
		report.Sim = res
		return err
	})

	err := g.Wait()
	s.disp.Close()
	report.Elapsed = time.Since(start)

	if report.Scenario != nil {
		for _, t := range report.Scenario.Tickets {
			res, werr := t.Wait(ctx)
			if werr != nil {
				break
			}
			report.Maps = append(report.Maps, res)
		}
	}
	report.Builds = s.timer.Summary()
	if report.Sim != nil {
		report.Sim.Metrics["control_peak"] = s.effort.Peak()
		report.Sim.Metrics["tracking_final"] = s.track.Final()
	}

	if err != nil {
		return report, err
	}
	s.logger.Info("session finished",
		zap.Duration("elapsed", report.Elapsed),
		zap.Int("steps", report.Sim.StepsTaken),
		zap.Int("maps", len(report.Maps)))
	return report, nil
}

// syncScenario holds the step until every event due at its time has been
// handled, so runs without real-time pacing stay deterministic.
func (s *Session) syncScenario(step sim.Step) error {
	if s.runner == nil {
		return nil
	}
	want := sort.Search(len(s.due), func(i int) bool { return s.due[i] > step.Time })
	if s.runner.Fired() >= want {
		return nil
	}
	deadline := time.Now().Add(s.syncTimeout)
	for s.runner.Fired() < want {
		if time.Now().After(deadline) {
			s.logger.Warn("scenario fell behind",
				zap.Float64("time", step.Time),
				zap.Int("fired", s.runner.Fired()),
				zap.Int("due", want))
			return nil
		}
		time.Sleep(50 * time.Microsecond)
	}
	return nil
}

type fanout []mapping.VisualizationSink

func (f fanout) Publish(res *mapping.Result) {
	for _, s := range f {
		s.Publish(res)
	}
}
