package mapping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/tethermap/internal/probe"
	"github.com/san-kum/tethermap/internal/sdf"
	"go.uber.org/zap"
)

const (
	DefaultQueueSize = 64
	// DefaultMaxCells bounds the region of a single request.
	DefaultMaxCells = 1 << 24
)

type pending struct {
	req      Request
	ticket   *Ticket
	queuedAt time.Time
}

type Dispatcher struct {
	queue chan pending

	latest atomic.Pointer[Result]
	state  atomic.Int32

	closeOnce sync.Once
	closed    chan struct{}

	prober   *probe.Prober
	method   sdf.Method
	maxCells int
	sink     VisualizationSink
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithSink(s VisualizationSink) Option {
	return func(d *Dispatcher) { d.sink = s }
}

func WithProber(p *probe.Prober) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.prober = p
		}
	}
}

func WithMethod(m sdf.Method) Option {
	return func(d *Dispatcher) { d.method = m }
}

// WithQueueSize bounds the number of requests waiting for a build slot.
// Submit blocks, rather than drops, when the queue is full.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan pending, n)
		}
	}
}

// WithMaxCells rejects requests whose region holds more than n cells. Builds
// run inside one simulation step.
func WithMaxCells(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxCells = n
		}
	}
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    make(chan pending, DefaultQueueSize),
		closed:   make(chan struct{}),
		prober:   probe.New(),
		method:   sdf.Exact,
		maxCells: DefaultMaxCells,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues req. Malformed requests are not queued: the returned
// ticket is already resolved with a failure. The error is non-nil only when
// the request could not be accepted at all.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*Ticket, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ticket := newTicket(req.ID)

	select {
	case <-d.closed:
		return nil, ErrClosed
	default:
	}

	if err := req.Region.CheckSize(d.maxCells); err != nil {
		d.logger.Warn("rejected map request",
			zap.String("request_id", req.ID),
			zap.Error(err))
		ticket.resolve(failure(req, err))
		return ticket, nil
	}

	p := pending{req: req, ticket: ticket, queuedAt: d.now()}
	select {
	case d.queue <- p:
		d.logger.Debug("queued map request",
			zap.String("request_id", req.ID),
			zap.Int("cells", req.Region.Len()))
		return ticket, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("mapping: submit %s: %w", req.ID, ctx.Err())
	case <-d.closed:
		return nil, ErrClosed
	}
}

// OnUpdate is the simulation-side half of the dispatcher. It must be called
// from the update loop only. When the world is not ready nothing is
// dequeued. Otherwise at most one request is built and its result returned;
// nil means there was nothing to do.
func (d *Dispatcher) OnUpdate(world probe.WorldQuery, ready bool) *Result {
	if d.State() == Ready {
		d.state.Store(int32(Idle))
	}
	if !ready || world == nil {
		return nil
	}

	next, ok := d.dequeue()
	if !ok {
		return nil
	}

	d.state.Store(int32(Building))
	res := d.build(world, next.req)
	res.QueuedFor = res.BuiltAt.Sub(next.queuedAt) - res.Elapsed

	if res.OK() {
		published := res
		d.latest.Store(&published)
		d.state.Store(int32(Ready))
		d.logger.Info("map built",
			zap.String("request_id", res.RequestID),
			zap.Int("cells", res.Region.Len()),
			zap.Int("occupied", res.Stats.Occupied),
			zap.Int("query_errors", res.Stats.QueryErrors),
			zap.Duration("elapsed", res.Elapsed))
	} else {
		d.state.Store(int32(Idle))
		d.logger.Warn("map build failed",
			zap.String("request_id", res.RequestID),
			zap.Error(res.Err))
	}

	next.ticket.resolve(res)
	d.publish(&res)
	return &res
}

func (d *Dispatcher) dequeue() (pending, bool) {
	select {
	case p := <-d.queue:
		return p, true
	default:
		return pending{}, false
	}
}

func (d *Dispatcher) build(world probe.WorldQuery, req Request) (res Result) {
	start := d.now()
	defer func() {
		if r := recover(); r != nil {
			res = failure(req, fmt.Errorf("%w: %v", ErrBuildPanic, r))
		}
		res.Method = d.method
		res.BuiltAt = d.now()
		res.Elapsed = res.BuiltAt.Sub(start)
	}()

	// Builds are never cancelled once started.
	grid, stats, err := d.prober.Probe(context.Background(), world, req.Region)
	if errors.Is(err, probe.ErrPanic) {
		return failure(req, fmt.Errorf("%w: %w", ErrBuildPanic, err))
	}
	if err != nil {
		return failure(req, err)
	}
	field, err := sdf.Compute(grid, d.method)
	if err != nil {
		return failure(req, err)
	}

	res = Result{
		RequestID: req.ID,
		Status:    Success,
		Region:    req.Region,
		Occupancy: grid,
		SDF:       field,
		Stats:     stats,
	}
	if !req.SkipGradient {
		res.Gradient = sdf.ComputeGradient(field)
	}
	return res
}

func (d *Dispatcher) publish(res *Result) {
	if d.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("visualization sink panicked",
				zap.String("request_id", res.RequestID),
				zap.Any("panic", r))
		}
	}()
	d.sink.Publish(res)
}

// Latest returns the most recent successful result, or nil.
func (d *Dispatcher) Latest() *Result {
	return d.latest.Load()
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Pending counts requests waiting for a build slot.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting requests. Queued requests are resolved with
// ErrClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
		for {
			select {
			case p := <-d.queue:
				p.ticket.resolve(failure(p.req, ErrClosed))
			default:
				return
			}
		}
	})
}
