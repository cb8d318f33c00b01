package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/tethermap/internal/probe"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
)

var (
	ErrClosed     = errors.New("mapping: dispatcher closed")
	ErrBuildPanic = errors.New("mapping: build panicked")
)

// Request asks for a fresh map over Region. An empty ID is replaced with a
// generated one on submission.
type Request struct {
	ID           string
	Region       voxel.Region
	SkipGradient bool
}

type Status int

const (
	Success Status = iota
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type State int32

const (
	Idle State = iota
	Building
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of one request. On Failure only RequestID, Status,
// Err and Region are meaningful.
type Result struct {
	RequestID string
	Status    Status
	Err       error
	Region    voxel.Region
	Method    sdf.Method

	Occupancy *voxel.OccupancyGrid
	SDF       *sdf.Field
	Gradient  *sdf.Gradient
	Stats     probe.Stats

	QueuedFor time.Duration
	Elapsed   time.Duration
	BuiltAt   time.Time
}

func (r *Result) OK() bool {
	return r != nil && r.Status == Success
}

// RequestError ties a failure to the request that caused it.
type RequestError struct {
	ID  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s: %v", e.ID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func failure(req Request, err error) Result {
	return Result{
		RequestID: req.ID,
		Status:    Failure,
		Err:       &RequestError{ID: req.ID, Err: err},
		Region:    req.Region,
	}
}

// Ticket is the requester's handle on a submitted request.
type Ticket struct {
	ID   string
	done chan Result
}

func newTicket(id string) *Ticket {
	return &Ticket{ID: id, done: make(chan Result, 1)}
}

// Done yields the result exactly once.
func (t *Ticket) Done() <-chan Result {
	return t.done
}

// Wait blocks until the result is delivered or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-t.done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Ticket) resolve(res Result) {
	t.done <- res
}
