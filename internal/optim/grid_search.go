// Package optim searches controller parameters.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNoTrial = errors.New("optim: no trial succeeded")

// Evaluate scores one parameter set. Lower is better.
type Evaluate func(ctx context.Context, params map[string]float64) (float64, error)

type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters with %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of trials a full search runs.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every point of the grid in order and returns the best
// trial along with all of them. Failed trials are kept but never win.
func (g *GridSearch) Search(ctx context.Context, eval Evaluate) (Trial, []Trial, error) {
	trials := make([]Trial, 0, g.Size())
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), eval, &trials); err != nil {
		return Trial{}, trials, err
	}

	best := Trial{Score: math.Inf(1)}
	found := false
	for _, t := range trials {
		if t.Err == nil && t.Score < best.Score {
			best, found = t, true
		}
	}
	if !found {
		return Trial{}, trials, ErrNoTrial
	}
	return best, trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval Evaluate,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		score, err := eval(ctx, current)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
			err = fmt.Errorf("optim: non-finite score %v", score)
		}
		*trials = append(*trials, Trial{Params: current, Score: score, Err: err})
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, eval, trials); err != nil {
			return err
		}
	}
	return nil
}

// ParseRange reads "name=lo:hi:n" as n evenly spaced values from lo to hi,
// or "name=v" as a single value.
func ParseRange(s string) (string, []float64, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("optim: expected name=lo:hi:n, got %q", s)
	}
	parts := strings.Split(value, ":")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return "", nil, fmt.Errorf("optim: %s: %w", name, err)
		}
		return name, []float64{v}, nil
	case 3:
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return "", nil, fmt.Errorf("optim: %s: %w", name, err)
		}
		if n < 1 {
			return "", nil, fmt.Errorf("optim: %s: need at least one step", name)
		}
		if n == 1 {
			return name, []float64{lo}, nil
		}
		values := make([]float64, n)
		for i := range values {
			values[i] = lo + (hi-lo)*float64(i)/float64(n-1)
		}
		return name, values, nil
	default:
		return "", nil, fmt.Errorf("optim: expected name=lo:hi:n, got %q", s)
	}
}
