package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g, err := NewGridSearch([]string{"a", "b"}, [][]float64{{0, 1, 2, 3}, {-1, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 12 {
		t.Fatalf("Size() = %d, want 12", g.Size())
	}

	best, trials, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		return (p["a"]-2)*(p["a"]-2) + p["b"]*p["b"], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 12 {
		t.Errorf("expected 12 trials, got %d", len(trials))
	}
	if diff := cmp.Diff(map[string]float64{"a": 2, "b": 0}, best.Params); diff != "" {
		t.Errorf("best params mismatch (-want +got):\n%s", diff)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g, _ := NewGridSearch([]string{"k"}, [][]float64{{1, 2, 3}})
	boom := errors.New("unstable")

	best, trials, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		if p["k"] == 1 {
			return 0, boom
		}
		return p["k"], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if best.Params["k"] != 2 {
		t.Errorf("expected k=2 to win, got %v", best.Params)
	}
	if !errors.Is(trials[0].Err, boom) {
		t.Errorf("first trial should carry its error, got %v", trials[0].Err)
	}

	_, _, err = g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, boom
	})
	if !errors.Is(err, ErrNoTrial) {
		t.Errorf("expected ErrNoTrial, got %v", err)
	}
}

func TestGridSearchCancelled(t *testing.T) {
	g, _ := NewGridSearch([]string{"k"}, [][]float64{{1, 2, 3}})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) {
		calls++
		cancel()
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the search to stop after one trial, ran %d", calls)
	}
}

func TestNewGridSearchRejectsMismatch(t *testing.T) {
	if _, err := NewGridSearch([]string{"a"}, nil); err == nil {
		t.Error("expected an error for missing ranges")
	}
	if _, err := NewGridSearch([]string{"a"}, [][]float64{{}}); err == nil {
		t.Error("expected an error for an empty range")
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		values []float64
		ok     bool
	}{
		{"velocity.kp=10:30:3", "velocity.kp", []float64{10, 20, 30}, true},
		{"position.kp=2", "position.kp", []float64{2}, true},
		{"x=1:5:1", "x", []float64{1}, true},
		{"x=1:5:0", "", nil, false},
		{"x=1:5", "", nil, false},
		{"=1", "", nil, false},
		{"x=abc", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, values, err := ParseRange(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("ParseRange(%q) error = %v", tt.in, err)
			}
			if !tt.ok {
				return
			}
			if name != tt.name {
				t.Errorf("name = %q, want %q", name, tt.name)
			}
			if diff := cmp.Diff(tt.values, values, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
