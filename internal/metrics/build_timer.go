package metrics

import (
	"sync"
	"time"

	"github.com/san-kum/tethermap/internal/mapping"
)

// BuildTimer records map build outcomes. It is a mapping.VisualizationSink,
// so it sees every result the dispatcher produces.
type BuildTimer struct {
	mu       sync.Mutex
	builds   int
	failures int
	total    time.Duration
	longest  time.Duration
	cells    int
}

func NewBuildTimer() *BuildTimer {
	return &BuildTimer{}
}

func (b *BuildTimer) Publish(res *mapping.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !res.OK() {
		b.failures++
		return
	}
	b.builds++
	b.total += res.Elapsed
	b.cells += res.Region.Len()
	if res.Elapsed > b.longest {
		b.longest = res.Elapsed
	}
}

// Summary reports counts and timings in milliseconds.
func (b *BuildTimer) Summary() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]float64{
		"map_builds":   float64(b.builds),
		"map_failures": float64(b.failures),
		"map_max_ms":   ms(b.longest),
	}
	if b.builds > 0 {
		out["map_mean_ms"] = ms(b.total) / float64(b.builds)
		out["map_cells"] = float64(b.cells)
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
