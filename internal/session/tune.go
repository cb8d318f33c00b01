package session

import (
	"context"
	"fmt"

	"github.com/san-kum/tethermap/internal/config"
	"github.com/san-kum/tethermap/internal/optim"
	"github.com/san-kum/tethermap/internal/scenario"
	"go.uber.org/zap"
)

// TuneMetric is the score minimised by Tune.
const TuneMetric = "tracking_rms"

// Tune runs one full session per grid point, with the point's values set
// as tether gains, and returns the trial with the lowest tracking error.
func Tune(ctx context.Context, cfg *config.Config, sc *scenario.Scenario, search *optim.GridSearch, logger *zap.Logger) (optim.Trial, []optim.Trial, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return search.Search(ctx, func(ctx context.Context, params map[string]float64) (float64, error) {
		trial := *cfg
		for name, v := range params {
			if err := trial.Tether.Config.SetGain(name, v); err != nil {
				return 0, err
			}
		}
		s, err := New(&trial, WithLogger(logger))
		if err != nil {
			return 0, err
		}
		report, err := s.Run(ctx, sc)
		if err != nil {
			return 0, err
		}
		if n := len(report.Sim.Errors); n > 0 {
			return 0, fmt.Errorf("%d step errors, first: %w", n, report.Sim.Errors[0])
		}
		logger.Debug("tune trial",
			zap.Any("params", params),
			zap.Float64(TuneMetric, report.Sim.Metrics[TuneMetric]))
		return report.Sim.Metrics[TuneMetric], nil
	})
}
