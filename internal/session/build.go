package session

import (
	"context"

	"github.com/san-kum/tethermap/internal/config"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/probe"
	"go.uber.org/zap"
)

// Build runs a single map request against w outside any simulation, with
// the world treated as ready.
func Build(ctx context.Context, cfg *config.Config, w probe.WorldQuery, req mapping.Request, logger *zap.Logger) (*mapping.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if req.Region.Len() == 0 && req.Region.Resolution == 0 {
		req.Region = cfg.Region()
	}
	d := NewDispatcher(cfg, logger, nil)
	defer d.Close()

	ticket, err := d.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	d.OnUpdate(w, true)

	res, err := ticket.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
