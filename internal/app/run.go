package app

import (
	"context"
	"fmt"
	"time"

	"github.com/SamuelMarks/taskflow/internal/config"
	"github.com/SamuelMarks/taskflow/internal/ctxlog"
	"github.com/SamuelMarks/taskflow/streamcap"
)

// Run executes every pipeline in the loaded model sequentially and
// writes a one-line summary per pipeline.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	for i := range a.model.Pipelines {
		if err := a.runPipeline(ctx, &a.model.Pipelines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runPipeline(ctx context.Context, p *config.Pipeline) error {
	lanes := p.Lanes
	if a.cfg.Lanes > 0 {
		lanes = a.cfg.Lanes
	}
	repeats := p.Repeats
	if a.cfg.Repeats > 0 {
		repeats = a.cfg.Repeats
	}
	if repeats <= 0 {
		repeats = 1
	}

	c, err := streamcap.New(ctx, streamcap.Config{Lanes: lanes})
	if err != nil {
		return err
	}
	defer c.Release(ctx)

	if err := buildGraph(ctx, c, p); err != nil {
		return err
	}

	start := time.Now()
	if err := c.OffloadN(ctx, repeats); err != nil {
		return fmt.Errorf("app: pipeline %q: %w", p.Name, err)
	}
	elapsed := time.Since(start)

	asg := c.Assignment()
	width := 0
	if asg != nil {
		used := make(map[int]bool)
		for _, lane := range asg.Lane {
			used[lane] = true
		}
		width = len(used)
	}
	a.logger.Info("Pipeline complete.",
		"pipeline", p.Name,
		"nodes", c.Graph().Len(),
		"lanes_used", width,
		"repeats", repeats,
	)
	fmt.Fprintf(a.outW, "%s=%.3fs nodes=%d lanes=%d repeats=%d\n",
		p.Name, elapsed.Seconds(), c.Graph().Len(), width, repeats)
	return nil
}
