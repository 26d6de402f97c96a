package player

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mvailland/subwave/host"
	"github.com/mvailland/subwave/internal/compositor"
	"github.com/mvailland/subwave/internal/config"
	"github.com/mvailland/subwave/internal/pipeline"
)

// realBuild wires the compositor and pipeline layers for one media
// item. Failure unwinds everything already created; a
// compositor.ErrSurfaceCreation result tells the embedder to fall
// back to the texture path.
func realBuild(cfg *config.Config, log zerolog.Logger, integration host.Integration) buildFunc {
	return func(ctx context.Context, uri string, h pipeline.Handlers, deliver func(func())) (*parts, error) {
		conn, err := compositor.Connect(integration.Display())
		if err != nil {
			return nil, err
		}

		bridge := compositor.NewCommitBridge(integration)
		surfaces, err := compositor.NewSurfaceController(ctx, conn, integration, bridge)
		if err != nil {
			bridge.Close()
			conn.Close()
			return nil, err
		}

		binder, err := pipeline.NewOutputBinder(log)
		if err != nil {
			surfaces.Teardown(ctx)
			bridge.Close()
			conn.Close()
			return nil, err
		}
		if err := binder.PrepareDisplay(integration.Display()); err != nil {
			surfaces.Teardown(ctx)
			bridge.Close()
			conn.Close()
			return nil, err
		}

		gb := &pipeline.GraphBuilder{Log: log, Config: cfg.Playback, Binder: binder}
		graph, err := gb.Build(uri)
		if err != nil {
			surfaces.Teardown(ctx)
			bridge.Close()
			conn.Close()
			return nil, err
		}

		// The sink needs the subsurface handle before preroll; the
		// first buffer lands on our surface, never a sink-created one.
		binder.Attach(surfaces.VideoSurfaceHandle(), integration.Geometry())

		watch := pipeline.NewBusWatch(log, graph, deliver, h)
		return &parts{
			graph:    graph,
			surfaces: surfaces,
			output:   binder,
			bridge:   bridge,
			watch:    watch,
			conn:     conn,
		}, nil
	}
}
