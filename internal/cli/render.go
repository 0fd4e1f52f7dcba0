package cli

import (
	"fmt"
	"time"

	"git.sr.ht/~sbinet/gg"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"falcomplot/internal/render"
	"falcomplot/internal/session"
)

type renderOptions struct {
	out        string
	iteration  int
	width      int
	height     int
	viewMode   string
	coloring   string
	hud        bool
	boundaries bool
}

// NewRenderCmd renders one iteration to a PNG without a window.
func NewRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an iteration to a PNG",
		Long: "Load the blocks, replay up to --iteration (the last one by default)\n" +
			"and paint the result the way the viewer would.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "falcomplot.png", "output PNG path")
	f.IntVarP(&opts.iteration, "iteration", "i", 0, "iteration to show (0 = last)")
	f.IntVar(&opts.width, "width", 0, "image width in pixels (default viewer.width)")
	f.IntVar(&opts.height, "height", 0, "image height in pixels (default viewer.height)")
	f.StringVar(&opts.viewMode, "view", "", "view mode (tree, district)")
	f.StringVar(&opts.coloring, "coloring", "", "district coloring (colored, uncolored)")
	f.BoolVar(&opts.hud, "hud", false, "draw the iteration caption")
	f.BoolVar(&opts.boundaries, "boundaries", false, "union district boundaries even before the last iteration")
	return cmd
}

func runRender(cmd *cobra.Command, opts *renderOptions) error {
	cc, err := FromCommand(cmd)
	if err != nil {
		return err
	}
	cfg := *cc.Config
	if opts.width > 0 {
		cfg.Viewer.Width = opts.width
	}
	if opts.height > 0 {
		cfg.Viewer.Height = opts.height
	}
	if opts.viewMode != "" {
		cfg.Viewer.ViewMode = opts.viewMode
	}
	if opts.coloring != "" {
		cfg.Viewer.Coloring = opts.coloring
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	painter, err := render.NewPainter(cfg.Visual)
	if err != nil {
		return err
	}
	painter.ShowHUD = opts.hud

	ctx := cmd.Context()
	sess, err := session.Open(ctx, &cfg, cc.Logger, cc.Metrics)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.iteration > 0 {
		err = sess.Playback.JumpTo(ctx, opts.iteration)
	} else {
		err = sess.Final(ctx)
	}
	if err != nil {
		return err
	}
	if opts.boundaries && sess.State.Boundaries() == nil {
		sess.RecomputeBoundaries()
	}

	dc := gg.NewContext(cfg.Viewer.Width, cfg.Viewer.Height)
	t := sess.View()
	painter.Draw(dc, sess.State.Snapshot(), &t, time.Now())
	if err := dc.SavePNG(opts.out); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}

	cc.Logger.Info("rendered",
		zap.String("out", opts.out),
		zap.Int("iteration", sess.State.Iteration()),
		zap.Int("max", sess.State.MaxIteration()))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (iteration %d of %d, %d boundaries)\n",
		opts.out, sess.State.Iteration(), sess.State.MaxIteration(), sess.State.Boundaries().Len())
	return err
}
