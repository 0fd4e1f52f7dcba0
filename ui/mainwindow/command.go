package mainwindow

import (
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"falcomplot/internal/app"
	"falcomplot/internal/cli"
	"falcomplot/internal/playback"
	"falcomplot/internal/render"
	"falcomplot/internal/session"
	"falcomplot/ui/prefs"
)

const appID = "io.github.falcomplot"

// NewViewCommand opens the desktop viewer. It lives here rather than in cli
// so headless builds and tests do not link the GL driver.
func NewViewCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the desktop viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := cli.FromCommand(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			painter, err := render.NewPainter(cc.Config.Visual)
			if err != nil {
				return err
			}

			var mw *MainWindow
			onError := func(err error) {
				if mw != nil {
					mw.ShowError(err)
				}
			}
			sess, err := session.Open(ctx, cc.Config, cc.Logger, cc.Metrics, playback.WithErrorHandler(onError))
			if err != nil {
				return err
			}
			defer sess.Close()

			a := fyneapp.NewWithID(appID)
			a.Settings().SetTheme(&app.ViewerTheme{})
			mw = New(ctx, a, sess, painter, prefs.Load(prefs.DefaultDir()))

			if watch {
				w := sess.Watcher()
				if err := w.Start(ctx); err != nil {
					cc.Logger.Warn("iteration watcher not started", zap.Error(err))
				} else {
					defer w.Stop()
				}
			}

			go func() {
				<-ctx.Done()
				a.Quit()
			}()

			mw.ShowAndRun()
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "follow new iterations while the algorithm is still writing")
	return cmd
}
