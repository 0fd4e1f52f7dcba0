package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"falcomplot/internal/server"
)

// NewServeCmd serves the data directory over HTTP.
func NewServeCmd() *cobra.Command {
	var addr, assets string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a data directory for the browser viewer",
		Long: "Serve --data at /data/, static assets at /, plus /health and /metrics.\n" +
			"Only local data directories can be served.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := FromCommand(cmd)
			if err != nil {
				return err
			}
			cfg := cc.Config
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if assets == "" {
				assets = cfg.Server.AssetsDir
			}
			src := cfg.Data.Source
			if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				return fmt.Errorf("serve needs a local data directory, got %s", src)
			}

			srv, err := server.New(src,
				server.WithAssetsDir(assets),
				server.WithLogger(cc.Logger),
				server.WithMetrics(cc.Metrics),
			)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().StringVar(&assets, "assets", "", "static asset directory (default server.assets_dir)")
	return cmd
}
