package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"falcomplot/internal/app"
	"falcomplot/internal/loader"
)

// NewProbeCmd prints the last iteration with a tree document.
func NewProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the last available iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd)
		},
	}
}

func runProbe(cmd *cobra.Command) error {
	cc, err := FromCommand(cmd)
	if err != nil {
		return err
	}
	cfg := cc.Config

	mode, _ := app.ParseDataMode(cfg.Data.Mode)
	src, err := loader.NewSource(cfg.Data.Source, &http.Client{Timeout: cfg.Data.HTTPTimeout})
	if err != nil {
		return err
	}
	l := loader.New(src,
		loader.WithLogger(cc.Logger),
		loader.WithMetrics(cc.Metrics),
		loader.WithMaxProbe(cfg.Data.MaxProbe),
		loader.WithModeFunc(func() app.DataMode { return mode }),
	)

	n, err := l.ProbeMaxIteration(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
	return err
}
