package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"falcomplot/internal/report"
	"falcomplot/internal/session"
)

type reportOptions struct {
	out       string
	iteration int
	width     float64
	height    float64
}

// NewReportCmd summarises district populations and charts them.
func NewReportCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print district populations and write a bar chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "", "chart PNG path (table only when empty)")
	f.IntVarP(&opts.iteration, "iteration", "i", 0, "iteration to summarise (0 = last)")
	f.Float64Var(&opts.width, "width", 8, "chart width in inches")
	f.Float64Var(&opts.height, "height", 4, "chart height in inches")
	return cmd
}

func runReport(cmd *cobra.Command, opts *reportOptions) error {
	cc, err := FromCommand(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := session.Open(ctx, cc.Config, cc.Logger, cc.Metrics)
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

	sum := report.Summarize(sess.State.Snapshot())
	if err := writeSummary(cmd.OutOrStdout(), sum, sess.State.Iteration()); err != nil {
		return err
	}
	if opts.out == "" {
		return nil
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Districts at iteration %d", sess.State.Iteration())
	if err := report.WritePNG(f, sum, title, vg.Length(opts.width)*vg.Inch, vg.Length(opts.height)*vg.Inch); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.out)
	return err
}

func writeSummary(w io.Writer, sum report.Summary, iteration int) error {
	fmt.Fprintf(w, "\n=== Districts at iteration %d ===\n\n", iteration)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"District", "Blocks", "Population", "Source", "Tolerance"})
	for _, d := range sum.Districts {
		source := "blocks"
		if d.FromMetadata {
			source = "metadata"
		}
		within := "outside"
		if d.Within {
			within = "within"
		}
		if err := table.Append([]string{
			strconv.Itoa(d.ID),
			strconv.Itoa(d.Blocks),
			strconv.FormatFloat(d.Population, 'f', 0, 64),
			source,
			within,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(sum.Districts) == 0 {
		_, err := fmt.Fprintln(w, "\nNo districts assigned.")
		return err
	}
	fmt.Fprintf(w, "\nDistricts: %d (%d within tolerance)\n", len(sum.Districts), sum.Within)
	fmt.Fprintf(w, "Population: total %.0f, mean %.1f, stddev %.1f, min %.0f, max %.0f\n",
		sum.Total, sum.Mean, sum.StdDev, sum.Min, sum.Max)
	if sum.Ideal != nil {
		fmt.Fprintf(w, "Ideal: %.0f\n", *sum.Ideal)
	}
	return nil
}
