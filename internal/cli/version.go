package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"falcomplot/internal/version"
)

// NewVersionCmd prints build information. It skips config loading.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "falcomplot %s\n", version.String())
			return err
		},
	}
}
