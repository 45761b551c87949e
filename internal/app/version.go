package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewVersionCommand returns the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show auditmailer version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writer := cmd.OutOrStdout()
			if rt, err := getRuntime(cmd); err == nil && rt.writer != nil {
				writer = rt.writer
			}
			_, _ = fmt.Fprintf(writer, "auditmailer %s (commit: %s, built: %s, %s)\n",
				Version, GitCommit, BuildDate, runtime.Version())
			return nil
		},
	}
}
