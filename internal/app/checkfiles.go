package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/audit-mailer/internal/dispatch"
	"github.com/nhle/audit-mailer/internal/fileguard"
	"github.com/nhle/audit-mailer/internal/theme"
)

// NewCheckFilesCommand returns the command that runs only the pre-flight
// file check.
func NewCheckFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-files",
		Short: "Check that no spreadsheet the run uses is open in another program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			paths := rt.cfg.GuardedPaths()
			if err := fileguard.New(rt.cfg.HistoryPath()).Check(paths); err != nil {
				fmt.Fprintln(rt.writer, theme.ErrorStyle.Render(err.Error()))
				return dispatch.Structural(dispatch.StageGuard, err)
			}

			for _, p := range paths {
				if p == "" {
					continue
				}
				fmt.Fprintf(rt.writer, "%s %s\n", theme.OutcomeStyle("sent").Render("ok"), p)
			}
			return nil
		},
	}
}
