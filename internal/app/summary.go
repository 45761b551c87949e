package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/audit-mailer/internal/dispatch"
	"github.com/nhle/audit-mailer/internal/theme"
)

// printSummary writes the per-item outcomes and run totals.
func printSummary(w io.Writer, res dispatch.RunResult) {
	fmt.Fprintln(w, renderSummary(res))
}

func renderSummary(res dispatch.RunResult) string {
	var b strings.Builder

	title := "Dispatch run " + res.RunID
	if res.DryRun {
		title += " (dry run)"
	}
	b.WriteString(theme.HeaderStyle.Render(title))
	b.WriteString("\n")

	for _, item := range res.Items {
		outcome := string(item.Outcome)
		line := fmt.Sprintf("row %-4d %-10s %s",
			item.Item.Position,
			item.Item.ClientID,
			theme.OutcomeStyle(outcome).Render(outcome))
		if item.Err != nil && item.Failed() {
			line += " " + theme.HelpStyle.Render(item.Err.Error())
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	totals := lipgloss.JoinHorizontal(lipgloss.Top,
		total("processed", res.Processed, "unknown"),
		total("sent", res.Succeeded, string(dispatch.OutcomeSent)),
		total("previewed", res.Previewed, string(dispatch.OutcomeDryRun)),
		total("failed", res.Failed, string(dispatch.OutcomeStoreError)),
	)
	b.WriteString(theme.BorderStyle.Render(totals))
	return b.String()
}

func total(label string, n int, outcome string) string {
	return lipgloss.NewStyle().PaddingRight(2).Render(
		fmt.Sprintf("%s %s", label, theme.OutcomeStyle(outcome).Render(fmt.Sprint(n))))
}
