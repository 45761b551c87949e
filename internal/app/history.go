package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/audit-mailer/internal/history"
	"github.com/nhle/audit-mailer/internal/model"
	"github.com/nhle/audit-mailer/internal/theme"
)

// NewHistoryCommand returns the history command group.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the audit history",
	}
	cmd.AddCommand(newHistoryListCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent audit records (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.cfg.History.Backend != model.BackendSQLite {
				return errors.New("history list needs history.backend: sqlite; open the workbook to read xlsx history")
			}
			if rt.cfg.Paths.HistoryDB == "" {
				return errors.New("paths.history_db is not set")
			}

			store, err := history.NewSQLiteStore(rt.cfg.Paths.HistoryDB, rt.cfg.Paths.HistorySheet)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListRecords(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(rt.writer, theme.HelpStyle.Render("No audit records yet."))
				return nil
			}

			fmt.Fprintln(rt.writer, recordTable(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records, 0 for all")
	return cmd
}

func recordTable(records []model.AuditRecord) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("Data Envio", "Linha", "Cliente", "Assessor", "Status", "Token", "ConversationID").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.HeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, r := range records {
		t.Row(
			r.SentAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Position),
			r.ClientID+" "+r.ClientName,
			r.AdvisorEmail,
			r.Status,
			r.Token,
			r.ConversationID,
		)
	}
	return t.Render()
}
