package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/audit-mailer/internal/credential"
)

// NewCredentialsCommand returns the credentials command group.
func NewCredentialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage mail server passwords in the OS keyring",
	}
	cmd.AddCommand(newCredentialsSetCommand())
	return cmd
}

func newCredentialsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "set <smtp|imap>",
		Short:     "Store the password for the configured SMTP or IMAP user",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{credential.KindSMTP, credential.KindIMAP},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			kind := args[0]
			username := rt.cfg.SMTP.Username
			if kind == credential.KindIMAP {
				username = rt.cfg.IMAP.Username
			}
			if username == "" {
				return fmt.Errorf("%s.username is not set in %s", kind, rt.configPath)
			}
			if rt.promptPassword == nil {
				return fmt.Errorf("no password prompt available")
			}

			password, err := rt.promptPassword(fmt.Sprintf("%s password for %s", kind, username))
			if err != nil {
				return err
			}

			store, err := credential.Open()
			if err != nil {
				return err
			}
			if err := store.Set(credential.Key(kind, username), password); err != nil {
				return err
			}

			fmt.Fprintf(rt.writer, "Stored %s password for %s\n", kind, username)
			return nil
		},
	}
}
