package main

import (
	"fmt"
	"os"

	"github.com/nhle/audit-mailer/internal/app"
	"github.com/nhle/audit-mailer/internal/dispatch"
	"github.com/nhle/audit-mailer/internal/theme"
)

func main() {
	root := app.NewRootCommand(app.DefaultConfig())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("Error: "+err.Error()))
		if dispatch.IsStructural(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
