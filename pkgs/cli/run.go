package cli

import (
	"github.com/spf13/cobra"

	"github.com/texecom/connect/pkgs/app"
)

// NewRunCommand starts the long-running protocol engine.
func NewRunCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "run",
		Short: "Connect to the panel and stream events forever",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.RunAction()
		},
	}
	return command
}
