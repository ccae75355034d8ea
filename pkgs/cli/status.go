package cli

import (
	"github.com/spf13/cobra"

	"github.com/texecom/connect/pkgs/app"
)

// NewStatusCommand prints a one-shot snapshot of every area and zone.
func NewStatusCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "status",
		Short: "Print the current state of every area and zone",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.StatusAction()
		},
	}
	return command
}
