package cli

import (
	"github.com/spf13/cobra"

	"github.com/texecom/connect/pkgs/app"
)

// NewDisarmCommand disarms a list of areas.
func NewDisarmCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "disarm AREAS",
		Short: "Disarm one or more areas",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.DisarmAction(args[0])
		},
	}
	return command
}

// NewResetCommand resets (acknowledges) one or more areas after an alarm.
func NewResetCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "reset AREAS",
		Short: "Reset one or more areas after an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.ResetAction(args[0])
		},
	}
	return command
}
