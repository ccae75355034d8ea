package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/texecom/connect/pkgs/app"
)

// NewRootCommand assembles the texecom-connect command tree.
func NewRootCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "texecom-connect",
		Short: "Client for the Texecom Connect alarm panel protocol",
		RunE: func(command *cobra.Command, args []string) error {
			return errors.New("please select a command")
		},
	}

	command.PersistentFlags().BoolVarP(&a.Debug, "debug", "v", false, "Increase verbosity to the debug level")

	command.AddCommand(NewRunCommand(a))
	command.AddCommand(NewArmCommand(a))
	command.AddCommand(NewPartArmCommand(a))
	command.AddCommand(NewDisarmCommand(a))
	command.AddCommand(NewResetCommand(a))
	command.AddCommand(NewStatusCommand(a))

	return command
}
