package cli

import (
	"github.com/spf13/cobra"

	"github.com/texecom/connect/pkgs/app"
)

// NewArmCommand fully arms a list of areas.
func NewArmCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "arm AREAS",
		Short: "Fully arm one or more areas",
		Long:  "Fully arm one or more areas. AREAS is a comma or space separated list of area numbers, e.g. \"1,2\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.ArmAction(args[0])
		},
	}
	return command
}

// NewPartArmCommand part-1-arms a list of areas.
func NewPartArmCommand(a *app.App) *cobra.Command {
	command := &cobra.Command{
		Use:   "part-arm AREAS",
		Short: "Part-1-arm one or more areas",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.PartArmAction(args[0])
		},
	}
	return command
}
