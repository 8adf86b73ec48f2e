package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// addDoctorCommand registers the health-check subcommands.
func addDoctorCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Health checks over team state",
	}
	cmd.AddCommand(newDoctorCheckCmd())
	root.AddCommand(cmd)
}

func newDoctorCheckCmd() *cobra.Command {
	var teamName string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Scan a team for configuration and liveness problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			report, err := a.checker.Check(cmd.Context(), a.actor, teamName)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.OK {
				return unhealthyErr(fmt.Sprintf("%d findings", len(report.Findings)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}
