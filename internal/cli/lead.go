package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/crew/internal/lead"
)

// addLeadCommand registers the lead coordination subcommands.
func addLeadCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Lead-only coordination helpers",
	}
	cmd.AddCommand(
		newLeadSyncDoneCmd(),
		newLeadStatusReportCmd(),
	)
	root.AddCommand(cmd)
}

func newLeadSyncDoneCmd() *cobra.Command {
	var (
		teamName  string
		fromAgent string
		summary   string
		taskID    string
	)

	cmd := &cobra.Command{
		Use:   "sync-done",
		Short: "Acknowledge a teammate's completion message and close its task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.lead.SyncDone(cmd.Context(), a.actor, teamName, fromAgent, summary, taskID)
			if err != nil {
				return err
			}
			if err := printResult(cmd, res); err != nil {
				return err
			}
			if !res.Matched {
				return unhealthyErr("no matching completion message")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&fromAgent, "from-agent", "", "teammate that reported completion")
	cmd.Flags().StringVar(&summary, "summary", "", "summary of the completion message")
	cmd.Flags().StringVar(&taskID, "task-id", "", "task to mark completed (optional)")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("from-agent")
	_ = cmd.MarkFlagRequired("summary")

	return cmd
}

func newLeadStatusReportCmd() *cobra.Command {
	var (
		teamName    string
		maxMessages int
	)

	cmd := &cobra.Command{
		Use:   "status-report",
		Short: "One-shot snapshot of roster, tasks, inbox, and health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			report, err := a.lead.StatusReport(cmd.Context(), a.actor, teamName, lead.StatusReportOptions{
				MaxMessages: maxMessages,
			})
			if err != nil {
				return err
			}
			return printResult(cmd, report)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().IntVar(&maxMessages, "max-messages", 0, "cap the unread-message tail (0 means all)")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}
