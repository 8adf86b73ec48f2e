package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/crew/internal/inbox"
)

// addInboxCommand registers the inbox messaging subcommands.
func addInboxCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Send and read teammate messages",
	}
	cmd.AddCommand(
		newInboxEnsureCmd(),
		newInboxSendCmd(),
		newInboxBroadcastCmd(),
		newInboxReadCmd(),
		newInboxShutdownRequestCmd(),
	)
	root.AddCommand(cmd)
}

func newInboxEnsureCmd() *cobra.Command {
	var (
		teamName string
		agent    string
	)

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create an agent's inbox file if it is missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.inboxes.Ensure(cmd.Context(), teamName, agent); err != nil {
				return err
			}
			return printResult(cmd, map[string]any{"team": teamName, "agent": agent})
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&agent, "agent", "", "inbox owner")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func newInboxSendCmd() *cobra.Command {
	var (
		teamName  string
		p         inbox.SendParams
		noReplace bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver a message to one teammate or the lead",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p.ReplaceSummary = !noReplace
			res, err := a.inboxes.Send(cmd.Context(), a.actor, teamName, p)
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&p.From, "from", "", "sender name")
	cmd.Flags().StringVar(&p.To, "to", "", "recipient name")
	cmd.Flags().StringVar(&p.Text, "text", "", "message body")
	cmd.Flags().StringVar(&p.Summary, "summary", "", "short summary used for collapsing")
	cmd.Flags().StringVar(&p.Color, "color", "", "display color (defaults to the sender's)")
	cmd.Flags().BoolVar(&noReplace, "no-replace-summary", false, "append even when an unread message shares the summary")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("summary")

	return cmd
}

func newInboxBroadcastCmd() *cobra.Command {
	var (
		teamName string
		p        inbox.BroadcastParams
	)

	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Deliver one message to every teammate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.inboxes.Broadcast(cmd.Context(), a.actor, teamName, p)
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&p.Text, "text", "", "message body")
	cmd.Flags().StringVar(&p.Summary, "summary", "", "short summary used for collapsing")
	cmd.Flags().BoolVar(&p.ReplaceSummary, "replace-summary", true, "collapse onto an unread message with the same summary")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("summary")

	return cmd
}

func newInboxReadCmd() *cobra.Command {
	var (
		teamName   string
		p          inbox.ReadParams
		all        bool
		noMarkRead bool
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read an agent's inbox, marking messages read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p.UnreadOnly = !all
			p.MarkRead = !noMarkRead
			msgs, err := a.inboxes.Read(cmd.Context(), a.actor, teamName, p)
			if err != nil {
				return err
			}
			return printResult(cmd, msgs)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&p.Agent, "agent", "", "inbox owner")
	cmd.Flags().BoolVar(&all, "all", false, "include messages already read")
	cmd.Flags().BoolVar(&noMarkRead, "no-mark-read", false, "leave returned messages unread")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func newInboxShutdownRequestCmd() *cobra.Command {
	var (
		teamName  string
		recipient string
		reason    string
	)

	cmd := &cobra.Command{
		Use:   "shutdown-request",
		Short: "Ask a teammate to wind down gracefully",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.inboxes.ShutdownRequest(cmd.Context(), a.actor, teamName, recipient, reason)
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&recipient, "recipient", "", "teammate to shut down")
	cmd.Flags().StringVar(&reason, "reason", "", "why the shutdown is requested")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}
