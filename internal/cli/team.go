package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/crew/internal/team"
)

// addTeamCommand registers the team lifecycle subcommands.
func addTeamCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams and their rosters",
	}
	cmd.AddCommand(
		newTeamCreateCmd(),
		newTeamDeleteCmd(),
		newTeamShowCmd(),
		newTeamListCmd(),
		newTeamAddMemberCmd(),
		newTeamRemoveMemberCmd(),
		newTeamSetRuntimeCmd(),
		newTeamSetAnchorCmd(),
	)
	root.AddCommand(cmd)
}

func newTeamCreateCmd() *cobra.Command {
	var (
		teamName  string
		desc      string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team with the caller as lead",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			created, err := a.teams.Create(cmd.Context(), a.actor, teamName, team.CreateParams{
				Description:   desc,
				LeadSessionID: sessionID,
			})
			if err != nil {
				return err
			}
			return printResult(cmd, created)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&desc, "description", "", "what the team is for")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "lead session id (generated when empty)")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func newTeamDeleteCmd() *cobra.Command {
	var teamName string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an empty team and all its state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.teams.Delete(cmd.Context(), a.actor, teamName); err != nil {
				return err
			}
			return printResult(cmd, map[string]any{"team": teamName, "deleted": true})
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func newTeamShowCmd() *cobra.Command {
	var teamName string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one team's config and roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			t, err := a.teams.Show(cmd.Context(), a.actor, teamName)
			if err != nil {
				return err
			}
			return printResult(cmd, t)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func newTeamListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every team on this host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			teams, err := a.teams.List(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, teams)
		},
	}

	return cmd
}

func newTeamAddMemberCmd() *cobra.Command {
	var (
		teamName string
		p        team.AddMemberParams
	)

	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add a teammate to the roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			m, err := a.teams.AddMember(cmd.Context(), a.actor, teamName, p)
			if err != nil {
				return err
			}
			return printResult(cmd, m)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&p.Name, "name", "", "member name")
	cmd.Flags().StringVar(&p.AgentType, "agent-type", "", "agent type (default build)")
	cmd.Flags().StringVar(&p.Model, "model", "", "model identifier")
	cmd.Flags().StringVar(&p.Prompt, "prompt", "", "standing instructions for the member")
	cmd.Flags().StringVar(&p.Cwd, "cwd", "", "working directory for the member")
	cmd.Flags().StringVar(&p.BackendType, "backend", "", "runtime backend (default opencode)")
	cmd.Flags().BoolVar(&p.PlanModeRequired, "plan-mode", false, "require plan approval before execution")
	cmd.Flags().StringVar(&p.SessionID, "session-id", "", "existing session id to attach")
	cmd.Flags().StringVar(&p.TmuxPaneID, "pane", "", "tmux pane id running the member")
	cmd.Flags().StringSliceVar(&p.Subscriptions, "subscribe", nil, "event topics to subscribe to")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTeamRemoveMemberCmd() *cobra.Command {
	var (
		teamName string
		name     string
		opts     team.RemoveMemberOptions
	)

	cmd := &cobra.Command{
		Use:   "remove-member",
		Short: "Remove a teammate and optionally release their tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.teams.RemoveMember(cmd.Context(), a.actor, teamName, name, opts)
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&name, "name", "", "member name")
	cmd.Flags().BoolVar(&opts.ResetTasks, "reset-tasks", true, "release the member's tasks back to the pool")
	cmd.Flags().BoolVar(&opts.CloseSession, "cleanup-session", true, "abort and delete the member's session")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTeamSetRuntimeCmd() *cobra.Command {
	var (
		teamName string
		name     string
		active   bool
		update   team.RuntimeUpdate
	)

	cmd := &cobra.Command{
		Use:   "set-runtime",
		Short: "Record a member's live pane and session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("is-active") {
				update.Active = &active
			}
			m, err := a.teams.SetRuntime(cmd.Context(), a.actor, teamName, name, update)
			if err != nil {
				return err
			}
			return printResult(cmd, m)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&name, "name", "", "member name")
	cmd.Flags().StringVar(&update.PaneID, "pane", "", "tmux pane id (empty marks the member inactive)")
	cmd.Flags().StringVar(&update.SessionID, "session-id", "", "session id (empty leaves it unchanged)")
	cmd.Flags().BoolVar(&active, "is-active", false, "override the active flag (defaults to pane presence)")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTeamSetAnchorCmd() *cobra.Command {
	var (
		teamName string
		windowID string
		paneID   string
	)

	cmd := &cobra.Command{
		Use:   "set-anchor",
		Short: "Move the team's terminal anchor to another window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			t, err := a.teams.SetAnchor(cmd.Context(), a.actor, teamName, windowID, paneID)
			if err != nil {
				return err
			}
			return printResult(cmd, t)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&windowID, "window", "", "tmux window id")
	cmd.Flags().StringVar(&paneID, "pane", "", "tmux pane id")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("window")

	return cmd
}
