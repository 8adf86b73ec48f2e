package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mrz1836/crew/internal/constants"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/task"
)

// addTaskCommand registers the task store subcommands.
func addTaskCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage a team's task graph",
	}
	cmd.AddCommand(
		newTaskCreateCmd(),
		newTaskUpdateCmd(),
		newTaskGetCmd(),
		newTaskListCmd(),
		newTaskResetOwnerCmd(),
	)
	root.AddCommand(cmd)
}

// parseMetadata decodes a --metadata JSON object, "" meaning none.
func parseMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, crewerrors.Wrap(err, "parsing --metadata")
	}
	return m, nil
}

func newTaskCreateCmd() *cobra.Command {
	var (
		teamName   string
		subject    string
		desc       string
		activeForm string
		metadata   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new pending task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			meta, err := parseMetadata(metadata)
			if err != nil {
				return err
			}
			created, err := a.tasks.Create(cmd.Context(), a.actor, teamName, task.CreateParams{
				Subject:     subject,
				Description: desc,
				ActiveForm:  activeForm,
				Metadata:    meta,
			})
			if err != nil {
				return err
			}
			return printResult(cmd, created)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&subject, "subject", "", "short imperative title")
	cmd.Flags().StringVar(&desc, "description", "", "task details")
	cmd.Flags().StringVar(&activeForm, "active-form", "", "present-tense label")
	cmd.Flags().StringVar(&metadata, "metadata", "", "free-form metadata as a JSON object")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		teamName     string
		id           string
		status       string
		owner        string
		subject      string
		desc         string
		activeForm   string
		addBlocks    []string
		addBlockedBy []string
		metadata     string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a task's fields, dependencies, or status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			meta, err := parseMetadata(metadata)
			if err != nil {
				return err
			}
			params := task.UpdateParams{
				Status:        constants.TaskStatus(status),
				Subject:       subject,
				Description:   desc,
				ActiveForm:    activeForm,
				AddBlocks:     addBlocks,
				AddBlockedBy:  addBlockedBy,
				MetadataPatch: meta,
			}
			if cmd.Flags().Changed("owner") {
				params.Owner = &owner
			}
			updated, err := a.tasks.Update(cmd.Context(), a.actor, teamName, id, params)
			if err != nil {
				return err
			}
			return printResult(cmd, updated)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&id, "id", "", "task id")
	cmd.Flags().StringVar(&status, "status", "", "new status (pending|in_progress|completed|deleted)")
	cmd.Flags().StringVar(&owner, "owner", "", "reassign to this member")
	cmd.Flags().StringVar(&subject, "subject", "", "new subject")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().StringVar(&activeForm, "active-form", "", "new present-tense label")
	cmd.Flags().StringSliceVar(&addBlocks, "add-blocks", nil, "task ids this task should block")
	cmd.Flags().StringSliceVar(&addBlockedBy, "add-blocked-by", nil, "task ids that must complete first")
	cmd.Flags().StringVar(&metadata, "metadata", "", "metadata patch as a JSON object (null values delete keys)")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTaskGetCmd() *cobra.Command {
	var (
		teamName string
		id       string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			t, err := a.tasks.Get(cmd.Context(), a.actor, teamName, id)
			if err != nil {
				return err
			}
			return printResult(cmd, t)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&id, "id", "", "task id")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newTaskListCmd() *cobra.Command {
	var teamName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every task in the team, ordered by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			tasks, err := a.tasks.List(cmd.Context(), a.actor, teamName)
			if err != nil {
				return err
			}
			return printResult(cmd, tasks)
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func newTaskResetOwnerCmd() *cobra.Command {
	var (
		teamName string
		owner    string
	)

	cmd := &cobra.Command{
		Use:   "reset-owner",
		Short: "Release a member's tasks back to the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			count, err := a.tasks.ResetOwner(cmd.Context(), a.actor, teamName, owner)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]any{"tasksReset": count})
		},
	}

	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().StringVar(&owner, "owner", "", "member whose tasks to release")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
