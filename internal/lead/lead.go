// Package lead provides composite helpers for the team lead: acknowledging
// a teammate's completion message together with the task it refers to, and
// a one-shot status report aggregating roster, tasks, unread messages, and
// health findings.
package lead

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mrz1836/crew/internal/constants"
	"github.com/mrz1836/crew/internal/doctor"
	"github.com/mrz1836/crew/internal/domain"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/inbox"
	"github.com/mrz1836/crew/internal/storage"
	"github.com/mrz1836/crew/internal/task"
)

// Helper wires the stores the lead commands operate across.
type Helper struct {
	paths   *storage.Paths
	tasks   *task.Store
	inboxes *inbox.Store
	checker *doctor.Checker
	logger  zerolog.Logger
}

// NewHelper creates the lead command helper.
func NewHelper(paths *storage.Paths, tasks *task.Store, inboxes *inbox.Store, checker *doctor.Checker, logger zerolog.Logger) *Helper {
	return &Helper{
		paths:   paths,
		tasks:   tasks,
		inboxes: inboxes,
		checker: checker,
		logger:  logger,
	}
}

// SyncDoneResult reports whether a completion message was matched, and what
// it resolved.
type SyncDoneResult struct {
	Matched bool            `json:"matched"`
	Message *domain.Message `json:"message,omitempty"`
	Task    *domain.Task    `json:"task,omitempty"`
}

// MemberSummary aggregates the roster for the status report.
type MemberSummary struct {
	Total  int      `json:"total"`
	Active []string `json:"active"`
}

// TaskSummary aggregates the task graph for the status report.
type TaskSummary struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	OpenByOwner map[string]int `json:"openByOwner"`
}

// StatusReport is the lead-facing snapshot of one team.
type StatusReport struct {
	Team           string           `json:"team"`
	Members        MemberSummary    `json:"members"`
	Tasks          TaskSummary      `json:"tasks"`
	UnreadMessages []domain.Message `json:"unreadMessages"`
	Health         *doctor.Report   `json:"health"`
}

// SyncDone marks the newest unread message from the agent with the given
// summary as read in the lead's inbox, then advances the referenced task to
// completed. An unmatched message yields Matched=false without touching any
// task. Lead only.
func (h *Helper) SyncDone(ctx context.Context, actor identity.Context, team, fromAgent, summary, taskID string) (*SyncDoneResult, error) {
	if err := actor.AssertLeadOnly("lead sync-done", team); err != nil {
		return nil, err
	}

	msg, err := h.inboxes.ResolveSummary(ctx, actor, team, constants.TeamLeadName, fromAgent, summary)
	if err != nil {
		if errors.Is(err, crewerrors.ErrNoMatchingMessage) {
			h.logger.Debug().Str("team", team).Str("from", fromAgent).
				Str("summary", summary).Msg("no completion message matched")
			return &SyncDoneResult{}, nil
		}
		return nil, err
	}

	result := &SyncDoneResult{Matched: true, Message: msg}
	if taskID != "" {
		completed, updateErr := h.tasks.Update(ctx, actor, team, taskID, task.UpdateParams{
			Status: constants.TaskStatusCompleted,
		})
		if updateErr != nil {
			return nil, updateErr
		}
		result.Task = completed
	}

	h.logger.Info().Str("team", team).Str("from", fromAgent).
		Str("task", taskID).Msg("completion synced")
	return result, nil
}

// StatusReportOptions tunes the report.
type StatusReportOptions struct {
	// MaxMessages caps the unread-message tail. Non-positive means all.
	MaxMessages int
}

// StatusReport aggregates member, task, inbox, and health state into one
// snapshot. Read-only. Lead only.
func (h *Helper) StatusReport(ctx context.Context, actor identity.Context, team string, opts StatusReportOptions) (*StatusReport, error) {
	if err := actor.AssertLeadOnly("lead status-report", team); err != nil {
		return nil, err
	}
	roster, err := h.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	tasks, err := h.tasks.List(ctx, actor, team)
	if err != nil {
		return nil, err
	}
	unread, err := h.inboxes.Read(ctx, actor, team, inbox.ReadParams{
		Agent:      constants.TeamLeadName,
		UnreadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	health, err := h.checker.Check(ctx, actor, team)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Team: team,
		Members: MemberSummary{
			Total:  len(roster.Members),
			Active: []string{},
		},
		Tasks: TaskSummary{
			Total:       len(tasks),
			ByStatus:    map[string]int{},
			OpenByOwner: map[string]int{},
		},
		UnreadMessages: unread,
		Health:         health,
	}
	for _, m := range roster.Teammates() {
		if m.IsActive {
			report.Members.Active = append(report.Members.Active, m.Name)
		}
	}
	for _, t := range tasks {
		report.Tasks.ByStatus[t.Status.String()]++
		if t.Status == constants.TaskStatusCompleted {
			continue
		}
		owner := t.Owner
		if owner == "" {
			owner = "unassigned"
		}
		report.Tasks.OpenByOwner[owner]++
	}
	if limit := opts.MaxMessages; limit > 0 && len(report.UnreadMessages) > limit {
		report.UnreadMessages = report.UnreadMessages[len(report.UnreadMessages)-limit:]
	}
	return report, nil
}
