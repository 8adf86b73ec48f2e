// Package team implements the team registry: team lifecycle, roster
// management, and runtime-pane tracking. Config mutations are serialized by
// the team's inbox-directory lock, which also guards the config file.
package team

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/crew/internal/clock"
	"github.com/mrz1836/crew/internal/constants"
	"github.com/mrz1836/crew/internal/domain"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/inbox"
	"github.com/mrz1836/crew/internal/logging"
	"github.com/mrz1836/crew/internal/storage"
	"github.com/mrz1836/crew/internal/task"
	"github.com/mrz1836/crew/internal/tmux"
)

// SessionCloser tears down a live runtime session. *opencode.Client
// satisfies it.
type SessionCloser interface {
	AbortSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Registry provides team lifecycle and roster operations.
type Registry struct {
	paths    *storage.Paths
	tasks    *task.Store
	inboxes  *inbox.Store
	sessions SessionCloser
	prober   tmux.Prober
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewRegistry creates a team registry. sessions may be nil when live-session
// teardown is unavailable; remove-member then reports the teardown as failed.
func NewRegistry(paths *storage.Paths, tasks *task.Store, inboxes *inbox.Store, sessions SessionCloser, prober tmux.Prober, clk clock.Clock, logger zerolog.Logger) *Registry {
	return &Registry{
		paths:    paths,
		tasks:    tasks,
		inboxes:  inboxes,
		sessions: sessions,
		prober:   prober,
		clock:    clk,
		logger:   logger,
	}
}

// CreateParams holds the caller-supplied fields for a new team.
type CreateParams struct {
	Description string

	// LeadSessionID links the lead to its runtime session. A fresh id is
	// generated when empty so the team record is always addressable.
	LeadSessionID string
}

// AddMemberParams holds the caller-supplied fields for a new roster member.
type AddMemberParams struct {
	Name             string
	AgentType        string
	Model            string
	Prompt           string
	Cwd              string
	BackendType      string
	PlanModeRequired bool
	SessionID        string
	TmuxPaneID       string
	Subscriptions    []string
}

// RemoveMemberOptions selects what remove-member tears down besides the
// roster entry.
type RemoveMemberOptions struct {
	// ResetTasks releases the member's owned tasks back to the pool.
	ResetTasks bool

	// CloseSession aborts and deletes the member's live runtime session.
	CloseSession bool
}

// RemoveMemberResult reports the side effects of a removal.
type RemoveMemberResult struct {
	// TasksReset counts tasks released back to the pool.
	TasksReset int `json:"tasksReset"`

	// Session is "deleted", "failed", or "skipped".
	Session string `json:"session"`
}

// Create initializes a new team: directories, lead member, environment
// snapshot, and terminal anchor. Fails when a config already exists.
func (r *Registry) Create(ctx context.Context, actor identity.Context, name string, p CreateParams) (*domain.Team, error) {
	if err := storage.ValidateName(name, "team"); err != nil {
		return nil, err
	}
	if err := actor.AssertLeadOnly("team create", name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.paths.TeamConfigPath(name)); err == nil {
		return nil, crewerrors.Wrapf(crewerrors.ErrTeamExists, "team %q", name)
	}
	if err := r.paths.EnsureTeamDirs(name); err != nil {
		return nil, err
	}

	sessionID := p.LeadSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	windowID, paneID := r.prober.CurrentAnchor()
	now := r.clock.Now().UnixMilli()

	t := &domain.Team{
		Name:          name,
		Description:   p.Description,
		CreatedAt:     now,
		LeadAgentID:   fmt.Sprintf("%s@%s", constants.TeamLeadName, name),
		LeadSessionID: sessionID,
		LeadWindowID:  windowID,
		LeadPaneID:    paneID,
		LeadEnv:       captureLeadEnv(),
		Members: []domain.Member{{
			AgentID:           fmt.Sprintf("%s@%s", constants.TeamLeadName, name),
			Name:              constants.TeamLeadName,
			AgentType:         constants.TeamLeadName,
			Model:             constants.BackendOpencode,
			JoinedAt:          now,
			TmuxPaneID:        paneID,
			Subscriptions:     []string{},
			OpencodeSessionID: sessionID,
			IsActive:          paneID != "",
		}},
	}

	err := storage.WithLock(ctx, r.paths.TeamLockPath(name), func() error {
		if _, statErr := os.Stat(r.paths.TeamConfigPath(name)); statErr == nil {
			return crewerrors.Wrapf(crewerrors.ErrTeamExists, "team %q", name)
		}
		return r.paths.SaveTeam(t)
	})
	if err != nil {
		return nil, err
	}
	if err := r.inboxes.Ensure(ctx, name, constants.TeamLeadName); err != nil {
		return nil, err
	}

	r.logger.Info().Str("team", name).Str("session_id", sessionID).Msg("team created")
	r.logger.Debug().Interface("lead_env", logging.FilterEnv(t.LeadEnv)).Msg("lead environment captured")
	return t, nil
}

// Delete removes the team's directory tree. Fails while any non-lead member
// remains.
func (r *Registry) Delete(ctx context.Context, actor identity.Context, name string) error {
	if err := actor.AssertLeadOnly("team delete", name); err != nil {
		return err
	}
	t, err := r.paths.LoadTeam(name)
	if err != nil {
		return err
	}
	if teammates := t.Teammates(); len(teammates) > 0 {
		return crewerrors.Wrapf(crewerrors.ErrTeamNotEmpty,
			"team %q still has %d member(s)", name, len(teammates))
	}
	if err := r.paths.RemoveTeamTree(name); err != nil {
		return err
	}
	r.logger.Info().Str("team", name).Msg("team deleted")
	return nil
}

// List returns every team with a readable config, sorted by name.
func (r *Registry) List(ctx context.Context) ([]*domain.Team, error) {
	names, err := r.paths.ListTeams()
	if err != nil {
		return nil, err
	}
	teams := make([]*domain.Team, 0, len(names))
	for _, name := range names {
		t, loadErr := r.paths.LoadTeam(name)
		if loadErr != nil {
			return nil, loadErr
		}
		teams = append(teams, t)
	}
	return teams, nil
}

// Show returns one team's full record.
func (r *Registry) Show(ctx context.Context, actor identity.Context, name string) (*domain.Team, error) {
	if err := actor.AssertTeamScope(name); err != nil {
		return nil, err
	}
	return r.paths.LoadTeam(name)
}

// AddMember appends a teammate to the roster and creates its inbox. The
// color is a round-robin pick from the fixed palette based on the current
// teammate count. Lead only.
func (r *Registry) AddMember(ctx context.Context, actor identity.Context, team string, p AddMemberParams) (*domain.Member, error) {
	if err := actor.AssertLeadOnly("team add-member", team); err != nil {
		return nil, err
	}
	if err := storage.ValidateName(p.Name, "member"); err != nil {
		return nil, err
	}
	if p.Name == constants.TeamLeadName {
		return nil, crewerrors.Wrapf(crewerrors.ErrLeadReserved, "member name %q", p.Name)
	}
	backend := p.BackendType
	if backend == "" {
		backend = constants.BackendOpencode
	}
	if backend != constants.BackendOpencode {
		return nil, crewerrors.Wrapf(crewerrors.ErrUnsupportedBackend, "backend %q", backend)
	}
	agentType := p.AgentType
	if agentType == "" {
		agentType = constants.DefaultAgentType
	}
	subscriptions := p.Subscriptions
	if subscriptions == nil {
		subscriptions = []string{}
	}

	var member domain.Member
	err := storage.WithLock(ctx, r.paths.TeamLockPath(team), func() error {
		t, loadErr := r.paths.LoadTeam(team)
		if loadErr != nil {
			return loadErr
		}
		if t.HasMember(p.Name) {
			return crewerrors.Wrapf(crewerrors.ErrMemberExists, "member %q in team %q", p.Name, team)
		}
		member = domain.Member{
			AgentID:           fmt.Sprintf("%s@%s", p.Name, team),
			Name:              p.Name,
			AgentType:         agentType,
			Model:             p.Model,
			Prompt:            p.Prompt,
			Color:             constants.ColorPalette[len(t.Teammates())%len(constants.ColorPalette)],
			PlanModeRequired:  p.PlanModeRequired,
			JoinedAt:          r.clock.Now().UnixMilli(),
			TmuxPaneID:        p.TmuxPaneID,
			Cwd:               p.Cwd,
			Subscriptions:     subscriptions,
			BackendType:       backend,
			OpencodeSessionID: p.SessionID,
			IsActive:          p.TmuxPaneID != "",
		}
		t.Members = append(t.Members, member)
		return r.paths.SaveTeam(t)
	})
	if err != nil {
		return nil, err
	}
	if err := r.inboxes.Ensure(ctx, team, p.Name); err != nil {
		return nil, err
	}

	r.logger.Info().Str("team", team).Str("member", p.Name).
		Str("color", member.Color).Msg("member added")
	return &member, nil
}

// RemoveMember drops a teammate from the roster, optionally releasing its
// tasks and tearing down its live session. Teardown failure never fails the
// removal. Lead only; the team-lead itself can never be removed.
func (r *Registry) RemoveMember(ctx context.Context, actor identity.Context, team, name string, opts RemoveMemberOptions) (*RemoveMemberResult, error) {
	if err := actor.AssertLeadOnly("team remove-member", team); err != nil {
		return nil, err
	}
	if name == constants.TeamLeadName {
		return nil, crewerrors.Wrapf(crewerrors.ErrLeadReserved, "member %q", name)
	}

	var sessionID string
	err := storage.WithLock(ctx, r.paths.TeamLockPath(team), func() error {
		t, loadErr := r.paths.LoadTeam(team)
		if loadErr != nil {
			return loadErr
		}
		idx := -1
		for i := range t.Members {
			if t.Members[i].Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return crewerrors.Wrapf(crewerrors.ErrMemberNotFound, "member %q in team %q", name, team)
		}
		sessionID = t.Members[idx].OpencodeSessionID
		t.Members = append(t.Members[:idx], t.Members[idx+1:]...)
		return r.paths.SaveTeam(t)
	})
	if err != nil {
		return nil, err
	}

	result := &RemoveMemberResult{Session: "skipped"}
	if opts.ResetTasks {
		count, resetErr := r.tasks.ResetOwner(ctx, actor, team, name)
		if resetErr != nil {
			return nil, resetErr
		}
		result.TasksReset = count
	}
	if opts.CloseSession && sessionID != "" {
		result.Session = r.closeSession(ctx, sessionID)
	}

	r.logger.Info().Str("team", team).Str("member", name).
		Int("tasks_reset", result.TasksReset).Str("session", result.Session).
		Msg("member removed")
	return result, nil
}

// RuntimeUpdate carries a member's mutable runtime fields. A nil Active
// derives the flag from pane presence; an empty SessionID leaves the stored
// session untouched.
type RuntimeUpdate struct {
	PaneID    string
	SessionID string
	Active    *bool
}

// SetRuntime updates a member's live-pane fields. Teammates may only update
// their own entry.
func (r *Registry) SetRuntime(ctx context.Context, actor identity.Context, team, name string, u RuntimeUpdate) (*domain.Member, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	if actor.IsTeammate() {
		member, memberErr := actor.RequireMember()
		if memberErr != nil {
			return nil, memberErr
		}
		if member != name {
			return nil, fmt.Errorf("%w: teammates can only update their own runtime", crewerrors.ErrPermissionDenied)
		}
	}

	var updated domain.Member
	err := storage.WithLock(ctx, r.paths.TeamLockPath(team), func() error {
		t, loadErr := r.paths.LoadTeam(team)
		if loadErr != nil {
			return loadErr
		}
		m := t.Member(name)
		if m == nil {
			return crewerrors.Wrapf(crewerrors.ErrMemberNotFound, "member %q in team %q", name, team)
		}
		m.TmuxPaneID = u.PaneID
		if u.Active != nil {
			m.IsActive = *u.Active
		} else {
			m.IsActive = u.PaneID != ""
		}
		if u.SessionID != "" {
			m.OpencodeSessionID = u.SessionID
		}
		updated = *m
		return r.paths.SaveTeam(t)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetAnchor re-points the lead's terminal anchor. The window id is required;
// the pane may be empty when only the window is known. Lead only.
func (r *Registry) SetAnchor(ctx context.Context, actor identity.Context, team, windowID, paneID string) (*domain.Team, error) {
	if err := actor.AssertLeadOnly("team set-anchor", team); err != nil {
		return nil, err
	}
	if windowID == "" {
		return nil, crewerrors.Wrap(crewerrors.ErrEmptyValue, "window id")
	}

	var updated *domain.Team
	err := storage.WithLock(ctx, r.paths.TeamLockPath(team), func() error {
		t, loadErr := r.paths.LoadTeam(team)
		if loadErr != nil {
			return loadErr
		}
		t.LeadWindowID = windowID
		t.LeadPaneID = paneID
		if lead := t.Member(constants.TeamLeadName); lead != nil {
			lead.TmuxPaneID = paneID
			lead.IsActive = paneID != ""
		}
		updated = t
		return r.paths.SaveTeam(t)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// closeSession aborts then deletes a live session, reporting the outcome as
// a status string rather than an error.
func (r *Registry) closeSession(ctx context.Context, sessionID string) string {
	if r.sessions == nil {
		return "failed"
	}
	if err := r.sessions.AbortSession(ctx, sessionID); err != nil {
		r.logger.Debug().Err(err).Str("session_id", sessionID).Msg("session abort failed")
	}
	if err := r.sessions.DeleteSession(ctx, sessionID); err != nil {
		r.logger.Debug().Err(err).Str("session_id", sessionID).Msg("session delete failed")
		return "failed"
	}
	return "deleted"
}
