// Package doctor runs read-only consistency checks over a team's roster,
// inboxes, and task graph. Checks never mutate state and keep scanning
// after individual probes fail; probe failures become findings, not errors.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/crew/internal/clock"
	"github.com/mrz1836/crew/internal/constants"
	"github.com/mrz1836/crew/internal/domain"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/opencode"
	"github.com/mrz1836/crew/internal/storage"
	"github.com/mrz1836/crew/internal/task"
	"github.com/mrz1836/crew/internal/tmux"
)

// Finding kinds, stable identifiers for tooling that filters reports.
const (
	KindInvalidMember      = "invalid_member"
	KindMissingInbox       = "missing_inbox"
	KindOrphanRuntime      = "orphan_runtime"
	KindUnknownSession     = "unknown_session"
	KindSessionCheckFailed = "session_check_failed"
	KindMissingAssignment  = "missing_initial_assignment"
	KindMissingAck         = "missing_assignment_ack"
	KindSilentTeammate     = "silent_teammate_timeout"
	KindInvalidOwner       = "invalid_owner"
	KindMissingDependency  = "missing_dependency"
	KindMissingBlockTarget = "missing_block_target"
)

// Severity levels for findings.
const (
	SeverityError = "error"
	SeverityWarn  = "warn"
)

// assignmentMarker identifies assignment messages by summary.
const assignmentMarker = "assignment"

// Finding is one detected inconsistency.
type Finding struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Member   string `json:"member,omitempty"`
	Task     string `json:"task,omitempty"`
	Detail   string `json:"detail"`
}

// Report is the result of one full team scan.
type Report struct {
	Team        string    `json:"team"`
	MemberCount int       `json:"memberCount"`
	TaskCount   int       `json:"taskCount"`
	OK          bool      `json:"ok"`
	Findings    []Finding `json:"findings"`
}

// SessionStater queries the runtime for a session's state. *opencode.Client
// satisfies it.
type SessionStater interface {
	SessionStatus(ctx context.Context, sessionID string) (string, error)
}

// Timeouts configures the staleness checks. A non-positive value disables
// the corresponding check.
type Timeouts struct {
	InitialAssignment time.Duration
	AssignmentAck     time.Duration
	Silence           time.Duration
}

// Checker scans one team at a time.
type Checker struct {
	paths    *storage.Paths
	tasks    *task.Store
	prober   tmux.Prober
	sessions SessionStater
	clock    clock.Clock
	timeouts Timeouts
	logger   zerolog.Logger
}

// NewChecker creates a health checker. sessions may be nil to skip the
// remote session probes.
func NewChecker(paths *storage.Paths, tasks *task.Store, prober tmux.Prober, sessions SessionStater, clk clock.Clock, timeouts Timeouts, logger zerolog.Logger) *Checker {
	return &Checker{
		paths:    paths,
		tasks:    tasks,
		prober:   prober,
		sessions: sessions,
		clock:    clk,
		timeouts: timeouts,
		logger:   logger,
	}
}

// Check runs every probe against the team and returns the aggregated report.
func (c *Checker) Check(ctx context.Context, actor identity.Context, team string) (*Report, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	roster, err := c.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	tasks, err := c.tasks.List(ctx, actor, team)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Team:        team,
		MemberCount: len(roster.Members),
		TaskCount:   len(tasks),
		Findings:    []Finding{},
	}

	leadInbox := c.loadInbox(team, constants.TeamLeadName)
	for _, m := range roster.Teammates() {
		report.Findings = append(report.Findings, c.checkMember(ctx, team, &m, leadInbox)...)
	}
	report.Findings = append(report.Findings, c.checkTasks(roster, tasks)...)

	report.OK = len(report.Findings) == 0
	c.logger.Debug().Str("team", team).Int("findings", len(report.Findings)).
		Bool("ok", report.OK).Msg("health check complete")
	return report, nil
}

// checkMember runs the per-teammate probes.
func (c *Checker) checkMember(ctx context.Context, team string, m *domain.Member, leadInbox []domain.Message) []Finding {
	var findings []Finding

	if err := storage.ValidateName(m.Name, "member"); err != nil {
		return append(findings, Finding{
			Kind:     KindInvalidMember,
			Severity: SeverityError,
			Member:   m.Name,
			Detail:   fmt.Sprintf("member name %q is invalid", m.Name),
		})
	}

	var inbox []domain.Message
	if _, err := os.Stat(c.paths.InboxPath(team, m.Name)); err != nil {
		findings = append(findings, Finding{
			Kind:     KindMissingInbox,
			Severity: SeverityError,
			Member:   m.Name,
			Detail:   fmt.Sprintf("no inbox file for member %q", m.Name),
		})
	} else {
		inbox = c.loadInbox(team, m.Name)
	}

	if m.IsActive && m.TmuxPaneID != "" && !c.prober.TargetExists(m.TmuxPaneID) {
		findings = append(findings, Finding{
			Kind:     KindOrphanRuntime,
			Severity: SeverityWarn,
			Member:   m.Name,
			Detail:   fmt.Sprintf("member %q is flagged active but pane %q does not exist", m.Name, m.TmuxPaneID),
		})
	}

	if m.OpencodeSessionID != "" && c.sessions != nil {
		state, err := c.sessions.SessionStatus(ctx, m.OpencodeSessionID)
		switch {
		case err != nil:
			findings = append(findings, Finding{
				Kind:     KindSessionCheckFailed,
				Severity: SeverityWarn,
				Member:   m.Name,
				Detail:   fmt.Sprintf("session status query for %q failed: %v", m.OpencodeSessionID, err),
			})
		case state == opencode.SessionStateUnknown:
			findings = append(findings, Finding{
				Kind:     KindUnknownSession,
				Severity: SeverityWarn,
				Member:   m.Name,
				Detail:   fmt.Sprintf("runtime does not recognize session %q", m.OpencodeSessionID),
			})
		}
	}

	findings = append(findings, c.checkActivity(m, inbox, leadInbox)...)
	return findings
}

// checkActivity applies the three timeout probes against the member's
// assignment and report history. Inactive members are not probed.
func (c *Checker) checkActivity(m *domain.Member, inbox, leadInbox []domain.Message) []Finding {
	if !m.IsActive {
		return nil
	}

	var findings []Finding
	now := c.clock.Now().UnixMilli()

	lastAssignment := int64(-1)
	for _, msg := range inbox {
		if msg.From != constants.TeamLeadName {
			continue
		}
		if !strings.Contains(strings.ToLower(msg.Summary), assignmentMarker) {
			continue
		}
		if ts, ok := domain.ParseTimestampMillis(msg.Timestamp); ok && ts > lastAssignment {
			lastAssignment = ts
		}
	}

	lastReport := int64(-1)
	for _, msg := range leadInbox {
		if msg.From != m.Name {
			continue
		}
		if ts, ok := domain.ParseTimestampMillis(msg.Timestamp); ok && ts > lastReport {
			lastReport = ts
		}
	}

	if t := c.timeouts.InitialAssignment; t > 0 && lastAssignment < 0 &&
		now-m.JoinedAt > t.Milliseconds() {
		findings = append(findings, Finding{
			Kind:     KindMissingAssignment,
			Severity: SeverityError,
			Member:   m.Name,
			Detail:   fmt.Sprintf("member %q has been active since joining with no assignment", m.Name),
		})
	}

	if t := c.timeouts.AssignmentAck; t > 0 && lastAssignment >= 0 &&
		lastReport < lastAssignment && now-lastAssignment > t.Milliseconds() {
		findings = append(findings, Finding{
			Kind:     KindMissingAck,
			Severity: SeverityError,
			Member:   m.Name,
			Detail:   fmt.Sprintf("member %q has an outstanding assignment with no newer report", m.Name),
		})
	}

	// The last signal is the most recent of joining, the latest assignment,
	// and the latest report to the lead.
	if t := c.timeouts.Silence; t > 0 {
		lastSignal := m.JoinedAt
		if lastAssignment > lastSignal {
			lastSignal = lastAssignment
		}
		if lastReport > lastSignal {
			lastSignal = lastReport
		}
		if now-lastSignal > t.Milliseconds() {
			findings = append(findings, Finding{
				Kind:     KindSilentTeammate,
				Severity: SeverityError,
				Member:   m.Name,
				Detail:   fmt.Sprintf("member %q has sent no signal for %s", m.Name, time.Duration(now-lastSignal)*time.Millisecond),
			})
		}
	}

	return findings
}

// checkTasks verifies owners and dependency references.
func (c *Checker) checkTasks(roster *domain.Team, tasks []*domain.Task) []Finding {
	var findings []Finding

	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	for _, t := range tasks {
		if t.Owner != "" && !roster.HasMember(t.Owner) {
			findings = append(findings, Finding{
				Kind:     KindInvalidOwner,
				Severity: SeverityError,
				Task:     t.ID,
				Detail:   fmt.Sprintf("task %q is owned by %q, who is not a member", t.ID, t.Owner),
			})
		}
		for _, dep := range t.BlockedBy {
			if !known[dep] {
				findings = append(findings, Finding{
					Kind:     KindMissingDependency,
					Severity: SeverityWarn,
					Task:     t.ID,
					Detail:   fmt.Sprintf("task %q is blocked by missing task %q", t.ID, dep),
				})
			}
		}
		for _, b := range t.Blocks {
			if !known[b] {
				findings = append(findings, Finding{
					Kind:     KindMissingBlockTarget,
					Severity: SeverityWarn,
					Task:     t.ID,
					Detail:   fmt.Sprintf("task %q blocks missing task %q", t.ID, b),
				})
			}
		}
	}
	return findings
}

// loadInbox reads an agent's messages without taking the inbox lock; checks
// tolerate a torn read since they are advisory.
func (c *Checker) loadInbox(team, agent string) []domain.Message {
	var messages []domain.Message
	if _, err := storage.ReadJSON(c.paths.InboxPath(team, agent), &messages); err != nil {
		c.logger.Debug().Err(err).Str("agent", agent).Msg("inbox unreadable during health check")
		return nil
	}
	return messages
}
