// Package identity models the acting role of one CLI invocation.
//
// Role scoping is advisory authorization, not a security boundary: any
// process with filesystem access can bypass it. It exists so cooperating
// agents stay in their lane, and so tests can assert the lane markings.
package identity

import (
	"fmt"

	"github.com/mrz1836/crew/internal/config"
	"github.com/mrz1836/crew/internal/constants"
	crewerrors "github.com/mrz1836/crew/internal/errors"
)

// Role distinguishes the privileged lead from restricted teammates.
type Role string

// Roles a session can run under.
const (
	// RoleLead is the privileged role: team lifecycle, membership, task
	// creation, broadcast, shutdown requests.
	RoleLead Role = "team-lead"

	// RoleTeammate is restricted to its own tasks and messaging the lead.
	RoleTeammate Role = "teammate"
)

// Context is the execution context of one invocation: who is acting, under
// which role, scoped to which team. It is built once from Settings and
// passed explicitly into every store operation that enforces permissions.
type Context struct {
	// Role is the acting role. Anything other than "teammate" acts as lead.
	Role Role

	// Team is the team a teammate session is pinned to ("" when unscoped).
	Team string

	// Member is the acting member's own name ("" for the lead).
	Member string
}

// FromSettings derives the execution context from loaded settings.
func FromSettings(s *config.Settings) Context {
	role := RoleLead
	if s.Role == string(RoleTeammate) {
		role = RoleTeammate
	}
	return Context{Role: role, Team: s.Team, Member: s.Member}
}

// Lead returns an unscoped lead context, used by tests and internal calls.
func Lead() Context {
	return Context{Role: RoleLead}
}

// IsTeammate reports whether the context is a restricted teammate session.
func (c Context) IsTeammate() bool {
	return c.Role == RoleTeammate
}

// AssertTeamScope rejects operations against a team other than the one this
// session is pinned to. Unscoped sessions pass.
func (c Context) AssertTeamScope(team string) error {
	if c.Team != "" && c.Team != team {
		return fmt.Errorf("%w: this session is scoped to team %q, not %q",
			crewerrors.ErrTeamScope, c.Team, team)
	}
	return nil
}

// AssertLeadOnly rejects lead-only operations in teammate sessions, after
// checking team scope.
func (c Context) AssertLeadOnly(action, team string) error {
	if err := c.AssertTeamScope(team); err != nil {
		return err
	}
	if c.IsTeammate() {
		return fmt.Errorf("%w: teammate sessions cannot run %s",
			crewerrors.ErrPermissionDenied, action)
	}
	return nil
}

// RequireMember returns the acting member name of a teammate session, or an
// error when the session is missing its identity.
func (c Context) RequireMember() (string, error) {
	if c.Member == "" {
		return "", fmt.Errorf("%w: teammate session missing CREW_MEMBER",
			crewerrors.ErrPermissionDenied)
	}
	return c.Member, nil
}

// ActorName is the display name of the acting identity, for logging.
func (c Context) ActorName() string {
	if c.IsTeammate() && c.Member != "" {
		return c.Member
	}
	return constants.TeamLeadName
}
