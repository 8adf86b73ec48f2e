// Package domain provides shared domain types for the CREW coordination system.
// These types are used across all internal packages to ensure consistent data
// structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use camelCase to stay compatible with the persisted
// team/task/inbox state layout.
package domain

import (
	"github.com/mrz1836/crew/internal/constants"
)

// Team is the root record for one isolated coordination namespace. It owns a
// roster of members, and (via the filesystem layout) a task directory and a
// set of inboxes.
//
// Example JSON representation:
//
//	{
//	    "name": "alpha",
//	    "description": "docs sprint",
//	    "createdAt": 1767225600000,
//	    "leadAgentId": "team-lead@alpha",
//	    "leadSessionId": "2f1e...",
//	    "leadWindowId": "@3",
//	    "leadPaneId": "%7",
//	    "leadEnv": {"TERM": "xterm-256color"},
//	    "members": [...]
//	}
type Team struct {
	// Name is the unique team identifier ([A-Za-z0-9_-]{1,64}).
	Name string `json:"name"`

	// Description is free text supplied at creation.
	Description string `json:"description"`

	// CreatedAt is the creation time in epoch milliseconds.
	CreatedAt int64 `json:"createdAt"`

	// LeadAgentID is the lead's stable identity ("team-lead@<team>").
	LeadAgentID string `json:"leadAgentId"`

	// LeadSessionID is the lead's runtime session identifier.
	LeadSessionID string `json:"leadSessionId"`

	// LeadWindowID anchors the lead's terminal-multiplexer window ("" outside tmux).
	LeadWindowID string `json:"leadWindowId"`

	// LeadPaneID anchors the lead's terminal-multiplexer pane ("" outside tmux).
	LeadPaneID string `json:"leadPaneId"`

	// LeadEnv is the captured subset of the lead's environment used to
	// reproduce its terminal context when spawning teammates.
	LeadEnv map[string]string `json:"leadEnv"`

	// Members is the ordered roster. Exactly one member is the team-lead.
	Members []Member `json:"members"`
}

// Member is one agent on a team's roster.
type Member struct {
	// AgentID is the stable identity "<name>@<team>".
	AgentID string `json:"agentId"`

	// Name is the member's unique name within the team.
	Name string `json:"name"`

	// AgentType selects the runtime agent profile (e.g. "build").
	AgentType string `json:"agentType"`

	// Model is the model identifier handed to the runtime ("provider/model").
	Model string `json:"model"`

	// Prompt is the teammate's standing instructions. Absent for the lead.
	Prompt string `json:"prompt,omitempty"`

	// Color is the palette color assigned at join time.
	Color string `json:"color,omitempty"`

	// PlanModeRequired forces the teammate to plan before acting.
	PlanModeRequired bool `json:"planModeRequired,omitempty"`

	// JoinedAt is the join time in epoch milliseconds.
	JoinedAt int64 `json:"joinedAt"`

	// TmuxPaneID is the live terminal pane, "" when detached.
	TmuxPaneID string `json:"tmuxPaneId"`

	// Cwd is the working directory the member operates in.
	Cwd string `json:"cwd"`

	// Subscriptions lists event topics the member follows.
	Subscriptions []string `json:"subscriptions"`

	// BackendType names the runtime backend. Only "opencode" is accepted.
	BackendType string `json:"backendType,omitempty"`

	// OpencodeSessionID links to a live runtime session, if any.
	OpencodeSessionID string `json:"opencodeSessionId,omitempty"`

	// IsActive reports whether a live terminal is currently attached.
	IsActive bool `json:"isActive,omitempty"`
}

// IsLead reports whether this member is the reserved team-lead.
func (m *Member) IsLead() bool {
	return m.Name == constants.TeamLeadName
}

// Member returns the roster entry with the given name, or nil.
func (t *Team) Member(name string) *Member {
	for i := range t.Members {
		if t.Members[i].Name == name {
			return &t.Members[i]
		}
	}
	return nil
}

// HasMember reports whether name is on the roster.
func (t *Team) HasMember(name string) bool {
	return t.Member(name) != nil
}

// Teammates returns the roster without the team-lead.
func (t *Team) Teammates() []Member {
	out := make([]Member, 0, len(t.Members))
	for _, m := range t.Members {
		if !m.IsLead() {
			out = append(out, m)
		}
	}
	return out
}
