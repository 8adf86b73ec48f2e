// Package constants defines shared constants for the CREW coordination CLI.
// This package MUST NOT import any other internal packages.
package constants

import "time"

// Home directory layout.
const (
	// CrewHome is the name of the crew state directory under $HOME.
	CrewHome = ".crew"

	// TeamsDir is the directory under the crew home that holds team state.
	TeamsDir = "teams"

	// TasksDir is the directory under the crew home that holds per-team task files.
	TasksDir = "tasks"

	// InboxesDir is the directory under a team's root that holds per-agent inboxes.
	InboxesDir = "inboxes"

	// LogsDir is the directory under the crew home that holds CLI log files.
	LogsDir = "logs"

	// TeamConfigFileName is the name of the team configuration file.
	TeamConfigFileName = "config.json"

	// LockFileName is the name of the advisory lock file guarding a directory.
	LockFileName = ".lock"

	// CLILogFileName is the name of the rotating CLI log file.
	CLILogFileName = "crew.log"
)

// Log rotation settings for the CLI log file.
const (
	// LogMaxSizeMB is the maximum size of the log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of a rotated log file.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// Member identity.
const (
	// TeamLeadName is the reserved name of the privileged lead member.
	// The lead is created with the team and can never be removed.
	TeamLeadName = "team-lead"

	// BackendOpencode is the only supported teammate backend.
	BackendOpencode = "opencode"

	// DefaultAgentType is used when a member has no explicit agent type.
	DefaultAgentType = "build"

	// MaxNameLength bounds team and member names.
	MaxNameLength = 64
)

// NamePattern is the regular expression all team and member names must match.
const NamePattern = `^[A-Za-z0-9_-]+$`

// ColorPalette is the fixed round-robin palette assigned to teammates.
// The pick cycles by current teammate count so adjacent joins stay
// visually distinct.
var ColorPalette = []string{ //nolint:gochecknoglobals // Fixed palette shared across packages
	"blue", "green", "yellow", "purple", "orange", "pink", "cyan", "red",
}

// Environment variables consumed by the CLI. Viper binds these under the
// CREW_ prefix; the names here are the suffixes.
const (
	// EnvHome overrides the crew state directory.
	EnvHome = "home"

	// EnvRole carries the process role ("team-lead" or "teammate").
	EnvRole = "role"

	// EnvTeam scopes a teammate session to a single team.
	EnvTeam = "team"

	// EnvMember is the acting member's own name in a teammate session.
	EnvMember = "member"

	// EnvServerURL is the base URL of the external opencode runtime.
	EnvServerURL = "server_url"

	// EnvInitialAssignmentTimeoutMS overrides the missing-assignment check.
	EnvInitialAssignmentTimeoutMS = "initial_assignment_timeout_ms"

	// EnvAssignmentAckTimeoutMS overrides the missing-ack check.
	EnvAssignmentAckTimeoutMS = "assignment_ack_timeout_ms"

	// EnvSilenceTimeoutMS overrides the silent-teammate check.
	EnvSilenceTimeoutMS = "silence_timeout_ms"
)

// Default health-check timeouts. A non-positive override disables the
// corresponding check.
const (
	// DefaultInitialAssignmentTimeout is how long an active teammate may sit
	// without any assignment message before doctor flags it.
	DefaultInitialAssignmentTimeout = 2 * time.Minute

	// DefaultAssignmentAckTimeout is how long an assignment may go without a
	// newer teammate report before doctor flags it.
	DefaultAssignmentAckTimeout = 3 * time.Minute

	// DefaultSilenceTimeout is how long a teammate may be silent (no join,
	// assignment, or report activity) before doctor flags it.
	DefaultSilenceTimeout = 5 * time.Minute
)

// DefaultServerURL is the opencode runtime endpoint used when no override
// is configured.
const DefaultServerURL = "http://127.0.0.1:4098"
