// Package errors provides centralized error handling for CREW.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the application. All error types can be
// checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidName indicates a team or member name with characters outside
	// the allowed set (letters, numbers, hyphen, underscore).
	ErrInvalidName = errors.New("invalid name")

	// ErrNameTooLong indicates a team or member name above the length limit.
	ErrNameTooLong = errors.New("name too long")

	// ErrTeamNotFound indicates the requested team config does not exist.
	ErrTeamNotFound = errors.New("team not found")

	// ErrTeamExists indicates an attempt to create a team that already exists.
	ErrTeamExists = errors.New("team already exists")

	// ErrTeamNotEmpty indicates a delete was attempted while teammates remain.
	ErrTeamNotEmpty = errors.New("team still has teammates")

	// ErrMemberNotFound indicates the named member is not on the roster.
	ErrMemberNotFound = errors.New("member not found")

	// ErrMemberExists indicates an attempt to add a duplicate member name.
	ErrMemberExists = errors.New("member already exists")

	// ErrLeadReserved indicates an attempt to add or remove the team-lead.
	ErrLeadReserved = errors.New("team-lead is reserved")

	// ErrUnsupportedBackend indicates a backend type other than opencode.
	ErrUnsupportedBackend = errors.New("unsupported backend type")

	// ErrTaskNotFound indicates that a specific task was not found in a team.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidStatus indicates an unknown task status value.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidTransition indicates an attempt to move a task status backwards.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTaskBlocked indicates a status change gated on incomplete blockers.
	ErrTaskBlocked = errors.New("task is blocked by incomplete dependencies")

	// ErrSelfDependency indicates a task referencing itself as a dependency.
	ErrSelfDependency = errors.New("task cannot depend on itself")

	// ErrDependencyCycle indicates a dependency update that would create a
	// cycle in the blocked-by graph.
	ErrDependencyCycle = errors.New("dependency update would create a circular dependency")

	// ErrUnknownOwner indicates an owner assignment to a non-member.
	ErrUnknownOwner = errors.New("owner not in team")

	// ErrPermissionDenied indicates a role-scoped operation was attempted by
	// an identity that is not allowed to run it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTeamScope indicates a teammate session acting outside its team.
	ErrTeamScope = errors.New("session is scoped to another team")

	// ErrUnknownSender indicates a message from a name not on the roster.
	ErrUnknownSender = errors.New("unknown sender")

	// ErrUnknownRecipient indicates a message to a name not on the roster.
	ErrUnknownRecipient = errors.New("unknown recipient")

	// ErrPeerMessaging indicates a direct message between two non-lead members.
	ErrPeerMessaging = errors.New("teammates can only direct-message team-lead")

	// ErrCorruptState indicates a state file that is present but unparseable.
	// Corrupted state is surfaced, never silently reset.
	ErrCorruptState = errors.New("corrupted state file")

	// ErrLockTimeout indicates a file lock could not be acquired within the
	// timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrRuntimeUnavailable indicates the opencode runtime could not be reached.
	ErrRuntimeUnavailable = errors.New("opencode runtime unreachable")

	// ErrRuntimeRequest indicates the opencode runtime rejected a request.
	ErrRuntimeRequest = errors.New("opencode runtime request failed")

	// ErrNoMatchingMessage indicates sync-done found no message to match.
	ErrNoMatchingMessage = errors.New("no matching message")

	// ErrJSONErrorOutput indicates that an error has already been output as
	// JSON. This ensures a non-zero exit code while preventing duplicate
	// error messages. Commands silence cobra's error printing when this is
	// returned.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
// Doctor and lead commands use it to distinguish "ran, but unhealthy" from
// hard failures.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
