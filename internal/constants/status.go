package constants

// TaskStatus represents the state of a task in the CREW state machine.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// Transitions only move forward through the ordered lifecycle:
//
//	Pending -> InProgress -> Completed
//
// Deleted is terminal and reachable from any state. Regressions
// (e.g. Completed back to Pending) are rejected.
const (
	// TaskStatusPending indicates a task is queued but not yet started.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress indicates a member is actively working the task.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusDeleted indicates the task was removed. Its backing file is
	// unlinked and every dependency reference to it is stripped.
	TaskStatusDeleted TaskStatus = "deleted"
)

// String returns the string representation of the TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// Rank returns the position of a status in the forward-only lifecycle, or
// -1 for statuses outside it (Deleted and unknown values).
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusInProgress:
		return 1
	case TaskStatusCompleted:
		return 2
	case TaskStatusDeleted:
		return -1
	default:
		return -1
	}
}

// Valid reports whether s is one of the defined task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusDeleted:
		return true
	default:
		return false
	}
}
