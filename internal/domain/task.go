package domain

import (
	"sort"
	"strconv"

	"github.com/mrz1836/crew/internal/constants"
)

// Task represents a single unit of work inside a team.
// Task IDs are team-scoped decimal strings allocated as max(existing)+1.
//
// Example JSON representation:
//
//	{
//	    "id": "2",
//	    "subject": "review docs",
//	    "description": "",
//	    "activeForm": "Reviewing docs",
//	    "status": "pending",
//	    "blocks": [],
//	    "blockedBy": ["1"],
//	    "owner": "",
//	    "metadata": null
//	}
type Task struct {
	// ID is the team-scoped decimal task id.
	ID string `json:"id"`

	// Subject is the short imperative title. Never empty.
	Subject string `json:"subject"`

	// Description holds the task details.
	Description string `json:"description"`

	// ActiveForm is the human-readable present-tense label.
	ActiveForm string `json:"activeForm"`

	// Status is the current lifecycle state.
	Status constants.TaskStatus `json:"status"`

	// Blocks lists task ids this task unblocks on completion.
	Blocks []string `json:"blocks"`

	// BlockedBy lists task ids that must complete before this one may start.
	// Kept symmetric with Blocks across the team's task graph.
	BlockedBy []string `json:"blockedBy"`

	// Owner is the member name working the task, "" when unassigned.
	Owner string `json:"owner"`

	// Metadata is free-form key-value data, nil when empty.
	Metadata map[string]any `json:"metadata"`
}

// NumericID returns the id as an integer, or 0 for malformed ids.
func (t *Task) NumericID() int {
	n, err := strconv.Atoi(t.ID)
	if err != nil {
		return 0
	}
	return n
}

// SortIDs orders task id strings numerically in place and returns the slice.
func SortIDs(ids []string) []string {
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids
}
