package domain

import "time"

// TimestampLayout is the millisecond-precision ISO-8601 UTC layout used for
// inbox message timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Message is one entry in an agent's inbox. Messages are append-mostly: the
// only in-place mutations are the read flag and summary-keyed replacement of
// unread status pings.
type Message struct {
	// From is the sender's member name.
	From string `json:"from"`

	// Text is the message body. For shutdown requests this is a serialized
	// ShutdownPayload.
	Text string `json:"text"`

	// Timestamp is the send time in TimestampLayout.
	Timestamp string `json:"timestamp"`

	// Read reports whether the recipient has consumed the message.
	Read bool `json:"read"`

	// Summary is a short dedup key ("assignment", "progress", ...).
	Summary string `json:"summary"`

	// Color optionally carries the sender's palette color.
	Color string `json:"color,omitempty"`
}

// ShutdownPayload is the structured body of a shutdown request message.
type ShutdownPayload struct {
	// Type is always "shutdown_request".
	Type string `json:"type"`

	// RequestID uniquely identifies the request ("shutdown-<ms>@<recipient>").
	RequestID string `json:"requestId"`

	// From is always the team-lead.
	From string `json:"from"`

	// Reason is the lead-supplied explanation, may be empty.
	Reason string `json:"reason"`

	// Timestamp is the request time in TimestampLayout.
	Timestamp string `json:"timestamp"`
}

// FormatTimestamp renders t in TimestampLayout (UTC, millisecond precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestampMillis parses an ISO-8601 timestamp into epoch milliseconds.
// Returns ok=false for empty or malformed values; callers skip those
// messages rather than failing a whole scan.
func ParseTimestampMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		// Accept plain RFC 3339 for messages written by other tooling.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, false
		}
	}
	return t.UnixMilli(), true
}
