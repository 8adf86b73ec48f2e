package opencode

import (
	"context"

	"github.com/rs/zerolog"
)

// Delivery is the outcome of one best-effort push to a live session.
// Callers consume it as data; a failed delivery is a status, not an error
// to propagate.
type Delivery struct {
	// Delivered reports whether the runtime accepted the prompt.
	Delivered bool

	// Err holds the failure when Delivered is false, for logging only.
	Err error
}

// Notifier pushes message text to a live agent session. Implementations
// never return an error: the surrounding state mutation has already
// committed, so delivery failures are reported, not raised.
type Notifier interface {
	// Push forwards text to the session, selecting the agent profile and
	// model the member was registered with.
	Push(ctx context.Context, sessionID, text, agent, model string) Delivery
}

// SessionNotifier implements Notifier over a runtime Client.
type SessionNotifier struct {
	client *Client
	logger zerolog.Logger
}

// NewSessionNotifier creates a Notifier backed by the given client.
func NewSessionNotifier(client *Client, logger zerolog.Logger) *SessionNotifier {
	return &SessionNotifier{client: client, logger: logger}
}

// Push implements Notifier.
func (n *SessionNotifier) Push(ctx context.Context, sessionID, text, agent, model string) Delivery {
	if sessionID == "" {
		return Delivery{}
	}
	if err := n.client.PromptAsync(ctx, sessionID, text, agent, model); err != nil {
		n.logger.Debug().Err(err).Str("session_id", sessionID).Msg("session push failed")
		return Delivery{Err: err}
	}
	return Delivery{Delivered: true}
}

// NopNotifier is a Notifier that never delivers, for tests and for commands
// that must not touch the network.
type NopNotifier struct{}

// Push implements Notifier.
func (NopNotifier) Push(_ context.Context, _, _, _, _ string) Delivery {
	return Delivery{}
}
