// Package inbox implements per-agent mailboxes within a team: append and
// summary-keyed replacement of messages, lead broadcast, read/mark-read
// selection, and structured shutdown requests.
//
// All inbox mutations for a team are serialized by one exclusive lock on
// the team's inbox directory. Pushes to live runtime sessions happen after
// the state has committed and are strictly best-effort.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/crew/internal/clock"
	"github.com/mrz1836/crew/internal/constants"
	"github.com/mrz1836/crew/internal/domain"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/opencode"
	"github.com/mrz1836/crew/internal/storage"
)

// ShutdownSummary tags shutdown-request messages so readers and the lead
// helpers can find them without parsing every body.
const ShutdownSummary = "shutdown_request"

// Store provides inbox operations for teams rooted at a Paths layout.
type Store struct {
	paths    *storage.Paths
	notifier opencode.Notifier
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewStore creates an inbox store. The notifier handles best-effort pushes
// to live sessions; pass opencode.NopNotifier to disable them.
func NewStore(paths *storage.Paths, notifier opencode.Notifier, clk clock.Clock, logger zerolog.Logger) *Store {
	return &Store{paths: paths, notifier: notifier, clock: clk, logger: logger}
}

// SendParams describes one direct message.
type SendParams struct {
	From           string
	To             string
	Text           string
	Summary        string
	Color          string
	ReplaceSummary bool
}

// SendResult reports the persisted message and whether a live-session push
// was accepted by the runtime.
type SendResult struct {
	Message         domain.Message `json:"message"`
	PushedToSession bool           `json:"pushedToSession"`
}

// BroadcastParams describes a lead fan-out to every teammate.
type BroadcastParams struct {
	Text           string
	Summary        string
	ReplaceSummary bool
}

// BroadcastResult counts inbox deliveries and live-session pushes
// independently.
type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Pushed     int `json:"pushed"`
}

// ReadParams selects messages from one agent's inbox.
type ReadParams struct {
	Agent      string
	UnreadOnly bool
	MarkRead   bool
}

// ShutdownResult reports the generated request id and push outcome.
type ShutdownResult struct {
	RequestID       string `json:"requestId"`
	PushedToSession bool   `json:"pushedToSession"`
}

// Ensure idempotently creates an empty inbox file for the agent.
func (s *Store) Ensure(ctx context.Context, team, agent string) error {
	if err := storage.ValidateName(agent, "agent"); err != nil {
		return err
	}
	if err := s.paths.EnsureTeamDirs(team); err != nil {
		return err
	}
	return storage.WithLock(ctx, s.paths.TeamLockPath(team), func() error {
		path := s.paths.InboxPath(team, agent)
		var existing []domain.Message
		found, err := storage.ReadJSON(path, &existing)
		if err != nil {
			return crewerrors.Wrapf(err, "reading inbox for %q", agent)
		}
		if found {
			return nil
		}
		return storage.WriteJSONAtomic(path, []domain.Message{}, false)
	})
}

// Send validates the sender/recipient pair, persists the message under the
// team's inbox lock, then best-effort pushes the text to the recipient's
// live session. A failed push is reported in the result, never as an error.
func (s *Store) Send(ctx context.Context, actor identity.Context, team string, p SendParams) (*SendResult, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, crewerrors.Wrap(crewerrors.ErrEmptyValue, "message text")
	}
	if strings.TrimSpace(p.Summary) == "" {
		return nil, crewerrors.Wrap(crewerrors.ErrEmptyValue, "message summary")
	}

	roster, err := s.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	if !roster.HasMember(p.From) {
		return nil, crewerrors.Wrapf(crewerrors.ErrUnknownSender, "sender %q is not a member of team %q", p.From, team)
	}
	if !roster.HasMember(p.To) {
		return nil, crewerrors.Wrapf(crewerrors.ErrUnknownRecipient, "recipient %q is not a member of team %q", p.To, team)
	}
	if p.From != constants.TeamLeadName && p.To != constants.TeamLeadName {
		return nil, crewerrors.Wrapf(crewerrors.ErrPeerMessaging,
			"%q cannot message %q directly", p.From, p.To)
	}
	if actor.IsTeammate() {
		member, memberErr := actor.RequireMember()
		if memberErr != nil {
			return nil, memberErr
		}
		if p.From != member {
			return nil, fmt.Errorf("%w: teammates can only send as themselves", crewerrors.ErrPermissionDenied)
		}
		if p.To != constants.TeamLeadName {
			return nil, fmt.Errorf("%w: teammates can only message the team lead", crewerrors.ErrPermissionDenied)
		}
	}

	color := p.Color
	if color == "" {
		if sender := roster.Member(p.From); sender != nil {
			color = sender.Color
		}
	}
	msg := domain.Message{
		From:      p.From,
		Text:      p.Text,
		Timestamp: domain.FormatTimestamp(s.clock.Now()),
		Summary:   p.Summary,
		Color:     color,
	}

	if err := s.deliver(ctx, team, p.To, msg, p.ReplaceSummary); err != nil {
		return nil, err
	}

	pushed := s.push(ctx, roster, p.To, p.Text)
	s.logger.Debug().Str("team", team).Str("from", p.From).Str("to", p.To).
		Str("summary", p.Summary).Bool("pushed", pushed).Msg("message sent")
	return &SendResult{Message: msg, PushedToSession: pushed}, nil
}

// Broadcast fans the same message from the team lead out to every teammate
// inbox, then pushes to each live session concurrently. Lead only.
func (s *Store) Broadcast(ctx context.Context, actor identity.Context, team string, p BroadcastParams) (*BroadcastResult, error) {
	if err := actor.AssertLeadOnly("inbox broadcast", team); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, crewerrors.Wrap(crewerrors.ErrEmptyValue, "message text")
	}
	if strings.TrimSpace(p.Summary) == "" {
		return nil, crewerrors.Wrap(crewerrors.ErrEmptyValue, "message summary")
	}

	roster, err := s.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	teammates := roster.Teammates()
	result := &BroadcastResult{Recipients: len(teammates)}

	msg := domain.Message{
		From:      constants.TeamLeadName,
		Text:      p.Text,
		Timestamp: domain.FormatTimestamp(s.clock.Now()),
		Summary:   p.Summary,
	}
	err = storage.WithLock(ctx, s.paths.TeamLockPath(team), func() error {
		for _, m := range teammates {
			if deliverErr := s.deliverLocked(team, m.Name, msg, p.ReplaceSummary); deliverErr != nil {
				return deliverErr
			}
			result.Delivered++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var pushed int64
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range teammates {
		g.Go(func() error {
			if s.pushMember(gctx, &m, p.Text) {
				atomic.AddInt64(&pushed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	result.Pushed = int(pushed)

	s.logger.Info().Str("team", team).Str("summary", p.Summary).
		Int("recipients", result.Recipients).Int("pushed", result.Pushed).
		Msg("broadcast sent")
	return result, nil
}

// Read selects messages from the agent's inbox, optionally marking the
// selected subset as read in one persisted pass. Teammates may only read
// their own inbox.
func (s *Store) Read(ctx context.Context, actor identity.Context, team string, p ReadParams) ([]domain.Message, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	roster, err := s.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	if !roster.HasMember(p.Agent) {
		return nil, crewerrors.Wrapf(crewerrors.ErrUnknownRecipient, "agent %q is not a member of team %q", p.Agent, team)
	}
	if actor.IsTeammate() {
		member, memberErr := actor.RequireMember()
		if memberErr != nil {
			return nil, memberErr
		}
		if p.Agent != member {
			return nil, fmt.Errorf("%w: teammates can only read their own inbox", crewerrors.ErrPermissionDenied)
		}
	}

	var selected []domain.Message
	err = storage.WithLock(ctx, s.paths.TeamLockPath(team), func() error {
		messages, loadErr := s.load(team, p.Agent)
		if loadErr != nil {
			return loadErr
		}
		changed := false
		for i := range messages {
			if p.UnreadOnly && messages[i].Read {
				continue
			}
			if p.MarkRead && !messages[i].Read {
				messages[i].Read = true
				changed = true
			}
			selected = append(selected, messages[i])
		}
		if changed {
			return storage.WriteJSONAtomic(s.paths.InboxPath(team, p.Agent), messages, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if selected == nil {
		selected = []domain.Message{}
	}
	return selected, nil
}

// ShutdownRequest appends a structured shutdown payload to the recipient's
// inbox and best-effort pushes it to the live session. Lead only.
func (s *Store) ShutdownRequest(ctx context.Context, actor identity.Context, team, recipient, reason string) (*ShutdownResult, error) {
	if err := actor.AssertLeadOnly("inbox shutdown-request", team); err != nil {
		return nil, err
	}
	roster, err := s.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	target := roster.Member(recipient)
	if target == nil {
		return nil, crewerrors.Wrapf(crewerrors.ErrUnknownRecipient, "recipient %q is not a member of team %q", recipient, team)
	}
	if target.IsLead() {
		return nil, fmt.Errorf("%w: the team lead cannot be asked to shut down", crewerrors.ErrLeadReserved)
	}

	now := s.clock.Now()
	payload := domain.ShutdownPayload{
		Type:      ShutdownSummary,
		RequestID: fmt.Sprintf("shutdown-%d@%s", now.UnixMilli(), recipient),
		From:      constants.TeamLeadName,
		Reason:    reason,
		Timestamp: domain.FormatTimestamp(now),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, crewerrors.Wrap(err, "encoding shutdown payload")
	}

	msg := domain.Message{
		From:      constants.TeamLeadName,
		Text:      string(body),
		Timestamp: payload.Timestamp,
		Summary:   ShutdownSummary,
	}
	if err := s.deliver(ctx, team, recipient, msg, false); err != nil {
		return nil, err
	}

	pushed := s.push(ctx, roster, recipient, string(body))
	s.logger.Info().Str("team", team).Str("recipient", recipient).
		Str("request_id", payload.RequestID).Bool("pushed", pushed).
		Msg("shutdown requested")
	return &ShutdownResult{RequestID: payload.RequestID, PushedToSession: pushed}, nil
}

// ResolveSummary marks the newest unread message matching (from, summary)
// in the agent's inbox as read and returns it. ErrNoMatchingMessage when the
// inbox holds no unread message with that sender and summary.
func (s *Store) ResolveSummary(ctx context.Context, actor identity.Context, team, agent, from, summary string) (*domain.Message, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	if actor.IsTeammate() {
		member, memberErr := actor.RequireMember()
		if memberErr != nil {
			return nil, memberErr
		}
		if agent != member {
			return nil, fmt.Errorf("%w: teammates can only resolve their own inbox", crewerrors.ErrPermissionDenied)
		}
	}

	var resolved *domain.Message
	err := storage.WithLock(ctx, s.paths.TeamLockPath(team), func() error {
		messages, loadErr := s.load(team, agent)
		if loadErr != nil {
			return loadErr
		}
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Read || messages[i].From != from || messages[i].Summary != summary {
				continue
			}
			messages[i].Read = true
			resolved = &messages[i]
			return storage.WriteJSONAtomic(s.paths.InboxPath(team, agent), messages, false)
		}
		return crewerrors.Wrapf(crewerrors.ErrNoMatchingMessage,
			"no unread message from %q with summary %q", from, summary)
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// deliver writes one message under the team's inbox lock.
func (s *Store) deliver(ctx context.Context, team, agent string, msg domain.Message, replaceSummary bool) error {
	return storage.WithLock(ctx, s.paths.TeamLockPath(team), func() error {
		return s.deliverLocked(team, agent, msg, replaceSummary)
	})
}

// deliverLocked appends or summary-replaces one message. Callers hold the
// team's inbox lock.
func (s *Store) deliverLocked(team, agent string, msg domain.Message, replaceSummary bool) error {
	messages, err := s.load(team, agent)
	if err != nil {
		return err
	}
	if replaceSummary {
		messages = upsertBySummary(messages, msg)
	} else {
		messages = append(messages, msg)
	}
	return storage.WriteJSONAtomic(s.paths.InboxPath(team, agent), messages, false)
}

// upsertBySummary overwrites the most recent unread message sharing (from,
// summary) in place, or appends when none is unread. Read messages are
// never overwritten.
func upsertBySummary(messages []domain.Message, msg domain.Message) []domain.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].Read && messages[i].From == msg.From && messages[i].Summary == msg.Summary {
			messages[i] = msg
			return messages
		}
	}
	return append(messages, msg)
}

func (s *Store) load(team, agent string) ([]domain.Message, error) {
	var messages []domain.Message
	if _, err := storage.ReadJSON(s.paths.InboxPath(team, agent), &messages); err != nil {
		return nil, crewerrors.Wrapf(err, "reading inbox for %q", agent)
	}
	return messages, nil
}

// push forwards text to the named member's live session, if it has one.
func (s *Store) push(ctx context.Context, roster *domain.Team, name, text string) bool {
	member := roster.Member(name)
	if member == nil {
		return false
	}
	if member.IsLead() && member.OpencodeSessionID == "" {
		lead := *member
		lead.OpencodeSessionID = roster.LeadSessionID
		return s.pushMember(ctx, &lead, text)
	}
	return s.pushMember(ctx, member, text)
}

func (s *Store) pushMember(ctx context.Context, member *domain.Member, text string) bool {
	if member.BackendType != "" && member.BackendType != constants.BackendOpencode {
		return false
	}
	if member.OpencodeSessionID == "" {
		return false
	}
	delivery := s.notifier.Push(ctx, member.OpencodeSessionID, text, member.AgentType, member.Model)
	return delivery.Delivered
}
