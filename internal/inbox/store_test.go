package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/crew/internal/clock"
	"github.com/mrz1836/crew/internal/constants"
	"github.com/mrz1836/crew/internal/domain"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/opencode"
	"github.com/mrz1836/crew/internal/storage"
)

// recordingNotifier captures pushes and answers with a fixed outcome.
type recordingNotifier struct {
	mu        sync.Mutex
	delivered bool
	pushes    []string
}

func (n *recordingNotifier) Push(_ context.Context, sessionID, text, _, _ string) opencode.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, sessionID+":"+text)
	if !n.delivered {
		return opencode.Delivery{Err: fmt.Errorf("runtime down")}
	}
	return opencode.Delivery{Delivered: true}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pushes)
}

func newTestStore(t *testing.T, notifier opencode.Notifier) (*Store, *storage.Paths) {
	t.Helper()

	paths, err := storage.NewPaths(t.TempDir())
	require.NoError(t, err)

	team := &domain.Team{
		Name:          "alpha",
		CreatedAt:     1700000000000,
		LeadSessionID: "lead-session",
		Members: []domain.Member{
			{Name: constants.TeamLeadName, AgentID: "team-lead@alpha", AgentType: "team-lead", Model: "opencode"},
			{Name: "bot1", AgentID: "bot1@alpha", AgentType: "build", Model: "anthropic/claude", Color: "blue",
				BackendType: constants.BackendOpencode, OpencodeSessionID: "sess-bot1"},
			{Name: "bot2", AgentID: "bot2@alpha", AgentType: "build", Model: "anthropic/claude", Color: "green",
				BackendType: constants.BackendOpencode},
		},
	}
	require.NoError(t, paths.EnsureTeamDirs("alpha"))
	require.NoError(t, paths.SaveTeam(team))

	clk := clock.Fixed{T: time.Date(2026, 1, 2, 3, 4, 5, 678e6, time.UTC)}
	return NewStore(paths, notifier, clk, zerolog.Nop()), paths
}

func teammate(name string) identity.Context {
	return identity.Context{Role: identity.RoleTeammate, Team: "alpha", Member: name}
}

func readRaw(t *testing.T, paths *storage.Paths, agent string) []domain.Message {
	t.Helper()
	var messages []domain.Message
	found, err := storage.ReadJSON(paths.InboxPath("alpha", agent), &messages)
	require.NoError(t, err)
	require.True(t, found)
	return messages
}

func TestEnsure(t *testing.T) {
	s, paths := newTestStore(t, opencode.NopNotifier{})
	ctx := context.Background()

	require.NoError(t, s.Ensure(ctx, "alpha", "bot1"))
	assert.Empty(t, readRaw(t, paths, "bot1"))

	// A second call must not clobber existing messages.
	_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
		From: constants.TeamLeadName, To: "bot1", Text: "go", Summary: "assignment",
	})
	require.NoError(t, err)
	require.NoError(t, s.Ensure(ctx, "alpha", "bot1"))
	assert.Len(t, readRaw(t, paths, "bot1"), 1)

	require.ErrorIs(t, s.Ensure(ctx, "alpha", "no spaces allowed"), crewerrors.ErrInvalidName)
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and pushes to the live session", func(t *testing.T) {
		notifier := &recordingNotifier{delivered: true}
		s, paths := newTestStore(t, notifier)

		res, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "go", Summary: "assignment",
		})
		require.NoError(t, err)
		assert.True(t, res.PushedToSession)
		assert.Equal(t, "2026-01-02T03:04:05.678Z", res.Message.Timestamp)

		messages := readRaw(t, paths, "bot1")
		require.Len(t, messages, 1)
		assert.Equal(t, constants.TeamLeadName, messages[0].From)
		assert.Equal(t, "go", messages[0].Text)
		assert.False(t, messages[0].Read)
	})

	t.Run("push failure does not fail the send", func(t *testing.T) {
		notifier := &recordingNotifier{delivered: false}
		s, paths := newTestStore(t, notifier)

		res, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "go", Summary: "assignment",
		})
		require.NoError(t, err)
		assert.False(t, res.PushedToSession)
		assert.Len(t, readRaw(t, paths, "bot1"), 1)
	})

	t.Run("no push without a session id", func(t *testing.T) {
		notifier := &recordingNotifier{delivered: true}
		s, _ := newTestStore(t, notifier)

		res, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot2", Text: "go", Summary: "assignment",
		})
		require.NoError(t, err)
		assert.False(t, res.PushedToSession)
		assert.Zero(t, notifier.count())
	})

	t.Run("teammate to lead inherits the sender color", func(t *testing.T) {
		s, paths := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, teammate("bot1"), "alpha", SendParams{
			From: "bot1", To: constants.TeamLeadName, Text: "done", Summary: "report",
		})
		require.NoError(t, err)
		messages := readRaw(t, paths, constants.TeamLeadName)
		require.Len(t, messages, 1)
		assert.Equal(t, "blue", messages[0].Color)
	})

	t.Run("rejects empty text and summary", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: " ", Summary: "assignment",
		})
		require.ErrorIs(t, err, crewerrors.ErrEmptyValue)

		_, err = s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "go", Summary: "",
		})
		require.ErrorIs(t, err, crewerrors.ErrEmptyValue)
	})

	t.Run("rejects unknown parties", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: "ghost", To: constants.TeamLeadName, Text: "hi", Summary: "x",
		})
		require.ErrorIs(t, err, crewerrors.ErrUnknownSender)

		_, err = s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "ghost", Text: "hi", Summary: "x",
		})
		require.ErrorIs(t, err, crewerrors.ErrUnknownRecipient)
	})

	t.Run("rejects teammate to teammate messages", func(t *testing.T) {
		s, paths := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: "bot1", To: "bot2", Text: "psst", Summary: "x",
		})
		require.ErrorIs(t, err, crewerrors.ErrPeerMessaging)

		_, statErr := os.Stat(paths.InboxPath("alpha", "bot2"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("teammates send only as themselves and only to the lead", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, teammate("bot1"), "alpha", SendParams{
			From: "bot2", To: constants.TeamLeadName, Text: "hi", Summary: "x",
		})
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)

		_, err = s.Send(ctx, teammate("bot1"), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "hi", Summary: "x",
		})
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)
	})
}

func TestUpsertBySummary(t *testing.T) {
	ctx := context.Background()

	t.Run("collapses repeated unread pings", func(t *testing.T) {
		s, paths := newTestStore(t, opencode.NopNotifier{})

		for _, text := range []string{"go", "go again"} {
			_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
				From: constants.TeamLeadName, To: "bot1", Text: text,
				Summary: "assignment", ReplaceSummary: true,
			})
			require.NoError(t, err)
		}

		messages := readRaw(t, paths, "bot1")
		require.Len(t, messages, 1)
		assert.Equal(t, "go again", messages[0].Text)
		assert.False(t, messages[0].Read)
	})

	t.Run("never overwrites a read message", func(t *testing.T) {
		s, paths := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "go",
			Summary: "assignment", ReplaceSummary: true,
		})
		require.NoError(t, err)
		_, err = s.Read(ctx, identity.Lead(), "alpha", ReadParams{Agent: "bot1", MarkRead: true})
		require.NoError(t, err)

		_, err = s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "go again",
			Summary: "assignment", ReplaceSummary: true,
		})
		require.NoError(t, err)

		messages := readRaw(t, paths, "bot1")
		require.Len(t, messages, 2)
		assert.True(t, messages[0].Read)
		assert.Equal(t, "go", messages[0].Text)
		assert.False(t, messages[1].Read)
		assert.Equal(t, "go again", messages[1].Text)
	})

	t.Run("only matching sender and summary replace", func(t *testing.T) {
		s, paths := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "go", Summary: "assignment",
		})
		require.NoError(t, err)
		_, err = s.Send(ctx, identity.Lead(), "alpha", SendParams{
			From: constants.TeamLeadName, To: "bot1", Text: "ping", Summary: "progress", ReplaceSummary: true,
		})
		require.NoError(t, err)

		assert.Len(t, readRaw(t, paths, "bot1"), 2)
	})
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("fans out to every teammate", func(t *testing.T) {
		notifier := &recordingNotifier{delivered: true}
		s, paths := newTestStore(t, notifier)

		res, err := s.Broadcast(ctx, identity.Lead(), "alpha", BroadcastParams{
			Text: "stand up", Summary: "standup",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Recipients)
		assert.Equal(t, 2, res.Delivered)
		// Only bot1 carries a session id.
		assert.Equal(t, 1, res.Pushed)

		assert.Len(t, readRaw(t, paths, "bot1"), 1)
		assert.Len(t, readRaw(t, paths, "bot2"), 1)
		_, statErr := os.Stat(paths.InboxPath("alpha", constants.TeamLeadName))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("teammates cannot broadcast", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		_, err := s.Broadcast(ctx, teammate("bot1"), "alpha", BroadcastParams{Text: "x", Summary: "y"})
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)
	})
}

func TestRead(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s *Store) {
		t.Helper()
		for i, text := range []string{"one", "two", "three"} {
			_, err := s.Send(ctx, identity.Lead(), "alpha", SendParams{
				From: constants.TeamLeadName, To: "bot1", Text: text,
				Summary: fmt.Sprintf("s%d", i),
			})
			require.NoError(t, err)
		}
	}

	t.Run("unread selection and mark as read", func(t *testing.T) {
		s, paths := newTestStore(t, opencode.NopNotifier{})
		seed(t, s)

		got, err := s.Read(ctx, identity.Lead(), "alpha", ReadParams{Agent: "bot1", UnreadOnly: true, MarkRead: true})
		require.NoError(t, err)
		require.Len(t, got, 3)

		for _, m := range readRaw(t, paths, "bot1") {
			assert.True(t, m.Read)
		}

		got, err = s.Read(ctx, identity.Lead(), "alpha", ReadParams{Agent: "bot1", UnreadOnly: true})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Read(ctx, identity.Lead(), "alpha", ReadParams{Agent: "bot1"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("teammates read only their own inbox", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})
		seed(t, s)

		_, err := s.Read(ctx, teammate("bot2"), "alpha", ReadParams{Agent: "bot1"})
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)

		got, err := s.Read(ctx, teammate("bot1"), "alpha", ReadParams{Agent: "bot1", UnreadOnly: true})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("empty inbox reads as an empty list", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		got, err := s.Read(ctx, identity.Lead(), "alpha", ReadParams{Agent: "bot2"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestShutdownRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("appends a structured payload and pushes it", func(t *testing.T) {
		notifier := &recordingNotifier{delivered: true}
		s, paths := newTestStore(t, notifier)

		res, err := s.ShutdownRequest(ctx, identity.Lead(), "alpha", "bot1", "wrapping up")
		require.NoError(t, err)
		assert.True(t, res.PushedToSession)
		assert.Equal(t, fmt.Sprintf("shutdown-%d@bot1", time.Date(2026, 1, 2, 3, 4, 5, 678e6, time.UTC).UnixMilli()), res.RequestID)

		messages := readRaw(t, paths, "bot1")
		require.Len(t, messages, 1)
		assert.Equal(t, ShutdownSummary, messages[0].Summary)

		var payload domain.ShutdownPayload
		require.NoError(t, json.Unmarshal([]byte(messages[0].Text), &payload))
		assert.Equal(t, ShutdownSummary, payload.Type)
		assert.Equal(t, res.RequestID, payload.RequestID)
		assert.Equal(t, "wrapping up", payload.Reason)
	})

	t.Run("rejects the lead and unknown recipients", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		_, err := s.ShutdownRequest(ctx, identity.Lead(), "alpha", constants.TeamLeadName, "")
		require.ErrorIs(t, err, crewerrors.ErrLeadReserved)

		_, err = s.ShutdownRequest(ctx, identity.Lead(), "alpha", "ghost", "")
		require.ErrorIs(t, err, crewerrors.ErrUnknownRecipient)
	})

	t.Run("teammates cannot request shutdowns", func(t *testing.T) {
		s, _ := newTestStore(t, opencode.NopNotifier{})

		_, err := s.ShutdownRequest(ctx, teammate("bot1"), "alpha", "bot2", "")
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)
	})
}
