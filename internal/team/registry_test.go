package team

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/crew/internal/clock"
	"github.com/mrz1836/crew/internal/constants"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/inbox"
	"github.com/mrz1836/crew/internal/opencode"
	"github.com/mrz1836/crew/internal/storage"
	"github.com/mrz1836/crew/internal/task"
)

type fakeProber struct {
	windowID string
	paneID   string
	targets  map[string]bool
}

func (p *fakeProber) TargetExists(target string) bool { return p.targets[target] }

func (p *fakeProber) CurrentAnchor() (string, string) { return p.windowID, p.paneID }

type fakeCloser struct {
	aborted   []string
	deleted   []string
	deleteErr error
}

func (c *fakeCloser) AbortSession(_ context.Context, id string) error {
	c.aborted = append(c.aborted, id)
	return nil
}

func (c *fakeCloser) DeleteSession(_ context.Context, id string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, id)
	return nil
}

func newTestRegistry(t *testing.T, closer SessionCloser) (*Registry, *storage.Paths) {
	t.Helper()

	paths, err := storage.NewPaths(t.TempDir())
	require.NoError(t, err)

	clk := clock.Fixed{T: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	logger := zerolog.Nop()
	tasks := task.NewStore(paths, logger)
	inboxes := inbox.NewStore(paths, opencode.NopNotifier{}, clk, logger)
	prober := &fakeProber{windowID: "@1", paneID: "%1"}

	return NewRegistry(paths, tasks, inboxes, closer, prober, clk, logger), paths
}

func mustCreateTeam(t *testing.T, r *Registry, name string) {
	t.Helper()
	_, err := r.Create(context.Background(), identity.Lead(), name, CreateParams{})
	require.NoError(t, err)
}

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds the lead member and anchor", func(t *testing.T) {
		r, paths := newTestRegistry(t, nil)

		created, err := r.Create(ctx, identity.Lead(), "alpha", CreateParams{Description: "docs sprint"})
		require.NoError(t, err)
		assert.Equal(t, "alpha", created.Name)
		assert.Equal(t, "docs sprint", created.Description)
		assert.Equal(t, "team-lead@alpha", created.LeadAgentID)
		assert.NotEmpty(t, created.LeadSessionID)
		assert.Equal(t, "@1", created.LeadWindowID)
		assert.Equal(t, "%1", created.LeadPaneID)

		require.Len(t, created.Members, 1)
		lead := created.Members[0]
		assert.Equal(t, constants.TeamLeadName, lead.Name)
		assert.True(t, lead.IsActive)
		assert.Equal(t, created.LeadSessionID, lead.OpencodeSessionID)

		stored, err := paths.LoadTeam("alpha")
		require.NoError(t, err)
		assert.Equal(t, created.LeadSessionID, stored.LeadSessionID)

		// The lead inbox exists and is empty.
		data, readErr := os.ReadFile(paths.InboxPath("alpha", constants.TeamLeadName))
		require.NoError(t, readErr)
		assert.JSONEq(t, "[]", string(data))
	})

	t.Run("keeps an explicit session id", func(t *testing.T) {
		r, _ := newTestRegistry(t, nil)

		created, err := r.Create(ctx, identity.Lead(), "alpha", CreateParams{LeadSessionID: "sess-42"})
		require.NoError(t, err)
		assert.Equal(t, "sess-42", created.LeadSessionID)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		r, _ := newTestRegistry(t, nil)
		mustCreateTeam(t, r, "alpha")

		_, err := r.Create(ctx, identity.Lead(), "alpha", CreateParams{})
		require.ErrorIs(t, err, crewerrors.ErrTeamExists)
	})

	t.Run("rejects bad names and teammate sessions", func(t *testing.T) {
		r, _ := newTestRegistry(t, nil)

		_, err := r.Create(ctx, identity.Lead(), "no spaces", CreateParams{})
		require.ErrorIs(t, err, crewerrors.ErrInvalidName)

		mate := identity.Context{Role: identity.RoleTeammate, Team: "alpha", Member: "bot1"}
		_, err = r.Create(ctx, mate, "alpha", CreateParams{})
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)
	})
}

func TestRegistryDelete(t *testing.T) {
	ctx := context.Background()
	r, paths := newTestRegistry(t, nil)
	mustCreateTeam(t, r, "alpha")

	_, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1"})
	require.NoError(t, err)

	err = r.Delete(ctx, identity.Lead(), "alpha")
	require.ErrorIs(t, err, crewerrors.ErrTeamNotEmpty)

	_, err = r.RemoveMember(ctx, identity.Lead(), "alpha", "bot1", RemoveMemberOptions{})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, identity.Lead(), "alpha"))
	_, statErr := os.Stat(paths.TeamDir("alpha"))
	assert.True(t, os.IsNotExist(statErr))

	require.ErrorIs(t, r.Delete(ctx, identity.Lead(), "alpha"), crewerrors.ErrTeamNotFound)
}

func TestRegistryAddMember(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns palette colors round robin", func(t *testing.T) {
		r, paths := newTestRegistry(t, nil)
		mustCreateTeam(t, r, "alpha")

		first, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1", TmuxPaneID: "%2"})
		require.NoError(t, err)
		assert.Equal(t, constants.ColorPalette[0], first.Color)
		assert.Equal(t, "bot1@alpha", first.AgentID)
		assert.Equal(t, constants.DefaultAgentType, first.AgentType)
		assert.Equal(t, constants.BackendOpencode, first.BackendType)
		assert.True(t, first.IsActive)

		second, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot2"})
		require.NoError(t, err)
		assert.Equal(t, constants.ColorPalette[1], second.Color)
		assert.False(t, second.IsActive)

		_, statErr := os.Stat(paths.InboxPath("alpha", "bot1"))
		require.NoError(t, statErr)
	})

	t.Run("rejects the reserved name, duplicates, and unknown backends", func(t *testing.T) {
		r, _ := newTestRegistry(t, nil)
		mustCreateTeam(t, r, "alpha")

		_, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: constants.TeamLeadName})
		require.ErrorIs(t, err, crewerrors.ErrLeadReserved)

		_, err = r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1"})
		require.NoError(t, err)
		_, err = r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1"})
		require.ErrorIs(t, err, crewerrors.ErrMemberExists)

		_, err = r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot2", BackendType: "claude"})
		require.ErrorIs(t, err, crewerrors.ErrUnsupportedBackend)
	})

	t.Run("teammates cannot manage the roster", func(t *testing.T) {
		r, _ := newTestRegistry(t, nil)
		mustCreateTeam(t, r, "alpha")

		mate := identity.Context{Role: identity.RoleTeammate, Team: "alpha", Member: "bot1"}
		_, err := r.AddMember(ctx, mate, "alpha", AddMemberParams{Name: "bot2"})
		require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)
	})
}

func TestRegistryRemoveMember(t *testing.T) {
	ctx := context.Background()

	t.Run("releases tasks and tears down the session", func(t *testing.T) {
		closer := &fakeCloser{}
		r, paths := newTestRegistry(t, closer)
		mustCreateTeam(t, r, "alpha")
		_, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1", SessionID: "sess-bot1"})
		require.NoError(t, err)

		created, err := r.tasks.Create(ctx, identity.Lead(), "alpha", task.CreateParams{Subject: "write docs"})
		require.NoError(t, err)
		owner := "bot1"
		_, err = r.tasks.Update(ctx, identity.Lead(), "alpha", created.ID, task.UpdateParams{
			Owner:  &owner,
			Status: constants.TaskStatusInProgress,
		})
		require.NoError(t, err)

		result, err := r.RemoveMember(ctx, identity.Lead(), "alpha", "bot1", RemoveMemberOptions{
			ResetTasks:   true,
			CloseSession: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.TasksReset)
		assert.Equal(t, "deleted", result.Session)
		assert.Equal(t, []string{"sess-bot1"}, closer.aborted)
		assert.Equal(t, []string{"sess-bot1"}, closer.deleted)

		stored, err := paths.LoadTeam("alpha")
		require.NoError(t, err)
		assert.False(t, stored.HasMember("bot1"))

		released, err := r.tasks.Get(ctx, identity.Lead(), "alpha", created.ID)
		require.NoError(t, err)
		assert.Empty(t, released.Owner)
		assert.Equal(t, constants.TaskStatusPending, released.Status)
	})

	t.Run("teardown failure does not fail the removal", func(t *testing.T) {
		closer := &fakeCloser{deleteErr: errors.New("gone")}
		r, _ := newTestRegistry(t, closer)
		mustCreateTeam(t, r, "alpha")
		_, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1", SessionID: "sess-bot1"})
		require.NoError(t, err)

		result, err := r.RemoveMember(ctx, identity.Lead(), "alpha", "bot1", RemoveMemberOptions{CloseSession: true})
		require.NoError(t, err)
		assert.Equal(t, "failed", result.Session)
	})

	t.Run("skips teardown without a session", func(t *testing.T) {
		closer := &fakeCloser{}
		r, _ := newTestRegistry(t, closer)
		mustCreateTeam(t, r, "alpha")
		_, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1"})
		require.NoError(t, err)

		result, err := r.RemoveMember(ctx, identity.Lead(), "alpha", "bot1", RemoveMemberOptions{CloseSession: true})
		require.NoError(t, err)
		assert.Equal(t, "skipped", result.Session)
		assert.Empty(t, closer.aborted)
	})

	t.Run("protects the lead and flags unknown members", func(t *testing.T) {
		r, _ := newTestRegistry(t, nil)
		mustCreateTeam(t, r, "alpha")

		_, err := r.RemoveMember(ctx, identity.Lead(), "alpha", constants.TeamLeadName, RemoveMemberOptions{})
		require.ErrorIs(t, err, crewerrors.ErrLeadReserved)

		_, err = r.RemoveMember(ctx, identity.Lead(), "alpha", "ghost", RemoveMemberOptions{})
		require.ErrorIs(t, err, crewerrors.ErrMemberNotFound)
	})
}

func TestRegistrySetRuntime(t *testing.T) {
	ctx := context.Background()
	r, paths := newTestRegistry(t, nil)
	mustCreateTeam(t, r, "alpha")
	_, err := r.AddMember(ctx, identity.Lead(), "alpha", AddMemberParams{Name: "bot1"})
	require.NoError(t, err)

	updated, err := r.SetRuntime(ctx, identity.Lead(), "alpha", "bot1", RuntimeUpdate{PaneID: "%9", SessionID: "sess-live"})
	require.NoError(t, err)
	assert.Equal(t, "%9", updated.TmuxPaneID)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "sess-live", updated.OpencodeSessionID)

	// Detaching clears the active flag but keeps the session id.
	updated, err = r.SetRuntime(ctx, identity.Lead(), "alpha", "bot1", RuntimeUpdate{})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "sess-live", updated.OpencodeSessionID)

	stored, err := paths.LoadTeam("alpha")
	require.NoError(t, err)
	assert.False(t, stored.Member("bot1").IsActive)

	// An explicit flag wins over pane presence in both directions.
	active := true
	updated, err = r.SetRuntime(ctx, identity.Lead(), "alpha", "bot1", RuntimeUpdate{Active: &active})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Empty(t, updated.TmuxPaneID)

	inactive := false
	updated, err = r.SetRuntime(ctx, identity.Lead(), "alpha", "bot1", RuntimeUpdate{PaneID: "%9", Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "%9", updated.TmuxPaneID)

	mate := identity.Context{Role: identity.RoleTeammate, Team: "alpha", Member: "bot2"}
	_, err = r.SetRuntime(ctx, mate, "alpha", "bot1", RuntimeUpdate{PaneID: "%3"})
	require.ErrorIs(t, err, crewerrors.ErrPermissionDenied)

	self := identity.Context{Role: identity.RoleTeammate, Team: "alpha", Member: "bot1"}
	_, err = r.SetRuntime(ctx, self, "alpha", "bot1", RuntimeUpdate{PaneID: "%3"})
	require.NoError(t, err)
}

func TestRegistrySetAnchor(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, nil)
	mustCreateTeam(t, r, "alpha")

	updated, err := r.SetAnchor(ctx, identity.Lead(), "alpha", "@7", "%12")
	require.NoError(t, err)
	assert.Equal(t, "@7", updated.LeadWindowID)
	assert.Equal(t, "%12", updated.LeadPaneID)
	assert.Equal(t, "%12", updated.Member(constants.TeamLeadName).TmuxPaneID)

	_, err = r.SetAnchor(ctx, identity.Lead(), "alpha", "", "%12")
	require.ErrorIs(t, err, crewerrors.ErrEmptyValue)
}

func TestRegistryListShow(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, nil)
	mustCreateTeam(t, r, "beta")
	mustCreateTeam(t, r, "alpha")

	teams, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "alpha", teams[0].Name)
	assert.Equal(t, "beta", teams[1].Name)

	shown, err := r.Show(ctx, identity.Lead(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", shown.Name)

	_, err = r.Show(ctx, identity.Lead(), "ghost")
	require.ErrorIs(t, err, crewerrors.ErrTeamNotFound)
}

func TestCaptureLeadEnv(t *testing.T) {
	t.Setenv("OPENCODE_THEME", "")
	t.Setenv("OPENCODE_CONFIG", "")
	t.Setenv("TERM", "xterm-256color")

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	configDir := filepath.Join(dir, "opencode")
	require.NoError(t, os.MkdirAll(configDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "opencode.jsonc"), []byte(
		"{\n  // comments are allowed here\n  \"theme\": \"tokyonight\"\n}\n"), 0o600))

	env := captureLeadEnv()
	assert.Equal(t, "xterm-256color", env["TERM"])
	assert.Equal(t, "tokyonight", env["OPENCODE_THEME"])

	t.Setenv("OPENCODE_THEME", "dracula")
	env = captureLeadEnv()
	assert.Equal(t, "dracula", env["OPENCODE_THEME"])
}
