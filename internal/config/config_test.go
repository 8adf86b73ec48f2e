package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/crew/internal/constants"
)

func TestLoadDefaults(t *testing.T) {
	s := Load()

	assert.Equal(t, constants.TeamLeadName, s.Role)
	assert.Equal(t, constants.DefaultServerURL, s.ServerURL)
	assert.Equal(t, constants.DefaultInitialAssignmentTimeout, s.InitialAssignmentTimeout)
	assert.Equal(t, constants.DefaultAssignmentAckTimeout, s.AssignmentAckTimeout)
	assert.Equal(t, constants.DefaultSilenceTimeout, s.SilenceTimeout)
	assert.Empty(t, s.Team)
	assert.Empty(t, s.Member)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CREW_ROLE", "teammate")
	t.Setenv("CREW_TEAM", "alpha")
	t.Setenv("CREW_MEMBER", "bot1")
	t.Setenv("CREW_HOME", "/tmp/crew-test")
	t.Setenv("CREW_SERVER_URL", "http://localhost:9999/")
	t.Setenv("CREW_SILENCE_TIMEOUT_MS", "1500")

	s := Load()

	assert.Equal(t, "teammate", s.Role)
	assert.Equal(t, "alpha", s.Team)
	assert.Equal(t, "bot1", s.Member)
	assert.Equal(t, "/tmp/crew-test", s.Home)
	assert.Equal(t, "http://localhost:9999", s.ServerURL, "trailing slash trimmed")
	assert.Equal(t, 1500*time.Millisecond, s.SilenceTimeout)
}

func TestLoadTimeoutEdgeCases(t *testing.T) {
	t.Run("zero disables", func(t *testing.T) {
		t.Setenv("CREW_SILENCE_TIMEOUT_MS", "0")
		assert.Equal(t, time.Duration(0), Load().SilenceTimeout)
	})

	t.Run("negative falls back to default", func(t *testing.T) {
		t.Setenv("CREW_SILENCE_TIMEOUT_MS", "-5")
		assert.Equal(t, constants.DefaultSilenceTimeout, Load().SilenceTimeout)
	})

	t.Run("garbage falls back to default", func(t *testing.T) {
		t.Setenv("CREW_SILENCE_TIMEOUT_MS", "soon")
		assert.Equal(t, constants.DefaultSilenceTimeout, Load().SilenceTimeout)
	})

	t.Run("blank role falls back to lead", func(t *testing.T) {
		t.Setenv("CREW_ROLE", "   ")
		assert.Equal(t, constants.TeamLeadName, Load().Role)
	})
}
