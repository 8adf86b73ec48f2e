// Package config loads runtime settings for the crew CLI from the
// environment. All settings bind under the CREW_ prefix via viper
// (CREW_HOME, CREW_ROLE, CREW_TEAM, CREW_MEMBER, CREW_SERVER_URL and the
// three doctor timeout overrides).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mrz1836/crew/internal/constants"
)

// Settings holds every environment-derived setting for one invocation.
// It is constructed once at process start and passed down explicitly;
// business logic never reads the environment directly.
type Settings struct {
	// Home is the crew state directory ("" selects ~/.crew).
	Home string

	// Role is the process role: "team-lead" (default) or "teammate".
	Role string

	// Team scopes a teammate session to one team ("" for unscoped lead).
	Team string

	// Member is the acting member's own name in a teammate session.
	Member string

	// ServerURL is the base URL of the opencode runtime.
	ServerURL string

	// InitialAssignmentTimeout gates the doctor missing-assignment check.
	// Zero or negative disables the check.
	InitialAssignmentTimeout time.Duration

	// AssignmentAckTimeout gates the doctor missing-ack check.
	AssignmentAckTimeout time.Duration

	// SilenceTimeout gates the doctor silent-teammate check.
	SilenceTimeout time.Duration
}

// Load reads settings from the environment with defaults applied.
func Load() *Settings {
	v := viper.New()
	v.SetEnvPrefix("CREW")
	v.AutomaticEnv()

	v.SetDefault(constants.EnvRole, constants.TeamLeadName)
	v.SetDefault(constants.EnvServerURL, constants.DefaultServerURL)
	v.SetDefault(constants.EnvInitialAssignmentTimeoutMS, constants.DefaultInitialAssignmentTimeout.Milliseconds())
	v.SetDefault(constants.EnvAssignmentAckTimeoutMS, constants.DefaultAssignmentAckTimeout.Milliseconds())
	v.SetDefault(constants.EnvSilenceTimeoutMS, constants.DefaultSilenceTimeout.Milliseconds())

	role := strings.TrimSpace(v.GetString(constants.EnvRole))
	if role == "" {
		role = constants.TeamLeadName
	}

	return &Settings{
		Home:                     strings.TrimSpace(v.GetString(constants.EnvHome)),
		Role:                     role,
		Team:                     strings.TrimSpace(v.GetString(constants.EnvTeam)),
		Member:                   strings.TrimSpace(v.GetString(constants.EnvMember)),
		ServerURL:                strings.TrimRight(strings.TrimSpace(v.GetString(constants.EnvServerURL)), "/"),
		InitialAssignmentTimeout: timeoutFromMillis(v, constants.EnvInitialAssignmentTimeoutMS, constants.DefaultInitialAssignmentTimeout),
		AssignmentAckTimeout:     timeoutFromMillis(v, constants.EnvAssignmentAckTimeoutMS, constants.DefaultAssignmentAckTimeout),
		SilenceTimeout:           timeoutFromMillis(v, constants.EnvSilenceTimeoutMS, constants.DefaultSilenceTimeout),
	}
}

// timeoutFromMillis reads a millisecond override. Zero disables the
// corresponding check; a malformed or negative value falls back to the
// default rather than failing startup.
func timeoutFromMillis(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	ms := v.GetInt64(key)
	if ms < 0 || (ms == 0 && raw != "0") {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
