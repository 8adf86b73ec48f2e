package team

import (
	"os"
	"path/filepath"
	"regexp"
)

// leadEnvKeys is the subset of the lead's environment captured at team
// creation so spawned teammates can reproduce its terminal context.
var leadEnvKeys = []string{ //nolint:gochecknoglobals // Fixed capture list
	"HOME",
	"XDG_CONFIG_HOME",
	"OPENCODE_CONFIG",
	"OPENCODE_THEME",
	"COLORTERM",
	"TERM",
}

var themePattern = regexp.MustCompile(`"theme"\s*:\s*"([^"]+)"`)

// captureLeadEnv snapshots the relevant environment variables. When no
// explicit theme is set, the opencode config file is scanned for one so
// teammates render with the lead's colors.
func captureLeadEnv() map[string]string {
	env := make(map[string]string, len(leadEnvKeys))
	for _, key := range leadEnvKeys {
		if value := os.Getenv(key); value != "" {
			env[key] = value
		}
	}
	if env["OPENCODE_THEME"] == "" {
		if theme := themeFromConfig(env); theme != "" {
			env["OPENCODE_THEME"] = theme
		}
	}
	return env
}

// themeFromConfig extracts the theme name from the lead's opencode config
// file. The file may be JSONC, so a targeted pattern match is used instead
// of a strict JSON parse.
func themeFromConfig(env map[string]string) string {
	for _, path := range configCandidates(env) {
		data, err := os.ReadFile(path) //#nosec G304 -- paths derive from the process's own environment
		if err != nil {
			continue
		}
		if m := themePattern.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}
	return ""
}

func configCandidates(env map[string]string) []string {
	var paths []string
	if explicit := env["OPENCODE_CONFIG"]; explicit != "" {
		paths = append(paths, explicit)
	}
	configHome := env["XDG_CONFIG_HOME"]
	if configHome == "" && env["HOME"] != "" {
		configHome = filepath.Join(env["HOME"], ".config")
	}
	if configHome != "" {
		paths = append(paths,
			filepath.Join(configHome, "opencode", "opencode.json"),
			filepath.Join(configHome, "opencode", "opencode.jsonc"),
		)
	}
	return paths
}
