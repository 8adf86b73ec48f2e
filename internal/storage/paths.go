// Package storage implements the filesystem substrate shared by the team,
// task, and inbox stores: deterministic path resolution for a team's state
// tree, atomic JSON persistence, and blocking advisory locks.
//
// Everything above this package speaks in teams, tasks, and messages; only
// this package knows where those live on disk.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/mrz1836/crew/internal/constants"
	crewerrors "github.com/mrz1836/crew/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validNameRegex matches valid team and member names.
var validNameRegex = regexp.MustCompile(constants.NamePattern)

// ValidateName rejects names outside the allowed character set or above the
// length limit, with a distinct error per violated rule. The label names the
// field in error messages ("team name", "member name").
func ValidateName(name, label string) error {
	if !validNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %s %q must use letters, numbers, hyphen, underscore",
			crewerrors.ErrInvalidName, label, name)
	}
	if len(name) > constants.MaxNameLength {
		return fmt.Errorf("%w: %s is %d chars, max %d",
			crewerrors.ErrNameTooLong, label, len(name), constants.MaxNameLength)
	}
	return nil
}

// Paths resolves every location in a crew home directory.
type Paths struct {
	home string // Usually ~/.crew
}

// NewPaths creates a Paths rooted at the given crew home directory.
// If home is empty, uses the default ~/.crew directory.
func NewPaths(home string) (*Paths, error) {
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.CrewHome)
	}
	return &Paths{home: home}, nil
}

// Home returns the crew home directory.
func (p *Paths) Home() string {
	return p.home
}

// TeamsRoot returns the directory holding all team directories.
func (p *Paths) TeamsRoot() string {
	return filepath.Join(p.home, constants.TeamsDir)
}

// TeamDir returns the root directory of one team.
func (p *Paths) TeamDir(team string) string {
	return filepath.Join(p.TeamsRoot(), team)
}

// TeamConfigPath returns the path of a team's config file.
func (p *Paths) TeamConfigPath(team string) string {
	return filepath.Join(p.TeamDir(team), constants.TeamConfigFileName)
}

// InboxDir returns the directory holding a team's per-agent inboxes.
func (p *Paths) InboxDir(team string) string {
	return filepath.Join(p.TeamDir(team), constants.InboxesDir)
}

// InboxPath returns the path of one agent's inbox file.
func (p *Paths) InboxPath(team, agent string) string {
	return filepath.Join(p.InboxDir(team), agent+".json")
}

// TasksDir returns the directory holding a team's task files.
func (p *Paths) TasksDir(team string) string {
	return filepath.Join(p.home, constants.TasksDir, team)
}

// TaskPath returns the path of one task's file.
func (p *Paths) TaskPath(team, id string) string {
	return filepath.Join(p.TasksDir(team), id+".json")
}

// TeamLockPath returns the lock file guarding a team's inbox and config
// mutations.
func (p *Paths) TeamLockPath(team string) string {
	return filepath.Join(p.InboxDir(team), constants.LockFileName)
}

// TaskLockPath returns the lock file guarding a team's task mutations.
func (p *Paths) TaskLockPath(team string) string {
	return filepath.Join(p.TasksDir(team), constants.LockFileName)
}

// LogsDir returns the directory holding CLI log files.
func (p *Paths) LogsDir() string {
	return filepath.Join(p.home, constants.LogsDir)
}

// EnsureTeamDirs creates the team's directory tree and lock files on first
// use. Safe to call repeatedly.
func (p *Paths) EnsureTeamDirs(team string) error {
	for _, dir := range []string{p.TeamDir(team), p.InboxDir(team), p.TasksDir(team)} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	for _, lock := range []string{p.TeamLockPath(team), p.TaskLockPath(team)} {
		f, err := os.OpenFile(lock, os.O_CREATE|os.O_WRONLY, filePerm) //#nosec G304 -- path is constructed internally
		if err != nil {
			return fmt.Errorf("failed to create lock file %s: %w", lock, err)
		}
		_ = f.Close()
	}
	return nil
}

// ListTeams returns the names of all teams that have a config file, sorted.
func (p *Paths) ListTeams() ([]string, error) {
	entries, err := os.ReadDir(p.TeamsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	teams := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(p.TeamConfigPath(entry.Name())); err == nil {
			teams = append(teams, entry.Name())
		}
	}
	sort.Strings(teams)
	return teams, nil
}

// RemoveTeamTree deletes a team's config directory and task directory.
// Callers must verify the roster is empty first.
func (p *Paths) RemoveTeamTree(team string) error {
	for _, root := range []string{p.TeamDir(team), p.TasksDir(team)} {
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("failed to remove %s: %w", root, err)
		}
	}
	return nil
}
