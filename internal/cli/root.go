package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/storage"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands. It is
// set during PersistentPreRunE and accessed via GetLogger. Access is
// protected by globalLoggerMu.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands. It must
// only be called after the root command's PersistentPreRunE has executed.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates the root command for the crew CLI. The function-based
// approach avoids package-level command globals.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "CREW - multi-agent team coordination",
		Long: `CREW coordinates a team of AI agents over shared filesystem state:
a task graph with dependencies, per-agent inboxes, and a member roster,
all scoped per team and safe under concurrent invocations.

Every command prints a single JSON object to stdout; logs go to stderr
and the rotating log file.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			settings := loadSettings()
			paths, err := storage.NewPaths(settings.Home)
			if err != nil {
				return err
			}
			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet, paths.Home())
			globalLoggerMu.Unlock()
			return nil
		},
		// SilenceUsage prevents printing usage on error; SilenceErrors keeps
		// cobra's error text off the output channels; failures are emitted
		// as the JSON envelope instead.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, flags)

	addTeamCommand(cmd)
	addTaskCommand(cmd)
	addInboxCommand(cmd)
	addDoctorCommand(cmd)
	addLeadCommand(cmd)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command. Any failure not already emitted as JSON is
// printed as the uniform failure envelope on stdout.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, info)
	defer CloseLogFile()

	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, crewerrors.ErrJSONErrorOutput) {
		_ = printFailure(cmd, err)
	}
	return err
}

// unhealthyErr flags a command that ran and already reported its findings
// as JSON, but must exit non-zero.
func unhealthyErr(reason string) error {
	return crewerrors.NewExitCode2Error(
		fmt.Errorf("%w: %s", crewerrors.ErrJSONErrorOutput, reason))
}
