package cli

import (
	"github.com/rs/zerolog"

	"github.com/mrz1836/crew/internal/clock"
	"github.com/mrz1836/crew/internal/config"
	"github.com/mrz1836/crew/internal/doctor"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/inbox"
	"github.com/mrz1836/crew/internal/lead"
	"github.com/mrz1836/crew/internal/opencode"
	"github.com/mrz1836/crew/internal/storage"
	"github.com/mrz1836/crew/internal/task"
	"github.com/mrz1836/crew/internal/team"
	"github.com/mrz1836/crew/internal/tmux"
)

// loadSettings reads the environment-derived configuration. Split out so
// tests can keep using config.Load directly.
func loadSettings() *config.Settings {
	return config.Load()
}

// app bundles the stores a command invocation operates on, constructed once
// per RunE from the environment.
type app struct {
	settings *config.Settings
	paths    *storage.Paths
	actor    identity.Context
	logger   zerolog.Logger

	client  *opencode.Client
	tasks   *task.Store
	inboxes *inbox.Store
	teams   *team.Registry
	checker *doctor.Checker
	lead    *lead.Helper
}

// newApp wires the full store graph against the configured home directory.
func newApp() (*app, error) {
	settings := loadSettings()
	paths, err := storage.NewPaths(settings.Home)
	if err != nil {
		return nil, err
	}
	logger := GetLogger()
	clk := clock.RealClock{}
	prober := tmux.Real{}

	client := opencode.NewClient(settings.ServerURL)
	notifier := opencode.NewSessionNotifier(client, logger)

	tasks := task.NewStore(paths, logger)
	inboxes := inbox.NewStore(paths, notifier, clk, logger)
	teams := team.NewRegistry(paths, tasks, inboxes, client, prober, clk, logger)
	checker := doctor.NewChecker(paths, tasks, prober, client, clk, doctor.Timeouts{
		InitialAssignment: settings.InitialAssignmentTimeout,
		AssignmentAck:     settings.AssignmentAckTimeout,
		Silence:           settings.SilenceTimeout,
	}, logger)

	return &app{
		settings: settings,
		paths:    paths,
		actor:    identity.FromSettings(settings),
		logger:   logger,
		client:   client,
		tasks:    tasks,
		inboxes:  inboxes,
		teams:    teams,
		checker:  checker,
		lead:     lead.NewHelper(paths, tasks, inboxes, checker, logger),
	}, nil
}
