// Package task implements the per-team task graph store: CRUD over task
// records, symmetric blocks/blockedBy dependency edges with cycle
// rejection, and the forward-only status state machine.
//
// All mutations for a team are serialized by one exclusive lock on the
// team's task directory. Validation runs against an in-memory snapshot of
// every task file before anything is written back, so a rejected update
// leaves the directory untouched.
package task

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/crew/internal/constants"
	"github.com/mrz1836/crew/internal/domain"
	crewerrors "github.com/mrz1836/crew/internal/errors"
	"github.com/mrz1836/crew/internal/identity"
	"github.com/mrz1836/crew/internal/storage"
)

// Store provides task operations for teams rooted at a Paths layout.
type Store struct {
	paths  *storage.Paths
	logger zerolog.Logger
}

// NewStore creates a task store over the given layout.
func NewStore(paths *storage.Paths, logger zerolog.Logger) *Store {
	return &Store{paths: paths, logger: logger}
}

// CreateParams holds the caller-supplied fields for a new task.
type CreateParams struct {
	Subject     string
	Description string
	ActiveForm  string
	Metadata    map[string]any
}

// UpdateParams holds the mutations applied by Update. Zero-valued string
// fields mean "leave unchanged"; a nil Owner means no ownership change,
// while a non-nil Owner reassigns (and must name a current member). A nil
// MetadataPatch leaves metadata alone.
type UpdateParams struct {
	Status        constants.TaskStatus
	Owner         *string
	Subject       string
	Description   string
	ActiveForm    string
	AddBlocks     []string
	AddBlockedBy  []string
	MetadataPatch map[string]any
}

// Create allocates the next task id for the team and persists a pending,
// unowned, dependency-free task. Lead only.
func (s *Store) Create(ctx context.Context, actor identity.Context, team string, p CreateParams) (*domain.Task, error) {
	if err := actor.AssertLeadOnly("task create", team); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Subject) == "" {
		return nil, crewerrors.Wrap(crewerrors.ErrEmptyValue, "task subject")
	}
	if _, err := s.paths.LoadTeam(team); err != nil {
		return nil, err
	}
	if err := s.paths.EnsureTeamDirs(team); err != nil {
		return nil, err
	}

	var created *domain.Task
	err := storage.WithLock(ctx, s.paths.TaskLockPath(team), func() error {
		tasks, err := s.loadAll(team)
		if err != nil {
			return err
		}
		next := 1
		for id := range tasks {
			if n, convErr := strconv.Atoi(id); convErr == nil && n >= next {
				next = n + 1
			}
		}
		t := &domain.Task{
			ID:          strconv.Itoa(next),
			Subject:     p.Subject,
			Description: p.Description,
			ActiveForm:  p.ActiveForm,
			Status:      constants.TaskStatusPending,
			Blocks:      []string{},
			BlockedBy:   []string{},
			Metadata:    normalizeMetadata(p.Metadata),
		}
		if err := s.write(team, t); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("team", team).Str("task", created.ID).
		Str("subject", created.Subject).Msg("task created")
	return created, nil
}

// Get returns one task by id.
func (s *Store) Get(ctx context.Context, actor identity.Context, team, id string) (*domain.Task, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	if _, err := s.paths.LoadTeam(team); err != nil {
		return nil, err
	}
	var t domain.Task
	found, err := storage.ReadJSON(s.paths.TaskPath(team, id), &t)
	if err != nil {
		return nil, crewerrors.Wrapf(err, "reading task %q", id)
	}
	if !found {
		return nil, crewerrors.Wrapf(crewerrors.ErrTaskNotFound, "task %q in team %q", id, team)
	}
	return &t, nil
}

// List returns every task in the team sorted by numeric id.
func (s *Store) List(ctx context.Context, actor identity.Context, team string) ([]*domain.Task, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	if _, err := s.paths.LoadTeam(team); err != nil {
		return nil, err
	}
	tasks, err := s.loadAll(team)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	domain.SortIDs(ids)
	out := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, tasks[id])
	}
	return out, nil
}

// Update applies p to the task under a single lock acquisition covering the
// read-modify-write of the target and every task whose dependency lists are
// touched. All validation runs before the first write.
func (s *Store) Update(ctx context.Context, actor identity.Context, team, id string, p UpdateParams) (*domain.Task, error) {
	if err := actor.AssertTeamScope(team); err != nil {
		return nil, err
	}
	roster, err := s.paths.LoadTeam(team)
	if err != nil {
		return nil, err
	}
	if p.Status != "" && !p.Status.Valid() {
		return nil, crewerrors.Wrapf(crewerrors.ErrInvalidStatus, "status %q", p.Status)
	}

	var updated *domain.Task
	err = storage.WithLock(ctx, s.paths.TaskLockPath(team), func() error {
		tasks, loadErr := s.loadAll(team)
		if loadErr != nil {
			return loadErr
		}
		t, ok := tasks[id]
		if !ok {
			return crewerrors.Wrapf(crewerrors.ErrTaskNotFound, "task %q in team %q", id, team)
		}

		if actor.IsTeammate() {
			if permErr := s.checkTeammateUpdate(actor, t, p); permErr != nil {
				return permErr
			}
		}

		dirty := map[string]bool{}

		if p.Subject != "" {
			t.Subject = p.Subject
			dirty[id] = true
		}
		if p.Description != "" {
			t.Description = p.Description
			dirty[id] = true
		}
		if p.ActiveForm != "" {
			t.ActiveForm = p.ActiveForm
			dirty[id] = true
		}

		if p.Owner != nil {
			if !roster.HasMember(*p.Owner) {
				return crewerrors.Wrapf(crewerrors.ErrUnknownOwner, "owner %q is not a member of team %q", *p.Owner, team)
			}
			t.Owner = *p.Owner
			dirty[id] = true
		}

		if len(p.AddBlocks) > 0 || len(p.AddBlockedBy) > 0 {
			if depErr := validateDeps(tasks, id, p.AddBlocks, p.AddBlockedBy); depErr != nil {
				return depErr
			}
			applyDeps(tasks, t, p.AddBlocks, p.AddBlockedBy, dirty)
		}

		if p.MetadataPatch != nil {
			t.Metadata = patchMetadata(t.Metadata, p.MetadataPatch)
			dirty[id] = true
		}

		removed := false
		if p.Status != "" {
			switch p.Status {
			case constants.TaskStatusDeleted:
				for _, other := range tasks {
					if other.ID == id {
						continue
					}
					if removeID(&other.Blocks, id) || removeID(&other.BlockedBy, id) {
						dirty[other.ID] = true
					}
				}
				t.Status = constants.TaskStatusDeleted
				removed = true
			default:
				if transErr := s.applyTransition(tasks, t, p.Status, dirty); transErr != nil {
					return transErr
				}
			}
			dirty[id] = true
		}

		for did := range dirty {
			if did == id && removed {
				continue
			}
			if writeErr := s.write(team, tasks[did]); writeErr != nil {
				return writeErr
			}
		}
		if removed {
			if rmErr := os.Remove(s.paths.TaskPath(team, id)); rmErr != nil && !os.IsNotExist(rmErr) {
				return crewerrors.Wrapf(rmErr, "removing task %q", id)
			}
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("team", team).Str("task", id).
		Str("status", updated.Status.String()).Str("actor", actor.ActorName()).
		Msg("task updated")
	return updated, nil
}

// ResetOwner clears ownership of every task owned by owner and moves the
// non-completed ones back to pending. Returns the number of tasks touched.
// Lead only; used when a member leaves the team.
func (s *Store) ResetOwner(ctx context.Context, actor identity.Context, team, owner string) (int, error) {
	if err := actor.AssertLeadOnly("task reset-owner", team); err != nil {
		return 0, err
	}
	if _, err := s.paths.LoadTeam(team); err != nil {
		return 0, err
	}

	count := 0
	err := storage.WithLock(ctx, s.paths.TaskLockPath(team), func() error {
		tasks, err := s.loadAll(team)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.Owner != owner || owner == "" {
				continue
			}
			t.Owner = ""
			if t.Status != constants.TaskStatusCompleted {
				t.Status = constants.TaskStatusPending
			}
			if err := s.write(team, t); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("team", team).Str("owner", owner).Int("count", count).
		Msg("task ownership reset")
	return count, nil
}

// checkTeammateUpdate enforces the teammate mutation rules: only own or
// unowned tasks, self-claim only, status moves only, never deleted.
func (s *Store) checkTeammateUpdate(actor identity.Context, t *domain.Task, p UpdateParams) error {
	member, err := actor.RequireMember()
	if err != nil {
		return err
	}
	if t.Owner != "" && t.Owner != member {
		return fmt.Errorf("%w: teammates can only update tasks they own",
			crewerrors.ErrPermissionDenied)
	}
	if p.Owner != nil && *p.Owner != member {
		return fmt.Errorf("%w: teammates cannot assign tasks to others",
			crewerrors.ErrPermissionDenied)
	}
	if p.Subject != "" || p.Description != "" || p.ActiveForm != "" ||
		len(p.AddBlocks) > 0 || len(p.AddBlockedBy) > 0 || p.MetadataPatch != nil {
		return fmt.Errorf("%w: teammates can only change task status and claim ownership",
			crewerrors.ErrPermissionDenied)
	}
	if p.Status == constants.TaskStatusDeleted {
		return fmt.Errorf("%w: teammates cannot delete tasks",
			crewerrors.ErrPermissionDenied)
	}
	return nil
}

// applyTransition validates and performs a forward status move, including
// the completed sweep that unblocks downstream tasks.
func (s *Store) applyTransition(tasks map[string]*domain.Task, t *domain.Task, next constants.TaskStatus, dirty map[string]bool) error {
	if next.Rank() < t.Status.Rank() {
		return crewerrors.Wrapf(crewerrors.ErrInvalidTransition,
			"cannot move task %q from %s to %s", t.ID, t.Status, next)
	}
	if next == constants.TaskStatusInProgress || next == constants.TaskStatusCompleted {
		var incomplete []string
		for _, dep := range t.BlockedBy {
			if blocker, ok := tasks[dep]; ok && blocker.Status != constants.TaskStatusCompleted {
				incomplete = append(incomplete, dep)
			}
		}
		if len(incomplete) > 0 {
			return crewerrors.Wrapf(crewerrors.ErrTaskBlocked,
				"task %q is blocked by incomplete tasks %v", t.ID, domain.SortIDs(incomplete))
		}
	}
	t.Status = next
	if next == constants.TaskStatusCompleted {
		for _, other := range tasks {
			if other.ID == t.ID {
				continue
			}
			if removeID(&other.BlockedBy, t.ID) {
				dirty[other.ID] = true
			}
		}
	}
	return nil
}

// validateDeps checks every referenced id exists, rejects self-dependencies,
// and runs the cycle check against the blockedBy graph with the pending
// additions included.
func validateDeps(tasks map[string]*domain.Task, id string, addBlocks, addBlockedBy []string) error {
	for _, ref := range append(append([]string{}, addBlocks...), addBlockedBy...) {
		if ref == id {
			return crewerrors.Wrapf(crewerrors.ErrSelfDependency, "task %q", id)
		}
		if _, ok := tasks[ref]; !ok {
			return crewerrors.Wrapf(crewerrors.ErrTaskNotFound, "dependency %q", ref)
		}
	}

	edges := make(map[string][]string, len(tasks))
	for tid, t := range tasks {
		edges[tid] = t.BlockedBy
	}
	edges[id] = append(append([]string{}, edges[id]...), addBlockedBy...)
	for _, b := range addBlocks {
		edges[b] = append(append([]string{}, edges[b]...), id)
	}
	if wouldCreateCycle(edges, id) {
		return crewerrors.Wrapf(crewerrors.ErrDependencyCycle,
			"dependency additions to task %q would create a cycle", id)
	}
	return nil
}

// applyDeps records the new edges on both sides of each relation.
func applyDeps(tasks map[string]*domain.Task, t *domain.Task, addBlocks, addBlockedBy []string, dirty map[string]bool) {
	for _, dep := range addBlockedBy {
		if addID(&t.BlockedBy, dep) {
			dirty[t.ID] = true
		}
		if addID(&tasks[dep].Blocks, t.ID) {
			dirty[dep] = true
		}
	}
	for _, b := range addBlocks {
		if addID(&t.Blocks, b) {
			dirty[t.ID] = true
		}
		if addID(&tasks[b].BlockedBy, t.ID) {
			dirty[b] = true
		}
	}
}

// loadAll reads every task file in the team's task directory into memory.
func (s *Store) loadAll(team string) (map[string]*domain.Task, error) {
	dir := s.paths.TasksDir(team)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*domain.Task{}, nil
		}
		return nil, crewerrors.Wrapf(err, "reading task directory for team %q", team)
	}

	tasks := make(map[string]*domain.Task, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, convErr := strconv.Atoi(id); convErr != nil {
			continue
		}
		var t domain.Task
		found, readErr := storage.ReadJSON(s.paths.TaskPath(team, id), &t)
		if readErr != nil {
			return nil, crewerrors.Wrapf(readErr, "reading task %q", id)
		}
		if !found {
			continue
		}
		tasks[id] = &t
	}
	return tasks, nil
}

func (s *Store) write(team string, t *domain.Task) error {
	return storage.WriteJSONAtomic(s.paths.TaskPath(team, t.ID), t, true)
}

// addID appends id to the sorted list if absent, reporting whether the
// list changed.
func addID(ids *[]string, id string) bool {
	for _, existing := range *ids {
		if existing == id {
			return false
		}
	}
	*ids = append(*ids, id)
	domain.SortIDs(*ids)
	return true
}

// removeID strips id from the list, reporting whether the list changed.
func removeID(ids *[]string, id string) bool {
	for i, existing := range *ids {
		if existing == id {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return true
		}
	}
	return false
}

// normalizeMetadata collapses an empty mapping to nil so the stored record
// serializes metadata as null rather than {}.
func normalizeMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// patchMetadata shallow-merges patch into current. Keys mapped to null are
// deleted; an empty result is stored as nil.
func patchMetadata(current, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return normalizeMetadata(merged)
}
