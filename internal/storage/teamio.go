package storage

import (
	"github.com/mrz1836/crew/internal/domain"
	crewerrors "github.com/mrz1836/crew/internal/errors"
)

// LoadTeam reads the team config for name. It returns ErrTeamNotFound when
// the config file does not exist.
func (p *Paths) LoadTeam(name string) (*domain.Team, error) {
	if err := ValidateName(name, "team"); err != nil {
		return nil, err
	}

	var team domain.Team
	found, err := ReadJSON(p.TeamConfigPath(name), &team)
	if err != nil {
		return nil, crewerrors.Wrapf(err, "reading team %q", name)
	}
	if !found {
		return nil, crewerrors.Wrapf(crewerrors.ErrTeamNotFound, "team %q", name)
	}
	return &team, nil
}

// SaveTeam writes the team config atomically.
func (p *Paths) SaveTeam(team *domain.Team) error {
	if err := ValidateName(team.Name, "team"); err != nil {
		return err
	}
	return WriteJSONAtomic(p.TeamConfigPath(team.Name), team, true)
}
