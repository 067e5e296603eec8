package matcher

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spigell/placement-checker/internal/textnorm"
)

// Profile is an approved internship role: the reference requirements text and its weight.
type Profile struct {
	Name         string
	Requirements string
	// Weight is informational. It is returned with every result and never combined into the score.
	Weight float64
}

// Cleaned returns the normalized requirements text that is sent to the embedding model.
func (p Profile) Cleaned() string {
	return textnorm.Normalize(p.Requirements)
}

// Profiles is an immutable set of role profiles keyed by name. The configured order is kept
// for presentation only.
type Profiles struct {
	byName map[string]Profile
	names  []string
}

// NewProfiles validates and indexes the given profiles. Names must be non-empty and unique.
func NewProfiles(list ...Profile) (Profiles, error) {
	if len(list) == 0 {
		return Profiles{}, errors.New("at least one role profile is required")
	}

	byName := make(map[string]Profile, len(list))
	names := make([]string, 0, len(list))

	for i, p := range list {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return Profiles{}, fmt.Errorf("role profile %d: name is required", i)
		}
		if _, ok := byName[name]; ok {
			return Profiles{}, fmt.Errorf("role profile %q is defined more than once", name)
		}
		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) {
			return Profiles{}, fmt.Errorf("role profile %q: weight must be a finite number", name)
		}

		p.Name = name
		byName[name] = p
		names = append(names, name)
	}

	return Profiles{byName: byName, names: names}, nil
}

// Get returns the profile with the given name.
func (p Profiles) Get(name string) (Profile, bool) {
	profile, ok := p.byName[name]
	return profile, ok
}

// Names returns role names in configured order.
func (p Profiles) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p Profiles) Len() int { return len(p.names) }
