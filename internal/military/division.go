// Package military provides divisions and the division registry owned by the
// simulation.
package military

import (
	"fmt"
	"sort"

	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

// DivisionID is a stable identifier for a division.
type DivisionID = uint64

const (
	MaxMorale = 100
	// DefaultMarchSpeed is the distance a division covers per tick when
	// marching toward a destination.
	DefaultMarchSpeed = 5.0
)

// Division is a mobile group of troops belonging to one faction.
type Division struct {
	ID      DivisionID     `json:"id"`
	Name    string         `json:"name"`
	Faction social.Faction `json:"faction"`

	// Location
	Position    world.Point  `json:"position"`
	Destination *world.Point `json:"destination,omitempty"`
	MarchSpeed  float64      `json:"march_speed"`

	// Strength
	Troops     uint32  `json:"troops"`
	Morale     float64 `json:"morale"`     // 0–100
	Experience float64 `json:"experience"` // 0–100+, no upper cap
}

// Clamp keeps morale within 0–100 and experience non-negative.
func (d *Division) Clamp() {
	if d.Morale < 0 {
		d.Morale = 0
	}
	if d.Morale > MaxMorale {
		d.Morale = MaxMorale
	}
	if d.Experience < 0 {
		d.Experience = 0
	}
}

// Reinforce adds troops to the division.
func (d *Division) Reinforce(n uint32) {
	d.Troops += n
}

// March advances the division toward its destination by its march speed.
// Returns true if the division moved this tick.
func (d *Division) March() bool {
	if d.Destination == nil {
		return false
	}
	dest := *d.Destination
	remaining := world.Distance(d.Position, dest)
	speed := d.MarchSpeed
	if speed <= 0 {
		speed = DefaultMarchSpeed
	}
	if remaining <= speed {
		d.Position = dest
		d.Destination = nil
		return remaining > 0
	}
	d.Position = world.Lerp(d.Position, dest, speed/remaining)
	return true
}

// Snapshot returns a copy safe to hand outside the simulation thread.
func (d *Division) Snapshot() Division {
	c := *d
	if d.Destination != nil {
		dest := *d.Destination
		c.Destination = &dest
	}
	return c
}

// Registry owns every division, keyed by ID. Divisions belong to the
// simulation, never to a settlement.
type Registry struct {
	byID   map[DivisionID]*Division
	nextID DivisionID
}

// NewRegistry creates an empty division registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[DivisionID]*Division),
		nextID: 1,
	}
}

// Add registers d. A zero ID is replaced with the next free one.
func (r *Registry) Add(d *Division) (*Division, error) {
	if d.ID == 0 {
		d.ID = r.nextID
	}
	if _, exists := r.byID[d.ID]; exists {
		return nil, fmt.Errorf("division %d already registered", d.ID)
	}
	d.Clamp()
	r.byID[d.ID] = d
	if d.ID >= r.nextID {
		r.nextID = d.ID + 1
	}
	return d, nil
}

// Get returns the division with the given ID, or nil.
func (r *Registry) Get(id DivisionID) *Division {
	return r.byID[id]
}

// All returns every division sorted by ID.
func (r *Registry) All() []*Division {
	out := make([]*Division, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered divisions.
func (r *Registry) Len() int {
	return len(r.byID)
}

// SeedDivisions returns the two test divisions of the campaign map.
func SeedDivisions() []*Division {
	return []*Division{
		{
			Name:       "División Patriota",
			Faction:    social.FactionPatriot,
			Position:   world.Pt(-150, -350),
			Troops:     650,
			Morale:     85,
			Experience: 20,
		},
		{
			Name:       "División Realista",
			Faction:    social.FactionRoyalist,
			Position:   world.Pt(280, 350),
			Troops:     700,
			Morale:     70,
			Experience: 35,
		},
	}
}
