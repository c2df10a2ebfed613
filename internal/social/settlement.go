// Package social provides settlements, their tiers, factions, and the
// settlement registry owned by the simulation.
package social

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/patria-grande/internal/world"
)

// SettlementID is a stable identifier for a settlement.
type SettlementID = uint64

// Tier classifies a settlement and gates what it can recruit.
type Tier uint8

const (
	TierVillage    Tier = iota // Villa: basic infantry only
	TierMediumCity             // Ciudad mediana
	TierCapital                // Capital: every unit type
)

// Tiers lists every defined tier from smallest to largest.
var Tiers = []Tier{TierVillage, TierMediumCity, TierCapital}

var tierNames = map[Tier]string{
	TierVillage:    "village",
	TierMediumCity: "medium_city",
	TierCapital:    "capital",
}

// String returns the tier's config name.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// MarshalText encodes the tier by name for JSON output.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseTier maps a config name ("village", "medium_city", "capital") to a Tier.
func ParseTier(s string) (Tier, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// Settlement is a fixed-position town. Its tier is fixed at creation and its
// recruitment radius is derived from the tier.
type Settlement struct {
	ID       SettlementID `json:"id"`
	Name     string       `json:"name"`
	Position world.Point  `json:"position"`
	Radius   float64      `json:"radius"`

	tier Tier
}

// Tier returns the settlement's tier.
func (s *Settlement) Tier() Tier {
	return s.tier
}

// InRange reports whether p lies within the recruitment radius (inclusive).
func (s *Settlement) InRange(p world.Point) bool {
	return world.Within(s.Position, p, s.Radius)
}

// RadiusTable resolves the recruitment radius for a tier.
type RadiusTable interface {
	Radius(t Tier) (float64, error)
}

// Registry owns every settlement, keyed by ID. It replaces ambient
// "all nodes in group towns" lookups.
type Registry struct {
	radii  RadiusTable
	byID   map[SettlementID]*Settlement
	nextID SettlementID
}

// NewRegistry creates an empty registry deriving radii from the given table.
func NewRegistry(radii RadiusTable) *Registry {
	return &Registry{
		radii:  radii,
		byID:   make(map[SettlementID]*Settlement),
		nextID: 1,
	}
}

// Add creates a settlement with the next free ID.
func (r *Registry) Add(name string, tier Tier, pos world.Point) (*Settlement, error) {
	return r.Insert(r.nextID, name, tier, pos)
}

// Insert creates a settlement with an explicit ID.
func (r *Registry) Insert(id SettlementID, name string, tier Tier, pos world.Point) (*Settlement, error) {
	if _, exists := r.byID[id]; exists {
		return nil, fmt.Errorf("settlement %d already registered", id)
	}
	radius, err := r.radii.Radius(tier)
	if err != nil {
		return nil, fmt.Errorf("settlement %q: %w", name, err)
	}

	s := &Settlement{
		ID:       id,
		Name:     name,
		Position: pos,
		Radius:   radius,
		tier:     tier,
	}
	r.byID[id] = s
	if id >= r.nextID {
		r.nextID = id + 1
	}
	return s, nil
}

// Get returns the settlement with the given ID, or nil.
func (r *Registry) Get(id SettlementID) *Settlement {
	return r.byID[id]
}

// All returns every settlement sorted by ID.
func (r *Registry) All() []*Settlement {
	out := make([]*Settlement, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered settlements.
func (r *Registry) Len() int {
	return len(r.byID)
}

// SettlementSeed describes one of the hand-placed test towns.
type SettlementSeed struct {
	Name     string
	Tier     Tier
	Position world.Point
}

// SeedSettlements returns the three test towns of the independence campaign map.
func SeedSettlements() []SettlementSeed {
	return []SettlementSeed{
		{Name: "Villa Independencia", Tier: TierVillage, Position: world.Pt(-100, -300)},
		{Name: "Ciudad Real", Tier: TierMediumCity, Position: world.Pt(250, 300)},
		{Name: "Capital del Virreinato", Tier: TierCapital, Position: world.Pt(0, 0)},
	}
}

// TierForSize maps a procedural settlement size to a tier.
func TierForSize(size world.SettlementSize) Tier {
	switch size {
	case world.SizeCity:
		return TierCapital
	case world.SizeTown:
		return TierMediumCity
	default:
		return TierVillage
	}
}
