package recruitment

import (
	"fmt"

	"github.com/talgya/patria-grande/internal/social"
)

// Archetype names a recruitable unit type.
type Archetype string

const (
	Infantry  Archetype = "infantry"  // Pelotón
	Cavalry   Archetype = "cavalry"   // Compañía montada
	Artillery Archetype = "artillery" // Batería
)

// DefaultRadius is the recruitment radius every tier uses unless overridden.
const DefaultRadius = 50.0

// ArchetypeSpec is the static data for one archetype.
type ArchetypeSpec struct {
	Name          Archetype `json:"name"`
	Reinforcement uint32    `json:"reinforcement"` // Troops added per recruitment
	Cost          uint64    `json:"cost"`          // Crowns deducted from the faction treasury
}

// TierRule is what one settlement tier offers.
type TierRule struct {
	Radius float64
	Units  []Archetype
}

// Rules is the data-driven recruitment configuration. Archetypes are listed
// in declaration order; that order is the order menus display them in.
type Rules struct {
	Archetypes []ArchetypeSpec
	Tiers      map[social.Tier]TierRule
}

// DefaultRules returns the observed campaign configuration: every tier
// recruits within 50 units, villages offer infantry, medium cities add
// cavalry, and capitals offer every unit type.
func DefaultRules() Rules {
	return Rules{
		Archetypes: []ArchetypeSpec{
			{Name: Infantry, Reinforcement: 100, Cost: 50},
			{Name: Cavalry, Reinforcement: 50, Cost: 120},
			{Name: Artillery, Reinforcement: 25, Cost: 200},
		},
		Tiers: map[social.Tier]TierRule{
			social.TierVillage:    {Radius: DefaultRadius, Units: []Archetype{Infantry}},
			social.TierMediumCity: {Radius: DefaultRadius, Units: []Archetype{Infantry, Cavalry}},
			social.TierCapital:    {Radius: DefaultRadius, Units: []Archetype{Infantry, Cavalry, Artillery}},
		},
	}
}

// Catalog maps settlement tiers to the archetypes they can recruit. It is
// immutable after construction.
type Catalog struct {
	specs  []ArchetypeSpec
	index  map[Archetype]int
	offers map[social.Tier]map[Archetype]bool
	radius map[social.Tier]float64
}

// NewCatalog validates rules and builds a catalog. Every defined tier must be
// configured, and each tier must offer a strict superset of the tier below it.
func NewCatalog(rules Rules) (*Catalog, error) {
	c := &Catalog{
		index:  make(map[Archetype]int, len(rules.Archetypes)),
		offers: make(map[social.Tier]map[Archetype]bool, len(rules.Tiers)),
		radius: make(map[social.Tier]float64, len(rules.Tiers)),
	}

	for _, spec := range rules.Archetypes {
		if spec.Name == "" {
			return nil, fmt.Errorf("archetype with empty name")
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, fmt.Errorf("archetype %q declared twice", spec.Name)
		}
		if spec.Reinforcement == 0 {
			return nil, fmt.Errorf("archetype %q: reinforcement must be positive", spec.Name)
		}
		c.index[spec.Name] = len(c.specs)
		c.specs = append(c.specs, spec)
	}

	for tier, rule := range rules.Tiers {
		if !tier.Valid() {
			return nil, &UnknownTierError{Tier: tier}
		}
		if rule.Radius <= 0 {
			return nil, fmt.Errorf("tier %s: radius must be positive", tier)
		}
		set := make(map[Archetype]bool, len(rule.Units))
		for _, a := range rule.Units {
			if _, ok := c.index[a]; !ok {
				return nil, fmt.Errorf("tier %s: undeclared archetype %q", tier, a)
			}
			set[a] = true
		}
		c.offers[tier] = set
		c.radius[tier] = rule.Radius
	}

	var prev map[Archetype]bool
	for i, tier := range social.Tiers {
		cur, ok := c.offers[tier]
		if !ok {
			return nil, fmt.Errorf("tier %s is not configured", tier)
		}
		if len(cur) == 0 {
			return nil, fmt.Errorf("tier %s offers no archetypes", tier)
		}
		if i > 0 && !strictSubset(prev, cur) {
			return nil, fmt.Errorf("tier %s must offer everything %s does and more", tier, social.Tiers[i-1])
		}
		prev = cur
	}

	return c, nil
}

// MustCatalog is NewCatalog for rules known to be valid.
func MustCatalog(rules Rules) *Catalog {
	c, err := NewCatalog(rules)
	if err != nil {
		panic(err)
	}
	return c
}

func strictSubset(a, b map[Archetype]bool) bool {
	if len(a) >= len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// UnitsFor returns the archetypes recruitable at tier, in declaration order.
func (c *Catalog) UnitsFor(tier social.Tier) ([]Archetype, error) {
	set, ok := c.offers[tier]
	if !ok {
		return nil, &UnknownTierError{Tier: tier}
	}
	out := make([]Archetype, 0, len(set))
	for _, spec := range c.specs {
		if set[spec.Name] {
			out = append(out, spec.Name)
		}
	}
	return out, nil
}

// SpecsFor is UnitsFor with full archetype data.
func (c *Catalog) SpecsFor(tier social.Tier) ([]ArchetypeSpec, error) {
	units, err := c.UnitsFor(tier)
	if err != nil {
		return nil, err
	}
	out := make([]ArchetypeSpec, len(units))
	for i, a := range units {
		out[i] = c.specs[c.index[a]]
	}
	return out, nil
}

// Offers reports whether tier can recruit a.
func (c *Catalog) Offers(tier social.Tier, a Archetype) bool {
	return c.offers[tier][a]
}

// Spec returns the static data for an archetype.
func (c *Catalog) Spec(a Archetype) (ArchetypeSpec, bool) {
	i, ok := c.index[a]
	if !ok {
		return ArchetypeSpec{}, false
	}
	return c.specs[i], true
}

// Archetypes returns every declared archetype in declaration order.
func (c *Catalog) Archetypes() []ArchetypeSpec {
	out := make([]ArchetypeSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Radius implements social.RadiusTable.
func (c *Catalog) Radius(tier social.Tier) (float64, error) {
	r, ok := c.radius[tier]
	if !ok {
		return 0, &UnknownTierError{Tier: tier}
	}
	return r, nil
}
