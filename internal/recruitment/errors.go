package recruitment

import (
	"fmt"

	"github.com/talgya/patria-grande/internal/social"
)

// UnknownTierError is returned for a tier the catalog does not define.
type UnknownTierError struct {
	Tier social.Tier
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("unknown settlement tier %s", e.Tier)
}

// OutOfRangeError is returned when a division recruits from a settlement it
// is not within range of.
type OutOfRangeError struct {
	DivisionID     uint64
	SettlementID   uint64
	SettlementName string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("division %d is not within recruitment range of %s", e.DivisionID, e.SettlementName)
}

// InvalidArchetypeError is returned when a settlement's tier does not offer
// the requested archetype.
type InvalidArchetypeError struct {
	Archetype      Archetype
	Tier           social.Tier
	SettlementName string
}

func (e *InvalidArchetypeError) Error() string {
	return fmt.Sprintf("%s cannot be recruited at %s (%s)", e.Archetype, e.SettlementName, e.Tier)
}

// InsufficientResourcesError is returned when the economy refuses the cost.
type InsufficientResourcesError struct {
	Faction social.Faction
	Cost    uint64
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("%s treasury cannot cover %d crowns", e.Faction, e.Cost)
}

// TroopOverflowError is returned when a reinforcement would push a division
// past the largest representable troop count.
type TroopOverflowError struct {
	DivisionID    uint64
	Troops        uint32
	Reinforcement uint32
}

func (e *TroopOverflowError) Error() string {
	return fmt.Sprintf("division %d cannot add %d troops to %d", e.DivisionID, e.Reinforcement, e.Troops)
}

// UnknownDivisionError is returned for a division ID not in the registry.
type UnknownDivisionError struct {
	ID uint64
}

func (e *UnknownDivisionError) Error() string {
	return fmt.Sprintf("unknown division %d", e.ID)
}

// UnknownSettlementError is returned for a settlement ID not in the registry.
type UnknownSettlementError struct {
	ID uint64
}

func (e *UnknownSettlementError) Error() string {
	return fmt.Sprintf("unknown settlement %d", e.ID)
}
