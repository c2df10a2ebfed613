// Factions of the independence war.
package social

import (
	"fmt"
	"strings"
)

// Faction is the side a division fights for.
type Faction uint8

const (
	FactionPatriot  Faction = iota // Patriota
	FactionRoyalist                // Realista
)

// Factions lists every faction.
var Factions = []Faction{FactionPatriot, FactionRoyalist}

// String returns the faction's config name.
func (f Faction) String() string {
	switch f {
	case FactionPatriot:
		return "patriot"
	case FactionRoyalist:
		return "royalist"
	default:
		return fmt.Sprintf("faction(%d)", uint8(f))
	}
}

// MarshalText encodes the faction by name for JSON output.
func (f Faction) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a faction name.
func (f *Faction) UnmarshalText(b []byte) error {
	parsed, err := ParseFaction(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFaction maps "patriot" or "royalist" to a Faction.
func ParseFaction(s string) (Faction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patriot":
		return FactionPatriot, nil
	case "royalist":
		return FactionRoyalist, nil
	default:
		return 0, fmt.Errorf("unknown faction %q", s)
	}
}
