// Package economy provides faction treasuries consulted before recruitment.
package economy

import (
	"log/slog"

	"github.com/talgya/patria-grande/internal/social"
)

// Treasury holds the crowns of each faction. It is owned by the simulation
// thread; read Balances for a copy.
type Treasury struct {
	balances map[social.Faction]uint64
	income   map[social.Faction]uint64 // Crowns credited per sim-hour
}

// NewTreasury creates a treasury with every faction starting at the same balance.
func NewTreasury(starting uint64) *Treasury {
	t := &Treasury{
		balances: make(map[social.Faction]uint64, len(social.Factions)),
		income:   make(map[social.Faction]uint64, len(social.Factions)),
	}
	for _, f := range social.Factions {
		t.balances[f] = starting
	}
	return t
}

// RequestDeduct removes cost from the faction's balance if it can pay.
// It implements recruitment.Economy.
func (t *Treasury) RequestDeduct(f social.Faction, cost uint64) bool {
	if t.balances[f] < cost {
		return false
	}
	t.balances[f] -= cost
	return true
}

// Credit adds crowns to a faction.
func (t *Treasury) Credit(f social.Faction, amount uint64) {
	t.balances[f] += amount
}

// SetIncome sets the crowns a faction earns each sim-hour.
func (t *Treasury) SetIncome(f social.Faction, perHour uint64) {
	t.income[f] = perHour
}

// CollectIncome credits every faction its hourly income.
func (t *Treasury) CollectIncome(tick uint64) {
	for _, f := range social.Factions {
		if inc := t.income[f]; inc > 0 {
			t.balances[f] += inc
		}
	}
	slog.Debug("treasury income collected",
		"tick", tick,
		"patriot", Comma(t.balances[social.FactionPatriot]),
		"royalist", Comma(t.balances[social.FactionRoyalist]),
	)
}

// Balance returns a faction's current balance.
func (t *Treasury) Balance(f social.Faction) uint64 {
	return t.balances[f]
}

// Balances returns a copy of every balance keyed by faction name.
func (t *Treasury) Balances() map[string]uint64 {
	out := make(map[string]uint64, len(t.balances))
	for f, b := range t.balances {
		out[f.String()] = b
	}
	return out
}
