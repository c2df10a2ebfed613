// Settlement placement: scores a lattice of candidate sites with simplex noise
// and seeds towns of each size with minimum spacing.
package world

import (
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// SettlementSize categorizes settlement scale before it is mapped to a tier.
type SettlementSize uint8

const (
	SizeVillage SettlementSize = iota
	SizeTown
	SizeCity
)

// SettlementSeed holds the parameters for one procedurally placed settlement.
type SettlementSeed struct {
	Position Point
	Size     SettlementSize
	Score    float64 // Desirability score
	Name     string
}

// PlacementConfig controls procedural placement.
type PlacementConfig struct {
	Seed       int64
	HalfExtent float64 // Map spans [-HalfExtent, HalfExtent] on both axes
	Step       float64 // Lattice spacing between candidate sites
	NoiseScale float64

	Cities   int
	Towns    int
	Villages int

	MinCityDist    float64
	MinTownDist    float64
	MinVillageDist float64

	// Avoid keeps new settlements away from existing positions (the seeded
	// test towns, for example).
	Avoid []Point
}

// DefaultPlacementConfig returns a configuration sized for the 800×800 strategic map.
func DefaultPlacementConfig(seed int64) PlacementConfig {
	return PlacementConfig{
		Seed:           seed,
		HalfExtent:     350,
		Step:           25,
		NoiseScale:     0.006,
		Cities:         1,
		Towns:          3,
		Villages:       6,
		MinCityDist:    250,
		MinTownDist:    150,
		MinVillageDist: 100,
	}
}

// PlaceSettlements finds locations for new settlements. Output is sorted by
// size (cities first) then by desirability and is deterministic for a seed.
func PlaceSettlements(cfg PlacementConfig) []SettlementSeed {
	if cfg.Step <= 0 || cfg.HalfExtent <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed + 200))
	noise := opensimplex.NewNormalized(cfg.Seed)

	type scored struct {
		pos   Point
		score float64
	}
	var candidates []scored
	for x := -cfg.HalfExtent; x <= cfg.HalfExtent; x += cfg.Step {
		for y := -cfg.HalfExtent; y <= cfg.HalfExtent; y += cfg.Step {
			s := noise.Eval2(x*cfg.NoiseScale, y*cfg.NoiseScale)
			// Second octave breaks up large flat regions.
			s += 0.5 * noise.Eval2(x*cfg.NoiseScale*2+100, y*cfg.NoiseScale*2+100)
			candidates = append(candidates, scored{Pt(x, y), s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var seeds []SettlementSeed
	place := func(size SettlementSize, want int, minDist float64) {
		placed := 0
		for _, c := range candidates {
			if placed >= want {
				return
			}
			if tooClose(c.pos, seeds, cfg.Avoid, minDist) {
				continue
			}
			seeds = append(seeds, SettlementSeed{Position: c.pos, Size: size, Score: c.score})
			placed++
		}
	}
	place(SizeCity, cfg.Cities, cfg.MinCityDist)
	place(SizeTown, cfg.Towns, cfg.MinTownDist)
	place(SizeVillage, cfg.Villages, cfg.MinVillageDist)

	names := generateNames(rng, len(seeds))
	for i := range seeds {
		seeds[i].Name = names[i]
	}
	return seeds
}

func tooClose(p Point, existing []SettlementSeed, avoid []Point, minDist float64) bool {
	for _, s := range existing {
		if Distance(p, s.Position) < minDist {
			return true
		}
	}
	for _, a := range avoid {
		if Distance(p, a) < minDist {
			return true
		}
	}
	return false
}

// generateNames produces procedural settlement names by combining a saint or
// descriptor with a place word.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"San", "Santa", "Villa", "Puerto", "Real de", "Nueva", "Alto",
		"Bajo", "Campo", "Fuerte", "Valle", "Cerro", "Monte", "Río",
	}
	suffixes := []string{
		"Rosario", "Carmen", "Tucumán", "Esperanza", "Mercedes", "Dolores",
		"Paz", "Luján", "Concepción", "Trinidad", "Salta", "Victoria",
		"Libertad", "Soledad", "Fe", "Plata", "Oro", "Cruz",
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + " " + suffixes[rng.Intn(len(suffixes))]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
		if len(used) >= len(prefixes)*len(suffixes) {
			break
		}
	}
	return names
}
