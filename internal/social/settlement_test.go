package social

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/patria-grande/internal/world"
)

type fixedRadii map[Tier]float64

func (f fixedRadii) Radius(t Tier) (float64, error) {
	r, ok := f[t]
	if !ok {
		return 0, errors.New("no radius")
	}
	return r, nil
}

func TestRegistryDerivesRadiusFromTier(t *testing.T) {
	reg := NewRegistry(fixedRadii{TierVillage: 50, TierMediumCity: 60, TierCapital: 75})

	v, err := reg.Add("Villa", TierVillage, world.Pt(0, 0))
	require.NoError(t, err)
	c, err := reg.Add("Capital", TierCapital, world.Pt(10, 10))
	require.NoError(t, err)

	assert.Equal(t, SettlementID(1), v.ID)
	assert.Equal(t, SettlementID(2), c.ID)
	assert.Equal(t, 50.0, v.Radius)
	assert.Equal(t, 75.0, c.Radius)
	assert.Equal(t, TierCapital, c.Tier())
}

func TestRegistryInsertExplicitIDs(t *testing.T) {
	reg := NewRegistry(fixedRadii{TierVillage: 50})

	_, err := reg.Insert(10, "A", TierVillage, world.Pt(0, 0))
	require.NoError(t, err)
	_, err = reg.Insert(10, "B", TierVillage, world.Pt(0, 0))
	assert.Error(t, err)

	next, err := reg.Add("C", TierVillage, world.Pt(0, 0))
	require.NoError(t, err)
	assert.Equal(t, SettlementID(11), next.ID)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Name)
	assert.Equal(t, "C", all[1].Name)
	assert.Nil(t, reg.Get(99))
}

func TestRegistryRejectsTierWithoutRadius(t *testing.T) {
	reg := NewRegistry(fixedRadii{TierVillage: 50})
	_, err := reg.Add("Capital", TierCapital, world.Pt(0, 0))
	assert.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestSettlementInRangeInclusive(t *testing.T) {
	reg := NewRegistry(fixedRadii{TierVillage: 50})
	s, err := reg.Add("Villa", TierVillage, world.Pt(0, 0))
	require.NoError(t, err)

	assert.True(t, s.InRange(world.Pt(50, 0)))
	assert.False(t, s.InRange(world.Pt(50.0001, 0)))
}

func TestParseTierAndFaction(t *testing.T) {
	for _, tier := range Tiers {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}
	_, err := ParseTier("metropolis")
	assert.Error(t, err)
	assert.False(t, Tier(9).Valid())
	assert.Equal(t, "tier(9)", Tier(9).String())

	f, err := ParseFaction(" Royalist ")
	require.NoError(t, err)
	assert.Equal(t, FactionRoyalist, f)
	_, err = ParseFaction("pirate")
	assert.Error(t, err)
}

func TestTierAndFactionJSON(t *testing.T) {
	type row struct {
		Tier    Tier    `json:"tier"`
		Faction Faction `json:"faction"`
	}
	data, err := json.Marshal(row{Tier: TierMediumCity, Faction: FactionRoyalist})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"medium_city","faction":"royalist"}`, string(data))

	var back row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, TierMediumCity, back.Tier)
	assert.Equal(t, FactionRoyalist, back.Faction)

	assert.Error(t, json.Unmarshal([]byte(`{"tier":"hamlet"}`), &back))
}

func TestTierForSize(t *testing.T) {
	assert.Equal(t, TierCapital, TierForSize(world.SizeCity))
	assert.Equal(t, TierMediumCity, TierForSize(world.SizeTown))
	assert.Equal(t, TierVillage, TierForSize(world.SizeVillage))
}
