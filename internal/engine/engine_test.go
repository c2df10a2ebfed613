package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

func newTestSimulation(t *testing.T, opts ...Option) *Simulation {
	t.Helper()
	sim := NewSimulation(recruitment.MustCatalog(recruitment.DefaultRules()), economy.NewTreasury(1000), opts...)
	require.NoError(t, sim.Seed(SeedConfig{TestTowns: true, TestDivisions: true}))
	return sim
}

func TestStepCallbacks(t *testing.T) {
	e := NewEngine(time.Millisecond)
	var ticks, hours, days int
	e.OnTick = func(uint64) { ticks++ }
	e.OnHour = func(uint64) { hours++ }
	e.OnDay = func(uint64) { days++ }

	for i := 0; i < TicksPerSimDay; i++ {
		e.Step()
	}
	assert.Equal(t, TicksPerSimDay, ticks)
	assert.Equal(t, 24, hours)
	assert.Equal(t, 1, days)
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 1, 0:00", SimTime(0))
	assert.Equal(t, "Day 1, 1:05", SimTime(65))
	assert.Equal(t, "Day 2, 0:00", SimTime(TicksPerSimDay))
}

func TestSeedPopulatesRegistries(t *testing.T) {
	sim := newTestSimulation(t)
	assert.Equal(t, 3, sim.Settlements.Len())
	assert.Equal(t, 2, sim.Divisions.Len())

	snap := sim.Snapshot()
	require.Len(t, snap.Settlements, 3)
	assert.Equal(t, "Villa Independencia", snap.Settlements[0].Name)
	assert.Len(t, snap.Settlements[0].Units, 1)
	assert.Len(t, snap.Settlements[2].Units, 3)
}

func TestSeedExtraSettlements(t *testing.T) {
	sim := NewSimulation(recruitment.MustCatalog(recruitment.DefaultRules()), nil)
	cfg := world.DefaultPlacementConfig(42)
	require.NoError(t, sim.Seed(SeedConfig{TestTowns: true, ExtraSettlements: true, Placement: cfg}))
	assert.Equal(t, 3+cfg.Cities+cfg.Towns+cfg.Villages, sim.Settlements.Len())
}

func TestScenarioThroughTicks(t *testing.T) {
	sim := newTestSimulation(t, WithGridIndex(recruitment.DefaultRadius))
	require.NoError(t, sim.OnDivisionSelected(1))
	sim.TickMinute(1)

	snap := sim.Snapshot()
	assert.Equal(t, military.DivisionID(1), snap.Selected)
	assert.Nil(t, snap.Affordance)
	assert.Empty(t, snap.Links)

	require.NoError(t, sim.OnDivisionMoved(1, world.Pt(-120, -280)))
	sim.TickMinute(2)

	snap = sim.Snapshot()
	require.Len(t, snap.Links, 1)
	aff, ok := snap.AffordanceFor(1)
	require.True(t, ok)
	assert.Equal(t, "Recruit at Villa Independencia", aff.Label)
	_, ok = snap.AffordanceFor(2)
	assert.False(t, ok)

	d, err := sim.Recruit(1, 1, recruitment.Infantry)
	require.NoError(t, err)
	assert.Equal(t, uint32(750), d.Troops)

	_, err = sim.Recruit(1, 1, recruitment.Cavalry)
	assert.ErrorAs(t, err, new(*recruitment.InvalidArchetypeError))

	sim.TickMinute(3)
	panel, ok := sim.Snapshot().Panel(1)
	require.True(t, ok)
	assert.Equal(t, uint32(750), panel.Troops)
	assert.Equal(t, uint64(950), sim.Snapshot().Treasury["patriot"])
}

func TestMarchIntoRange(t *testing.T) {
	sim := newTestSimulation(t)
	require.NoError(t, sim.OnDivisionSelected(1))
	require.NoError(t, sim.OnDivisionOrdered(1, world.Pt(-100, -300)))

	var entered uint64
	for tick := uint64(1); tick <= 20 && entered == 0; tick++ {
		sim.TickMinute(tick)
		for _, e := range sim.Events {
			if e.Kind == recruitment.EventLinkEntered {
				entered = e.Tick
			}
		}
	}
	require.NotZero(t, entered)

	// Start is ~70.7 from the village; at 5 per tick it crosses 50 on tick 5.
	assert.Equal(t, uint64(5), entered)
	assert.NotNil(t, sim.Snapshot().Affordance)
}

func TestUnknownDivisionInputs(t *testing.T) {
	sim := newTestSimulation(t)
	var unknown *recruitment.UnknownDivisionError
	assert.ErrorAs(t, sim.OnDivisionMoved(9, world.Pt(0, 0)), &unknown)
	assert.ErrorAs(t, sim.OnDivisionOrdered(9, world.Pt(0, 0)), &unknown)
	assert.ErrorAs(t, sim.OnDivisionSelected(9), &unknown)
	assert.NoError(t, sim.OnDivisionSelected(0))
}

func TestSubmitRunsOnSimulationThread(t *testing.T) {
	sim := newTestSimulation(t)
	eng := NewEngine(time.Millisecond)
	eng.OnTick = sim.TickMinute

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()

	err := sim.Submit(reqCtx, func(s *Simulation) error {
		return s.OnDivisionMoved(1, world.Pt(-100, -300))
	})
	require.NoError(t, err)

	var recruited military.Division
	err = sim.Submit(reqCtx, func(s *Simulation) error {
		d, err := s.Recruit(1, 1, recruitment.Infantry)
		recruited = d
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(750), recruited.Troops)

	err = sim.Submit(reqCtx, func(s *Simulation) error {
		_, err := s.Recruit(1, 2, recruitment.Infantry)
		return err
	})
	assert.True(t, errors.As(err, new(*recruitment.OutOfRangeError)))
}

func TestSubmitTimesOutWithoutEngine(t *testing.T) {
	sim := newTestSimulation(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := sim.Submit(ctx, func(*Simulation) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func recruitInfantry(s *Simulation) error {
	_, err := s.Recruit(1, 1, recruitment.Infantry)
	return err
}

func TestSubmitCancelledNeverRuns(t *testing.T) {
	sim := newTestSimulation(t)
	require.NoError(t, sim.OnDivisionMoved(1, world.Pt(-100, -300)))
	sim.TickMinute(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.Submit(ctx, recruitInfantry), context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Submit(ctx, recruitInfantry) }()
	require.Eventually(t, func() bool { return len(sim.commands) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	sim.TickMinute(2)
	assert.Equal(t, uint32(650), sim.Divisions.Get(1).Troops)
	assert.Equal(t, uint64(1000), sim.Treasury.Balance(social.FactionPatriot))
	assert.Empty(t, sim.commands)
}

func TestSubmitTimeoutNeverRuns(t *testing.T) {
	sim := newTestSimulation(t)
	require.NoError(t, sim.OnDivisionMoved(1, world.Pt(-100, -300)))
	sim.TickMinute(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sim.Submit(ctx, recruitInfantry), context.DeadlineExceeded)

	sim.TickMinute(2)
	assert.Equal(t, uint32(650), sim.Divisions.Get(1).Troops)
	assert.Equal(t, uint64(1000), sim.Treasury.Balance(social.FactionPatriot))
}

func TestRecruitEventCarriesCurrentTick(t *testing.T) {
	sim := newTestSimulation(t)
	require.NoError(t, sim.OnDivisionMoved(1, world.Pt(-100, -300)))
	sim.TickMinute(1)

	done := make(chan error, 1)
	go func() { done <- sim.Submit(context.Background(), recruitInfantry) }()
	require.Eventually(t, func() bool { return len(sim.commands) == 1 }, time.Second, time.Millisecond)
	sim.TickMinute(7)
	require.NoError(t, <-done)

	var recruited []recruitment.Event
	for _, e := range sim.Events {
		if e.Kind == recruitment.EventUnitRecruited {
			recruited = append(recruited, e)
		}
	}
	require.Len(t, recruited, 1)
	assert.Equal(t, uint64(7), recruited[0].Tick)
}

func TestRecentEventsBounded(t *testing.T) {
	sim := newTestSimulation(t)
	for i := 0; i < maxRecentEvents+10; i++ {
		sim.recordEvent(recruitment.Event{Kind: recruitment.EventSelectionChanged, Tick: uint64(i)})
	}
	require.Len(t, sim.Events, maxRecentEvents)
	assert.Equal(t, uint64(10), sim.Events[0].Tick)
}
