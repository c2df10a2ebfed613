package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/talgya/patria-grande/internal/config"
	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/engine"
	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

const maxMarchTicks = 500

var (
	scenarioRules   string
	scenarioFunds   uint64
	scenarioVerbose bool
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Replay the recruitment walkthrough headless",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rules, err := config.LoadRules(scenarioRules)
		if err != nil {
			return err
		}
		catalog, err := recruitment.NewCatalog(rules)
		if err != nil {
			return fmt.Errorf("recruitment rules: %w", err)
		}
		return runScenario(cmd.OutOrStdout(), catalog, scenarioFunds, scenarioVerbose)
	},
}

func init() {
	scenarioCmd.Flags().StringVar(&scenarioRules, "rules", "", "YAML recruitment rules (defaults to the built-in table)")
	scenarioCmd.Flags().Uint64Var(&scenarioFunds, "funds", 1000, "starting treasury per faction")
	scenarioCmd.Flags().BoolVarP(&scenarioVerbose, "verbose", "v", false, "print every recruitment event")
	rootCmd.AddCommand(scenarioCmd)
}

// runScenario plays the Patriot division through the test towns: select it,
// try to recruit out of range, move next to the village, recruit infantry,
// try cavalry, then march on the capital and raise artillery there.
func runScenario(w io.Writer, catalog *recruitment.Catalog, funds uint64, verbose bool) error {
	treasury := economy.NewTreasury(funds)

	var opts []engine.Option
	if verbose {
		opts = append(opts, engine.WithListener(recruitment.ListenerFunc(func(e recruitment.Event) {
			fmt.Fprintf(w, "    · [%s] %s\n", engine.SimTime(e.Tick), e.Description())
		})))
	}
	sim := engine.NewSimulation(catalog, treasury, opts...)
	if err := sim.Seed(engine.SeedConfig{TestTowns: true, TestDivisions: true}); err != nil {
		return err
	}

	eng := engine.NewEngine(0)
	eng.OnTick = sim.TickMinute
	eng.OnHour = sim.TickHour

	division, village, capital, err := scenarioActors(sim)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "── Selecting division")
	if err := sim.OnDivisionSelected(division.ID); err != nil {
		return err
	}
	eng.Step()
	printPanel(w, sim, division.ID)

	fmt.Fprintf(w, "── Recruiting %s at %s from %s\n", recruitment.Infantry, village.Name, division.Position)
	attempt(w, sim, treasury, division, village, recruitment.Infantry)

	target := world.Pt(-120, -280)
	fmt.Fprintf(w, "── Moving division to %s (%.1f from %s)\n", target, world.Distance(target, village.Position), village.Name)
	if err := sim.OnDivisionMoved(division.ID, target); err != nil {
		return err
	}
	eng.Step()
	printAffordance(w, sim, division.ID)

	fmt.Fprintf(w, "── Recruiting at %s\n", village.Name)
	attempt(w, sim, treasury, division, village, recruitment.Infantry)
	attempt(w, sim, treasury, division, village, recruitment.Cavalry)

	fmt.Fprintf(w, "── Marching on %s\n", capital.Name)
	if err := sim.OnDivisionOrdered(division.ID, capital.Position); err != nil {
		return err
	}
	for i := 0; ; i++ {
		if i == maxMarchTicks {
			return errors.New("division never reached the capital")
		}
		eng.Step()
		if aff, ok := sim.Controller.Affordance(division.ID); ok && aff.SettlementID == capital.ID {
			fmt.Fprintf(w, "  arrived after %d ticks (%s)\n", i+1, engine.SimTime(eng.Tick))
			break
		}
	}
	printAffordance(w, sim, division.ID)
	attempt(w, sim, treasury, division, capital, recruitment.Artillery)

	fmt.Fprintln(w, "── Final state")
	eng.Step()
	printPanel(w, sim, division.ID)
	return nil
}

func scenarioActors(sim *engine.Simulation) (*military.Division, *social.Settlement, *social.Settlement, error) {
	var village, capital *social.Settlement
	for _, s := range sim.Settlements.All() {
		switch {
		case s.Tier() == social.TierVillage && village == nil:
			village = s
		case s.Tier() == social.TierCapital && capital == nil:
			capital = s
		}
	}
	var division *military.Division
	for _, d := range sim.Divisions.All() {
		if d.Faction == social.FactionPatriot {
			division = d
			break
		}
	}
	if village == nil || capital == nil || division == nil {
		return nil, nil, nil, errors.New("scenario needs a village, a capital, and a patriot division")
	}
	return division, village, capital, nil
}

func attempt(w io.Writer, sim *engine.Simulation, treasury *economy.Treasury, d *military.Division, s *social.Settlement, a recruitment.Archetype) {
	snap, err := sim.Recruit(d.ID, s.ID, a)
	if err != nil {
		fmt.Fprintf(w, "  ✗ %s: %s\n", a, recruitment.UserMessage(err))
		return
	}
	fmt.Fprintf(w, "  ✓ %s: %s now has %s troops (treasury %s)\n",
		a, snap.Name, economy.Comma(uint64(snap.Troops)), economy.Comma(treasury.Balance(snap.Faction)))
}

func printPanel(w io.Writer, sim *engine.Simulation, id military.DivisionID) {
	panel, ok := sim.Snapshot().Panel(id)
	if !ok {
		fmt.Fprintf(w, "  division %d not found\n", id)
		return
	}
	fmt.Fprintf(w, "  %s [%s] troops=%s morale=%.0f experience=%.0f can_recruit=%t\n",
		panel.Name, panel.Faction, panel.TroopsLabel, panel.Morale, panel.Experience, panel.CanRecruit)
}

func printAffordance(w io.Writer, sim *engine.Simulation, id military.DivisionID) {
	aff, ok := sim.Snapshot().AffordanceFor(id)
	if !ok {
		fmt.Fprintln(w, "  no recruitment available")
		return
	}
	fmt.Fprintf(w, "  %s:", aff.Label)
	for _, spec := range aff.Archetypes {
		fmt.Fprintf(w, " %s(+%d, %s)", spec.Name, spec.Reinforcement, economy.Comma(spec.Cost))
	}
	fmt.Fprintln(w)
}
