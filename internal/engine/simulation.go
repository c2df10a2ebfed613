// Simulation ties the registries, the proximity detector, and the recruitment
// controller together and runs them each tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

const (
	maxRecentEvents = 200
	commandBuffer   = 64
)

// ErrQueueFull is returned by Submit when the command queue is saturated.
var ErrQueueFull = errors.New("simulation command queue full")

// Command is work queued by another goroutine for the simulation thread.
type Command func(s *Simulation) error

// Command lifecycle. A command is claimed exactly once: by the simulation
// thread to run it, or by Submit to abandon it.
const (
	cmdPending int32 = iota
	cmdRunning
	cmdAbandoned
)

type queued struct {
	ctx   context.Context
	cmd   Command
	reply chan error
	state atomic.Int32
}

// Simulation holds the complete campaign state. Everything except Submit and
// Snapshot must be called on the simulation thread.
type Simulation struct {
	Settlements *social.Registry
	Divisions   *military.Registry
	Catalog     *recruitment.Catalog
	Treasury    *economy.Treasury
	Detector    *recruitment.Detector
	Controller  *recruitment.Controller

	LastTick uint64
	Events   []recruitment.Event // Recent events, oldest first

	commands chan *queued

	mu       sync.RWMutex
	snapshot *Snapshot
}

// Option configures a Simulation.
type Option func(*options)

type options struct {
	gridCell  float64
	logger    *slog.Logger
	listeners []recruitment.Listener
}

// WithGridIndex enables the detector's grid index.
func WithGridIndex(cellSize float64) Option {
	return func(o *options) { o.gridCell = cellSize }
}

// WithLogger sets the logger handed to the controller.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithListener subscribes an additional recruitment event listener.
func WithListener(l recruitment.Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// NewSimulation creates an empty simulation around a catalog and treasury.
func NewSimulation(catalog *recruitment.Catalog, treasury *economy.Treasury, opts ...Option) *Simulation {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var detOpts []recruitment.DetectorOption
	if o.gridCell > 0 {
		detOpts = append(detOpts, recruitment.WithGrid(o.gridCell))
	}

	s := &Simulation{
		Settlements: social.NewRegistry(catalog),
		Divisions:   military.NewRegistry(),
		Catalog:     catalog,
		Treasury:    treasury,
		Detector:    recruitment.NewDetector(detOpts...),
		commands:    make(chan *queued, commandBuffer),
	}
	ctrlOpts := []recruitment.ControllerOption{
		recruitment.WithLogger(o.logger),
		recruitment.WithListener(recruitment.ListenerFunc(s.recordEvent)),
	}
	for _, l := range o.listeners {
		ctrlOpts = append(ctrlOpts, recruitment.WithListener(l))
	}
	var econ recruitment.Economy
	if treasury != nil {
		econ = treasury
	}
	s.Controller = recruitment.NewController(catalog, s.Settlements, s.Divisions, econ, ctrlOpts...)
	s.publish()
	return s
}

// SeedConfig controls initial campaign population.
type SeedConfig struct {
	TestTowns        bool
	TestDivisions    bool
	ExtraSettlements bool
	Placement        world.PlacementConfig
}

// Seed populates the registries with the test towns, procedural towns, and
// test divisions as configured.
func (s *Simulation) Seed(cfg SeedConfig) error {
	var avoid []world.Point
	if cfg.TestTowns {
		for _, seed := range social.SeedSettlements() {
			if _, err := s.Settlements.Add(seed.Name, seed.Tier, seed.Position); err != nil {
				return fmt.Errorf("seed settlement: %w", err)
			}
			avoid = append(avoid, seed.Position)
		}
	}
	if cfg.ExtraSettlements {
		pc := cfg.Placement
		pc.Avoid = append(pc.Avoid, avoid...)
		for _, seed := range world.PlaceSettlements(pc) {
			if _, err := s.Settlements.Add(seed.Name, social.TierForSize(seed.Size), seed.Position); err != nil {
				return fmt.Errorf("place settlement: %w", err)
			}
		}
	}
	if cfg.TestDivisions {
		for _, d := range military.SeedDivisions() {
			if _, err := s.Divisions.Add(d); err != nil {
				return fmt.Errorf("seed division: %w", err)
			}
		}
	}

	slog.Info("campaign seeded",
		"settlements", s.Settlements.Len(),
		"divisions", s.Divisions.Len(),
	)
	s.publish()
	return nil
}

// OnDivisionSelected informs the controller of a selection change.
func (s *Simulation) OnDivisionSelected(id military.DivisionID) error {
	if id == 0 {
		s.Controller.ClearSelection()
		return nil
	}
	return s.Controller.Select(id)
}

// OnDivisionMoved places a division at a new position. Proximity updates on
// the next detector scan.
func (s *Simulation) OnDivisionMoved(id military.DivisionID, pos world.Point) error {
	d := s.Divisions.Get(id)
	if d == nil {
		return &recruitment.UnknownDivisionError{ID: id}
	}
	d.Position = pos
	d.Destination = nil
	return nil
}

// OnDivisionOrdered sends a division marching toward dest.
func (s *Simulation) OnDivisionOrdered(id military.DivisionID, dest world.Point) error {
	d := s.Divisions.Get(id)
	if d == nil {
		return &recruitment.UnknownDivisionError{ID: id}
	}
	d.Destination = &dest
	return nil
}

// Recruit forwards to the controller.
func (s *Simulation) Recruit(divisionID military.DivisionID, settlementID social.SettlementID, archetype recruitment.Archetype) (military.Division, error) {
	return s.Controller.Recruit(divisionID, settlementID, archetype)
}

// Submit queues cmd for the simulation thread and waits for its result.
// If ctx ends before the command starts, the command never runs and ctx's
// error is returned. Once started, Submit waits for it to finish.
func (s *Simulation) Submit(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q := &queued{ctx: ctx, cmd: cmd, reply: make(chan error, 1)}
	select {
	case s.commands <- q:
	default:
		return ErrQueueFull
	}
	select {
	case err := <-q.reply:
		return err
	case <-ctx.Done():
		if q.state.CompareAndSwap(cmdPending, cmdAbandoned) {
			return ctx.Err()
		}
		return <-q.reply
	}
}

func (s *Simulation) drainCommands() {
	for {
		select {
		case q := <-s.commands:
			if q.ctx.Err() != nil || !q.state.CompareAndSwap(cmdPending, cmdRunning) {
				slog.Debug("dropping abandoned command", "tick", s.LastTick)
				continue
			}
			q.reply <- q.cmd(s)
		default:
			return
		}
	}
}

// TickMinute runs every tick: queued commands, marching, proximity, recruitment state.
func (s *Simulation) TickMinute(tick uint64) {
	s.LastTick = tick
	s.Controller.SetTick(tick)
	s.drainCommands()

	for _, d := range s.Divisions.All() {
		d.March()
	}

	scan := s.Detector.Scan(tick, s.Settlements.All(), s.Divisions.All())
	s.Controller.Apply(scan)
	s.publish()
}

// TickHour runs every sim-hour: treasury income.
func (s *Simulation) TickHour(tick uint64) {
	if s.Treasury != nil {
		s.Treasury.CollectIncome(tick)
	}
}

// TickDay logs a daily summary.
func (s *Simulation) TickDay(tick uint64) {
	counts := make(map[recruitment.EventKind]int)
	for _, e := range s.Events {
		counts[e.Kind]++
	}

	var troops uint64
	for _, d := range s.Divisions.All() {
		troops += uint64(d.Troops)
	}

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"divisions", s.Divisions.Len(),
		"total_troops", troops,
		"active_links", len(s.Detector.Active()),
		"recruited", counts[recruitment.EventUnitRecruited],
		"rejected", counts[recruitment.EventRecruitRejected],
	)
}

func (s *Simulation) recordEvent(e recruitment.Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > maxRecentEvents {
		s.Events = s.Events[len(s.Events)-maxRecentEvents:]
	}
}
