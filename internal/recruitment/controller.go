package recruitment

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/social"
)

// State is the recruitment state of one (settlement, division) pair.
type State uint8

const (
	StateOutOfRange State = iota
	StateInRange
	StateRecruiting // Held only while Recruit commits; never observable between ticks
)

func (s State) String() string {
	switch s {
	case StateOutOfRange:
		return "out_of_range"
	case StateInRange:
		return "in_range"
	case StateRecruiting:
		return "recruiting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Economy is consulted before a recruitment commits. RequestDeduct returns
// false, and deducts nothing, when the faction cannot pay.
type Economy interface {
	RequestDeduct(faction social.Faction, cost uint64) bool
}

// Affordance is the "Recruit at <settlement>" action offered to the selected
// division.
type Affordance struct {
	SettlementID   social.SettlementID `json:"settlement_id"`
	SettlementName string              `json:"settlement_name"`
	Tier           social.Tier         `json:"tier"`
	Label          string              `json:"label"`
	Archetypes     []ArchetypeSpec     `json:"archetypes"`
}

// DetailPanelModel is what the division detail panel displays.
type DetailPanelModel struct {
	DivisionID  military.DivisionID `json:"division_id"`
	Name        string              `json:"name"`
	Faction     social.Faction      `json:"faction"`
	Troops      uint32              `json:"troops"`
	TroopsLabel string              `json:"troops_label"`
	Morale      float64             `json:"morale"`
	Experience  float64             `json:"experience"`
	Selected    bool                `json:"selected"`
	CanRecruit  bool                `json:"can_recruit"`
}

// Controller tracks per-pair recruitment state, the selected division, and
// the affordance shown for it. All methods run on the simulation thread.
type Controller struct {
	catalog     *Catalog
	settlements *social.Registry
	divisions   *military.Registry
	economy     Economy
	logger      *slog.Logger
	listeners   []Listener

	links    map[PairKey]Link
	states   map[PairKey]State
	selected military.DivisionID // 0 = nothing selected
	shown    *Affordance
	tick     uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithListener subscribes l at construction.
func WithListener(l Listener) ControllerOption {
	return func(c *Controller) {
		c.listeners = append(c.listeners, l)
	}
}

// NewController wires a controller to the registries it reads. A nil economy
// makes every recruitment free.
func NewController(catalog *Catalog, settlements *social.Registry, divisions *military.Registry, economy Economy, opts ...ControllerOption) *Controller {
	c := &Controller{
		catalog:     catalog,
		settlements: settlements,
		divisions:   divisions,
		economy:     economy,
		logger:      slog.Default(),
		links:       make(map[PairKey]Link),
		states:      make(map[PairKey]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a listener. Listeners are called in subscription order.
func (c *Controller) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}

func (c *Controller) emit(e Event) {
	e.Tick = c.tick
	for _, l := range c.listeners {
		l.OnRecruitmentEvent(e)
	}
}

// Catalog returns the catalog the controller validates against.
func (c *Controller) Catalog() *Catalog {
	return c.catalog
}

// State returns the state of a pair.
func (c *Controller) State(settlementID social.SettlementID, divisionID military.DivisionID) State {
	if s, ok := c.states[PairKey{SettlementID: settlementID, DivisionID: divisionID}]; ok {
		return s
	}
	return StateOutOfRange
}

// SetTick stamps subsequent events with tick. The simulation calls it before
// running queued commands so recruit events carry the tick they happened in.
func (c *Controller) SetTick(tick uint64) {
	c.tick = tick
}

// Apply feeds one detector scan into the pair state machine.
func (c *Controller) Apply(scan Scan) {
	c.tick = scan.Tick

	for _, l := range scan.Exited {
		k := l.Key()
		delete(c.links, k)
		delete(c.states, k)
		c.emit(Event{Kind: EventLinkExited, DivisionID: l.DivisionID, SettlementID: l.SettlementID})
	}
	for _, l := range scan.Entered {
		c.states[l.Key()] = StateInRange
		c.emit(Event{Kind: EventLinkEntered, DivisionID: l.DivisionID, SettlementID: l.SettlementID})
	}
	// Distances change every tick even for links that persist.
	for _, l := range scan.Active {
		c.links[l.Key()] = l
		if _, ok := c.states[l.Key()]; !ok {
			c.states[l.Key()] = StateInRange
		}
	}

	c.refreshAffordance()
}

// Select makes id the selected division. Any affordance shown for the
// previous selection is hidden first.
func (c *Controller) Select(id military.DivisionID) error {
	if c.divisions.Get(id) == nil {
		return &UnknownDivisionError{ID: id}
	}
	if id == c.selected {
		return nil
	}
	c.hideAffordance()
	c.selected = id
	c.emit(Event{Kind: EventSelectionChanged, DivisionID: id})
	c.refreshAffordance()
	return nil
}

// ClearSelection deselects the current division.
func (c *Controller) ClearSelection() {
	if c.selected == 0 {
		return
	}
	c.hideAffordance()
	c.selected = 0
	c.emit(Event{Kind: EventSelectionChanged})
}

// Selected returns the selected division, if any.
func (c *Controller) Selected() (military.DivisionID, bool) {
	return c.selected, c.selected != 0
}

func (c *Controller) hideAffordance() {
	if c.shown == nil {
		return
	}
	c.shown = nil
	c.emit(Event{Kind: EventAffordanceHidden, DivisionID: c.selected})
}

// refreshAffordance recomputes the affordance for the selected division and
// emits shown/hidden events when it changes.
func (c *Controller) refreshAffordance() {
	if c.selected == 0 {
		return
	}
	next, ok := c.affordanceFor(c.selected)
	switch {
	case !ok:
		c.hideAffordance()
	case c.shown == nil || c.shown.SettlementID != next.SettlementID:
		c.shown = &next
		c.emit(Event{Kind: EventAffordanceShown, DivisionID: c.selected, SettlementID: next.SettlementID, Affordance: &next})
	}
}

// affordanceFor picks the nearest linked settlement, lowest ID on ties.
func (c *Controller) affordanceFor(id military.DivisionID) (Affordance, bool) {
	links := c.LinksFor(id)
	if len(links) == 0 {
		return Affordance{}, false
	}
	best := links[0]
	for _, l := range links[1:] {
		if l.Distance < best.Distance {
			best = l
		}
	}

	s := c.settlements.Get(best.SettlementID)
	if s == nil {
		return Affordance{}, false
	}
	specs, err := c.catalog.SpecsFor(s.Tier())
	if err != nil {
		c.logger.Warn("settlement tier missing from catalog", "settlement", s.Name, "error", err)
		return Affordance{}, false
	}
	return Affordance{
		SettlementID:   s.ID,
		SettlementName: s.Name,
		Tier:           s.Tier(),
		Label:          "Recruit at " + s.Name,
		Archetypes:     specs,
	}, true
}

// LinksFor returns the active links of a division sorted by settlement ID.
func (c *Controller) LinksFor(id military.DivisionID) []Link {
	var out []Link
	for k, l := range c.links {
		if k.DivisionID == id {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettlementID < out[j].SettlementID })
	return out
}

// Affordance returns the recruitment affordance for a division. Only the
// selected division ever has one.
func (c *Controller) Affordance(id military.DivisionID) (Affordance, bool) {
	if id == 0 || id != c.selected || c.shown == nil {
		return Affordance{}, false
	}
	a := *c.shown
	a.Archetypes = append([]ArchetypeSpec(nil), c.shown.Archetypes...)
	return a, true
}

// DetailPanel returns the detail panel model for a division.
func (c *Controller) DetailPanel(id military.DivisionID) (DetailPanelModel, error) {
	d := c.divisions.Get(id)
	if d == nil {
		return DetailPanelModel{}, &UnknownDivisionError{ID: id}
	}
	_, canRecruit := c.Affordance(id)
	return DetailPanelModel{
		DivisionID:  d.ID,
		Name:        d.Name,
		Faction:     d.Faction,
		Troops:      d.Troops,
		TroopsLabel: economy.Comma(uint64(d.Troops)),
		Morale:      d.Morale,
		Experience:  d.Experience,
		Selected:    id == c.selected,
		CanRecruit:  canRecruit,
	}, nil
}

// Recruit raises archetype at a settlement for a division. On any failure the
// division, the pair state, and the treasury are left untouched.
func (c *Controller) Recruit(divisionID military.DivisionID, settlementID social.SettlementID, archetype Archetype) (military.Division, error) {
	d, spec, err := c.checkRecruit(divisionID, settlementID, archetype)
	if err != nil {
		c.logger.Warn("recruitment rejected",
			"division", divisionID,
			"settlement", settlementID,
			"archetype", archetype,
			"error", err,
		)
		c.emit(Event{
			Kind:         EventRecruitRejected,
			DivisionID:   divisionID,
			SettlementID: settlementID,
			Archetype:    archetype,
			Err:          err,
		})
		return military.Division{}, err
	}

	key := PairKey{SettlementID: settlementID, DivisionID: divisionID}
	c.states[key] = StateRecruiting
	d.Reinforce(spec.Reinforcement)
	c.states[key] = StateInRange

	c.logger.Info("unit recruited",
		"division", d.Name,
		"settlement", settlementID,
		"archetype", archetype,
		"added", spec.Reinforcement,
		"troops", economy.Comma(uint64(d.Troops)),
	)
	c.emit(Event{
		Kind:         EventUnitRecruited,
		DivisionID:   divisionID,
		SettlementID: settlementID,
		Archetype:    archetype,
		Troops:       d.Troops,
	})
	return d.Snapshot(), nil
}

// checkRecruit runs every precondition in order. The economy is consulted
// last so nothing is deducted for a recruitment that would fail anyway.
func (c *Controller) checkRecruit(divisionID military.DivisionID, settlementID social.SettlementID, archetype Archetype) (*military.Division, ArchetypeSpec, error) {
	d := c.divisions.Get(divisionID)
	if d == nil {
		return nil, ArchetypeSpec{}, &UnknownDivisionError{ID: divisionID}
	}
	s := c.settlements.Get(settlementID)
	if s == nil {
		return nil, ArchetypeSpec{}, &UnknownSettlementError{ID: settlementID}
	}
	if c.State(settlementID, divisionID) != StateInRange {
		return nil, ArchetypeSpec{}, &OutOfRangeError{DivisionID: divisionID, SettlementID: settlementID, SettlementName: s.Name}
	}
	if _, err := c.catalog.UnitsFor(s.Tier()); err != nil {
		return nil, ArchetypeSpec{}, err
	}
	if !c.catalog.Offers(s.Tier(), archetype) {
		return nil, ArchetypeSpec{}, &InvalidArchetypeError{Archetype: archetype, Tier: s.Tier(), SettlementName: s.Name}
	}
	spec, _ := c.catalog.Spec(archetype)
	if d.Troops > math.MaxUint32-spec.Reinforcement {
		return nil, ArchetypeSpec{}, &TroopOverflowError{DivisionID: divisionID, Troops: d.Troops, Reinforcement: spec.Reinforcement}
	}
	if c.economy != nil && !c.economy.RequestDeduct(d.Faction, spec.Cost) {
		return nil, ArchetypeSpec{}, &InsufficientResourcesError{Faction: d.Faction, Cost: spec.Cost}
	}
	return d, spec, nil
}

// UserMessage returns the message the UI shows for a recruitment error.
func UserMessage(err error) string {
	var (
		outOfRange *OutOfRangeError
		invalid    *InvalidArchetypeError
		poor       *InsufficientResourcesError
		tier       *UnknownTierError
		overflow   *TroopOverflowError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &outOfRange):
		return "Move the division closer to " + outOfRange.SettlementName + " to recruit."
	case errors.As(err, &invalid):
		return fmt.Sprintf("%s does not train %s.", invalid.SettlementName, invalid.Archetype)
	case errors.As(err, &poor):
		return fmt.Sprintf("Not enough funds: %s crowns required.", economy.Comma(poor.Cost))
	case errors.As(err, &overflow):
		return "The division cannot absorb any more troops."
	case errors.As(err, &tier):
		return "This settlement cannot recruit."
	default:
		return err.Error()
	}
}
