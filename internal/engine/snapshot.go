package engine

import (
	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

// SettlementView is the read-only settlement data exposed to the UI.
type SettlementView struct {
	ID       social.SettlementID         `json:"id"`
	Name     string                      `json:"name"`
	Tier     social.Tier                 `json:"tier"`
	Position world.Point                 `json:"position"`
	Radius   float64                     `json:"radius"`
	Units    []recruitment.ArchetypeSpec `json:"units"`
}

// Snapshot is an immutable copy of everything the UI may read, published at
// the end of every tick.
type Snapshot struct {
	Tick        uint64                                               `json:"tick"`
	SimTime     string                                               `json:"sim_time"`
	Settlements []SettlementView                                     `json:"settlements"`
	Divisions   []military.Division                                  `json:"divisions"`
	Links       []recruitment.Link                                   `json:"links"`
	Panels      map[military.DivisionID]recruitment.DetailPanelModel `json:"-"`
	Selected    military.DivisionID                                  `json:"selected,omitempty"`
	Affordance  *recruitment.Affordance                              `json:"affordance,omitempty"`
	Treasury    map[string]uint64                                    `json:"treasury"`
	Recent      []recruitment.Event                                  `json:"-"`
}

// Panel returns the detail panel model for a division.
func (s *Snapshot) Panel(id military.DivisionID) (recruitment.DetailPanelModel, bool) {
	p, ok := s.Panels[id]
	return p, ok
}

// AffordanceFor returns the affordance for a division; only the selected
// division can have one.
func (s *Snapshot) AffordanceFor(id military.DivisionID) (recruitment.Affordance, bool) {
	if s.Affordance == nil || id == 0 || id != s.Selected {
		return recruitment.Affordance{}, false
	}
	return *s.Affordance, true
}

// Snapshot returns the most recently published snapshot. Safe from any goroutine.
func (s *Simulation) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Simulation) publish() {
	snap := &Snapshot{
		Tick:    s.LastTick,
		SimTime: SimTime(s.LastTick),
		Panels:  make(map[military.DivisionID]recruitment.DetailPanelModel, s.Divisions.Len()),
		Links:   s.Detector.Active(),
	}

	for _, st := range s.Settlements.All() {
		units, _ := s.Catalog.SpecsFor(st.Tier())
		snap.Settlements = append(snap.Settlements, SettlementView{
			ID:       st.ID,
			Name:     st.Name,
			Tier:     st.Tier(),
			Position: st.Position,
			Radius:   st.Radius,
			Units:    units,
		})
	}

	for _, d := range s.Divisions.All() {
		snap.Divisions = append(snap.Divisions, d.Snapshot())
		if panel, err := s.Controller.DetailPanel(d.ID); err == nil {
			snap.Panels[d.ID] = panel
		}
	}

	if id, ok := s.Controller.Selected(); ok {
		snap.Selected = id
		if aff, ok := s.Controller.Affordance(id); ok {
			snap.Affordance = &aff
		}
	}

	if s.Treasury != nil {
		snap.Treasury = s.Treasury.Balances()
	}
	snap.Recent = append([]recruitment.Event(nil), s.Events...)

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}
