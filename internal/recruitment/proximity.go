// Package recruitment implements contextual recruitment: which divisions are
// within range of which settlements, what each settlement tier offers, and
// the controller that turns proximity into recruitment affordances.
package recruitment

import (
	"sort"

	"github.com/talgya/patria-grande/internal/military"
	"github.com/talgya/patria-grande/internal/social"
	"github.com/talgya/patria-grande/internal/world"
)

// PairKey identifies one (settlement, division) pair.
type PairKey struct {
	SettlementID social.SettlementID
	DivisionID   military.DivisionID
}

// Link is an active proximity link: the division is within the settlement's
// recruitment radius.
type Link struct {
	SettlementID social.SettlementID `json:"settlement_id"`
	DivisionID   military.DivisionID `json:"division_id"`
	Distance     float64             `json:"distance"`
}

// Key returns the link's pair key.
func (l Link) Key() PairKey {
	return PairKey{SettlementID: l.SettlementID, DivisionID: l.DivisionID}
}

// Scan is the result of one detector pass: every active link plus the delta
// against the previous pass. All slices are sorted by settlement then division.
type Scan struct {
	Tick    uint64
	Active  []Link
	Entered []Link
	Exited  []Link
}

// Detector computes proximity links once per tick.
type Detector struct {
	prev     map[PairKey]Link
	gridCell float64
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithGrid makes the detector bucket divisions into a uniform grid before
// querying. Results are identical to the full scan.
func WithGrid(cellSize float64) DetectorOption {
	return func(d *Detector) {
		d.gridCell = cellSize
	}
}

// NewDetector creates a detector with no previous links.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{prev: make(map[PairKey]Link)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Scan computes the active links for the current positions and the delta
// since the previous call.
func (d *Detector) Scan(tick uint64, settlements []*social.Settlement, divisions []*military.Division) Scan {
	var active []Link
	if d.gridCell > 0 {
		active = d.scanGrid(settlements, divisions)
	} else {
		active = scanAll(settlements, divisions)
	}
	sortLinks(active)

	cur := make(map[PairKey]Link, len(active))
	out := Scan{Tick: tick, Active: active}
	for _, l := range active {
		k := l.Key()
		cur[k] = l
		if _, was := d.prev[k]; !was {
			out.Entered = append(out.Entered, l)
		}
	}
	for k, l := range d.prev {
		if _, still := cur[k]; !still {
			out.Exited = append(out.Exited, l)
		}
	}
	sortLinks(out.Exited)

	d.prev = cur
	return out
}

// Active returns the links found by the most recent scan.
func (d *Detector) Active() []Link {
	out := make([]Link, 0, len(d.prev))
	for _, l := range d.prev {
		out = append(out, l)
	}
	sortLinks(out)
	return out
}

// Reset forgets the previous scan so the next one reports every link as entered.
func (d *Detector) Reset() {
	d.prev = make(map[PairKey]Link)
}

func scanAll(settlements []*social.Settlement, divisions []*military.Division) []Link {
	var out []Link
	for _, s := range settlements {
		for _, div := range divisions {
			dist := world.Distance(s.Position, div.Position)
			if dist <= s.Radius {
				out = append(out, Link{SettlementID: s.ID, DivisionID: div.ID, Distance: dist})
			}
		}
	}
	return out
}

func (d *Detector) scanGrid(settlements []*social.Settlement, divisions []*military.Division) []Link {
	grid := world.NewGrid(d.gridCell)
	byID := make(map[military.DivisionID]*military.Division, len(divisions))
	for _, div := range divisions {
		grid.Insert(div.ID, div.Position)
		byID[div.ID] = div
	}

	var out []Link
	for _, s := range settlements {
		for _, id := range grid.Candidates(s.Position, s.Radius) {
			div := byID[id]
			dist := world.Distance(s.Position, div.Position)
			if dist <= s.Radius {
				out = append(out, Link{SettlementID: s.ID, DivisionID: div.ID, Distance: dist})
			}
		}
	}
	return out
}

func sortLinks(links []Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].SettlementID != links[j].SettlementID {
			return links[i].SettlementID < links[j].SettlementID
		}
		return links[i].DivisionID < links[j].DivisionID
	})
}
