package world

import "fmt"

// Cell addresses one square bucket of a Grid.
type Cell struct {
	CX int
	CY int
}

// Grid buckets IDs by position into square cells so that radius queries only
// visit nearby cells. It is rebuilt every tick; nothing is updated in place.
type Grid struct {
	CellSize float64
	cells    map[Cell][]uint64
	count    int
}

// NewGrid creates an empty grid. cellSize must be positive; a good choice is
// the largest query radius.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		CellSize: cellSize,
		cells:    make(map[Cell][]uint64),
	}
}

// CellOf returns the cell containing p.
func (g *Grid) CellOf(p Point) Cell {
	return Cell{CX: floorDiv(p.X, g.CellSize), CY: floorDiv(p.Y, g.CellSize)}
}

// Insert places id at position p.
func (g *Grid) Insert(id uint64, p Point) {
	c := g.CellOf(p)
	g.cells[c] = append(g.cells[c], id)
	g.count++
}

// Candidates returns every id whose cell intersects the square bounding the
// circle (center, radius). Callers still need an exact distance check.
func (g *Grid) Candidates(center Point, radius float64) []uint64 {
	lo := g.CellOf(Point{X: center.X - radius, Y: center.Y - radius})
	hi := g.CellOf(Point{X: center.X + radius, Y: center.Y + radius})

	var out []uint64
	for cx := lo.CX; cx <= hi.CX; cx++ {
		for cy := lo.CY; cy <= hi.CY; cy++ {
			out = append(out, g.cells[Cell{CX: cx, CY: cy}]...)
		}
	}
	return out
}

// Len returns the number of inserted ids.
func (g *Grid) Len() int {
	return g.count
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(cell=%g, cells=%d, ids=%d)", g.CellSize, len(g.cells), g.count)
}

func floorDiv(v, size float64) int {
	q := v / size
	i := int(q)
	if q < 0 && float64(i) != q {
		i--
	}
	return i
}
