/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ctf

type Position struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Floor int `json:"floor"`
}

// Rect is an inclusive cell range.
type Rect struct {
	MinX int `json:"minX"`
	MinY int `json:"minY"`
	MaxX int `json:"maxX"`
	MaxY int `json:"maxY"`
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

func (r Rect) Center() (int, int) {
	return (r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2
}

type Building struct {
	Name   string `json:"name"`
	Area   Rect   `json:"area"`
	Floors int    `json:"floors"`
}

// Map is the play field: a ground grid with staging and multi-floor
// buildings. Every cell outside a building only has floor 1.
type Map struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Staging   Rect       `json:"staging"`
	Buildings []Building `json:"buildings"`
}

var DefaultMap = Map{
	Width:   24,
	Height:  16,
	Staging: Rect{MinX: 10, MinY: 6, MaxX: 13, MaxY: 9},
	Buildings: []Building{
		{Name: "red-house", Area: Rect{MinX: 1, MinY: 1, MaxX: 6, MaxY: 5}, Floors: 3},
		{Name: "blue-house", Area: Rect{MinX: 17, MinY: 10, MaxX: 22, MaxY: 14}, Floors: 2},
		{Name: "warehouse", Area: Rect{MinX: 9, MinY: 12, MaxX: 14, MaxY: 15}, Floors: 1},
	},
}

func (m Map) Building(name string) (Building, bool) {
	for _, b := range m.Buildings {
		if b.Name == name {
			return b, true
		}
	}

	return Building{}, false
}

func (m Map) BuildingAt(x, y int) (Building, bool) {
	for _, b := range m.Buildings {
		if b.Area.Contains(x, y) {
			return b, true
		}
	}

	return Building{}, false
}

func (m Map) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// FloorsAt is the number of floors reachable at a cell.
func (m Map) FloorsAt(x, y int) int {
	if b, ok := m.BuildingAt(x, y); ok {
		return b.Floors
	}

	return 1
}

func (m Map) InStaging(p Position) bool {
	return p.Floor == 1 && m.Staging.Contains(p.X, p.Y)
}

func (m Map) StagingPoint() Position {
	x, y := m.Staging.Center()

	return Position{X: x, Y: y, Floor: 1}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}

// Chebyshev is the king-move distance between two cells on the plane.
func Chebyshev(a, b Position) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}
