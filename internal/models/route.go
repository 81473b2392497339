package models

// Route is one vehicle's visiting sequence. Sequence and Path are parallel and
// both start and end at the depot. Cost is always recomputed from the instance.
type Route struct {
	ID       int          `json:"id" msgpack:"id"`
	Sequence []int        `json:"sequence" msgpack:"sequence"`
	Path     []Coordinate `json:"path" msgpack:"path"`
	Color    string       `json:"color" msgpack:"color"`
	Cost     int          `json:"cost" msgpack:"cost"`
}

// NewRoute creates an empty route with the given id.
func NewRoute(id int) *Route {
	return &Route{
		ID:       id,
		Sequence: make([]int, 0),
		Path:     make([]Coordinate, 0),
	}
}

// Push appends a visited node and its coordinate.
func (r *Route) Push(nodeID int, coord Coordinate) {
	r.Sequence = append(r.Sequence, nodeID)
	r.Path = append(r.Path, coord)
}

// Len returns the number of visited stops, depot visits included.
func (r *Route) Len() int {
	return len(r.Sequence)
}

// Solution is the parsed form of a solution file.
type Solution struct {
	// InstanceName is display-only and is not checked against the instance.
	InstanceName string  `json:"instanceName" msgpack:"instanceName"`
	Reference    string  `json:"reference" msgpack:"reference"`
	Date         string  `json:"date" msgpack:"date"`
	Authors      string  `json:"authors" msgpack:"authors"`
	Routes       []Route `json:"routes" msgpack:"routes"`
}

// TotalCost sums the recomputed cost of every route.
func (s *Solution) TotalCost() int {
	total := 0
	for _, r := range s.Routes {
		total += r.Cost
	}
	return total
}

// StopCount counts customer visits, excluding depot stops.
func (s *Solution) StopCount() int {
	count := 0
	for _, r := range s.Routes {
		for _, id := range r.Sequence {
			if id != 0 {
				count++
			}
		}
	}
	return count
}
