// Package models contains domain types for the PDPTW visualizer.
package models

// Coordinate is a 2D point, either lat/lng or planar XY depending on the instance.
type Coordinate struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Node is one stop of a PDPTW instance. Node 0 is the depot.
type Node struct {
	ID              int        `json:"id"`
	Coord           Coordinate `json:"coord"`
	Demand          int        `json:"demand"` // positive for delivery, negative for pickup
	TimeWindow      [2]int     `json:"timeWindow"`
	ServiceDuration int        `json:"serviceDuration"`
	Pickup          bool       `json:"pickup"`
	Delivery        bool       `json:"delivery"`
	Pair            *int       `json:"pair,omitempty"` // never populated by the parser
}

// Earliest returns the start of the node's time window.
func (n Node) Earliest() int { return n.TimeWindow[0] }

// Latest returns the end of the node's time window.
func (n Node) Latest() int { return n.TimeWindow[1] }

// Instance is a parsed PDPTW problem definition.
// It is not modified after parsing and may be shared by concurrent readers.
type Instance struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Type     string `json:"type"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Nodes    []Node `json:"nodes"`
	// Times[i][j] is the travel time from node i to node j.
	Times     [][]int      `json:"times"`
	AllCoords []Coordinate `json:"allCoords"`
}

// HasNode reports whether id addresses a node of the instance.
func (inst *Instance) HasNode(id int) bool {
	return id >= 0 && id < len(inst.Nodes)
}

// Depot returns node 0.
func (inst *Instance) Depot() Node {
	return inst.Nodes[0]
}

// TravelTime returns Times[from][to]; ok is false when the matrix has no such entry.
func (inst *Instance) TravelTime(from, to int) (int, bool) {
	if from < 0 || from >= len(inst.Times) {
		return 0, false
	}
	row := inst.Times[from]
	if to < 0 || to >= len(row) {
		return 0, false
	}
	return row[to], true
}

// InstanceSummary is the lightweight view of an instance returned in listings.
type InstanceSummary struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Type     string `json:"type"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Summary returns the instance metadata without nodes or matrix.
func (inst *Instance) Summary() InstanceSummary {
	return InstanceSummary{
		Name:     inst.Name,
		Location: inst.Location,
		Type:     inst.Type,
		Size:     inst.Size,
		Capacity: inst.Capacity,
	}
}
