// Package analysis derives schedule and load metrics for parsed routes.
package analysis

import "github.com/pdptw-visualizer/backend/internal/models"

// StopReport is the simulated schedule at one stop of a route.
type StopReport struct {
	Position     int  `json:"position" msgpack:"position"`
	NodeID       int  `json:"nodeId" msgpack:"nodeId"`
	Arrival      int  `json:"arrival" msgpack:"arrival"`
	ServiceStart int  `json:"serviceStart" msgpack:"serviceStart"`
	Wait         int  `json:"wait" msgpack:"wait"`
	Departure    int  `json:"departure" msgpack:"departure"`
	Load         int  `json:"load" msgpack:"load"` // running sum of demands after the stop
	Late         int  `json:"late,omitempty" msgpack:"late,omitempty"`
	OverCapacity bool `json:"overCapacity,omitempty" msgpack:"overCapacity,omitempty"`
}

// RouteReport summarizes a simulated route.
type RouteReport struct {
	RouteID              int          `json:"routeId" msgpack:"routeId"`
	Stops                []StopReport `json:"stops" msgpack:"stops"`
	TravelTime           int          `json:"travelTime" msgpack:"travelTime"`
	WaitTime             int          `json:"waitTime" msgpack:"waitTime"`
	ServiceTime          int          `json:"serviceTime" msgpack:"serviceTime"`
	EndTime              int          `json:"endTime" msgpack:"endTime"`
	MaxLoad              int          `json:"maxLoad" msgpack:"maxLoad"`
	TimeWindowViolations int          `json:"timeWindowViolations" msgpack:"timeWindowViolations"`
	CapacityViolations   int          `json:"capacityViolations" msgpack:"capacityViolations"`
	Feasible             bool         `json:"feasible" msgpack:"feasible"`
}

// Analyze simulates a route from the depot's earliest time. Vehicles wait
// for a window to open; arriving after it closes counts as a violation.
// Load is the running sum of node demands and violates capacity when its
// magnitude exceeds inst.Capacity (a non-positive capacity disables the check).
func Analyze(inst *models.Instance, route models.Route) RouteReport {
	report := RouteReport{
		RouteID: route.ID,
		Stops:   make([]StopReport, 0, len(route.Sequence)),
	}
	if len(route.Sequence) == 0 || len(inst.Nodes) == 0 {
		report.Feasible = true
		return report
	}

	clock := inst.Depot().Earliest()
	load := 0
	prev := -1

	for pos, nodeID := range route.Sequence {
		if !inst.HasNode(nodeID) {
			continue
		}
		node := inst.Nodes[nodeID]

		arrival := clock
		if prev >= 0 {
			if t, ok := inst.TravelTime(prev, nodeID); ok {
				arrival += t
				report.TravelTime += t
			}
		}

		stop := StopReport{
			Position: pos,
			NodeID:   nodeID,
			Arrival:  arrival,
		}
		stop.ServiceStart = arrival
		if arrival < node.Earliest() {
			stop.Wait = node.Earliest() - arrival
			stop.ServiceStart = node.Earliest()
		}
		if arrival > node.Latest() {
			stop.Late = arrival - node.Latest()
			report.TimeWindowViolations++
		}
		stop.Departure = stop.ServiceStart + node.ServiceDuration

		load += node.Demand
		stop.Load = load
		if abs(load) > report.MaxLoad {
			report.MaxLoad = abs(load)
		}
		// Only stops that change the load can break capacity.
		if inst.Capacity > 0 && node.Demand != 0 && abs(load) > inst.Capacity {
			stop.OverCapacity = true
			report.CapacityViolations++
		}

		report.WaitTime += stop.Wait
		report.ServiceTime += node.ServiceDuration
		report.Stops = append(report.Stops, stop)

		clock = stop.Departure
		prev = nodeID
	}

	if n := len(report.Stops); n > 0 {
		report.EndTime = report.Stops[n-1].Arrival
	}
	report.Feasible = report.TimeWindowViolations == 0 && report.CapacityViolations == 0
	return report
}

// AnalyzeSolution analyzes every route of a solution in route order.
func AnalyzeSolution(inst *models.Instance, sol *models.Solution) []RouteReport {
	reports := make([]RouteReport, 0, len(sol.Routes))
	for _, r := range sol.Routes {
		reports = append(reports, Analyze(inst, r))
	}
	return reports
}

// Summary aggregates route reports for a whole solution.
type Summary struct {
	Routes               int  `json:"routes"`
	FeasibleRoutes       int  `json:"feasibleRoutes"`
	TravelTime           int  `json:"travelTime"`
	WaitTime             int  `json:"waitTime"`
	TimeWindowViolations int  `json:"timeWindowViolations"`
	CapacityViolations   int  `json:"capacityViolations"`
	Feasible             bool `json:"feasible"`
}

// Summarize totals a set of route reports.
func Summarize(reports []RouteReport) Summary {
	s := Summary{Routes: len(reports)}
	for _, r := range reports {
		if r.Feasible {
			s.FeasibleRoutes++
		}
		s.TravelTime += r.TravelTime
		s.WaitTime += r.WaitTime
		s.TimeWindowViolations += r.TimeWindowViolations
		s.CapacityViolations += r.CapacityViolations
	}
	s.Feasible = s.FeasibleRoutes == s.Routes
	return s
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
