package parser

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdptw-visualizer/backend/internal/models"
)

// Solution file keywords.
const (
	tokInstanceName = "Instance name"
	tokAuthors      = "Authors"
	tokDate         = "Date"
	tokReference    = "Reference"
	tokSolution     = "Solution"
)

// routeLineRegex matches "Route <n> : <id> <id> ...". The printed number is cosmetic.
var routeLineRegex = regexp.MustCompile(`^Route\s+(\d+)\s*:(.*)$`)

// ParseSolution parses the text of a solution file against a parsed instance.
//
// Each route is rebuilt from the instance: it starts and ends at the depot and
// its cost is recomputed from inst.Times. Problems confined to one route line
// or one node id are skipped and reported in the returned diagnostics. The
// "Instance name" header is informational and is not compared with inst.Name.
func ParseSolution(text string, inst *models.Instance) (*models.Solution, []*models.ParseError, error) {
	if inst == nil {
		return nil, nil, &IllegalStateError{Reason: "no instance loaded"}
	}
	if len(inst.Nodes) == 0 {
		return nil, nil, &IllegalStateError{Reason: "instance has no nodes"}
	}

	lines := splitLines(text)
	sol := &models.Solution{
		Routes: make([]models.Route, 0),
	}
	warnings := make([]*models.ParseError, 0)
	sectionFound := false
	skipped := 0

scan:
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNum := i + 1
		if isBlank(line) {
			continue
		}

		token, value := tokenize(line)
		switch token {
		case tokInstanceName:
			sol.InstanceName = value
		case tokAuthors:
			sol.Authors = value
		case tokDate:
			sol.Date = value
		case tokReference:
			sol.Reference = value
		case tokSolution:
			sectionFound = true
			routes, warns, n := readRoutes(lines, i+1, inst)
			sol.Routes = routes
			warnings = append(warnings, warns...)
			skipped = n
			// Anything after the route block is ignored.
			break scan
		default:
			return nil, nil, &FormatError{Line: lineNum, Token: token, Content: line, Reason: "unknown keyword"}
		}
	}

	if len(sol.Routes) == 0 {
		return nil, warnings, &EmptyResultError{SectionFound: sectionFound, Skipped: skipped}
	}

	assignColors(sol.Routes)
	return sol, warnings, nil
}

// readRoutes reads route lines from start until a blank line or end of input.
// It returns the routes, the diagnostics and the number of skipped lines.
func readRoutes(lines []string, start int, inst *models.Instance) ([]models.Route, []*models.ParseError, int) {
	routes := make([]models.Route, 0)
	warnings := make([]*models.ParseError, 0)
	skipped := 0

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			break
		}

		m := routeLineRegex.FindStringSubmatch(line)
		if m == nil {
			warnings = append(warnings, newWarning(i+1, lines[i], "not a route line"))
			skipped++
			continue
		}

		route, warns := buildRoute(len(routes), m[2], i+1, lines[i], inst)
		warnings = append(warnings, warns...)
		routes = append(routes, *route)
	}

	return routes, warnings, skipped
}

// buildRoute turns the id sequence of one route line into a depot-padded
// route with a recomputed cost.
func buildRoute(id int, sequence string, lineNum int, line string, inst *models.Instance) (*models.Route, []*models.ParseError) {
	var warnings []*models.ParseError
	route := models.NewRoute(id)
	depot := inst.Depot()

	route.Push(depot.ID, depot.Coord)
	prev := depot.ID
	cost := 0

	for _, tok := range strings.Fields(sequence) {
		nodeID, err := strconv.Atoi(tok)
		if err != nil {
			warnings = append(warnings, newWarning(lineNum, line, fmt.Sprintf("invalid node id %q skipped", tok)))
			continue
		}
		if !inst.HasNode(nodeID) {
			warnings = append(warnings, newWarning(lineNum, line,
				fmt.Sprintf("node id %d out of range [0, %d) skipped", nodeID, len(inst.Nodes))))
			continue
		}
		t, ok := inst.TravelTime(prev, nodeID)
		if !ok {
			warnings = append(warnings, newWarning(lineNum, line,
				fmt.Sprintf("no travel time from %d to %d, node skipped", prev, nodeID)))
			continue
		}

		cost += t
		route.Push(nodeID, inst.Nodes[nodeID].Coord)
		prev = nodeID
	}

	if t, ok := inst.TravelTime(prev, depot.ID); ok {
		cost += t
	} else {
		warnings = append(warnings, newWarning(lineNum, line,
			fmt.Sprintf("no travel time from %d back to depot", prev)))
	}
	route.Push(depot.ID, depot.Coord)
	route.Cost = cost

	return route, warnings
}

// ParseSolutionFile reads and parses a solution file from disk.
func ParseSolutionFile(filePath string, inst *models.Instance) (*models.Solution, []*models.ParseError, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	return ParseSolution(string(data), inst)
}
