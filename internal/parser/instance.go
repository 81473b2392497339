package parser

import (
	"os"
	"strings"

	"github.com/pdptw-visualizer/backend/internal/models"
)

// Instance file keywords.
const (
	tokName     = "NAME"
	tokLocation = "LOCATION"
	tokType     = "TYPE"
	tokSize     = "SIZE"
	tokCapacity = "CAPACITY"
	tokNodes    = "NODES"
	tokEdges    = "EDGES"
	tokEOF      = "EOF"
)

const (
	nodeFieldCount = 9
	sectionNodes   = "NODES"
	sectionEdges   = "EDGES"
	unitRows       = "rows"
	unitColumns    = "columns"
)

// ignoredInstanceTokens are accepted at top level and have no effect.
var ignoredInstanceTokens = map[string]struct{}{
	"COMMENT":      {},
	"DISTRIBUTION": {},
	"DEPOT":        {},
	"ROUTE-TIME":   {},
	"TIME-WINDOW":  {},
}

// isInstanceKeyword reports whether a line opens a top-level instance keyword.
// Used to tell a truncated block from a malformed row.
func isInstanceKeyword(line string) bool {
	token, _ := tokenize(line)
	switch token {
	case tokName, tokLocation, tokType, tokSize, tokCapacity, tokNodes, tokEdges, tokEOF:
		return true
	}
	_, ok := ignoredInstanceTokens[token]
	return ok
}

// ParseInstance parses the text of a PDPTW instance file.
//
// Unknown keywords and malformed numbers fail with *FormatError; NODES or
// EDGES blocks that disagree with SIZE fail with *IndexError. No partial
// instance is returned on error.
func ParseInstance(text string) (*models.Instance, error) {
	lines := splitLines(text)
	inst := &models.Instance{
		Nodes:     make([]models.Node, 0),
		Times:     make([][]int, 0),
		AllCoords: make([]models.Coordinate, 0),
	}
	sizeSet := false
	lastLine := 0

scan:
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNum := i + 1
		if isBlank(line) {
			continue
		}
		lastLine = lineNum

		token, value := tokenize(line)
		switch token {
		case tokName:
			inst.Name = stripSpaces(value)
		case tokLocation:
			inst.Location = value
		case tokType:
			inst.Type = value
		case tokSize:
			n, err := parseIntField(lineNum, line, token, value)
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, &FormatError{Line: lineNum, Token: token, Content: line, Reason: "negative size"}
			}
			inst.Size = n
			sizeSet = true
		case tokCapacity:
			n, err := parseIntField(lineNum, line, token, value)
			if err != nil {
				return nil, err
			}
			inst.Capacity = n
		case tokNodes:
			if !sizeSet {
				return nil, &FormatError{Line: lineNum, Token: token, Content: line, Reason: "SIZE must precede NODES"}
			}
			next, err := readNodes(lines, i+1, inst)
			if err != nil {
				return nil, err
			}
			i = next - 1
			lastLine = next
		case tokEdges:
			if !sizeSet {
				return nil, &FormatError{Line: lineNum, Token: token, Content: line, Reason: "SIZE must precede EDGES"}
			}
			next, err := readEdges(lines, i+1, inst)
			if err != nil {
				return nil, err
			}
			i = next - 1
			lastLine = next
		case tokEOF:
			break scan
		default:
			if _, ok := ignoredInstanceTokens[token]; ok {
				continue
			}
			return nil, &FormatError{Line: lineNum, Token: token, Content: line, Reason: "unknown keyword"}
		}
	}

	if len(inst.Nodes) != inst.Size {
		return nil, &IndexError{Line: lastLine, Section: sectionNodes, Unit: unitRows, Expected: inst.Size, Got: len(inst.Nodes)}
	}
	if len(inst.Times) != inst.Size {
		return nil, &IndexError{Line: lastLine, Section: sectionEdges, Unit: unitRows, Expected: inst.Size, Got: len(inst.Times)}
	}

	return inst, nil
}

// readNodes consumes inst.Size node rows starting at index start and returns
// the index of the first line after the block.
func readNodes(lines []string, start int, inst *models.Instance) (int, error) {
	for k := 0; k < inst.Size; k++ {
		idx := start + k
		if idx >= len(lines) || isInstanceKeyword(lines[idx]) {
			return 0, &IndexError{Line: min(idx+1, len(lines)), Section: sectionNodes, Unit: unitRows, Expected: inst.Size, Got: k}
		}

		line := lines[idx]
		lineNum := idx + 1
		node, err := parseNodeRow(lineNum, line)
		if err != nil {
			return 0, err
		}
		if node.ID != k {
			return 0, &FormatError{
				Line:    lineNum,
				Token:   strings.Fields(line)[0],
				Content: line,
				Reason:  "node id does not match its position",
			}
		}

		inst.Nodes = append(inst.Nodes, node)
		inst.AllCoords = append(inst.AllCoords, node.Coord)
	}
	return start + inst.Size, nil
}

// parseNodeRow reads "id x y demand tw_start tw_end service pickup delivery".
func parseNodeRow(lineNum int, line string) (models.Node, error) {
	fields := strings.Fields(line)
	if len(fields) != nodeFieldCount {
		return models.Node{}, &FormatError{
			Line:    lineNum,
			Token:   sectionNodes,
			Content: line,
			Reason:  "node row must have 9 fields",
		}
	}

	ints := make([]int, 0, 7)
	for _, pos := range []int{0, 3, 4, 5, 6, 7, 8} {
		v, err := parseIntField(lineNum, line, fields[pos], fields[pos])
		if err != nil {
			return models.Node{}, err
		}
		ints = append(ints, v)
	}
	x, err := parseFloatField(lineNum, line, fields[1], fields[1])
	if err != nil {
		return models.Node{}, err
	}
	y, err := parseFloatField(lineNum, line, fields[2], fields[2])
	if err != nil {
		return models.Node{}, err
	}

	return models.Node{
		ID:              ints[0],
		Coord:           models.Coordinate{X: x, Y: y},
		Demand:          ints[1],
		TimeWindow:      [2]int{ints[2], ints[3]},
		ServiceDuration: ints[4],
		Pickup:          ints[5] != 0,
		Delivery:        ints[6] != 0,
	}, nil
}

// readEdges consumes inst.Size matrix rows of inst.Size integers each.
func readEdges(lines []string, start int, inst *models.Instance) (int, error) {
	for k := 0; k < inst.Size; k++ {
		idx := start + k
		if idx >= len(lines) || isInstanceKeyword(lines[idx]) {
			return 0, &IndexError{Line: min(idx+1, len(lines)), Section: sectionEdges, Unit: unitRows, Expected: inst.Size, Got: k}
		}

		line := lines[idx]
		lineNum := idx + 1
		fields := strings.Fields(line)
		if len(fields) != inst.Size {
			return 0, &IndexError{Line: lineNum, Section: sectionEdges, Unit: unitColumns, Expected: inst.Size, Got: len(fields)}
		}

		row := make([]int, inst.Size)
		for j, f := range fields {
			v, err := parseIntField(lineNum, line, f, f)
			if err != nil {
				return 0, err
			}
			row[j] = v
		}
		inst.Times = append(inst.Times, row)
	}
	return start + inst.Size, nil
}

// ParseInstanceFile reads and parses an instance file from disk.
func ParseInstanceFile(filePath string) (*models.Instance, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseInstance(string(data))
}
