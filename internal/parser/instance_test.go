package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalInstance = `NAME: tiny
LOCATION: test
TYPE: PDPTW
SIZE: 2
CAPACITY: 10
NODES
0 0 0 0 0 100 0 0 0
1 3 4 5 0 100 2 1 0
EDGES
0 5
5 0
EOF
`

const threeNodeInstance = `NAME: bar 100 3
LOCATION: somewhere far
COMMENT: generated for tests
TYPE: PDPTW
SIZE: 3
DISTRIBUTION: uniform
DEPOT: central
CAPACITY: 20
ROUTE-TIME: 1000
TIME-WINDOW: 60
NODES
0 10.5 20.25 0 0 1000 0 0 0
1 11 21 7 10 50 5 1 0
2 12 22 -7 20 80 5 0 1
EDGES
0 2 3
4 0 6
7 8 0
EOF
`

func TestParseInstance_Minimal(t *testing.T) {
	inst, err := ParseInstance(minimalInstance)
	require.NoError(t, err)

	assert.Equal(t, "tiny", inst.Name)
	assert.Equal(t, 2, inst.Size)
	assert.Equal(t, 10, inst.Capacity)
	assert.Equal(t, 5, inst.Times[0][1])
	assert.Equal(t, 5, inst.Times[1][0])
	require.Len(t, inst.Nodes, 2)
	assert.Equal(t, 3.0, inst.Nodes[1].Coord.X)
	assert.Equal(t, 4.0, inst.Nodes[1].Coord.Y)
	assert.True(t, inst.Nodes[1].Pickup)
	assert.False(t, inst.Nodes[1].Delivery)
	assert.Nil(t, inst.Nodes[1].Pair)
}

func TestParseInstance_FullHeader(t *testing.T) {
	inst, err := ParseInstance(threeNodeInstance)
	require.NoError(t, err)

	assert.Equal(t, "bar1003", inst.Name, "NAME has whitespace stripped")
	assert.Equal(t, "somewhere far", inst.Location)
	assert.Equal(t, "PDPTW", inst.Type)
	assert.Equal(t, 20, inst.Capacity)

	assert.Len(t, inst.Nodes, inst.Size)
	assert.Len(t, inst.Times, inst.Size)
	for i, row := range inst.Times {
		assert.Len(t, row, inst.Size, "row %d", i)
	}
	require.Len(t, inst.AllCoords, 3)
	for i, n := range inst.Nodes {
		assert.Equal(t, i, n.ID)
		assert.Equal(t, n.Coord, inst.AllCoords[i])
	}

	n2 := inst.Nodes[2]
	assert.Equal(t, -7, n2.Demand)
	assert.Equal(t, [2]int{20, 80}, n2.TimeWindow)
	assert.Equal(t, 5, n2.ServiceDuration)
	assert.True(t, n2.Delivery)
	assert.Equal(t, 8, inst.Times[2][1])
}

func TestParseInstance_CRLFAndBlankLines(t *testing.T) {
	text := strings.ReplaceAll(minimalInstance, "\n", "\r\n")
	text = strings.Replace(text, "CAPACITY: 10\r\n", "CAPACITY: 10\r\n\r\n", 1)

	inst, err := ParseInstance(text)
	require.NoError(t, err)
	assert.Equal(t, 5, inst.Times[0][1])
}

func TestParseInstance_StopsAtEOF(t *testing.T) {
	inst, err := ParseInstance(minimalInstance + "anything after EOF: ignored\n")
	require.NoError(t, err)
	assert.Equal(t, 2, inst.Size)
}

func TestParseInstance_UnknownKeyword(t *testing.T) {
	text := strings.Replace(minimalInstance, "TYPE: PDPTW", "FOO: bar", 1)

	_, err := ParseInstance(text)
	require.Error(t, err)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "FOO", fe.Token)
	assert.Equal(t, 3, fe.Line)
	assert.Contains(t, err.Error(), "FOO")
}

func TestParseInstance_Errors(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantIndex bool
		contains  string
	}{
		{
			name:     "malformed size",
			text:     strings.Replace(minimalInstance, "SIZE: 2", "SIZE: two", 1),
			contains: "SIZE",
		},
		{
			name:     "malformed capacity",
			text:     strings.Replace(minimalInstance, "CAPACITY: 10", "CAPACITY: 1x", 1),
			contains: "CAPACITY",
		},
		{
			name:     "nodes before size",
			text:     "NODES\n0 0 0 0 0 1 0 0 0\nSIZE: 1\n",
			contains: "SIZE must precede NODES",
		},
		{
			name:     "malformed coordinate",
			text:     strings.Replace(minimalInstance, "1 3 4 5", "1 3 north 5", 1),
			contains: "north",
		},
		{
			name:     "NaN coordinate",
			text:     strings.Replace(minimalInstance, "1 3 4 5", "1 NaN 4 5", 1),
			contains: "NaN",
		},
		{
			name:     "infinite coordinate",
			text:     strings.Replace(minimalInstance, "1 3 4 5", "1 3 +Inf 5", 1),
			contains: "+Inf",
		},
		{
			name:     "node row too short",
			text:     strings.Replace(minimalInstance, "1 3 4 5 0 100 2 1 0", "1 3 4 5 0 100 2 1", 1),
			contains: "9 fields",
		},
		{
			name:     "node id out of position",
			text:     strings.Replace(minimalInstance, "1 3 4 5", "7 3 4 5", 1),
			contains: "position",
		},
		{
			name:      "nodes block truncated by keyword",
			text:      strings.Replace(minimalInstance, "1 3 4 5 0 100 2 1 0\n", "", 1),
			wantIndex: true,
			contains:  "expected 2 rows, got 1",
		},
		{
			name:      "edges row too narrow",
			text:      strings.Replace(minimalInstance, "5 0\n", "5\n", 1),
			wantIndex: true,
			contains:  "expected 2 columns, got 1",
		},
		{
			name:      "edges block truncated by end of input",
			text:      "SIZE: 2\nNODES\n0 0 0 0 0 1 0 0 0\n1 0 0 0 0 1 0 0 0\nEDGES\n0 1\n",
			wantIndex: true,
			contains:  "EDGES",
		},
		{
			name:      "edges missing",
			text:      "SIZE: 1\nNODES\n0 0 0 0 0 1 0 0 0\nEOF\n",
			wantIndex: true,
			contains:  "EDGES",
		},
		{
			name:     "malformed edge value",
			text:     strings.Replace(minimalInstance, "0 5\n", "0 five\n", 1),
			contains: "five",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := ParseInstance(tt.text)
			require.Error(t, err)
			assert.Nil(t, inst, "no partial instance on error")
			assert.Contains(t, err.Error(), tt.contains)

			var ie *IndexError
			var fe *FormatError
			if tt.wantIndex {
				assert.True(t, errors.As(err, &ie), "expected *IndexError, got %T", err)
			} else {
				assert.True(t, errors.As(err, &fe), "expected *FormatError, got %T", err)
			}
		})
	}
}

func TestParseInstance_Idempotent(t *testing.T) {
	a, err := ParseInstance(threeNodeInstance)
	require.NoError(t, err)
	b, err := ParseInstance(threeNodeInstance)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotSame(t, a, b)

	b.Times[0][1] = 99
	assert.Equal(t, 2, a.Times[0][1], "parses share no state")
}

func TestParseInstanceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.txt")
	require.NoError(t, os.WriteFile(path, []byte(minimalInstance), 0644))

	inst, err := ParseInstanceFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", inst.Name)

	_, err = ParseInstanceFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
