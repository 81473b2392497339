package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdptw-visualizer/backend/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instanceText = `NAME: tiny
LOCATION: test
TYPE: PDPTW
SIZE: 3
CAPACITY: 4
NODES
0 0 0 0 0 100 0 0 0
1 3 4 5 0 100 2 1 0
2 6 8 -5 0 3 2 0 1
EDGES
0 5 10
5 0 5
10 5 0
EOF
`

const solutionText = `Instance name : tiny
Authors : tester
Solution
Route 1 : 1 2
Route 2 : 2 9
`

func writeFiles(t *testing.T, instance, solution string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	instPath := filepath.Join(dir, "tiny.txt")
	solPath := filepath.Join(dir, "tiny.sol")
	require.NoError(t, os.WriteFile(instPath, []byte(instance), 0644))
	require.NoError(t, os.WriteFile(solPath, []byte(solution), 0644))
	return instPath, solPath
}

func TestRun_Text(t *testing.T) {
	instPath, solPath := writeFiles(t, instanceText, solutionText)

	var out bytes.Buffer
	require.NoError(t, run(&out, instPath, solPath, checkOptions{format: formatText}))

	got := out.String()
	assert.Contains(t, got, `Instance tiny, solution for "tiny" by tester`)
	assert.Contains(t, got, "Route 0 "+parser.RouteColor(0)+" cost 20: 0 1 2 0")
	assert.Contains(t, got, "Route 1 "+parser.RouteColor(1)+" cost 20: 0 2 0")
	assert.Contains(t, got, "Total cost 40 over 2 routes, 3 stops")
	assert.Contains(t, got, "warning: line 5:")
}

func TestRun_CSV(t *testing.T) {
	instPath, solPath := writeFiles(t, instanceText, solutionText)

	var out bytes.Buffer
	require.NoError(t, run(&out, instPath, solPath, checkOptions{format: formatCSV}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "Route,Color,Cost,Stops,Sequence", string(lines[0]))
	assert.Equal(t, "0,"+parser.RouteColor(0)+",20,4,0 1 2 0", string(lines[1]))
}

func TestRun_CSVRecords(t *testing.T) {
	instPath, solPath := writeFiles(t, instanceText, solutionText)

	var out bytes.Buffer
	require.NoError(t, run(&out, instPath, solPath, checkOptions{format: formatCSV}))

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	tests := []struct {
		row  int
		want []string
	}{
		{row: 0, want: []string{"Route", "Color", "Cost", "Stops", "Sequence"}},
		{row: 1, want: []string{"0", parser.RouteColor(0), "20", "4", "0 1 2 0"}},
		{row: 2, want: []string{"1", parser.RouteColor(1), "20", "3", "0 2 0"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, records[tt.row])
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRun_CSVWriteError(t *testing.T) {
	instPath, solPath := writeFiles(t, instanceText, solutionText)

	err := run(failingWriter{}, instPath, solPath, checkOptions{format: formatCSV})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_Analyze(t *testing.T) {
	instPath, solPath := writeFiles(t, instanceText, solutionText)

	var out bytes.Buffer
	require.NoError(t, run(&out, instPath, solPath, checkOptions{format: formatText, analyze: true}))

	got := out.String()
	assert.Contains(t, got, "Feasible routes 0/2")
	assert.Contains(t, got, "node 2 late by")
	assert.Contains(t, got, "node 1 over capacity (load 5)")
}

func TestRun_InstanceOnly(t *testing.T) {
	instPath, _ := writeFiles(t, instanceText, solutionText)

	var out bytes.Buffer
	require.NoError(t, run(&out, instPath, "", checkOptions{format: formatText}))
	assert.Contains(t, out.String(), "3 nodes (1 pickups, 1 deliveries)")
}

func TestRun_Errors(t *testing.T) {
	instPath, _ := writeFiles(t, "NAME: x\nBOGUS: 1\n", solutionText)
	err := run(&bytes.Buffer{}, instPath, "", checkOptions{format: formatText})
	var fe *parser.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "BOGUS", fe.Token)

	instPath, solPath := writeFiles(t, instanceText, "Solution\n")
	err = run(&bytes.Buffer{}, instPath, solPath, checkOptions{format: formatText})
	var ee *parser.EmptyResultError
	assert.True(t, errors.As(err, &ee))
}
