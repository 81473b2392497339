// Command pdptwcheck parses a PDPTW instance and solution and prints each
// route with its recomputed cost.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdptw-visualizer/backend/internal/analysis"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/parser"
	"github.com/urfave/cli"
)

// Version info (set during build)
var Version = "dev"

const (
	formatText = "text"
	formatCSV  = "csv"
)

type checkOptions struct {
	format  string
	analyze bool
}

func main() {
	app := cli.NewApp()
	app.Name = "pdptwcheck"
	app.Usage = "recompute route costs of a PDPTW solution"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "instance, i", Usage: "instance file `PATH`"},
		cli.StringFlag{Name: "solution, s", Usage: "solution file `PATH`"},
		cli.StringFlag{Name: "format, f", Value: formatText, Usage: "output format: text or csv"},
		cli.BoolFlag{Name: "analyze, a", Usage: "replay routes against time windows and capacity"},
	}
	app.Action = func(c *cli.Context) error {
		instancePath := c.String("instance")
		if instancePath == "" {
			return cli.NewExitError("--instance is required", 2)
		}
		opts := checkOptions{format: c.String("format"), analyze: c.Bool("analyze")}
		if opts.format != formatText && opts.format != formatCSV {
			return cli.NewExitError(fmt.Sprintf("unknown format %q", opts.format), 2)
		}
		if err := run(os.Stdout, instancePath, c.String("solution"), opts); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses the files and writes the report. Without a solution only the
// instance summary is printed.
func run(out io.Writer, instancePath, solutionPath string, opts checkOptions) error {
	inst, err := parser.ParseInstanceFile(instancePath)
	if err != nil {
		return fmt.Errorf("%s: %w", instancePath, err)
	}
	if solutionPath == "" {
		printInstance(out, inst)
		return nil
	}

	sol, warnings, err := parser.ParseSolutionFile(solutionPath, inst)
	if err != nil {
		return fmt.Errorf("%s: %w", solutionPath, err)
	}

	if opts.format == formatCSV {
		if err := printCSV(out, sol); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
	} else {
		printText(out, inst, sol, warnings)
	}
	if opts.analyze {
		printAnalysis(out, analysis.AnalyzeSolution(inst, sol))
	}
	return nil
}

func printInstance(out io.Writer, inst *models.Instance) {
	pickups, deliveries := 0, 0
	for _, n := range inst.Nodes {
		if n.Pickup {
			pickups++
		}
		if n.Delivery {
			deliveries++
		}
	}
	fmt.Fprintf(out, "Instance %s (%s)\n", inst.Name, inst.Type)
	fmt.Fprintf(out, "  Location: %s\n", inst.Location)
	fmt.Fprintf(out, "  Size:     %d nodes (%d pickups, %d deliveries)\n", inst.Size, pickups, deliveries)
	fmt.Fprintf(out, "  Capacity: %d\n", inst.Capacity)
}

func printText(out io.Writer, inst *models.Instance, sol *models.Solution, warnings []*models.ParseError) {
	fmt.Fprintf(out, "Instance %s, solution for %q", inst.Name, sol.InstanceName)
	if sol.Authors != "" {
		fmt.Fprintf(out, " by %s", sol.Authors)
	}
	fmt.Fprintln(out)

	for _, r := range sol.Routes {
		fmt.Fprintf(out, "Route %d %s cost %d: %s\n", r.ID, r.Color, r.Cost, joinInts(r.Sequence))
	}
	fmt.Fprintf(out, "Total cost %d over %d routes, %d stops\n", sol.TotalCost(), len(sol.Routes), sol.StopCount())

	for _, w := range warnings {
		fmt.Fprintf(out, "warning: line %d: %s\n", w.Line, w.Reason)
	}
}

func printCSV(out io.Writer, sol *models.Solution) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"Route", "Color", "Cost", "Stops", "Sequence"}); err != nil {
		return err
	}
	for _, r := range sol.Routes {
		record := []string{
			strconv.Itoa(r.ID),
			r.Color,
			strconv.Itoa(r.Cost),
			strconv.Itoa(r.Len()),
			joinInts(r.Sequence),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func printAnalysis(out io.Writer, reports []analysis.RouteReport) {
	summary := analysis.Summarize(reports)
	fmt.Fprintf(out, "Feasible routes %d/%d, wait %d, time window violations %d, capacity violations %d\n",
		summary.FeasibleRoutes, summary.Routes, summary.WaitTime,
		summary.TimeWindowViolations, summary.CapacityViolations)
	for _, r := range reports {
		if r.Feasible {
			continue
		}
		fmt.Fprintf(out, "  route %d: ends at %d, max load %d\n", r.RouteID, r.EndTime, r.MaxLoad)
		for _, s := range r.Stops {
			if s.Late > 0 {
				fmt.Fprintf(out, "    node %d late by %d\n", s.NodeID, s.Late)
			}
			if s.OverCapacity {
				fmt.Fprintf(out, "    node %d over capacity (load %d)\n", s.NodeID, s.Load)
			}
		}
	}
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}
