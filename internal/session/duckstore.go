package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/pdptw-visualizer/backend/internal/models"
)

// DuckStore persists parsed instances and solutions in a DuckDB file so
// route data can be queried without keeping every workspace in memory.
type DuckStore struct {
	db     *sql.DB
	dbPath string

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// RouteSummary is one stored route without its stops.
type RouteSummary struct {
	RouteID   int    `json:"routeId"`
	Color     string `json:"color"`
	Cost      int    `json:"cost"`
	StopCount int    `json:"stopCount"`
}

// RouteStop is one stored stop of a route.
type RouteStop struct {
	Position int     `json:"position"`
	NodeID   int     `json:"nodeId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

var duckSchema = []string{
	`CREATE TABLE IF NOT EXISTS instances (
		workspace_id VARCHAR PRIMARY KEY,
		name         VARCHAR NOT NULL,
		location     VARCHAR,
		inst_type    VARCHAR,
		size         INTEGER NOT NULL,
		capacity     INTEGER NOT NULL,
		created_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		workspace_id VARCHAR NOT NULL,
		node_id      INTEGER NOT NULL,
		x            DOUBLE NOT NULL,
		y            DOUBLE NOT NULL,
		demand       INTEGER NOT NULL,
		tw_start     INTEGER NOT NULL,
		tw_end       INTEGER NOT NULL,
		service      INTEGER NOT NULL,
		pickup       BOOLEAN NOT NULL,
		delivery     BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS solutions (
		solution_id   VARCHAR PRIMARY KEY,
		workspace_id  VARCHAR NOT NULL,
		instance_name VARCHAR,
		authors       VARCHAR,
		sol_date      VARCHAR,
		reference     VARCHAR,
		route_count   INTEGER NOT NULL,
		total_cost    BIGINT NOT NULL,
		parsed_at     TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		solution_id VARCHAR NOT NULL,
		route_id    INTEGER NOT NULL,
		color       VARCHAR NOT NULL,
		cost        BIGINT NOT NULL,
		stop_count  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS route_stops (
		solution_id VARCHAR NOT NULL,
		route_id    INTEGER NOT NULL,
		stop_index  INTEGER NOT NULL,
		node_id     INTEGER NOT NULL,
		x           DOUBLE NOT NULL,
		y           DOUBLE NOT NULL
	)`,
}

// NewDuckStore opens (or creates) the workspace database in dir.
func NewDuckStore(dir string) (*DuckStore, error) {
	return NewDuckStoreAtPath(filepath.Join(dir, "workspaces.duckdb"))
}

// NewDuckStoreAtPath opens (or creates) a DuckDB file at a specific path.
func NewDuckStoreAtPath(dbPath string) (*DuckStore, error) {
	fmt.Printf("[DuckStore] Opening database at: %s\n", dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		if tempDir := os.Getenv("DUCKDB_TEMP_DIR"); tempDir != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA temp_directory='%s'", tempDir))
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[DuckStore] Pragma error: %v\n", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range duckSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &DuckStore{
		db:       db,
		dbPath:   dbPath,
		querySem: make(chan struct{}, 3), // Max 3 concurrent queries
	}, nil
}

// Path returns the database file path.
func (ds *DuckStore) Path() string {
	return ds.dbPath
}

// SaveInstance stores instance metadata and its nodes for a workspace.
// Saving a workspace twice replaces the earlier rows.
func (ds *DuckStore) SaveInstance(ctx context.Context, workspaceID string, inst *models.Instance) error {
	start := time.Now()

	if err := ds.deleteRows(ctx, "DELETE FROM nodes WHERE workspace_id = ?", workspaceID); err != nil {
		return err
	}
	if err := ds.deleteRows(ctx, "DELETE FROM instances WHERE workspace_id = ?", workspaceID); err != nil {
		return err
	}

	_, err := ds.db.ExecContext(ctx,
		`INSERT INTO instances (workspace_id, name, location, inst_type, size, capacity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workspaceID, inst.Name, inst.Location, inst.Type, inst.Size, inst.Capacity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}

	err = ds.appendRows(ctx, "nodes", func(appender *duckdb.Appender) error {
		for _, n := range inst.Nodes {
			if err := appender.AppendRow(
				workspaceID,
				int32(n.ID),
				n.Coord.X,
				n.Coord.Y,
				int32(n.Demand),
				int32(n.TimeWindow[0]),
				int32(n.TimeWindow[1]),
				int32(n.ServiceDuration),
				n.Pickup,
				n.Delivery,
			); err != nil {
				return fmt.Errorf("failed to append node %d: %w", n.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("[DuckStore] Saved instance %s (%d nodes) in %v\n", inst.Name, len(inst.Nodes), time.Since(start))
	return nil
}

// SaveSolution stores a parsed solution, its routes and every route stop.
func (ds *DuckStore) SaveSolution(ctx context.Context, workspaceID, solutionID string, sol *models.Solution) error {
	start := time.Now()

	_, err := ds.db.ExecContext(ctx,
		`INSERT INTO solutions (solution_id, workspace_id, instance_name, authors, sol_date, reference, route_count, total_cost, parsed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		solutionID, workspaceID, sol.InstanceName, sol.Authors, sol.Date, sol.Reference,
		len(sol.Routes), int64(sol.TotalCost()), time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert solution: %w", err)
	}

	err = ds.appendRows(ctx, "routes", func(appender *duckdb.Appender) error {
		for _, r := range sol.Routes {
			if err := appender.AppendRow(solutionID, int32(r.ID), r.Color, int64(r.Cost), int32(r.Len())); err != nil {
				return fmt.Errorf("failed to append route %d: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = ds.appendRows(ctx, "route_stops", func(appender *duckdb.Appender) error {
		for _, r := range sol.Routes {
			for pos, nodeID := range r.Sequence {
				c := r.Path[pos]
				if err := appender.AppendRow(solutionID, int32(r.ID), int32(pos), int32(nodeID), c.X, c.Y); err != nil {
					return fmt.Errorf("failed to append stop %d of route %d: %w", pos, r.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("[DuckStore] Saved solution %s (%d routes) in %v\n", shortID(solutionID), len(sol.Routes), time.Since(start))
	return nil
}

// RouteSummaries returns the stored routes of a solution in route order.
func (ds *DuckStore) RouteSummaries(ctx context.Context, solutionID string) ([]RouteSummary, error) {
	if err := ds.acquire(ctx); err != nil {
		return nil, err
	}
	defer ds.release()

	rows, err := ds.db.QueryContext(ctx,
		`SELECT route_id, color, cost, stop_count FROM routes WHERE solution_id = ? ORDER BY route_id`,
		solutionID)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	summaries := make([]RouteSummary, 0)
	for rows.Next() {
		var s RouteSummary
		var cost int64
		if err := rows.Scan(&s.RouteID, &s.Color, &cost, &s.StopCount); err != nil {
			return nil, err
		}
		s.Cost = int(cost)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// RouteStops returns the stored stops of one route in visiting order.
func (ds *DuckStore) RouteStops(ctx context.Context, solutionID string, routeID int) ([]RouteStop, error) {
	if err := ds.acquire(ctx); err != nil {
		return nil, err
	}
	defer ds.release()

	rows, err := ds.db.QueryContext(ctx,
		`SELECT stop_index, node_id, x, y FROM route_stops
		 WHERE solution_id = ? AND route_id = ? ORDER BY stop_index`,
		solutionID, routeID)
	if err != nil {
		return nil, fmt.Errorf("query route stops: %w", err)
	}
	defer rows.Close()

	stops := make([]RouteStop, 0)
	for rows.Next() {
		var s RouteStop
		if err := rows.Scan(&s.Position, &s.NodeID, &s.X, &s.Y); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// CountNodes returns how many nodes are stored for a workspace.
func (ds *DuckStore) CountNodes(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := ds.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE workspace_id = ?", workspaceID).Scan(&n)
	return n, err
}

// DeleteWorkspace removes every row stored for a workspace.
func (ds *DuckStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	stmts := []string{
		"DELETE FROM route_stops WHERE solution_id IN (SELECT solution_id FROM solutions WHERE workspace_id = ?)",
		"DELETE FROM routes WHERE solution_id IN (SELECT solution_id FROM solutions WHERE workspace_id = ?)",
		"DELETE FROM solutions WHERE workspace_id = ?",
		"DELETE FROM nodes WHERE workspace_id = ?",
		"DELETE FROM instances WHERE workspace_id = ?",
	}
	for _, stmt := range stmts {
		if err := ds.deleteRows(ctx, stmt, workspaceID); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database. The file is kept.
func (ds *DuckStore) Close() error {
	if ds.db != nil {
		return ds.db.Close()
	}
	return nil
}

func (ds *DuckStore) deleteRows(ctx context.Context, stmt, id string) error {
	if _, err := ds.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// appendRows writes rows to table through the native Appender API.
func (ds *DuckStore) appendRows(ctx context.Context, table string, fill func(*duckdb.Appender) error) error {
	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		if err := fill(appender); err != nil {
			return err
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error on %s: %w", table, err)
	}
	return nil
}

func (ds *DuckStore) acquire(ctx context.Context) error {
	select {
	case ds.querySem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ds *DuckStore) release() {
	<-ds.querySem
}
