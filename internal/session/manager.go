package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdptw-visualizer/backend/internal/metrics"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/parser"
)

// MaxWorkspaces limits concurrent workspaces to prevent memory exhaustion
const MaxWorkspaces = 50

// WorkspaceMaxAge is how long to keep idle workspaces before cleanup
const WorkspaceMaxAge = 30 * time.Minute

// WorkspaceKeepAliveWindow is how long to keep workspaces that are actively being used
const WorkspaceKeepAliveWindow = 5 * time.Minute

// persistTimeout bounds one background DuckDB write.
const persistTimeout = 30 * time.Second

// ErrWorkspaceNotFound is returned when a workspace id is unknown.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Manager holds parsed instances and the solutions parsed against them.
type Manager struct {
	workspaces map[string]*WorkspaceState
	mu         sync.RWMutex
	store      *DuckStore // nil when persistence is disabled

	// persistMu serializes DuckDB writes and deletes.
	persistMu sync.Mutex
	persistWg sync.WaitGroup
}

// WorkspaceState holds the workspace metadata and its parsed data.
type WorkspaceState struct {
	Workspace *models.Workspace
	// Instance is shared read-only by every solution parse in the workspace.
	Instance     *models.Instance
	Solutions    map[string]*models.Solution
	LastAccessed time.Time
}

// NewManager creates a workspace manager without persistence.
func NewManager() *Manager {
	return NewManagerWithStore(nil)
}

// NewManagerWithStore creates a workspace manager that writes parsed data to store.
func NewManagerWithStore(store *DuckStore) *Manager {
	return &Manager{
		workspaces: make(map[string]*WorkspaceState),
		store:      store,
	}
}

// CreateWorkspace parses instance text and opens a workspace for it.
// Parser errors are returned unchanged so callers can inspect their type.
func (m *Manager) CreateWorkspace(fileID, text string) (*models.Workspace, error) {
	m.cleanupOldWorkspacesIfNeeded()

	start := time.Now()
	inst, err := parser.ParseInstance(text)
	metrics.ObserveParse("instance", time.Since(start), err)
	if err != nil {
		fmt.Printf("[Workspace] Instance parse failed for file %s: %v\n", shortID(fileID), err)
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now()
	ws := &models.Workspace{
		ID:             id,
		InstanceFileID: fileID,
		Instance:       inst.Summary(),
		Status:         models.WorkspaceStatusReady,
		Solutions:      make([]models.SolutionInfo, 0),
		CreatedAt:      now,
		LastAccessed:   now,
	}

	m.mu.Lock()
	m.workspaces[id] = &WorkspaceState{
		Workspace:    ws,
		Instance:     inst,
		Solutions:    make(map[string]*models.Solution),
		LastAccessed: now,
	}
	m.mu.Unlock()

	fmt.Printf("[Workspace %s] Instance %s parsed: %d nodes in %v\n", shortID(id), inst.Name, inst.Size, time.Since(start))

	if m.store != nil {
		m.persist(id, "instance", func(ctx context.Context) error {
			return m.store.SaveInstance(ctx, id, inst)
		})
	}

	return copyWorkspace(ws), nil
}

// AddSolution parses solution text against the workspace instance.
// Recovered warnings are kept on the returned SolutionInfo.
func (m *Manager) AddSolution(workspaceID, fileID, text string) (*models.SolutionInfo, error) {
	m.mu.RLock()
	state, ok := m.workspaces[workspaceID]
	var inst *models.Instance
	if ok {
		inst = state.Instance
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrWorkspaceNotFound
	}

	start := time.Now()
	sol, warnings, err := parser.ParseSolution(text, inst)
	elapsed := time.Since(start)
	metrics.ObserveParse("solution", elapsed, err)
	metrics.ParseWarnings.Add(float64(len(warnings)))

	for _, w := range warnings {
		fmt.Printf("[Workspace %s] Solution line %d: %s\n", shortID(workspaceID), w.Line, w.Reason)
	}
	if err != nil {
		fmt.Printf("[Workspace %s] Solution parse failed: %v\n", shortID(workspaceID), err)
		return nil, err
	}

	solutionID := uuid.New().String()
	info := models.SolutionInfo{
		ID:           solutionID,
		FileID:       fileID,
		InstanceName: sol.InstanceName,
		Authors:      sol.Authors,
		RouteCount:   len(sol.Routes),
		TotalCost:    sol.TotalCost(),
		Warnings:     derefErrors(warnings),
		ParsedAt:     time.Now(),
		ParseTimeMs:  elapsed.Milliseconds(),
	}

	m.mu.Lock()
	state, ok = m.workspaces[workspaceID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrWorkspaceNotFound
	}
	state.Solutions[solutionID] = sol
	state.Workspace.Solutions = append(state.Workspace.Solutions, info)
	state.LastAccessed = time.Now()
	state.Workspace.LastAccessed = state.LastAccessed
	m.mu.Unlock()

	fmt.Printf("[Workspace %s] Solution %s parsed: %d routes, total cost %d, %d warnings\n",
		shortID(workspaceID), shortID(solutionID), len(sol.Routes), info.TotalCost, len(warnings))

	if m.store != nil {
		m.persist(workspaceID, "solution", func(ctx context.Context) error {
			return m.store.SaveSolution(ctx, workspaceID, solutionID, sol)
		})
	}

	return &info, nil
}

// persist runs a DuckDB write in the background and marks the workspace
// persisted once it succeeds.
func (m *Manager) persist(workspaceID, what string, write func(ctx context.Context) error) {
	m.persistWg.Add(1)
	go func() {
		defer m.persistWg.Done()
		// Recover from panics to prevent backend crash
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("[Workspace %s] PANIC recovered while persisting %s: %v\n", shortID(workspaceID), what, r)
			}
		}()

		m.persistMu.Lock()
		defer m.persistMu.Unlock()

		if _, ok := m.GetWorkspace(workspaceID); !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := write(ctx); err != nil {
			fmt.Printf("[Workspace %s] WARNING: failed to persist %s: %v\n", shortID(workspaceID), what, err)
			return
		}

		m.mu.Lock()
		if state, ok := m.workspaces[workspaceID]; ok {
			state.Workspace.Persisted = true
		}
		m.mu.Unlock()
	}()
}

// WaitPersisted blocks until every background write has finished.
func (m *Manager) WaitPersisted() {
	m.persistWg.Wait()
}

// Store returns the persistence store, or nil.
func (m *Manager) Store() *DuckStore {
	return m.store
}

// GetWorkspace returns a copy of the workspace metadata.
func (m *Manager) GetWorkspace(id string) (*models.Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.workspaces[id]
	if !ok {
		return nil, false
	}
	return copyWorkspace(state.Workspace), true
}

// GetInstance returns the parsed instance of a workspace. The instance must
// not be modified by callers.
func (m *Manager) GetInstance(id string) (*models.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.workspaces[id]
	if !ok {
		return nil, false
	}
	return state.Instance, true
}

// GetSolution returns a parsed solution of a workspace.
func (m *Manager) GetSolution(workspaceID, solutionID string) (*models.Solution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, false
	}
	sol, ok := state.Solutions[solutionID]
	return sol, ok
}

// ListSolutions returns the solutions of a workspace, oldest first.
func (m *Manager) ListSolutions(workspaceID string) ([]models.SolutionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, false
	}
	out := make([]models.SolutionInfo, len(state.Workspace.Solutions))
	copy(out, state.Workspace.Solutions)
	return out, true
}

// ListWorkspaces returns every workspace, most recently used first.
func (m *Manager) ListWorkspaces() []*models.Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Workspace, 0, len(m.workspaces))
	for _, state := range m.workspaces {
		out = append(out, copyWorkspace(state.Workspace))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	return out
}

// DeleteWorkspace drops a workspace and its stored rows.
func (m *Manager) DeleteWorkspace(id string) bool {
	m.mu.Lock()
	_, ok := m.workspaces[id]
	delete(m.workspaces, id)
	m.mu.Unlock()

	if !ok {
		return false
	}

	if m.store != nil {
		m.persistMu.Lock()
		defer m.persistMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.store.DeleteWorkspace(ctx, id); err != nil {
			fmt.Printf("[Workspace %s] WARNING: failed to delete stored rows: %v\n", shortID(id), err)
		}
	}

	fmt.Printf("[Workspace %s] Deleted\n", shortID(id))
	return true
}

// TouchWorkspace updates the LastAccessed time to keep the workspace alive.
func (m *Manager) TouchWorkspace(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.workspaces[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	state.Workspace.LastAccessed = state.LastAccessed
	return true
}

// cleanupOldWorkspacesIfNeeded removes least recently used workspaces if at capacity
func (m *Manager) cleanupOldWorkspacesIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.workspaces) < MaxWorkspaces {
		return
	}

	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.workspaces[ids[i]].LastAccessed.Before(m.workspaces[ids[j]].LastAccessed)
	})

	toFree := len(m.workspaces) - MaxWorkspaces + 1
	for _, id := range ids[:toFree] {
		delete(m.workspaces, id)
		fmt.Printf("[Manager] Cleaned up old workspace %s to free memory\n", shortID(id))
	}
	m.purgeStored(ids[:toFree])
}

// CleanupOldWorkspaces removes workspaces idle for longer than maxAge,
// but keeps workspaces that have been accessed within WorkspaceKeepAliveWindow.
// Their stored rows are purged in the background.
func (m *Manager) CleanupOldWorkspaces(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-WorkspaceKeepAliveWindow)

	var removed []string
	for id, state := range m.workspaces {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.workspaces, id)
			removed = append(removed, id)
			fmt.Printf("[Manager] Cleaned up aged workspace %s (last accessed: %s ago)\n",
				shortID(id), time.Since(state.LastAccessed).Round(time.Second))
		}
	}
	m.purgeStored(removed)
	return len(removed)
}

// purgeStored deletes the stored rows of workspaces already dropped from
// memory. Callers may hold m.mu; the delete runs on its own goroutine.
func (m *Manager) purgeStored(ids []string) {
	if m.store == nil || len(ids) == 0 {
		return
	}
	ids = append([]string(nil), ids...)

	m.persistWg.Add(1)
	go func() {
		defer m.persistWg.Done()
		m.persistMu.Lock()
		defer m.persistMu.Unlock()

		for _, id := range ids {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			if err := m.store.DeleteWorkspace(ctx, id); err != nil {
				fmt.Printf("[Workspace %s] WARNING: failed to purge stored rows: %v\n", shortID(id), err)
			}
			cancel()
		}
	}()
}

// Close waits for pending writes and closes the store.
func (m *Manager) Close() error {
	m.persistWg.Wait()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func copyWorkspace(ws *models.Workspace) *models.Workspace {
	c := *ws
	c.Solutions = make([]models.SolutionInfo, len(ws.Solutions))
	copy(c.Solutions, ws.Solutions)
	return &c
}

func derefErrors(errs []*models.ParseError) []models.ParseError {
	out := make([]models.ParseError, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
