package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/pdptw-visualizer/backend/internal/analysis"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/session"
	"github.com/pdptw-visualizer/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// fakeRouteStore serves canned persisted routes.
type fakeRouteStore struct {
	summaries []session.RouteSummary
	stops     []session.RouteStop
	err       error
}

func (f *fakeRouteStore) RouteSummaries(ctx context.Context, solutionID string) ([]session.RouteSummary, error) {
	return f.summaries, f.err
}

func (f *fakeRouteStore) RouteStops(ctx context.Context, solutionID string, routeID int) ([]session.RouteStop, error) {
	return f.stops, f.err
}

type workspaceFixture struct {
	store   *testutil.MockStorage
	mgr     *session.Manager
	handler WorkspaceHandler
}

func newWorkspaceFixture(routes RouteStore) *workspaceFixture {
	store := testutil.NewMockStorage()
	store.AddFile("inst", "tiny.txt", []byte(testInstance))
	store.AddFile("sol", "tiny.sol", []byte(testSolution))
	store.AddFile("bad-inst", "bad.txt", []byte("NAME: x\nVEHICLES: 3\n"))
	store.AddFile("short-inst", "short.txt", []byte("SIZE: 2\nNODES\n0 0 0 0 0 1 0 0 0\nEDGES\n0 1\n1 0\n"))
	store.AddFile("empty-sol", "empty.sol", []byte("Instance name : tiny\nSolution\n"))

	mgr := session.NewManager()
	return &workspaceFixture{
		store:   store,
		mgr:     mgr,
		handler: NewWorkspaceHandler(store, mgr, routes),
	}
}

// createWorkspace opens a workspace from the "inst" file and returns its id.
func (f *workspaceFixture) createWorkspace(t *testing.T) string {
	t.Helper()
	c, rec := newContext(http.MethodPost, "/api/workspaces", fileRefRequest{FileID: "inst"}, nil)
	require.NoError(t, f.handler.HandleCreateWorkspace(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var ws models.Workspace
	decodeJSON(t, rec, &ws)
	return ws.ID
}

func (f *workspaceFixture) addSolution(t *testing.T, wsID string) string {
	t.Helper()
	c, rec := newContext(http.MethodPost, "/api/workspaces/x/solutions", fileRefRequest{FileID: "sol"}, map[string]string{"id": wsID})
	require.NoError(t, f.handler.HandleAddSolution(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var info models.SolutionInfo
	decodeJSON(t, rec, &info)
	return info.ID
}

func TestWorkspaceHandler_CreateWorkspace(t *testing.T) {
	tests := []struct {
		name       string
		fileID     string
		wantStatus int
		errCode    string
	}{
		{name: "valid instance", fileID: "inst", wantStatus: http.StatusCreated},
		{name: "missing file id", fileID: "", wantStatus: http.StatusBadRequest, errCode: "VALIDATION_ERROR"},
		{name: "unknown file", fileID: "nope", wantStatus: http.StatusNotFound, errCode: "NOT_FOUND"},
		{name: "unknown keyword", fileID: "bad-inst", wantStatus: http.StatusUnprocessableEntity, errCode: "FORMAT_ERROR"},
		{name: "truncated nodes block", fileID: "short-inst", wantStatus: http.StatusUnprocessableEntity, errCode: "SIZE_MISMATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkspaceFixture(nil)
			c, rec := newContext(http.MethodPost, "/api/workspaces", fileRefRequest{FileID: tt.fileID}, nil)

			err := f.handler.HandleCreateWorkspace(c)
			if tt.errCode != "" {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				assert.Empty(t, f.mgr.ListWorkspaces())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var ws models.Workspace
			decodeJSON(t, rec, &ws)
			assert.Equal(t, "tiny", ws.Instance.Name)
			assert.Equal(t, 3, ws.Instance.Size)
			assert.Equal(t, "inst", ws.InstanceFileID)
		})
	}
}

func TestWorkspaceHandler_FormatErrorCarriesLine(t *testing.T) {
	f := newWorkspaceFixture(nil)
	c, _ := newContext(http.MethodPost, "/api/workspaces", fileRefRequest{FileID: "bad-inst"}, nil)

	apiErr := assertAPIError(t, f.handler.HandleCreateWorkspace(c), http.StatusUnprocessableEntity, "FORMAT_ERROR")
	assert.Equal(t, 2, apiErr.Line)
	assert.Contains(t, apiErr.Message, "VEHICLES")
}

func TestWorkspaceHandler_WorkspaceLifecycle(t *testing.T) {
	f := newWorkspaceFixture(nil)
	wsID := f.createWorkspace(t)
	params := map[string]string{"id": wsID}

	c, rec := newContext(http.MethodGet, "/api/workspaces", nil, nil)
	require.NoError(t, f.handler.HandleListWorkspaces(c))
	var list []models.Workspace
	decodeJSON(t, rec, &list)
	assert.Len(t, list, 1)

	c, rec = newContext(http.MethodGet, "/api/workspaces/x", nil, params)
	require.NoError(t, f.handler.HandleGetWorkspace(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/api/workspaces/x/instance", nil, params)
	require.NoError(t, f.handler.HandleGetInstance(c))
	var inst models.Instance
	decodeJSON(t, rec, &inst)
	assert.Equal(t, [][]int{{0, 5, 10}, {5, 0, 5}, {10, 5, 0}}, inst.Times)

	c, rec = newContext(http.MethodPost, "/api/workspaces/x/keepalive", nil, params)
	require.NoError(t, f.handler.HandleKeepAlive(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = newContext(http.MethodDelete, "/api/workspaces/x", nil, params)
	require.NoError(t, f.handler.HandleDeleteWorkspace(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for name, call := range map[string]func() error{
		"get": func() error {
			c, _ := newContext(http.MethodGet, "/", nil, params)
			return f.handler.HandleGetWorkspace(c)
		},
		"instance": func() error {
			c, _ := newContext(http.MethodGet, "/", nil, params)
			return f.handler.HandleGetInstance(c)
		},
		"keepalive": func() error {
			c, _ := newContext(http.MethodPost, "/", nil, params)
			return f.handler.HandleKeepAlive(c)
		},
		"delete": func() error {
			c, _ := newContext(http.MethodDelete, "/", nil, params)
			return f.handler.HandleDeleteWorkspace(c)
		},
		"solutions": func() error {
			c, _ := newContext(http.MethodGet, "/", nil, params)
			return f.handler.HandleListSolutions(c)
		},
	} {
		t.Run(name, func(t *testing.T) {
			assertAPIError(t, call(), http.StatusNotFound, "NOT_FOUND")
		})
	}
}

func TestWorkspaceHandler_Solutions(t *testing.T) {
	f := newWorkspaceFixture(nil)
	wsID := f.createWorkspace(t)
	solID := f.addSolution(t, wsID)
	params := map[string]string{"id": wsID, "solutionId": solID}

	c, rec := newContext(http.MethodGet, "/api/workspaces/x/solutions", nil, params)
	require.NoError(t, f.handler.HandleListSolutions(c))
	var infos []models.SolutionInfo
	decodeJSON(t, rec, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, 40, infos[0].TotalCost)
	assert.Equal(t, 2, infos[0].RouteCount)
	assert.Equal(t, "tester", infos[0].Authors)

	c, rec = newContext(http.MethodGet, "/api/workspaces/x/solutions/y", nil, params)
	require.NoError(t, f.handler.HandleGetSolution(c))
	var body struct {
		Solution  models.Solution `json:"solution"`
		TotalCost int             `json:"totalCost"`
		StopCount int             `json:"stopCount"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, 40, body.TotalCost)
	assert.Equal(t, 3, body.StopCount)
	require.Len(t, body.Solution.Routes, 2)
	assert.Equal(t, []int{0, 1, 2, 0}, body.Solution.Routes[0].Sequence)
	assert.Equal(t, 20, body.Solution.Routes[0].Cost)
	assert.Equal(t, []int{0, 2, 0}, body.Solution.Routes[1].Sequence)

	c, _ = newContext(http.MethodGet, "/", nil, map[string]string{"id": wsID, "solutionId": "missing"})
	assertAPIError(t, f.handler.HandleGetSolution(c), http.StatusNotFound, "NOT_FOUND")
}

func TestWorkspaceHandler_AddSolutionErrors(t *testing.T) {
	f := newWorkspaceFixture(nil)
	wsID := f.createWorkspace(t)

	c, _ := newContext(http.MethodPost, "/", fileRefRequest{FileID: "empty-sol"}, map[string]string{"id": wsID})
	assertAPIError(t, f.handler.HandleAddSolution(c), http.StatusUnprocessableEntity, "EMPTY_SOLUTION")

	c, _ = newContext(http.MethodPost, "/", fileRefRequest{FileID: "sol"}, map[string]string{"id": "missing"})
	assertAPIError(t, f.handler.HandleAddSolution(c), http.StatusNotFound, "NOT_FOUND")

	c, _ = newContext(http.MethodPost, "/", fileRefRequest{FileID: "nope"}, map[string]string{"id": wsID})
	assertAPIError(t, f.handler.HandleAddSolution(c), http.StatusNotFound, "NOT_FOUND")
}

func TestWorkspaceHandler_RoutesMsgpack(t *testing.T) {
	f := newWorkspaceFixture(nil)
	wsID := f.createWorkspace(t)
	solID := f.addSolution(t, wsID)

	c, rec := newContext(http.MethodGet, "/", nil, map[string]string{"id": wsID, "solutionId": solID})
	require.NoError(t, f.handler.HandleGetRoutesMsgpack(c))
	assert.Equal(t, msgpackContentType, rec.Header().Get("Content-Type"))

	var payload struct {
		InstanceName string         `msgpack:"instanceName"`
		Routes       []models.Route `msgpack:"routes"`
		TotalCost    int            `msgpack:"totalCost"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "tiny", payload.InstanceName)
	assert.Equal(t, 40, payload.TotalCost)
	require.Len(t, payload.Routes, 2)
	assert.Equal(t, models.Coordinate{X: 3, Y: 4}, payload.Routes[0].Path[1])
}

func TestWorkspaceHandler_Analysis(t *testing.T) {
	f := newWorkspaceFixture(nil)
	wsID := f.createWorkspace(t)
	solID := f.addSolution(t, wsID)

	c, rec := newContext(http.MethodGet, "/", nil, map[string]string{"id": wsID, "solutionId": solID})
	require.NoError(t, f.handler.HandleGetAnalysis(c))

	var body struct {
		Summary analysis.Summary       `json:"summary"`
		Routes  []analysis.RouteReport `json:"routes"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, 2, body.Summary.Routes)
	assert.Equal(t, 40, body.Summary.TravelTime)
	assert.True(t, body.Summary.Feasible)
	assert.Len(t, body.Routes, 2)
}

func TestWorkspaceHandler_StoredRoutes(t *testing.T) {
	routes := &fakeRouteStore{
		summaries: []session.RouteSummary{{RouteID: 0, Color: "#e6194b", Cost: 20, StopCount: 4}},
		stops:     []session.RouteStop{{Position: 0, NodeID: 0}, {Position: 1, NodeID: 1, X: 3, Y: 4}},
	}
	f := newWorkspaceFixture(routes)
	wsID := f.createWorkspace(t)
	solID := f.addSolution(t, wsID)
	params := map[string]string{"id": wsID, "solutionId": solID}

	c, rec := newContext(http.MethodGet, "/", nil, params)
	require.NoError(t, f.handler.HandleGetStoredRoutes(c))
	var summaries []session.RouteSummary
	decodeJSON(t, rec, &summaries)
	assert.Equal(t, routes.summaries, summaries)

	c, rec = newContext(http.MethodGet, "/?route=0", nil, params)
	require.NoError(t, f.handler.HandleGetStoredRoutes(c))
	var stops []session.RouteStop
	decodeJSON(t, rec, &stops)
	assert.Equal(t, routes.stops, stops)

	c, _ = newContext(http.MethodGet, "/?route=-2", nil, params)
	assertAPIError(t, f.handler.HandleGetStoredRoutes(c), http.StatusBadRequest, "BAD_REQUEST")

	routes.err = errors.New("disk gone")
	c, _ = newContext(http.MethodGet, "/", nil, params)
	assertAPIError(t, f.handler.HandleGetStoredRoutes(c), http.StatusInternalServerError, "INTERNAL_ERROR")

	noStore := NewWorkspaceHandler(f.store, f.mgr, nil)
	c, _ = newContext(http.MethodGet, "/", nil, params)
	assertAPIError(t, noStore.HandleGetStoredRoutes(c), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
}
