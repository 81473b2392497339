package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSolver returns testSolution once release is closed.
func blockingSolver(release <-chan struct{}) solver.Executor {
	return solver.ExecutorFunc(func(ctx context.Context, jobID string, params map[string]string, instance string) (string, error) {
		<-release
		return testSolution, nil
	})
}

func newStreamServer(t *testing.T, mgr *solver.Manager) *httptest.Server {
	t.Helper()
	e := echo.New()
	SetupMiddleware(e, false)
	e.GET("/api/ws/solve/:jobId", NewWebSocketHandler(mgr, 64).HandleSolveStream)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dialStream(t *testing.T, srv *httptest.Server, jobID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/solve/" + jobID
	return websocket.DefaultDialer.Dial(url, nil)
}

// readUntilClosed collects messages until the server closes the stream.
func readUntilClosed(t *testing.T, conn *websocket.Conn) []WSMessage {
	t.Helper()
	var msgs []WSMessage
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func TestWebSocket_StreamsUntilComplete(t *testing.T) {
	release := make(chan struct{})
	mgr := solver.NewManager(blockingSolver(release), nil, solver.Options{})
	srv := newStreamServer(t, mgr)

	job, err := mgr.Submit(context.Background(), solver.Request{Instance: testInstance})
	require.NoError(t, err)

	conn, _, err := dialStream(t, srv, job.ID)
	require.NoError(t, err)
	defer conn.Close()

	var first WSMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, MsgTypeConnected, first.Type)
	assert.Equal(t, job.ID, first.ID)

	close(release)
	msgs := readUntilClosed(t, conn)
	require.NotEmpty(t, msgs)

	last := msgs[len(msgs)-1]
	assert.Equal(t, MsgTypeSolveComplete, last.Type)
	for _, m := range msgs[:len(msgs)-1] {
		assert.Equal(t, MsgTypeSolveStatus, m.Type)
	}

	var final models.SolveJob
	require.NoError(t, json.Unmarshal(last.Payload, &final))
	assert.Equal(t, models.SolveStatusComplete, final.Status)
	assert.Empty(t, final.SolutionText, "raw solver output is not streamed")
	require.NotNil(t, final.Solution)
	assert.Equal(t, 40, final.Solution.TotalCost())
	mgr.Wait()
}

func TestWebSocket_FinishedJob(t *testing.T) {
	release := make(chan struct{})
	close(release)
	mgr := solver.NewManager(blockingSolver(release), nil, solver.Options{})
	srv := newStreamServer(t, mgr)

	job, err := mgr.Submit(context.Background(), solver.Request{Instance: testInstance})
	require.NoError(t, err)
	mgr.Wait()

	conn, _, err := dialStream(t, srv, job.ID)
	require.NoError(t, err)
	defer conn.Close()

	msgs := readUntilClosed(t, conn)
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgTypeConnected, msgs[0].Type)
	assert.Equal(t, MsgTypeSolveComplete, msgs[1].Type)
}

func TestWebSocket_PingPong(t *testing.T) {
	release := make(chan struct{})
	mgr := solver.NewManager(blockingSolver(release), nil, solver.Options{})
	srv := newStreamServer(t, mgr)
	defer func() {
		close(release)
		mgr.Wait()
	}()

	job, err := mgr.Submit(context.Background(), solver.Request{Instance: testInstance})
	require.NoError(t, err)

	conn, _, err := dialStream(t, srv, job.ID)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == MsgTypePong {
			return
		}
	}
}

func TestWebSocket_UnknownJob(t *testing.T) {
	mgr := solver.NewManager(blockingSolver(nil), nil, solver.Options{})
	srv := newStreamServer(t, mgr)

	_, resp, err := dialStream(t, srv, "missing")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
