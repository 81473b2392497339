package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/models"
)

// WebSocket message types for the solve status protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected     = "connected"
	MsgTypeSolveStatus   = "solve:status"
	MsgTypeSolveComplete = "solve:complete"
	MsgTypeError         = "error"
	MsgTypePong          = "pong"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSMessage is the envelope for every WebSocket frame
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler streams solve job updates to clients
type WebSocketHandler struct {
	solves   SolveManager
	upgrader websocket.Upgrader
	maxMsg   int64
}

// NewWebSocketHandler creates a WebSocket handler. maxMessageKB bounds
// client frames.
func NewWebSocketHandler(solves SolveManager, maxMessageKB int) *WebSocketHandler {
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &WebSocketHandler{
		solves: solves,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMsg: int64(maxMessageKB) * 1024,
	}
}

// HandleSolveStream upgrades the connection and pushes every status change
// of a solve job until it finishes or the client goes away.
func (wsh *WebSocketHandler) HandleSolveStream(c echo.Context) error {
	jobID := c.Param("jobId")
	if wsh.solves == nil {
		return NewNotFoundError("solve job", jobID)
	}

	updates, cancel, ok := wsh.solves.Subscribe(jobID)
	if !ok {
		return NewNotFoundError("solve job", jobID)
	}
	defer cancel()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Printf("[WebSocket] Client connected for solve %s\n", shortID(jobID))

	// Reads run in their own goroutine; writes stay on this one.
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go wsh.readLoop(ws, pings, closed)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if err := wsh.send(ws, WSMessage{Type: MsgTypeConnected, ID: jobID}); err != nil {
		return nil
	}

	for {
		select {
		case job, open := <-updates:
			if !open {
				wsh.closeNormal(ws)
				return nil
			}
			msgType := MsgTypeSolveStatus
			if job.Done() {
				msgType = MsgTypeSolveComplete
			}
			if err := wsh.send(ws, WSMessage{Type: msgType, ID: jobID, Payload: mustJSON(statusPayload(job))}); err != nil {
				return nil
			}
		case <-pings:
			if err := wsh.send(ws, WSMessage{Type: MsgTypePong}); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			fmt.Printf("[WebSocket] Client disconnected from solve %s\n", shortID(jobID))
			return nil
		}
	}
}

func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, pings chan<- struct{}, closed chan<- struct{}) {
	defer close(closed)

	ws.SetReadLimit(wsh.maxMsg)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			return
		}
		if msg.Type == MsgTypePing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

// statusPayload drops the raw solver text from streamed updates.
func statusPayload(job models.SolveJob) models.SolveJob {
	job.SolutionText = ""
	return job
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
		return err
	}
	return nil
}

func (wsh *WebSocketHandler) closeNormal(ws *websocket.Conn) {
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(wsWriteWait))
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
