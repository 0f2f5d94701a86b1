package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSMessage is the JSON message protocol for the WebSocket endpoint.
// Example: {"type": "research", "content": "tell me about pikachu", "sessionId": "abc"}
type WSMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId,omitempty"`
}

// jsonMarshal is used when encoding WSMessage; tests may replace it to force
// Marshal errors. Access is protected by jsonMarshalMu for race-safe swaps.
var (
	jsonMarshalMu sync.RWMutex
	jsonMarshal   = json.Marshal
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS upgrades the request and runs a read loop. "research" messages run
// a query and reply on the same connection, with research_start/research_done
// progress frames around the answer; other types are echoed. Turns carrying a
// session ID are serialized through the session queue like HTTP chat turns.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var in WSMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			reply := WSMessage{Type: "error", Content: "invalid JSON"}
			writeWSMessage(conn, &writeMu, &reply)
			continue
		}

		if in.Type != "research" {
			out := WSMessage{Type: in.Type, Content: "echo: " + in.Content, SessionID: in.SessionID}
			writeWSMessage(conn, &writeMu, &out)
			continue
		}

		start := WSMessage{Type: "research_start", SessionID: in.SessionID}
		writeWSMessage(conn, &writeMu, &start)

		content := s.runWSResearch(r, in)

		out := WSMessage{Type: "research", Content: content, SessionID: in.SessionID}
		writeWSMessage(conn, &writeMu, &out)
		done := WSMessage{Type: "research_done", SessionID: in.SessionID}
		writeWSMessage(conn, &writeMu, &done)
	}
}

// runWSResearch executes one research turn for a WebSocket message, through
// the session queue when a session ID is present.
func (s *Server) runWSResearch(r *http.Request, in WSMessage) string {
	if in.SessionID == "" {
		return s.researcher.Research(r.Context(), in.Content).Results
	}
	var content string
	err := s.turns.Do(r.Context(), in.SessionID, func() error {
		content = s.researcher.Research(r.Context(), in.Content).Results
		return nil
	})
	if err != nil {
		return "error: " + err.Error()
	}
	return content
}

func writeWSMessage(conn *websocket.Conn, mu *sync.Mutex, msg *WSMessage) {
	jsonMarshalMu.RLock()
	marshal := jsonMarshal
	jsonMarshalMu.RUnlock()
	data, err := marshal(msg)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
