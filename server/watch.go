/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rulego/streamflow/flow"
	"github.com/rulego/streamflow/types"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchMessage is the JSON frame exchanged on the watch socket.
//
// The server sends "watching" when a flow is attached, "record" for every
// sink record, "terminal" when a watched flow ends and "error" for rejected
// commands. Clients send "watch" and "unwatch" with a flow id.
type WatchMessage struct {
	Type      string                 `json:"type"`
	Flow      types.FlowID           `json:"flow,omitempty"`
	Timestamp int64                  `json:"ts,omitempty"`
	Record    map[string]interface{} `json:"record,omitempty"`
	Summary   *types.FlowSummary     `json:"summary,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg WatchMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	var initial []types.FlowID
	for _, v := range r.URL.Query()["flow"] {
		id, err := types.ParseFlowID(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		initial = append(initial, id)
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade: %v", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer func() { _ = raw.Close() }()

	session := s.engine.OpenSession()
	defer func() { _ = s.engine.CloseSession(session.ID()) }()
	s.log.Debug("session %s watching from %s", session.ID(), r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for _, id := range initial {
		s.attach(conn, session, id)
	}

	go func() {
		defer cancel()
		for {
			var cmd WatchMessage
			if err := raw.ReadJSON(&cmd); err != nil {
				return
			}
			switch cmd.Type {
			case "watch":
				s.attach(conn, session, cmd.Flow)
			case "unwatch":
				if err := s.engine.UnwatchFlow(session.ID(), cmd.Flow); err != nil {
					_ = conn.send(WatchMessage{Type: "error", Flow: cmd.Flow, Error: err.Error()})
					continue
				}
				_ = conn.send(WatchMessage{Type: "unwatched", Flow: cmd.Flow})
			default:
				_ = conn.send(WatchMessage{Type: "error", Error: "unknown command: " + cmd.Type})
			}
		}
	}()

	s.forward(ctx, conn, session)
}

// attach acknowledges before watching, so the ack precedes any record.
func (s *Server) attach(conn *wsConn, session *flow.Session, id types.FlowID) {
	if _, ok := s.engine.Flow(id); !ok {
		_ = conn.send(WatchMessage{Type: "error", Flow: id, Error: flow.ErrFlowNotFound.Error()})
		return
	}
	if err := conn.send(WatchMessage{Type: "watching", Flow: id}); err != nil {
		return
	}
	if err := s.engine.WatchFlow(session.ID(), id); err != nil {
		_ = conn.send(WatchMessage{Type: "error", Flow: id, Error: err.Error()})
	}
}

func (s *Server) forward(ctx context.Context, conn *wsConn, session *flow.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case d := <-session.C():
			msg := WatchMessage{Type: "record", Flow: d.FlowID}
			if d.IsNotice() {
				msg.Type = "terminal"
				msg.Summary = d.Notice
			} else {
				msg.Timestamp = d.Record.Timestamp
				msg.Record = d.Record.Map()
			}
			if err := conn.send(msg); err != nil {
				s.log.Debug("session %s: %v", session.ID(), err)
				return
			}
		}
	}
}
