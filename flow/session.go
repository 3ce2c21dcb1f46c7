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

package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/types"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// Delivery is one item on a session channel: a sink record of a watched
// flow, or the notice that the flow became terminal.
type Delivery struct {
	FlowID types.FlowID
	Record *types.Record
	Notice *types.FlowSummary
}

// IsNotice reports whether d announces a terminal flow.
func (d Delivery) IsNotice() bool {
	return d.Notice != nil
}

// Session is a control-plane client. It receives the output of the flows it
// watches on C. Record delivery blocks while the channel is full, so a slow
// session throttles the flows it watches.
type Session struct {
	id      types.SessionID
	created time.Time
	ch      chan Delivery
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	watched map[types.FlowID]struct{}
}

func newSession(bufferSize int) *Session {
	return &Session{
		id:      types.SessionID(uuid.NewString()),
		created: time.Now(),
		ch:      make(chan Delivery, bufferSize),
		closed:  make(chan struct{}),
		watched: make(map[types.FlowID]struct{}),
	}
}

func (s *Session) ID() types.SessionID {
	return s.id
}

// C delivers records and notices. It is never closed; select on Done.
func (s *Session) C() <-chan Delivery {
	return s.ch
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Watched returns the ids of the flows the session watches, ascending.
func (s *Session) Watched() []types.FlowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.FlowID, 0, len(s.watched))
	for id := range s.watched {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Session) listenerName() string {
	return "session/" + string(s.id)
}

func (s *Session) OnRecord(ctx context.Context, id types.FlowID, rec *types.Record) {
	if ctx.Err() != nil {
		return
	}
	select {
	case s.ch <- Delivery{FlowID: id, Record: rec}:
	case <-s.closed:
	case <-ctx.Done():
	}
}

// OnTerminal queues the notice without holding up the flow's shutdown.
func (s *Session) OnTerminal(summary types.FlowSummary) {
	d := Delivery{FlowID: summary.ID, Notice: &summary}
	select {
	case s.ch <- d:
		return
	case <-s.closed:
		return
	default:
	}
	go func() {
		select {
		case s.ch <- d:
		case <-s.closed:
		}
	}()
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
	})
}

// SessionManager owns the open sessions. Sessions and flows reference each
// other by id only.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[types.SessionID]*Session
	flows      *Registry
	bufferSize int
	log        logger.Logger
}

// NewSessionManager creates a manager resolving flow ids against flows.
func NewSessionManager(flows *Registry, bufferSize int, log logger.Logger) *SessionManager {
	if log == nil {
		log = logger.GetDefault()
	}
	return &SessionManager{
		sessions:   make(map[types.SessionID]*Session),
		flows:      flows,
		bufferSize: bufferSize,
		log:        log,
	}
}

// Open creates a session.
func (m *SessionManager) Open() *Session {
	s := newSession(m.bufferSize)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.log.Debug("session %s opened", s.id)
	return s
}

// Get looks up an open session.
func (m *SessionManager) Get(id types.SessionID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close detaches the session from every flow it watches and closes it.
func (m *SessionManager) Close(id types.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("close session %s: %w", id, ErrSessionNotFound)
	}
	for _, fid := range s.Watched() {
		if f, ok := m.flows.Get(fid); ok {
			f.RemoveListener(s.listenerName())
		}
	}
	s.close()
	m.log.Debug("session %s closed", id)
	return nil
}

// Watch subscribes a session to a flow's sink output. Watching a terminal
// flow delivers its notice at once.
func (m *SessionManager) Watch(sid types.SessionID, fid types.FlowID) error {
	s, ok := m.Get(sid)
	if !ok {
		return fmt.Errorf("watch flow %s: %w", fid, ErrSessionNotFound)
	}
	f, ok := m.flows.Get(fid)
	if !ok {
		return fmt.Errorf("watch flow %s: %w", fid, ErrFlowNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, watching := s.watched[fid]; watching {
		return nil
	}
	if !f.AddListener(s.listenerName(), s) {
		s.OnTerminal(f.Summary())
		return nil
	}
	s.watched[fid] = struct{}{}
	return nil
}

// Unwatch stops delivery of a flow to a session. It is a no-op when the
// session does not watch the flow.
func (m *SessionManager) Unwatch(sid types.SessionID, fid types.FlowID) error {
	s, ok := m.Get(sid)
	if !ok {
		return fmt.Errorf("unwatch flow %s: %w", fid, ErrSessionNotFound)
	}
	s.mu.Lock()
	_, watching := s.watched[fid]
	delete(s.watched, fid)
	s.mu.Unlock()
	if !watching {
		return nil
	}
	if f, ok := m.flows.Get(fid); ok {
		f.RemoveListener(s.listenerName())
	}
	return nil
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	ids := make([]types.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
