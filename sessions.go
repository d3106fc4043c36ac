package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"tankdown/server/internal/proto"
	"tankdown/server/logging"
	"tankdown/server/logging/lifecycle"
	"tankdown/server/logging/network"
)

// SessionState tracks where a connection sits in the auth lifecycle.
type SessionState int

const (
	SessionUnauthenticated SessionState = iota
	SessionAuthenticated
)

var (
	errNotAuthenticated = errors.New("session is not authenticated")
	errAlreadyQueued    = errors.New("session is already queued")
	errSessionGone      = errors.New("session is terminated")
)

// Session tracks one connection: auth state, heartbeat, the latest input,
// and the outbound message queue. The queue is filled by match engines and
// the routing layer and drained exclusively by the connection's send path.
type Session struct {
	id    uint64
	isBot bool

	mu            sync.Mutex
	state         SessionState
	userID        string
	lastHeartbeat time.Time
	lastRTT       time.Duration
	input         proto.Input
	outbound      [][]byte
	terminated    bool

	notify    chan struct{}
	transport io.Closer
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) IsBot() bool { return s.isBot }

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionAuthenticated
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// UpdateInput overwrites the session's input snapshot. Last write wins; no
// input history is kept.
func (s *Session) UpdateInput(in proto.Input) {
	s.mu.Lock()
	s.input = in
	s.mu.Unlock()
}

// InputCopy returns the most recent input known at read time.
func (s *Session) InputCopy() proto.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetBotInput synthesizes scripted input through the same buffer a real
// client writes to.
func (s *Session) SetBotInput(in proto.Input) {
	s.UpdateInput(in)
}

// ClearBotFire drops the fire latch after a bot's shot resolves.
func (s *Session) ClearBotFire() {
	s.mu.Lock()
	s.input.Fire = false
	s.mu.Unlock()
}

// UpdateHeartbeat records the heartbeat instant and derives an RTT estimate
// from the client-reported send time.
func (s *Session) UpdateHeartbeat(receivedAt time.Time, clientSent int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastHeartbeat = receivedAt

	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			s.lastRTT = rtt
		}
	}
	return s.lastRTT
}

// LastHeartbeat returns the wall-clock instant of the most recent heartbeat.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// PushMessage appends an encoded message to the outbound queue. Pushes to
// bots and terminated sessions are dropped; bots have no send path.
func (s *Session) PushMessage(data []byte) {
	if s.isBot {
		return
	}
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.outbound = append(s.outbound, data)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// DrainMessages removes and returns everything queued, atomically with
// respect to concurrent pushes.
func (s *Session) DrainMessages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outbound) == 0 {
		return nil
	}
	drained := s.outbound
	s.outbound = nil
	return drained
}

// Notify signals the send path that the outbound queue is non-empty.
func (s *Session) Notify() <-chan struct{} {
	return s.notify
}

// markTerminated flips the terminal flag and hands back the transport so the
// caller can close it outside the session lock. The second result reports
// whether this call performed the transition.
func (s *Session) markTerminated() (io.Closer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return nil, false
	}
	s.terminated = true
	s.outbound = nil
	return s.transport, true
}

// Registry owns every tracked session and the matchmaking queue.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint64]*Session
	queue    []uint64

	nextID    atomic.Uint64
	publisher logging.Publisher
	telemetry *telemetryCounters
}

func newRegistry(publisher logging.Publisher, telemetry *telemetryCounters) *Registry {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Registry{
		sessions:  make(map[uint64]*Session),
		publisher: publisher,
		telemetry: telemetry,
	}
}

// AddConnection allocates an unauthenticated session for a fresh transport.
func (r *Registry) AddConnection(transport io.Closer) *Session {
	sess := &Session{
		id:            r.nextID.Add(1),
		lastHeartbeat: time.Now(),
		notify:        make(chan struct{}, 1),
		transport:     transport,
	}
	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()
	return sess
}

// AddBot synthesizes an authenticated bot session with no transport.
func (r *Registry) AddBot() *Session {
	sess := &Session{
		id:            r.nextID.Add(1),
		isBot:         true,
		state:         SessionAuthenticated,
		lastHeartbeat: time.Now(),
		notify:        make(chan struct{}, 1),
	}
	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()
	return sess
}

// Authenticate transitions a session into the authenticated state. Queue
// joins are only accepted past this point.
func (r *Registry) Authenticate(sess *Session, userID string) {
	sess.mu.Lock()
	sess.state = SessionAuthenticated
	sess.userID = userID
	sess.mu.Unlock()
}

// Enqueue adds an authenticated session to the matchmaking queue and returns
// its 1-based position.
func (r *Registry) Enqueue(sess *Session) (int, error) {
	if sess.Terminated() {
		return 0, errSessionGone
	}
	if !sess.Authenticated() {
		return 0, errNotAuthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.queue {
		if id == sess.id {
			return 0, errAlreadyQueued
		}
	}
	r.queue = append(r.queue, sess.id)
	depth := len(r.queue)
	if r.telemetry != nil {
		r.telemetry.RecordQueueDepth(depth)
	}
	return depth, nil
}

// PopFromQueue removes and returns up to max queued sessions, skipping any
// that terminated while waiting.
func (r *Registry) PopFromQueue(max int) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	popped := make([]*Session, 0, max)
	remaining := r.queue[:0]
	for _, id := range r.queue {
		sess, ok := r.sessions[id]
		if !ok || sess.Terminated() {
			continue
		}
		if len(popped) < max {
			popped = append(popped, sess)
			continue
		}
		remaining = append(remaining, id)
	}
	r.queue = remaining
	if r.telemetry != nil {
		r.telemetry.RecordQueueDepth(len(r.queue))
	}
	return popped
}

// QueueDepth reports how many sessions are currently queued.
func (r *Registry) QueueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// QueuedSessions returns the live queued sessions in queue order.
func (r *Registry) QueuedSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	queued := make([]*Session, 0, len(r.queue))
	for _, id := range r.queue {
		if sess, ok := r.sessions[id]; ok && !sess.Terminated() {
			queued = append(queued, sess)
		}
	}
	return queued
}

// SnapshotSessions returns a point-in-time list of all tracked sessions.
func (r *Registry) SnapshotSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Disconnect marks a session terminated, removes it from tracking, and
// closes its transport. Match-side tank state is reconciled by the match
// engine on its next tick, not here.
func (r *Registry) Disconnect(sess *Session, reason string) {
	if sess == nil {
		return
	}
	transport, first := sess.markTerminated()

	r.mu.Lock()
	delete(r.sessions, sess.id)
	remaining := r.queue[:0]
	for _, id := range r.queue {
		if id != sess.id {
			remaining = append(remaining, id)
		}
	}
	r.queue = remaining
	if r.telemetry != nil {
		r.telemetry.RecordQueueDepth(len(r.queue))
	}
	r.mu.Unlock()

	if transport != nil {
		transport.Close()
	}
	if first {
		lifecycle.SessionDisconnected(context.Background(), r.publisher, lifecycle.SessionRef(sess.id, sess.isBot), reason)
	}
}

// RunHeartbeatSweep evicts sessions whose heartbeats have gone stale. It runs
// independently of each connection's own read loop so a wedged connection
// still gets reaped.
func (r *Registry) RunHeartbeatSweep(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, sess := range r.SnapshotSessions() {
				if sess.IsBot() || sess.Terminated() {
					continue
				}
				if now.Sub(sess.LastHeartbeat()) > timeout {
					network.HeartbeatTimeout(ctx, r.publisher, lifecycle.SessionRef(sess.id, false))
					r.Disconnect(sess, "heartbeat timeout")
				}
			}
		}
	}
}
