package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"tankdown/server/internal/auth"
	"tankdown/server/internal/proto"
	"tankdown/server/logging"
	"tankdown/server/logging/lifecycle"
	"tankdown/server/logging/matchmaking"
	"tankdown/server/logging/network"
)

// gameServer ties the transports to the registry, auth provider, and
// matchmaking queue. Every collaborator is injected at construction.
type gameServer struct {
	cfg       serverConfig
	registry  *Registry
	auth      auth.Provider
	publisher logging.Publisher
	telemetry *telemetryCounters
}

func newGameServer(cfg serverConfig, registry *Registry, provider auth.Provider, publisher logging.Publisher, telemetry *telemetryCounters) *gameServer {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &gameServer{
		cfg:       cfg,
		registry:  registry,
		auth:      provider,
		publisher: publisher,
		telemetry: telemetry,
	}
}

// serveTCP accepts connections until the context ends. Closing the listener
// is the only way to unblock Accept, so a watcher goroutine does that on
// cancellation.
func (g *gameServer) serveTCP(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			network.TransportError(ctx, g.publisher, logging.EntityRef{Kind: logging.EntityKindServer}, "accept", err)
			continue
		}
		go g.handleConn(ctx, conn)
	}
}

// handleConn owns the read side of one TCP connection: it feeds bytes into
// the frame decoder and routes every complete payload. Any protocol
// violation tears the connection down.
func (g *gameServer) handleConn(ctx context.Context, conn net.Conn) {
	sess := g.registry.AddConnection(conn)
	lifecycle.SessionConnected(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false))
	go g.writeFrames(ctx, sess, conn)

	var decoder proto.FrameDecoder
	buf := make([]byte, 4096)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(g.cfg.DisconnectAfter)); err != nil {
			g.registry.Disconnect(sess, "read deadline")
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				payload, derr := decoder.Next()
				if derr != nil {
					g.rejectFrame(ctx, sess, derr)
					return
				}
				if payload == nil {
					break
				}
				if rerr := g.route(ctx, sess, payload); rerr != nil {
					g.rejectFrame(ctx, sess, rerr)
					return
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil && !sess.Terminated() {
				network.TransportError(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false), "read", err)
			}
			g.registry.Disconnect(sess, "read error")
			return
		}
	}
}

func (g *gameServer) rejectFrame(ctx context.Context, sess *Session, err error) {
	network.FrameRejected(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false), err.Error())
	if g.telemetry != nil {
		g.telemetry.IncrementFrameRejected()
	}
	g.registry.Disconnect(sess, "protocol violation")
}

// route dispatches one decoded payload. Responses go through the session's
// outbound queue so the connection keeps a single send path.
func (g *gameServer) route(ctx context.Context, sess *Session, payload []byte) error {
	raw, err := proto.Unpack(payload)
	if err != nil {
		return err
	}
	env, err := proto.Decode(raw)
	if err != nil {
		return err
	}

	switch env.Type {
	case proto.TypeAuthRequest:
		var req proto.AuthRequest
		if err := env.DecodeData(&req); err != nil {
			return err
		}
		return g.handleAuth(ctx, sess, req)

	case proto.TypeQueueJoin:
		return g.handleQueueJoin(ctx, sess)

	case proto.TypeInput:
		var in proto.Input
		if err := env.DecodeData(&in); err != nil {
			return err
		}
		sess.UpdateInput(in)
		return nil

	case proto.TypeHeartbeat:
		var hb proto.Heartbeat
		if err := env.DecodeData(&hb); err != nil {
			return err
		}
		return g.handleHeartbeat(sess, hb)

	default:
		return fmt.Errorf("unexpected message type %q", env.Type)
	}
}

// handleAuth validates the token. Failure keeps the connection open so the
// client may retry with a fresh token.
func (g *gameServer) handleAuth(ctx context.Context, sess *Session, req proto.AuthRequest) error {
	result := g.auth.Validate(ctx, req.Token)
	if !result.OK {
		return g.push(sess, proto.TypeAuthResponse, proto.AuthResponse{OK: false, Reason: result.Reason})
	}
	g.registry.Authenticate(sess, result.UserID)
	return g.push(sess, proto.TypeAuthResponse, proto.AuthResponse{OK: true, SessionID: sess.ID()})
}

func (g *gameServer) handleQueueJoin(ctx context.Context, sess *Session) error {
	position, err := g.registry.Enqueue(sess)
	if err != nil {
		if errors.Is(err, errNotAuthenticated) || errors.Is(err, errAlreadyQueued) {
			return g.push(sess, proto.TypeQueueStatus, proto.QueueStatus{
				Accepted: false,
				Queued:   g.registry.QueueDepth(),
			})
		}
		return err
	}
	matchmaking.QueueJoined(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false), matchmaking.QueueJoinedPayload{
		Position: position,
		Queued:   g.registry.QueueDepth(),
	})
	return g.push(sess, proto.TypeQueueStatus, proto.QueueStatus{
		Accepted: true,
		Position: position,
		Queued:   g.registry.QueueDepth(),
	})
}

func (g *gameServer) handleHeartbeat(sess *Session, hb proto.Heartbeat) error {
	now := time.Now()
	rtt := sess.UpdateHeartbeat(now, hb.ClientTime)
	return g.push(sess, proto.TypeHeartbeatResponse, proto.HeartbeatResponse{
		ServerTime: now.UnixMilli(),
		ClientTime: hb.ClientTime,
		RTTMillis:  rtt.Milliseconds(),
	})
}

func (g *gameServer) push(sess *Session, msgType string, payload any) error {
	data, err := proto.Encode(msgType, payload)
	if err != nil {
		return err
	}
	sess.PushMessage(data)
	return nil
}

// writeFrames is the connection's only send path. It drains the outbound
// queue on a flush interval or a queue notification, packing and framing
// each message.
func (g *gameServer) writeFrames(ctx context.Context, sess *Session, conn net.Conn) {
	ticker := time.NewTicker(g.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Notify():
		case <-ticker.C:
		}
		if sess.Terminated() {
			return
		}
		for _, msg := range sess.DrainMessages() {
			frame, err := proto.BuildFrame(proto.Pack(msg))
			if err != nil {
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait)); err != nil {
				g.registry.Disconnect(sess, "write deadline")
				return
			}
			if _, err := conn.Write(frame); err != nil {
				if ctx.Err() == nil && !sess.Terminated() {
					network.TransportError(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false), "write", err)
				}
				g.registry.Disconnect(sess, "write error")
				return
			}
		}
	}
}
