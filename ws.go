package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tankdown/server/internal/proto"
	"tankdown/server/logging"
	"tankdown/server/logging/lifecycle"
	"tankdown/server/logging/network"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWS serves the browser transport. Each websocket binary message is
// one envelope payload (no length prefix; the socket frames for us), packed
// with the same opportunistic compression as TCP.
func (g *gameServer) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		network.TransportError(ctx, g.publisher, logging.EntityRef{Kind: logging.EntityKindServer}, "upgrade", err)
		return
	}

	sess := g.registry.AddConnection(conn)
	lifecycle.SessionConnected(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false))
	go g.writeSocket(ctx, sess, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(g.cfg.DisconnectAfter)); err != nil {
			g.registry.Disconnect(sess, "read deadline")
			return
		}
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !sess.Terminated() {
				network.TransportError(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false), "read", err)
			}
			g.registry.Disconnect(sess, "read error")
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if len(payload) == 0 || len(payload) > proto.MaxFrameLength {
			g.rejectFrame(ctx, sess, proto.ErrFrameTooLarge)
			return
		}
		if err := g.route(ctx, sess, payload); err != nil {
			g.rejectFrame(ctx, sess, err)
			return
		}
	}
}

// writeSocket drains the outbound queue onto the websocket. Mirrors
// writeFrames minus the length prefix.
func (g *gameServer) writeSocket(ctx context.Context, sess *Session, conn *websocket.Conn) {
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
			if err := conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait)); err != nil {
				g.registry.Disconnect(sess, "write deadline")
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, proto.Pack(msg)); err != nil {
				if ctx.Err() == nil && !sess.Terminated() {
					network.TransportError(ctx, g.publisher, lifecycle.SessionRef(sess.ID(), false), "write", err)
				}
				g.registry.Disconnect(sess, "write error")
				return
			}
		}
	}
}
