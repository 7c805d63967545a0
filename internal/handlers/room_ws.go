// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/auth"
	"github.com/anayv/crease/internal/events"
	"github.com/anayv/crease/internal/room"
)

const wsSubprotocol = "crease"

// WSHandler upgrades a socket, authenticates the session, mints a connection
// id, and runs the read loop until the peer goes away. All room membership
// for the connection is torn down on exit.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != wsSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the crease subprotocol")
		return
	}

	name, err := sessionName(r)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"remote": remoteAddr, "error": err}).Warn("session authentication failed")
		c.Close(InvalidSessionError, "invalid session token")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &room.Conn{
		ID:      uuid.New(),
		Name:    name,
		Cancel:  cancel,
		OutChan: make(chan events.Msg, 32),
	}

	s.Log.WithFields(logrus.Fields{
		"conn":   conn.ID,
		"name":   name,
		"remote": remoteAddr,
	}).Info("websocket connected")

	go s.writePump(ctx, c, conn)
	s.readPump(ctx, c, conn)

	// Tear down everything this connection held: room membership (with
	// host reassignment inside the registry) and rate-limit windows.
	s.Rooms.Leave(conn.ID)
	s.Limiter.Forget(conn.ID)
	s.Log.WithFields(logrus.Fields{"conn": conn.ID, "remote": remoteAddr}).Info("websocket disconnected")
}

// sessionName pulls the session token from the query string or cookie and
// authenticates it.
func sessionName(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if cookie, err := r.Cookie("session_token"); err == nil {
			token = cookie.Value
		}
	}
	return auth.AuthenticateSession(token)
}

// readPump decodes inbound frames and hands them to the router; replies (if
// any) go back to the sender only.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *room.Conn) {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return
			}
			if strings.Contains(err.Error(), "context canceled") {
				return
			}
			s.Log.WithFields(logrus.Fields{"conn": conn.ID, "error": err}).Warn("websocket read error")
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			conn.WriteError("validation", "invalid JSON frame")
			continue
		}

		if reply := s.Router.Dispatch(ctx, conn, env); reply != nil {
			conn.Write(reply)
		}
	}
}

// writePump drains the connection's outbound channel onto the socket.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *room.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.Log.WithFields(logrus.Fields{"conn": conn.ID, "error": err}).Warn("failed to marshal outbound frame")
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
