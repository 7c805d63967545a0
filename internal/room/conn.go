// internal/room/conn.go
package room

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/events"
)

// Conn is a single client's presence, created by the transport layer when a
// socket is accepted and handed to the registry on join. The core only ever
// sees this struct, never the underlying websocket.
type Conn struct {
	ID      uuid.UUID
	Name    string
	Cancel  func()
	OutChan chan events.Msg
}

// Write pushes a message onto the connection's OutChan non-blockingly. A
// full or closed channel drops the message rather than stalling the room.
func (c *Conn) Write(msg events.Msg) {
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.WithFields(logrus.Fields{
			"conn": c.ID,
			"type": msgType,
		}).Warn("OutChan closed or full, dropping message")
	}
}

// WriteError is a convenience to report a failure to this connection only.
func (c *Conn) WriteError(code, message string) {
	c.Write(events.Msg{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}
