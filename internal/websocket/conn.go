package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the slice of *websocket.Conn the client pumps depend on.
// Production code wraps gorilla's connection; tests substitute a
// scripted one.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// gorillaConn adapts *websocket.Conn to Conn. Everything forwards via
// the embedded connection except RemoteAddr, which gorilla exposes as a
// net.Addr rather than a string.
type gorillaConn struct {
	*websocket.Conn
}

func (g gorillaConn) RemoteAddr() string {
	return g.Conn.RemoteAddr().String()
}
