package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 5 * time.Second

// wsConn adapts a gorilla connection to the Conn capability. gorilla's
// WriteMessage must not be called concurrently, so all writes (frames and
// close control messages) serialize behind writeMu.
type wsConn struct {
	ws           *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
}

// NewWSConn wraps an upgraded websocket connection. writeTimeout bounds every
// outbound push so one stalled peer cannot wedge a fan-out.
func NewWSConn(ws *websocket.Conn, writeTimeout time.Duration) Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

func (c *wsConn) Receive() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

func (c *wsConn) Push(f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int) error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, "")
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}
