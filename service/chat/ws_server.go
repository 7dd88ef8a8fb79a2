package chat

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Mehdi856/Chat-Project/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSOptions tunes the accepted transport; zero values get defaults.
type WSOptions struct {
	WriteTimeout time.Duration
}

// HandleWS upgrades the HTTP request and runs a session to completion. The
// request context is wired into the session so server shutdown closes every
// live connection.
func (s *Server) HandleWS(opts WSOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Infof("[ws] upgrade failed: %v", err)
			return
		}
		conn := NewWSConn(ws, opts.WriteTimeout)
		sess := NewSession(s, conn)
		sess.Run(c.Request.Context())
	}
}
