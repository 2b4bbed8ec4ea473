package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trackme/realtime/internal/config"
	"trackme/realtime/internal/session"
)

// Handler consumes inbound frames and disconnects. Implemented by the
// telemetry dispatcher.
type Handler interface {
	HandleMessage(ctx context.Context, c session.Conn, frame []byte)
	HandleDisconnect(c session.Conn)
}

// Server upgrades HTTP requests and runs one client per connection. A
// failure on one connection never touches another: each client owns its
// own goroutine pair and its errors stop only its own pumps.
type Server struct {
	upgrader websocket.Upgrader
	handler  Handler
	log      *logrus.Logger

	baseCtx      context.Context
	sendBuf      int
	readLimit    int64
	pingInterval time.Duration
}

func NewServer(baseCtx context.Context, cfg *config.Config, handler Handler, log *logrus.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Mobile clients connect from arbitrary origins.
				return true
			},
		},
		handler:      handler,
		log:          log,
		baseCtx:      baseCtx,
		sendBuf:      cfg.SendBufferSize,
		readLimit:    cfg.ReadLimitBytes,
		pingInterval: time.Duration(cfg.PingIntervalSec) * time.Second,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	logger := s.log.WithField("connId", connID)
	logger.Info("user connected")

	client := newClient(connID, conn, s.sendBuf, s.pingInterval, logger)

	go client.writePump()
	// Handlers run against the process context, not the request context:
	// in-flight store writes may complete after the socket is gone, and
	// their late emits fall into the no-op empty-room path.
	client.readPump(s.baseCtx, s.handler, s.readLimit)
}
