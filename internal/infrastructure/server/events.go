package server

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
)

const (
	eventBuffer  = 256
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventFrame is one region event as streamed to inspector clients
type EventFrame struct {
	Kind     string    `json:"kind"`
	StateKey string    `json:"state_key"`
	ID       string    `json:"id,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

func frameFor(r *region.Region, ev region.Event) EventFrame {
	f := EventFrame{
		Kind:     ev.Kind.String(),
		StateKey: r.StateKey(),
		ID:       ev.ID,
		Time:     time.Now().UTC(),
	}
	if ev.Err != nil {
		f.Error = ev.Err.Error()
	}
	return f
}

// streamEvents upgrades to a WebSocket and forwards the region's events
// until the client goes away or the region closes. Slow clients lose events.
func (s *Server) streamEvents(c *gin.Context) {
	r, ok := s.resolve(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	frames := make(chan EventFrame, eventBuffer)
	done := make(chan struct{})
	unsubscribe := r.Subscribe(func(ev region.Event) {
		select {
		case <-done:
			return
		default:
		}
		select {
		case frames <- frameFor(r, ev):
		default:
			s.logger.Debug("Dropping event for slow inspector client", zap.String("state_key", r.StateKey()))
		}
	})
	defer unsubscribe()

	// reads only to notice the client closing
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeFrame(conn, EventFrame{
		Kind:     "subscribed",
		StateKey: r.StateKey(),
		Time:     time.Now().UTC(),
	}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case f := <-frames:
			if err := s.writeFrame(conn, f); err != nil {
				s.logger.Debug("Inspector client gone", zap.Error(err))
				return
			}
			if f.Kind == region.EventClosed.String() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "region closed"),
					time.Now().Add(writeTimeout))
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, f EventFrame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
