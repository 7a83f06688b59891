package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 64 * 1024
)

// handleWS attaches a subscriber.  The reader loop hands each command
// to the lane of its client id; writePump is the only goroutine that
// writes to the socket.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("bridge: upgrade from %s: %v", c.ClientIP(), err)
		return
	}
	sub := s.hub.subscribe()
	s.logger.Info("bridge: subscriber %s attached", conn.RemoteAddr())

	go s.writePump(conn, sub)
	defer func() {
		s.hub.unsubscribe(sub)
		s.logger.Info("bridge: subscriber %s detached", conn.RemoteAddr())
	}()

	// Commands still in flight are cancelled when the socket goes away.
	ctx, cancel := context.WithCancel(c.Request.Context())
	ln := newLanes()
	defer ln.wait()
	defer cancel()
	run := func(cmd Command) {
		reply, _ := s.execute(ctx, cmd)
		if ctx.Err() == nil {
			s.reply(sub, reply)
		}
	}

	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Verbose("bridge: read: %v", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(frame, &cmd); err != nil {
			if !s.reply(sub, Reply{Error: "invalid command: " + err.Error()}) {
				return
			}
			continue
		}
		if cmd.Op == OpConnect && cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}
		ln.push(cmd, run)
	}
}

// lanes runs each client id's commands in arrival order on a goroutine
// of its own, so a slow connect never holds up commands for other ids.
// A lane's goroutine exits once its queue is empty.
type lanes struct {
	mu      sync.Mutex
	pending map[string][]Command
	wg      sync.WaitGroup
}

func newLanes() *lanes {
	return &lanes{pending: make(map[string][]Command)}
}

func (l *lanes) push(cmd Command, run func(Command)) {
	l.mu.Lock()
	q, busy := l.pending[cmd.ID]
	l.pending[cmd.ID] = append(q, cmd)
	l.mu.Unlock()
	if busy {
		return
	}
	l.wg.Add(1)
	go l.drain(cmd.ID, run)
}

func (l *lanes) drain(id string, run func(Command)) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		q := l.pending[id]
		if len(q) == 0 {
			delete(l.pending, id)
			l.mu.Unlock()
			return
		}
		cmd := q[0]
		l.pending[id] = q[1:]
		l.mu.Unlock()
		run(cmd)
	}
}

func (l *lanes) wait() { l.wg.Wait() }

func (s *Server) reply(sub *subscriber, r Reply) bool {
	msg, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("bridge: encode reply: %v", err)
		return true
	}
	if !sub.offer(msg) {
		s.logger.Warn("bridge: subscriber fell behind, dropping it")
		s.hub.unsubscribe(sub)
		return false
	}
	return true
}

func (s *Server) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-sub.out:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Verbose("bridge: write: %v", err)
				s.hub.unsubscribe(sub)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.unsubscribe(sub)
				return
			}
		case <-sub.done:
			conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
