// Package bridge exposes a socket.Manager to a front end over HTTP.
// Commands arrive as JSON on a WebSocket or as REST calls, and every
// connection event is pushed to all WebSocket subscribers.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ircwire/internal/event"
	"ircwire/internal/metrics"
	"ircwire/internal/socket"
	"ircwire/util"
)

// DefaultSubscriberBuffer is how many frames may queue for one
// WebSocket before it is considered stuck and dropped.
const DefaultSubscriberBuffer = 256

// Options configures a Server.
type Options struct {
	Manager *socket.Manager
	Events  *event.Queue
	Metrics *metrics.Collector
	Logger  *util.Logger

	SubscriberBuffer int
	// AllowedOrigins lists the Origin headers accepted on /ws, "*"
	// accepting any.  Empty keeps the same-origin check.
	AllowedOrigins []string
}

// Server routes front-end commands to the manager and fans events out.
type Server struct {
	mgr     *socket.Manager
	events  *event.Queue
	metrics *metrics.Collector
	logger  *util.Logger

	hub      *hub
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// New builds the router.  Call Pump to start delivering events.
func New(opts Options) *Server {
	s := &Server{
		mgr:     opts.Manager,
		events:  opts.Events,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = util.NewLogger(0)
	}
	size := opts.SubscriberBuffer
	if size <= 0 {
		size = DefaultSubscriberBuffer
	}
	s.hub = newHub(size, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  util.ReadBufSize,
		WriteBufferSize: util.ReadBufSize,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/ws", s.handleWS)
	api := r.Group("/api")
	api.POST("/connect", s.handleCommand(OpConnect))
	api.POST("/send", s.handleCommand(OpSend))
	api.POST("/disconnect", s.handleCommand(OpDisconnect))
	api.GET("/connections", s.handleConnections)
	r.GET("/metrics", s.handleMetrics)
	s.engine = r
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// Subscribers returns the number of attached WebSockets.
func (s *Server) Subscribers() int { return s.hub.len() }

// Pump delivers queued events to every subscriber until ctx is done
// or the queue is closed.
func (s *Server) Pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-s.events.Events():
			if !ok {
				return
			}
			msg, err := json.Marshal(p)
			if err != nil {
				s.logger.Error("bridge: encode %s: %v", p, err)
				continue
			}
			s.hub.broadcast(msg)
		}
	}
}

// Close detaches every subscriber.
func (s *Server) Close() { s.hub.closeAll() }

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.logger.Level() >= util.LogDebug {
			s.logger.Debug("bridge: %s %s -> %d in %s",
				c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
			return
		}
		s.logger.Verbose("bridge: %s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}
