package bridge

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ircwire/internal/socket"
)

func (s *Server) handleCommand(op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cmd Command
		if err := c.ShouldBindJSON(&cmd); err != nil {
			c.JSON(http.StatusBadRequest, Reply{Op: op, Error: "invalid request: " + err.Error()})
			return
		}
		cmd.Op = op
		reply, status := s.execute(c.Request.Context(), cmd)
		c.JSON(status, reply)
	}
}

func (s *Server) handleConnections(c *gin.Context) {
	conns := s.mgr.Connections()
	if conns == nil {
		conns = []socket.Info{}
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}
