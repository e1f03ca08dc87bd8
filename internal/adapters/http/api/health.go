package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth answers liveness probes. Snapshot readiness is deliberately
// not part of liveness; /snapshot covers that.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
