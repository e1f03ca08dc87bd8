package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type snapshotResponse struct {
	Rows    int       `json:"rows"`
	BuiltAt time.Time `json:"built_at"`
}

// handleSnapshot reports the published snapshot's vitals: 503 until the first
// successful build, then row count and build time.
func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.snapshots.Current()
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "snapshot_not_ready", err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse{Rows: snap.Len(), BuiltAt: snap.BuiltAt()})
}
