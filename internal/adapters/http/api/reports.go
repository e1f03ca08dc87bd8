package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studylake/studylake/internal/adapters/refresher"
	"github.com/studylake/studylake/internal/domain/report"
	"github.com/studylake/studylake/pkg/dateparse"
	"github.com/studylake/studylake/pkg/logger"
	"github.com/studylake/studylake/pkg/metrics"
)

// parseWindow reads the start/end query parameters. Dates are calendar days
// in the deployment timezone; end is inclusive, so the window extends to the
// end of that day.
func parseWindow(c *gin.Context) (start, end time.Time, err error) {
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, errors.New("start and end query parameters are required")
	}

	start, err = dateparse.Parse(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start date")
	}
	end, err = dateparse.Parse(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end date")
	}
	return start, dateparse.RangeEnd(end), nil
}

// handleUserReport serves GET /reports/users/:id?start=&end=.
func (s *Server) handleUserReport(c *gin.Context) {
	metrics.RecordReportRequest("user")

	start, end, err := parseWindow(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_window", err)
		return
	}

	snap, err := s.snapshots.Current()
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "snapshot_not_ready", refresher.ErrNotReady)
		return
	}

	rep, err := report.BuildUserReport(snap, c.Param("id"), start, end)
	if errors.Is(err, report.ErrNoData) {
		metrics.RecordReportNoData()
		writeError(c, http.StatusNotFound, "no_data", err)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "report_failed", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// handleTeacherReport serves GET /reports/teachers/:id?start=&end=. Course
// progress comes from the reference API at request time; a failed fetch
// degrades to zero completion rather than failing the report.
func (s *Server) handleTeacherReport(c *gin.Context) {
	metrics.RecordReportRequest("teacher")

	start, end, err := parseWindow(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_window", err)
		return
	}

	snap, err := s.snapshots.Current()
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "snapshot_not_ready", refresher.ErrNotReady)
		return
	}

	teacherID := c.Param("id")
	progress, err := s.progress.Progress(c.Request.Context(), teacherID)
	if err != nil {
		metrics.RecordReferenceFetchFailure("progress")
		s.logger.Warn(c.Request.Context(), "progress fetch failed; reporting zero completion",
			logger.String("teacherID", teacherID),
			logger.Error(err),
		)
		progress = nil
	}

	c.JSON(http.StatusOK, report.BuildTeacherReport(snap, teacherID, start, end, progress))
}
