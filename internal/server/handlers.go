package server

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"postureguard/internal/engine"
	"postureguard/internal/posture"
	"postureguard/internal/stats"
)

const dateLayout = "2006-01-02"

type RoleUri struct {
	Role string `uri:"role" binding:"required,camerarole"`
}

type SettingUri struct {
	Key string `uri:"key" binding:"required,settingkey"`
}

type CalibrationResponse struct {
	Role    posture.CameraRole          `json:"role"`
	Count   int                         `json:"count"`
	Target  int                         `json:"target"`
	Profile *posture.CalibrationProfile `json:"profile,omitempty"`
	// Stored is true when the profile comes from storage rather than the running engine.
	Stored bool `json:"stored"`
}

type ListRecordsRequest struct {
	Start string `form:"start"`
	End   string `form:"end"`
}

type ListRecordsResponse struct {
	Items []posture.PostureRecord `json:"items"`
	Total int                     `json:"total"`
}

type DailyStatisticsResponse struct {
	Items []stats.DayCount `json:"items"`
}

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type PutSettingRequest struct {
	Value string `json:"value" binding:"required,max=1024"`
}

func (s *Server) handleGetStatus(c *gin.Context) {
	st := s.monitor.Status()
	if st == nil {
		s.writeError(c, http.StatusServiceUnavailable, engine.ErrNotRunning)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleGetCalibration(c *gin.Context) {
	var uri RoleUri
	if err := c.ShouldBindUri(&uri); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	role, _ := posture.ParseRole(uri.Role)

	if st := s.monitor.Status(); st != nil {
		if rs, ok := st.Role(role); ok {
			c.JSON(http.StatusOK, CalibrationResponse{
				Role:    role,
				Count:   rs.CalibrationCount,
				Target:  rs.CalibrationTarget,
				Profile: rs.Profile,
			})
			return
		}
	}

	p, err := s.gw.LoadCalibration(c, role)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	if p == nil {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("no calibration for %s camera", role))
		return
	}
	c.JSON(http.StatusOK, CalibrationResponse{Role: role, Profile: p, Stored: true})
}

func (s *Server) handleResetCalibration(c *gin.Context) {
	if err := s.monitor.Recalibrate(c); err != nil {
		if goerrors.Is(err, engine.ErrNotRunning) {
			s.writeError(c, http.StatusConflict, err)
			return
		}
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, s.monitor.Status())
}

func (s *Server) handleGetStatistics(c *gin.Context) {
	st, err := s.stats.Statistics(c)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleGetDailyStatistics(c *gin.Context) {
	days, err := s.stats.Daily(c)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, DailyStatisticsResponse{Items: days})
}

// parseTimeParam accepts RFC3339 or a local YYYY-MM-DD date. A date used as
// an upper bound covers the whole day.
func parseTimeParam(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("expect RFC3339 or %s, got %q", dateLayout, v)
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}

func (s *Server) handleListRecords(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	start, err := parseTimeParam(req.Start, false)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("invalid start: %w", err))
		return
	}
	end, err := parseTimeParam(req.End, true)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("end is before start"))
		return
	}

	records, err := s.gw.QueryRecords(c, posture.TimeRange{Start: start, End: end})
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []posture.PostureRecord{}
	}
	c.JSON(http.StatusOK, ListRecordsResponse{Items: records, Total: len(records)})
}

func (s *Server) handleGetSetting(c *gin.Context) {
	var uri SettingUri
	if err := c.ShouldBindUri(&uri); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	value, err := s.gw.LoadSetting(c, uri.Key, "")
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	if value == "" {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("setting %s not found", uri.Key))
		return
	}
	c.JSON(http.StatusOK, Setting{Key: uri.Key, Value: value})
}

func (s *Server) handlePutSetting(c *gin.Context) {
	var uri SettingUri
	if err := c.ShouldBindUri(&uri); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}
	var req PutSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.gw.SaveSetting(c, uri.Key, req.Value); err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, Setting{Key: uri.Key, Value: req.Value})
}
