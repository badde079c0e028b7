package http

import (
	"net/http"

	"mahal/internal/core"
	"mahal/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.Stats(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Header("Cache-Control", "no-store").JSON(stats).Write(w)
}

func (s *Server) handleBucketReport(w http.ResponseWriter, r *http.Request) {
	b, err := core.ParseBucket(r.PathValue("bucket"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	report, err := s.reports.BucketReport(r.Context(), b)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(report).Write(w)
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.reports.MonthlySeries(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(series).Write(w)
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	activity, err := s.reports.RecentActivity(r.Context(), limit)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(activity).Write(w)
}
