package api

import (
	"net/http"
	"strconv"
	"time"

	"paper-radar/emerging"
	"paper-radar/stats"
)

func (s *Server) handleMonthClusters(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !validMonth(month) {
		s.writeError(w, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	clusters, err := s.stats.MonthClusters(r.Context(), month)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if clusters == nil {
		clusters = []stats.ClusterSummary{}
	}
	s.writeJSON(w, http.StatusOK, clusters)
}

func (s *Server) handleMonthGraph(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !validMonth(month) {
		s.writeError(w, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	graph, err := s.stats.Graph(r.Context(), month)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !validMonth(month) {
		s.writeError(w, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	summary, err := s.stats.Summary(r.Context(), month)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tax, err := s.monthTaxonomy(r.Context(), month)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := struct {
		*stats.MonthSummary
		Taxonomy taxonomyView `json:"taxonomy"`
	}{
		MonthSummary: summary,
		Taxonomy:     tax,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatsDaily(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validDate(date) {
		s.writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	daily, err := s.stats.Daily(r.Context(), date)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, daily)
}

func (s *Server) handleStatsWeekly(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validDate(date) {
		s.writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	weekly, err := s.stats.Weekly(r.Context(), date)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, weekly)
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.dateRange(w, r)
	if !ok {
		return
	}

	flow, err := s.stats.Flow(r.Context(), start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	cluster := r.URL.Query().Get("cluster")
	if cluster == "" {
		s.writeError(w, http.StatusBadRequest, "cluster is required")
		return
	}
	start, end, ok := s.dateRange(w, r)
	if !ok {
		return
	}

	trend, err := s.stats.Trend(r.Context(), cluster, start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleEmergingReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	end, ok := s.endDate(w, r)
	if !ok {
		return
	}
	lookback, err := queryInt(q, "lookback", 14)
	if err != nil || lookback < 1 {
		s.writeError(w, http.StatusBadRequest, "lookback must be a positive integer")
		return
	}
	comparison, err := queryInt(q, "comparison", 30)
	if err != nil || comparison < 1 {
		s.writeError(w, http.StatusBadRequest, "comparison must be a positive integer")
		return
	}

	report, err := s.emerging.Report(r.Context(), end, lookback, comparison)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEmergingSignals(w http.ResponseWriter, r *http.Request) {
	end, ok := s.endDate(w, r)
	if !ok {
		return
	}

	signals, err := s.emerging.TrendSignals(r.Context(), end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []emerging.TrendSignal{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"end_date": end,
		"signals":  signals,
	})
}

func (s *Server) handleEmergingRising(w http.ResponseWriter, r *http.Request) {
	end, ok := s.endDate(w, r)
	if !ok {
		return
	}
	minGrowth := 20.0
	if v := r.URL.Query().Get("min_growth"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "min_growth must be a number")
			return
		}
		minGrowth = f
	}

	signals, err := s.emerging.TrendSignals(r.Context(), end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rising := []emerging.TrendSignal{}
	for _, sig := range signals {
		if sig.TrendDirection == emerging.TrendRising && sig.WeeklyChange >= minGrowth {
			rising = append(rising, sig)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"end_date":      end,
		"min_growth":    minGrowth,
		"rising_topics": rising,
	})
}

func (s *Server) handleEmergingHot(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.dateRange(w, r)
	if !ok {
		return
	}
	minPapers, err := queryInt(r.URL.Query(), "min_papers", 3)
	if err != nil || minPapers < 1 {
		s.writeError(w, http.StatusBadRequest, "min_papers must be a positive integer")
		return
	}

	topics, err := s.emerging.UpvoteSurges(r.Context(), start, end, minPapers)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if topics == nil {
		topics = []emerging.Topic{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"start_date": start,
		"end_date":   end,
		"hot_topics": topics,
	})
}

// dateRange reads and validates the start and end query parameters.
// A response has already been written when ok is false.
func (s *Server) dateRange(w http.ResponseWriter, r *http.Request) (start, end string, ok bool) {
	q := r.URL.Query()
	start = q.Get("start")
	end = q.Get("end")
	if !validDate(start) {
		s.writeError(w, http.StatusBadRequest, "start is required, want YYYY-MM-DD")
		return "", "", false
	}
	if !validDate(end) {
		s.writeError(w, http.StatusBadRequest, "end is required, want YYYY-MM-DD")
		return "", "", false
	}
	if start > end {
		s.writeError(w, http.StatusBadRequest, "start must not be after end")
		return "", "", false
	}
	return start, end, true
}

// endDate reads the optional end query parameter, defaulting to today.
func (s *Server) endDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	end := r.URL.Query().Get("end")
	if end == "" {
		return time.Now().UTC().Format(dateFormat), true
	}
	if !validDate(end) {
		s.writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
		return "", false
	}
	return end, true
}
