// Package api exposes the HTTP surface: paper browsing, month views,
// temporal statistics, emerging-topic reports, and the operational
// endpoints for reindexing and the scheduler.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"paper-radar/emerging"
	"paper-radar/jobs"
	"paper-radar/pipeline"
	"paper-radar/scheduler"
	"paper-radar/stats"
	"paper-radar/storage"
)

const (
	dateFormat  = "2006-01-02"
	monthFormat = "2006-01"
)

// Background job kinds.
const (
	jobKindDay      = "index_day"
	jobKindMonth    = "index_month"
	jobKindBackfill = "backfill"
)

// Store reads persisted papers, tags, and taxonomies.
type Store interface {
	Months(ctx context.Context, limit int) ([]storage.MonthCount, error)
	PapersByMonth(ctx context.Context, month string, filter storage.PaperFilter) ([]storage.TaggedPaper, int, error)
	GetPaper(ctx context.Context, id string) (*storage.Paper, error)
	GetTags(ctx context.Context, paperID string) (*storage.PaperTags, error)
	TaggedPapersByDate(ctx context.Context, date string) ([]storage.TaggedPaper, error)
	UpvoteHistory(ctx context.Context, paperID string) ([]storage.UpvotePoint, error)
	GetTaxonomy(ctx context.Context, month string) (*storage.Taxonomy, error)
}

// Stats computes daily, weekly, and month-level aggregates.
type Stats interface {
	Daily(ctx context.Context, date string) (*stats.DailyStats, error)
	Weekly(ctx context.Context, weekStart string) (*stats.WeeklyStats, error)
	Flow(ctx context.Context, startDate, endDate string) (*stats.FlowData, error)
	Trend(ctx context.Context, clusterName, startDate, endDate string) (*stats.TrendData, error)
	MonthClusters(ctx context.Context, month string) ([]stats.ClusterSummary, error)
	Graph(ctx context.Context, month string) (*stats.ClusterGraph, error)
	Summary(ctx context.Context, month string) (*stats.MonthSummary, error)
}

// Emerging runs emerging-topic detection with per-request windows.
type Emerging interface {
	Report(ctx context.Context, endDate string, lookbackDays, comparisonDays int) (*emerging.Report, error)
	TrendSignals(ctx context.Context, endDate string) ([]emerging.TrendSignal, error)
	UpvoteSurges(ctx context.Context, startDate, endDate string, minPapers int) ([]emerging.Topic, error)
}

// Indexer runs the ingestion workflows that back the reindex and
// backfill endpoints.
type Indexer interface {
	RunDay(ctx context.Context, date string, progress pipeline.Progress) (*pipeline.Result, error)
	RunMonth(ctx context.Context, month string, progress pipeline.Progress) (*pipeline.Result, error)
	Backfill(ctx context.Context, days int) ([]*pipeline.Result, error)
}

// Jobs tracks background indexing runs.
type Jobs interface {
	Begin(kind, key string) (*jobs.Job, error)
	Progress(id, stage string, done, total int)
	Complete(id, message string)
	Fail(id string, err error)
	Get(id string) (*jobs.Job, bool)
	Latest(kind, key string) (*jobs.Job, bool)
	List() []*jobs.Job
}

// Scheduler controls the daily scrape cron.
type Scheduler interface {
	Start()
	Stop()
	Status() scheduler.Status
}

// ProviderInfo describes one LLM provider slot for the providers
// endpoint.
type ProviderInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Model     string `json:"model,omitempty"`
}

// Server holds the collaborators behind the HTTP handlers.
type Server struct {
	store     Store
	stats     Stats
	emerging  Emerging
	indexer   Indexer
	jobs      Jobs
	scheduler Scheduler

	providers       []ProviderInfo
	defaultProvider string
	logger          *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger used by the handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProviders sets the LLM provider listing served by the providers
// endpoint.
func WithProviders(defaultProvider string, providers []ProviderInfo) Option {
	return func(s *Server) {
		s.defaultProvider = defaultProvider
		s.providers = providers
	}
}

// NewServer creates the HTTP server over its collaborators.
func NewServer(store Store, statsEngine Stats, detector Emerging, indexer Indexer, tracker Jobs, sched Scheduler, opts ...Option) *Server {
	s := &Server{
		store:     store,
		stats:     statsEngine,
		emerging:  detector,
		indexer:   indexer,
		jobs:      tracker,
		scheduler: sched,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/months", s.handleMonths)
	mux.HandleFunc("GET /api/months/{month}/papers", s.handleMonthPapers)
	mux.HandleFunc("GET /api/months/{month}/clusters", s.handleMonthClusters)
	mux.HandleFunc("GET /api/months/{month}/graph", s.handleMonthGraph)
	mux.HandleFunc("GET /api/months/{month}/summary", s.handleMonthSummary)
	mux.HandleFunc("GET /api/months/{month}/taxonomy", s.handleMonthTaxonomy)

	mux.HandleFunc("GET /api/papers/{id}", s.handlePaper)
	mux.HandleFunc("GET /api/papers/{id}/upvotes", s.handlePaperUpvotes)
	mux.HandleFunc("GET /api/daily/{date}", s.handleDaily)

	mux.HandleFunc("GET /api/stats/daily/{date}", s.handleStatsDaily)
	mux.HandleFunc("GET /api/stats/weekly/{date}", s.handleStatsWeekly)
	mux.HandleFunc("GET /api/stats/flow", s.handleFlow)
	mux.HandleFunc("GET /api/stats/trend", s.handleTrend)

	mux.HandleFunc("GET /api/emerging/report", s.handleEmergingReport)
	mux.HandleFunc("GET /api/emerging/signals", s.handleEmergingSignals)
	mux.HandleFunc("GET /api/emerging/rising", s.handleEmergingRising)
	mux.HandleFunc("GET /api/emerging/hot", s.handleEmergingHot)

	mux.HandleFunc("GET /api/taxonomy/curated", s.handleTaxonomyCurated)
	mux.HandleFunc("GET /api/taxonomy/color", s.handleTaxonomyColor)
	mux.HandleFunc("GET /api/llm/providers", s.handleProviders)

	mux.HandleFunc("POST /api/reindex/months/{month}", s.handleReindexMonth)
	mux.HandleFunc("POST /api/reindex/daily/{date}", s.handleReindexDay)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)

	mux.HandleFunc("GET /api/scheduler", s.handleSchedulerStatus)
	mux.HandleFunc("POST /api/scheduler/start", s.handleSchedulerStart)
	mux.HandleFunc("POST /api/scheduler/stop", s.handleSchedulerStop)
	mux.HandleFunc("POST /api/scheduler/backfill", s.handleSchedulerBackfill)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "paper-radar",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func validDate(s string) bool {
	_, err := time.Parse(dateFormat, s)
	return err == nil
}

func validMonth(s string) bool {
	_, err := time.Parse(monthFormat, s)
	return err == nil
}

// queryInt reads an integer query parameter, returning fallback when
// the parameter is absent.
func queryInt(q url.Values, key string, fallback int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
