package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"paper-radar/jobs"
	"paper-radar/pipeline"
)

func (s *Server) handleReindexMonth(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !validMonth(month) {
		s.writeError(w, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	s.startIndexJob(w, jobKindMonth, month, func(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error) {
		return s.indexer.RunMonth(ctx, month, progress)
	})
}

func (s *Server) handleReindexDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validDate(date) {
		s.writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	s.startIndexJob(w, jobKindDay, date, func(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error) {
		return s.indexer.RunDay(ctx, date, progress)
	})
}

// startIndexJob registers a job and runs the indexing function on a
// background goroutine. The response carries the job so callers can
// poll it; a run already in flight for the same key answers 409 with
// the live job's id.
func (s *Server) startIndexJob(w http.ResponseWriter, kind, key string, run func(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error)) {
	job, err := s.jobs.Begin(kind, key)
	if err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			resp := map[string]any{"error": "indexing already in progress"}
			if latest, ok := s.jobs.Latest(kind, key); ok {
				resp["job_id"] = latest.ID
			}
			s.writeJSON(w, http.StatusConflict, resp)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		result, err := run(context.Background(), func(stage string, done, total int) {
			s.jobs.Progress(job.ID, stage, done, total)
		})
		if err != nil {
			s.logger.Error("background indexing failed", "kind", kind, "key", key, "error", err)
			s.jobs.Fail(job.ID, err)
			return
		}
		s.jobs.Complete(job.ID, result.Message)
	}()

	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": s.jobs.List()})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if s.scheduler.Status().Running {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "already_running",
			"message": "Scheduler is already running",
		})
		return
	}

	s.scheduler.Start()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "started",
		"message":   "Scheduler started",
		"scheduler": s.scheduler.Status(),
	})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if !s.scheduler.Status().Running {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "not_running",
			"message": "Scheduler is not running",
		})
		return
	}

	s.scheduler.Stop()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "stopped",
		"message": "Scheduler stopped",
	})
}

func (s *Server) handleSchedulerBackfill(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r.URL.Query(), "days", 7)
	if err != nil || days < 1 || days > 30 {
		s.writeError(w, http.StatusBadRequest, "days must be between 1 and 30")
		return
	}

	job, err := s.jobs.Begin(jobKindBackfill, strconv.Itoa(days))
	if err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			s.writeJSON(w, http.StatusConflict, map[string]string{"error": "backfill already in progress"})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		results, err := s.indexer.Backfill(context.Background(), days)
		if err != nil {
			s.logger.Error("backfill failed", "days", days, "error", err)
			s.jobs.Fail(job.ID, err)
			return
		}
		s.jobs.Complete(job.ID, fmt.Sprintf("Backfilled %d of the last %d days", len(results), days))
	}()

	s.writeJSON(w, http.StatusAccepted, job)
}
