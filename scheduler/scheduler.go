package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Scheduler manages cron-based job scheduling with timezone support.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location

	mu         sync.Mutex
	entryID    cron.EntryID
	started    bool
	timeStr    string
	lastRun    time.Time
	lastResult string
}

// Status is a point-in-time view of the scheduler state.
type Status struct {
	Running    bool       `json:"running"`
	ScrapeTime string     `json:"scrape_time,omitempty"`
	Timezone   string     `json:"timezone"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastResult string     `json:"last_result,omitempty"`
}

// NewScheduler creates a new scheduler for the given timezone.
func NewScheduler(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		location: loc,
	}, nil
}

// Schedule sets up a weekday job at the specified time (HH:MM format),
// replacing any previously scheduled job. The outcome of each run is
// recorded and exposed through Status.
func (s *Scheduler) Schedule(timeStr string, fn func() error) error {
	hour, minute, err := parseTime(timeStr)
	if err != nil {
		return err
	}

	spec := buildCronSpec(hour, minute)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove existing job if any
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(spec, func() { s.run(fn) })
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = entryID
	s.timeStr = timeStr

	return nil
}

func (s *Scheduler) run(fn func() error) {
	err := fn()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = time.Now().In(s.location)
	if err != nil {
		s.lastResult = err.Error()
	} else {
		s.lastResult = "success"
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

// Status reports whether the scheduler is running, when the next run is
// due, and how the previous run ended.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:    s.started,
		ScrapeTime: s.timeStr,
		Timezone:   s.location.String(),
		LastResult: s.lastResult,
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	if s.started && s.entryID != 0 {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

func parseTime(timeStr string) (int, int, error) {
	matches := timeRegex.FindStringSubmatch(timeStr)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("invalid time format: %q (expected HH:MM)", timeStr)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])

	return hour, minute, nil
}

func buildCronSpec(hour, minute int) string {
	// Cron format: minute hour day month weekday. New papers appear on
	// weekdays only, so Saturday and Sunday are skipped.
	return fmt.Sprintf("%d %d * * 1-5", minute, hour)
}
