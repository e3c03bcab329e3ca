package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-radar/api"
	"paper-radar/config"
	"paper-radar/emerging"
	"paper-radar/hf"
	"paper-radar/jobs"
	"paper-radar/llm"
	"paper-radar/notify"
	"paper-radar/pipeline"
	"paper-radar/scheduler"
	"paper-radar/stats"
	"paper-radar/storage"
	"paper-radar/tagger"
)

const dateFormat = "2006-01-02"

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting paper-radar")

	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Rebuild the logger at the configured level
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)
	slog.Info("config loaded", "path", configPath, "log_level", cfg.Log.Level)

	// Initialize database
	db, err := storage.NewDB(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database initialized", "path", cfg.Database.Path)

	// Initialize the Hugging Face scraper
	scraper := hf.NewClient(
		hf.WithBaseURL(cfg.Scraper.BaseURL),
		hf.WithTimeout(time.Duration(cfg.Scraper.FetchTimeoutSecs)*time.Second),
		hf.WithFetchDelay(time.Duration(cfg.Scraper.FetchDelayMillis)*time.Millisecond),
		hf.WithLogger(logger),
	)

	// Initialize LLM providers and the classifier
	miniMax := llm.NewMiniMax(llm.ProviderConfig{
		APIKey:  cfg.LLM.MiniMax.APIKey,
		Model:   cfg.LLM.MiniMax.Model,
		BaseURL: cfg.LLM.MiniMax.APIURL,
	})
	openAI := llm.NewOpenAI(llm.ProviderConfig{
		APIKey:  cfg.LLM.OpenAI.APIKey,
		Model:   cfg.LLM.OpenAI.Model,
		BaseURL: cfg.LLM.OpenAI.APIURL,
	})
	anthropic := llm.NewAnthropic(llm.ProviderConfig{
		APIKey:  cfg.LLM.Anthropic.APIKey,
		Model:   cfg.LLM.Anthropic.Model,
		BaseURL: cfg.LLM.Anthropic.APIURL,
	})
	registry := llm.NewRegistry(cfg.LLM.Provider, miniMax, openAI, anthropic)

	var classifier pipeline.Classifier
	if cfg.Tagging.UseLLM {
		provider, err := registry.Provider(cfg.LLM.Provider)
		if err != nil {
			slog.Error("failed to resolve LLM provider", "provider", cfg.LLM.Provider, "error", err)
			os.Exit(1)
		}
		classifier = &llmClassifier{tagger: tagger.NewTagger(provider, tagger.WithLogger(logger))}
		slog.Info("llm tagging enabled", "provider", provider.Name())
	} else {
		classifier = heuristicClassifier{}
		slog.Info("heuristic tagging enabled")
	}

	// Initialize aggregation and emerging-topic detection
	statsEngine := stats.NewEngine(&statsStore{db: db})
	emergingSource := &emergingStore{db: db}
	detector := emerging.NewDetector(emergingSource,
		emerging.WithLookback(cfg.Emerging.LookbackDays),
		emerging.WithComparisonWindow(cfg.Emerging.ComparisonDays),
	)

	// Initialize the optional Telegram digest
	var runnerOpts []pipeline.Option
	if cfg.TelegramEnabled() {
		telegram, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, notify.WithLogger(logger))
		if err != nil {
			slog.Error("failed to initialize Telegram notifier", "error", err)
			os.Exit(1)
		}
		runnerOpts = append(runnerOpts, pipeline.WithNotifier(&digestNotifier{
			stats:    statsEngine,
			detector: detector,
			store:    db,
			telegram: telegram,
		}))
		slog.Info("telegram digest enabled", "chat_id", cfg.Telegram.ChatID)
	}

	// Initialize the indexing pipeline
	runner := pipeline.NewRunner(
		&scraperSource{client: scraper},
		&pipelineStore{db: db},
		classifier,
		&snapshotWriter{engine: statsEngine},
		runnerOpts...,
	)

	tracker := jobs.NewTracker()

	// Initialize the scheduler
	sched, err := scheduler.NewScheduler(cfg.Scheduler.Timezone)
	if err != nil {
		slog.Error("failed to initialize scheduler", "timezone", cfg.Scheduler.Timezone, "error", err)
		os.Exit(1)
	}
	if err := sched.Schedule(cfg.Scheduler.ScrapeTime, func() error {
		date := time.Now().UTC().Format(dateFormat)
		result, err := runner.RunDay(context.Background(), date, nil)
		if err != nil {
			return err
		}
		slog.Info("scheduled run finished", "date", date, "message", result.Message)
		return nil
	}); err != nil {
		slog.Error("failed to schedule daily run", "scrape_time", cfg.Scheduler.ScrapeTime, "error", err)
		os.Exit(1)
	}
	if cfg.SchedulerEnabled() {
		sched.Start()
		slog.Info("scheduler started", "scrape_time", cfg.Scheduler.ScrapeTime, "timezone", cfg.Scheduler.Timezone)
	} else {
		slog.Info("scheduler disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catch up on days missed while the service was down
	if cfg.SchedulerEnabled() && cfg.Scheduler.BackfillDays > 0 {
		go func() {
			results, err := runner.Backfill(ctx, cfg.Scheduler.BackfillDays)
			if err != nil {
				slog.Warn("startup backfill failed", "error", err)
				return
			}
			slog.Info("startup backfill finished", "days", cfg.Scheduler.BackfillDays, "days_indexed", len(results))
		}()
	}

	// Initialize the HTTP API
	apiServer := api.NewServer(db, statsEngine,
		&detectorFactory{store: emergingSource, trends: detector},
		runner, tracker, sched,
		api.WithLogger(logger),
		api.WithProviders(cfg.LLM.Provider, []api.ProviderInfo{
			{ID: llm.ProviderMiniMax, Name: "MiniMax", Available: miniMax.Available(), Model: miniMax.Model()},
			{ID: llm.ProviderOpenAI, Name: "OpenAI", Available: openAI.Available(), Model: openAI.Model()},
			{ID: llm.ProviderAnthropic, Name: "Anthropic", Available: anthropic.Available(), Model: anthropic.Model()},
		}),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http api listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	slog.Info("paper-radar stopped")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Adapter types to bridge the storage layer and the domain packages,
// which each declare the narrow interface they consume.

type scraperSource struct {
	client *hf.Client
}

func (s *scraperSource) ScrapeDay(ctx context.Context, date string) ([]*pipeline.Paper, error) {
	papers, err := s.client.ScrapeDay(ctx, date)
	if err != nil {
		return nil, err
	}
	return pipelinePapers(papers), nil
}

func (s *scraperSource) ScrapeMonth(ctx context.Context, month string, progress func(done, total int, paperID string)) ([]*pipeline.Paper, error) {
	papers, err := s.client.ScrapeMonth(ctx, month, progress)
	if err != nil {
		return nil, err
	}
	return pipelinePapers(papers), nil
}

func pipelinePapers(papers []*hf.Paper) []*pipeline.Paper {
	out := make([]*pipeline.Paper, len(papers))
	for i, p := range papers {
		out[i] = &pipeline.Paper{
			ID:            p.ID,
			Title:         p.Title,
			Abstract:      p.Abstract,
			PublishedDate: p.PublishedDate,
			HFURL:         p.HFURL,
			ArxivURL:      p.ArxivURL,
			PDFURL:        p.PDFURL,
			Upvotes:       p.Upvotes,
			Authors:       p.Authors,
			ContentHash:   p.ContentHash,
			AppearedDate:  p.AppearedDate,
		}
	}
	return out
}

type pipelineStore struct {
	db *storage.DB
}

func (s *pipelineStore) UpsertPaper(ctx context.Context, paper *pipeline.Paper) error {
	return s.db.UpsertPaper(ctx, &storage.Paper{
		ID:            paper.ID,
		Title:         paper.Title,
		Abstract:      paper.Abstract,
		PublishedDate: paper.PublishedDate,
		HFURL:         paper.HFURL,
		ArxivURL:      paper.ArxivURL,
		PDFURL:        paper.PDFURL,
		Upvotes:       paper.Upvotes,
		Authors:       paper.Authors,
		ContentHash:   paper.ContentHash,
		AppearedDate:  paper.AppearedDate,
	})
}

func (s *pipelineStore) CountPapersByDate(ctx context.Context, date string) (int, error) {
	return s.db.CountPapersByDate(ctx, date)
}

func (s *pipelineStore) GetTaxonomy(ctx context.Context, month string) (*pipeline.Taxonomy, error) {
	tax, err := s.db.GetTaxonomy(ctx, month)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pipeline.Taxonomy{
		Month:            tax.Month,
		ContributionTags: tax.ContributionTags,
		TaskTags:         tax.TaskTags,
		ModalityTags:     tax.ModalityTags,
		Definitions:      tax.Definitions,
	}, nil
}

func (s *pipelineStore) SaveTaxonomy(ctx context.Context, tax *pipeline.Taxonomy) error {
	return s.db.UpsertTaxonomy(ctx, &storage.Taxonomy{
		Month:            tax.Month,
		ContributionTags: tax.ContributionTags,
		TaskTags:         tax.TaskTags,
		ModalityTags:     tax.ModalityTags,
		Definitions:      tax.Definitions,
	})
}

func (s *pipelineStore) SaveTags(ctx context.Context, tags *pipeline.PaperTags) error {
	return s.db.UpsertTags(ctx, &storage.PaperTags{
		PaperID:          tags.PaperID,
		Month:            tags.Month,
		Primary:          tags.Primary,
		Secondary:        tags.Secondary,
		TaskTags:         tags.TaskTags,
		ModalityTags:     tags.ModalityTags,
		ResearchQuestion: tags.ResearchQuestion,
		Confidence:       tags.Confidence,
		Rationale:        tags.Rationale,
	})
}

type statsStore struct {
	db *storage.DB
}

func (s *statsStore) TaggedPapersRange(ctx context.Context, start, end string) ([]stats.TaggedPaper, error) {
	rows, err := s.db.TaggedPapersRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]stats.TaggedPaper, len(rows))
	for i, row := range rows {
		tp := stats.TaggedPaper{Paper: stats.Paper{
			ID:           row.Paper.ID,
			Title:        row.Paper.Title,
			Upvotes:      row.Paper.Upvotes,
			AppearedDate: row.Paper.AppearedDate,
		}}
		if row.Tags != nil {
			tp.Tags = &stats.Tags{
				Primary:   row.Tags.Primary,
				Secondary: row.Tags.Secondary,
				TaskTags:  row.Tags.TaskTags,
				Modality:  row.Tags.ModalityTags,
			}
		}
		out[i] = tp
	}
	return out, nil
}

func (s *statsStore) SaveSnapshot(ctx context.Context, snapshot *stats.Snapshot) error {
	return s.db.SaveSnapshot(ctx, &storage.DailySnapshot{
		Date:          snapshot.Date,
		TotalPapers:   snapshot.TotalPapers,
		ClusterCounts: snapshot.ClusterCounts,
		TopPaperIDs:   snapshot.TopPaperIDs,
		NewPaperIDs:   snapshot.NewPaperIDs,
	})
}

func (s *statsStore) RecordUpvote(ctx context.Context, paperID, date string, upvotes int) error {
	return s.db.RecordUpvote(ctx, paperID, date, upvotes)
}

type emergingStore struct {
	db *storage.DB
}

func (s *emergingStore) TaggedPapersRange(ctx context.Context, start, end string) ([]emerging.TaggedPaper, error) {
	rows, err := s.db.TaggedPapersRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]emerging.TaggedPaper, len(rows))
	for i, row := range rows {
		tp := emerging.TaggedPaper{Paper: emerging.Paper{
			ID:           row.Paper.ID,
			Title:        row.Paper.Title,
			Abstract:     row.Paper.Abstract,
			Upvotes:      row.Paper.Upvotes,
			AppearedDate: row.Paper.AppearedDate,
		}}
		if row.Tags != nil {
			tp.Tags = &emerging.Tags{Primary: row.Tags.Primary}
		}
		out[i] = tp
	}
	return out, nil
}

// detectorFactory builds a detector per request so API callers can pick
// their own analysis windows. Trend signals always use the configured
// defaults.
type detectorFactory struct {
	store  emerging.Store
	trends *emerging.Detector
}

func (f *detectorFactory) Report(ctx context.Context, endDate string, lookbackDays, comparisonDays int) (*emerging.Report, error) {
	d := emerging.NewDetector(f.store,
		emerging.WithLookback(lookbackDays),
		emerging.WithComparisonWindow(comparisonDays),
	)
	return d.Report(ctx, endDate)
}

func (f *detectorFactory) TrendSignals(ctx context.Context, endDate string) ([]emerging.TrendSignal, error) {
	return f.trends.TrendSignals(ctx, endDate)
}

func (f *detectorFactory) UpvoteSurges(ctx context.Context, startDate, endDate string, minPapers int) ([]emerging.Topic, error) {
	d := emerging.NewDetector(f.store, emerging.WithMinSurgePapers(minPapers))
	return d.UpvoteSurges(ctx, startDate, endDate)
}

type snapshotWriter struct {
	engine *stats.Engine
}

func (w *snapshotWriter) SnapshotDay(ctx context.Context, date string) error {
	_, err := w.engine.SnapshotDay(ctx, date)
	return err
}

// llmClassifier tags papers through the configured LLM provider.
type llmClassifier struct {
	tagger *tagger.Tagger
}

func (c *llmClassifier) GenerateTaxonomy(ctx context.Context, papers []*pipeline.Paper, month string) *pipeline.Taxonomy {
	in := make([]tagger.Paper, len(papers))
	for i, p := range papers {
		in[i] = taggerPaper(p)
	}
	return pipelineTaxonomy(c.tagger.GenerateTaxonomy(ctx, in, month))
}

func (c *llmClassifier) TagPaper(ctx context.Context, paper *pipeline.Paper, tax *pipeline.Taxonomy) *pipeline.PaperTags {
	return pipelineTags(c.tagger.TagPaper(ctx, taggerPaper(paper), taggerTaxonomy(tax)))
}

// heuristicClassifier tags papers by keyword matching alone.
type heuristicClassifier struct{}

func (heuristicClassifier) GenerateTaxonomy(ctx context.Context, papers []*pipeline.Paper, month string) *pipeline.Taxonomy {
	return pipelineTaxonomy(tagger.DefaultTaxonomy(month))
}

func (heuristicClassifier) TagPaper(ctx context.Context, paper *pipeline.Paper, tax *pipeline.Taxonomy) *pipeline.PaperTags {
	return pipelineTags(tagger.HeuristicTags(taggerPaper(paper), taggerTaxonomy(tax)))
}

func taggerPaper(p *pipeline.Paper) tagger.Paper {
	return tagger.Paper{ID: p.ID, Title: p.Title, Abstract: p.Abstract}
}

func taggerTaxonomy(t *pipeline.Taxonomy) *tagger.Taxonomy {
	return &tagger.Taxonomy{
		Month:            t.Month,
		ContributionTags: t.ContributionTags,
		TaskTags:         t.TaskTags,
		ModalityTags:     t.ModalityTags,
		Definitions:      t.Definitions,
	}
}

func pipelineTaxonomy(t *tagger.Taxonomy) *pipeline.Taxonomy {
	return &pipeline.Taxonomy{
		Month:            t.Month,
		ContributionTags: t.ContributionTags,
		TaskTags:         t.TaskTags,
		ModalityTags:     t.ModalityTags,
		Definitions:      t.Definitions,
	}
}

func pipelineTags(t *tagger.PaperTags) *pipeline.PaperTags {
	return &pipeline.PaperTags{
		PaperID:          t.PaperID,
		Month:            t.Month,
		Primary:          t.Primary,
		Secondary:        t.Secondary,
		TaskTags:         t.TaskTags,
		ModalityTags:     t.ModalityTags,
		ResearchQuestion: t.ResearchQuestion,
		Confidence:       t.Confidence,
		Rationale:        t.Rationale,
	}
}

// digestNotifier composes and sends the Telegram digest once a day has
// been indexed. Failures are logged, never propagated.
type digestNotifier struct {
	stats    *stats.Engine
	detector *emerging.Detector
	store    *storage.DB
	telegram *notify.Telegram
}

func (n *digestNotifier) NotifyDay(ctx context.Context, date string) {
	daily, err := n.stats.Daily(ctx, date)
	if err != nil {
		slog.Warn("digest aggregation failed", "date", date, "error", err)
		return
	}

	digest := &notify.Digest{Date: date, TotalPapers: daily.TotalPapers}
	for _, cluster := range daily.Clusters {
		digest.Clusters = append(digest.Clusters, notify.ClusterLine{Name: cluster.Name, Count: cluster.PaperCount})
	}
	for _, id := range daily.TopPapers {
		paper, err := n.store.GetPaper(ctx, id)
		if err != nil {
			continue
		}
		url := paper.HFURL
		if url == "" {
			url = "https://huggingface.co/papers/" + paper.ID
		}
		digest.TopPapers = append(digest.TopPapers, notify.PaperLine{Title: paper.Title, URL: url, Upvotes: paper.Upvotes})
	}
	if report, err := n.detector.Report(ctx, date); err == nil && len(report.EmergingTopics) > 0 {
		digest.Headline = topicHeadline(report.EmergingTopics[0])
	}

	n.telegram.Notify(digest)
}

func topicHeadline(topic emerging.Topic) string {
	switch topic.SignalType {
	case emerging.SignalNewCluster:
		return fmt.Sprintf("New cluster: %s", topic.Name)
	case emerging.SignalRapidGrowth:
		return fmt.Sprintf("Rapid growth in %s", topic.Name)
	case emerging.SignalUpvoteSurge:
		return fmt.Sprintf("Upvote surge: %s", topic.Name)
	default:
		return fmt.Sprintf("Emerging topic: %s", topic.Name)
	}
}
