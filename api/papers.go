package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"paper-radar/storage"
	"paper-radar/taxonomy"
)

const abstractSnippetLen = 250

// Card is the flattened paper-plus-tags listing item.
type Card struct {
	PaperID          string   `json:"paper_id"`
	Title            string   `json:"title"`
	AbstractSnippet  string   `json:"abstract_snippet"`
	PublishedDate    string   `json:"published_date"`
	AppearedDate     string   `json:"appeared_date"`
	Upvotes          int      `json:"upvotes"`
	Authors          []string `json:"authors"`
	PrimaryTag       string   `json:"primary_tag"`
	SecondaryTags    []string `json:"secondary_tags"`
	TaskTags         []string `json:"task_tags"`
	Modality         []string `json:"modality"`
	HFURL            string   `json:"hf_url"`
	PDFURL           string   `json:"pdf_url"`
	ArxivURL         string   `json:"arxiv_url"`
	ResearchQuestion string   `json:"research_question"`
	Confidence       float64  `json:"confidence"`
	Rationale        string   `json:"rationale"`
}

type paperView struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	PublishedDate string   `json:"published_date"`
	AppearedDate  string   `json:"appeared_date"`
	Upvotes       int      `json:"upvotes"`
	Authors       []string `json:"authors"`
	HFURL         string   `json:"hf_url"`
	ArxivURL      string   `json:"arxiv_url"`
	PDFURL        string   `json:"pdf_url"`
}

type tagsView struct {
	PrimaryTag       string   `json:"primary_tag"`
	SecondaryTags    []string `json:"secondary_tags"`
	TaskTags         []string `json:"task_tags"`
	ModalityTags     []string `json:"modality_tags"`
	ResearchQuestion string   `json:"research_question"`
	Confidence       float64  `json:"confidence"`
	Rationale        string   `json:"rationale"`
}

type taxonomyView struct {
	Month            string            `json:"month"`
	ContributionTags []string          `json:"contribution_tags"`
	TaskTags         []string          `json:"task_tags"`
	ModalityTags     []string          `json:"modality_tags"`
	Definitions      map[string]string `json:"definitions"`
	Version          int               `json:"version"`
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.store.Months(r.Context(), 12)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type monthView struct {
		Month      string `json:"month"`
		PaperCount int    `json:"paper_count"`
	}
	out := make([]monthView, len(months))
	for i, m := range months {
		out[i] = monthView{Month: m.Month, PaperCount: m.Count}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"months": out})
}

func (s *Server) handleMonthPapers(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !validMonth(month) {
		s.writeError(w, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	q := r.URL.Query()
	sort := q.Get("sort")
	switch sort {
	case "", "upvotes", "date", "title":
	default:
		s.writeError(w, http.StatusBadRequest, "sort must be one of upvotes, date, title")
		return
	}
	page, err := queryInt(q, "page", 1)
	if err != nil || page < 1 {
		s.writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	pageSize, err := queryInt(q, "page_size", 50)
	if err != nil || pageSize < 1 || pageSize > 100 {
		s.writeError(w, http.StatusBadRequest, "page_size must be between 1 and 100")
		return
	}

	cluster := q.Get("cluster")
	if cluster != "" {
		cluster = s.resolveCluster(r.Context(), month, cluster)
	}

	papers, total, err := s.store.PapersByMonth(r.Context(), month, storage.PaperFilter{
		Cluster:  cluster,
		Search:   q.Get("search"),
		Sort:     sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"month":     month,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"papers":    toCards(papers),
	})
}

// resolveCluster maps a cluster slug from the query string back to the
// tag name stored with the papers. Values that match no slug pass
// through unchanged so exact tag names keep working.
func (s *Server) resolveCluster(ctx context.Context, month, cluster string) string {
	clusters, err := s.stats.MonthClusters(ctx, month)
	if err != nil {
		return cluster
	}
	for _, c := range clusters {
		if c.ClusterID == cluster {
			return c.Name
		}
	}
	return cluster
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	paper, err := s.store.GetPaper(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tags, err := s.store.GetTags(r.Context(), id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := struct {
		Paper paperView `json:"paper"`
		Tags  *tagsView `json:"tags"`
	}{
		Paper: toPaperView(paper),
		Tags:  toTagsView(tags),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePaperUpvotes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.store.GetPaper(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "paper not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history, err := s.store.UpvoteHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type point struct {
		Date    string `json:"date"`
		Upvotes int    `json:"upvotes"`
	}
	points := make([]point, len(history))
	for i, h := range history {
		points[i] = point{Date: h.Date, Upvotes: h.Upvotes}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"paper_id": id,
		"history":  points,
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validDate(date) {
		s.writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	papers, err := s.store.TaggedPapersByDate(r.Context(), date)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"date":         date,
		"total_papers": len(papers),
		"papers":       toCards(papers),
	})
}

func (s *Server) handleMonthTaxonomy(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !validMonth(month) {
		s.writeError(w, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	tax, err := s.monthTaxonomy(r.Context(), month)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tax)
}

// monthTaxonomy loads the stored taxonomy, falling back to the curated
// defaults at version 0 when the month has none yet.
func (s *Server) monthTaxonomy(ctx context.Context, month string) (taxonomyView, error) {
	tax, err := s.store.GetTaxonomy(ctx, month)
	if errors.Is(err, storage.ErrNotFound) {
		return taxonomyView{
			Month:            month,
			ContributionTags: taxonomy.ContributionTags(),
			TaskTags:         taxonomy.TaskTags(),
			ModalityTags:     taxonomy.ModalityTags(),
			Definitions:      map[string]string{},
		}, nil
	}
	if err != nil {
		return taxonomyView{}, err
	}

	definitions := tax.Definitions
	if definitions == nil {
		definitions = map[string]string{}
	}
	return taxonomyView{
		Month:            tax.Month,
		ContributionTags: orEmpty(tax.ContributionTags),
		TaskTags:         orEmpty(tax.TaskTags),
		ModalityTags:     orEmpty(tax.ModalityTags),
		Definitions:      definitions,
		Version:          tax.Version,
	}, nil
}

func (s *Server) handleTaxonomyCurated(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, taxonomy.WithColors())
}

func (s *Server) handleTaxonomyColor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	kind := q.Get("kind")
	if kind == "" {
		kind = taxonomy.KindContribution
	}
	switch kind {
	case taxonomy.KindContribution, taxonomy.KindTask, taxonomy.KindModality:
	default:
		s.writeError(w, http.StatusBadRequest, "kind must be one of contribution, task, modality")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":  name,
		"kind":  kind,
		"color": taxonomy.ColorFor(name, kind),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	available := []string{}
	for _, p := range s.providers {
		if p.Available {
			available = append(available, p.ID)
		}
	}
	providers := s.providers
	if providers == nil {
		providers = []ProviderInfo{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"default":   s.defaultProvider,
		"available": available,
		"providers": providers,
	})
}

func toCards(papers []storage.TaggedPaper) []Card {
	cards := make([]Card, len(papers))
	for i, p := range papers {
		cards[i] = toCard(p)
	}
	return cards
}

func toCard(tp storage.TaggedPaper) Card {
	p := tp.Paper
	card := Card{
		PaperID:         p.ID,
		Title:           p.Title,
		AbstractSnippet: snippet(p.Abstract),
		PublishedDate:   p.PublishedDate,
		AppearedDate:    p.AppearedDate,
		Upvotes:         p.Upvotes,
		Authors:         shortAuthors(p.Authors),
		HFURL:           p.HFURL,
		PDFURL:          p.PDFURL,
		ArxivURL:        p.ArxivURL,
		PrimaryTag:      "OTHER",
		SecondaryTags:   []string{},
		TaskTags:        []string{},
		Modality:        []string{"text"},
	}
	if card.PDFURL == "" {
		card.PDFURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", p.ID)
	}
	if card.ArxivURL == "" {
		card.ArxivURL = fmt.Sprintf("https://arxiv.org/abs/%s", p.ID)
	}
	if tp.Tags != nil {
		card.PrimaryTag = tp.Tags.Primary
		card.SecondaryTags = orEmpty(tp.Tags.Secondary)
		card.TaskTags = orEmpty(tp.Tags.TaskTags)
		card.Modality = orEmpty(tp.Tags.ModalityTags)
		card.ResearchQuestion = tp.Tags.ResearchQuestion
		card.Confidence = tp.Tags.Confidence
		card.Rationale = tp.Tags.Rationale
	}
	return card
}

func toPaperView(p *storage.Paper) paperView {
	return paperView{
		ID:            p.ID,
		Title:         p.Title,
		Abstract:      p.Abstract,
		PublishedDate: p.PublishedDate,
		AppearedDate:  p.AppearedDate,
		Upvotes:       p.Upvotes,
		Authors:       orEmpty(p.Authors),
		HFURL:         p.HFURL,
		ArxivURL:      p.ArxivURL,
		PDFURL:        p.PDFURL,
	}
}

func toTagsView(t *storage.PaperTags) *tagsView {
	if t == nil {
		return nil
	}
	return &tagsView{
		PrimaryTag:       t.Primary,
		SecondaryTags:    orEmpty(t.Secondary),
		TaskTags:         orEmpty(t.TaskTags),
		ModalityTags:     orEmpty(t.ModalityTags),
		ResearchQuestion: t.ResearchQuestion,
		Confidence:       t.Confidence,
		Rationale:        t.Rationale,
	}
}

func snippet(abstract string) string {
	runes := []rune(abstract)
	if len(runes) <= abstractSnippetLen {
		return abstract
	}
	return string(runes[:abstractSnippetLen]) + "..."
}

func shortAuthors(authors []string) []string {
	if len(authors) > 3 {
		authors = authors[:3]
	}
	return orEmpty(authors)
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
