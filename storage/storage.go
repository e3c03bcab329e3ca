package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// Paper represents a research paper scraped from the daily listing.
type Paper struct {
	ID            string
	Title         string
	Abstract      string
	PublishedDate string
	HFURL         string
	ArxivURL      string
	PDFURL        string
	Upvotes       int
	Authors       []string
	ContentHash   string
	AppearedDate  string
}

// PaperTags holds the taxonomy labels assigned to one paper.
type PaperTags struct {
	PaperID          string
	Month            string
	Primary          string
	Secondary        []string
	TaskTags         []string
	ModalityTags     []string
	ResearchQuestion string
	Confidence       float64
	Rationale        string
}

// TaggedPaper pairs a paper with its tags. Tags is nil when the paper
// has not been tagged yet.
type TaggedPaper struct {
	Paper Paper
	Tags  *PaperTags
}

// Taxonomy is the tag vocabulary for one month.
type Taxonomy struct {
	Month            string
	ContributionTags []string
	TaskTags         []string
	ModalityTags     []string
	Definitions      map[string]string
	Version          int
}

// DailySnapshot is the persisted projection of one day's aggregate stats.
type DailySnapshot struct {
	Date          string
	TotalPapers   int
	ClusterCounts map[string]int
	TopPaperIDs   []string
	NewPaperIDs   []string
}

// UpvotePoint is one point-in-time upvote observation for a paper.
type UpvotePoint struct {
	Date    string
	Upvotes int
}

// MonthCount is a month identifier with its paper count.
type MonthCount struct {
	Month string
	Count int
}

// PaperFilter narrows and orders a month's paper listing.
type PaperFilter struct {
	Cluster  string
	Search   string
	Sort     string // "upvotes", "date" or "title"
	Page     int
	PageSize int
}

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		abstract TEXT NOT NULL DEFAULT '',
		published_date TEXT,
		hf_url TEXT NOT NULL DEFAULT '',
		arxiv_url TEXT,
		pdf_url TEXT,
		upvotes INTEGER DEFAULT 0,
		authors TEXT NOT NULL DEFAULT '[]',
		content_hash TEXT,
		appeared_date TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_papers_appeared_date ON papers(appeared_date);

	CREATE TABLE IF NOT EXISTS paper_tags (
		paper_id TEXT PRIMARY KEY REFERENCES papers(id),
		month TEXT NOT NULL,
		primary_tag TEXT NOT NULL,
		secondary_tags TEXT NOT NULL DEFAULT '[]',
		task_tags TEXT NOT NULL DEFAULT '[]',
		modality_tags TEXT NOT NULL DEFAULT '[]',
		research_question TEXT,
		confidence REAL DEFAULT 0.0,
		rationale TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_paper_tags_month ON paper_tags(month);
	CREATE INDEX IF NOT EXISTS idx_paper_tags_primary ON paper_tags(primary_tag);

	CREATE TABLE IF NOT EXISTS taxonomies (
		month TEXT PRIMARY KEY,
		contribution_tags TEXT NOT NULL,
		task_tags TEXT NOT NULL,
		modality_tags TEXT NOT NULL,
		definitions TEXT NOT NULL DEFAULT '{}',
		version INTEGER DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS daily_snapshots (
		date TEXT PRIMARY KEY,
		total_papers INTEGER NOT NULL,
		cluster_counts TEXT NOT NULL,
		top_paper_ids TEXT NOT NULL,
		new_paper_ids TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS upvote_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id TEXT NOT NULL REFERENCES papers(id),
		date TEXT NOT NULL,
		upvotes INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(paper_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_upvote_history_paper ON upvote_history(paper_id);
	CREATE INDEX IF NOT EXISTS idx_upvote_history_date ON upvote_history(date);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// UpsertPaper inserts or updates a paper. The first recorded appeared_date
// is preserved across re-ingestion.
func (db *DB) UpsertPaper(ctx context.Context, paper *Paper) error {
	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}

	query := `
	INSERT INTO papers (id, title, abstract, published_date, hf_url, arxiv_url, pdf_url, upvotes, authors, content_hash, appeared_date, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		abstract = excluded.abstract,
		published_date = excluded.published_date,
		hf_url = excluded.hf_url,
		arxiv_url = excluded.arxiv_url,
		pdf_url = excluded.pdf_url,
		upvotes = excluded.upvotes,
		authors = excluded.authors,
		content_hash = excluded.content_hash,
		appeared_date = COALESCE(papers.appeared_date, excluded.appeared_date),
		updated_at = excluded.updated_at
	`

	_, err = db.conn.ExecContext(ctx, query,
		paper.ID,
		paper.Title,
		paper.Abstract,
		nullString(paper.PublishedDate),
		paper.HFURL,
		paper.ArxivURL,
		paper.PDFURL,
		paper.Upvotes,
		string(authorsJSON),
		paper.ContentHash,
		nullString(paper.AppearedDate),
		time.Now().UTC(),
	)
	return err
}

// GetPaper retrieves a paper by arxiv ID.
func (db *DB) GetPaper(ctx context.Context, id string) (*Paper, error) {
	query := `
	SELECT id, title, abstract, published_date, hf_url, arxiv_url, pdf_url, upvotes, authors, content_hash, appeared_date
	FROM papers WHERE id = ?
	`

	paper, err := scanPaper(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return paper, nil
}

// PapersByDate returns all papers that appeared on the given date,
// highest upvotes first.
func (db *DB) PapersByDate(ctx context.Context, date string) ([]Paper, error) {
	query := `
	SELECT id, title, abstract, published_date, hf_url, arxiv_url, pdf_url, upvotes, authors, content_hash, appeared_date
	FROM papers WHERE appeared_date = ? ORDER BY upvotes DESC
	`

	rows, err := db.conn.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *paper)
	}
	return papers, rows.Err()
}

// TaggedPapersRange returns papers paired with their tags for an inclusive
// appeared_date range, ordered by appeared_date descending then upvotes
// descending. Untagged papers carry nil Tags.
func (db *DB) TaggedPapersRange(ctx context.Context, start, end string) ([]TaggedPaper, error) {
	query := `
	SELECT p.id, p.title, p.abstract, p.published_date, p.hf_url, p.arxiv_url, p.pdf_url, p.upvotes, p.authors, p.content_hash, p.appeared_date,
	       pt.month, pt.primary_tag, pt.secondary_tags, pt.task_tags, pt.modality_tags, pt.research_question, pt.confidence, pt.rationale
	FROM papers p
	LEFT JOIN paper_tags pt ON p.id = pt.paper_id
	WHERE p.appeared_date >= ? AND p.appeared_date <= ?
	ORDER BY p.appeared_date DESC, p.upvotes DESC
	`

	return db.queryTaggedPapers(ctx, query, start, end)
}

// TaggedPapersByDate returns papers with tags for one appeared_date.
func (db *DB) TaggedPapersByDate(ctx context.Context, date string) ([]TaggedPaper, error) {
	return db.TaggedPapersRange(ctx, date, date)
}

// TaggedPapersByMonth returns all of a month's papers with their tags,
// highest upvotes first.
func (db *DB) TaggedPapersByMonth(ctx context.Context, month string) ([]TaggedPaper, error) {
	query := `
	SELECT p.id, p.title, p.abstract, p.published_date, p.hf_url, p.arxiv_url, p.pdf_url, p.upvotes, p.authors, p.content_hash, p.appeared_date,
	       pt.month, pt.primary_tag, pt.secondary_tags, pt.task_tags, pt.modality_tags, pt.research_question, pt.confidence, pt.rationale
	FROM papers p
	LEFT JOIN paper_tags pt ON p.id = pt.paper_id
	WHERE p.appeared_date LIKE ?
	ORDER BY p.upvotes DESC, p.id ASC
	`

	return db.queryTaggedPapers(ctx, query, month+"-%")
}

// CountPapersByDate returns how many papers appeared on the given date.
func (db *DB) CountPapersByDate(ctx context.Context, date string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM papers WHERE appeared_date = ?`, date).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PapersByMonth returns a filtered, paginated page of a month's papers with
// their tags plus the total match count.
func (db *DB) PapersByMonth(ctx context.Context, month string, filter PaperFilter) ([]TaggedPaper, int, error) {
	where := []string{"p.appeared_date LIKE ?"}
	args := []any{month + "-%"}

	if filter.Cluster != "" {
		where = append(where, "pt.primary_tag = ?")
		args = append(args, filter.Cluster)
	}
	if filter.Search != "" {
		where = append(where, "(p.title LIKE ? OR p.abstract LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	countQuery := `
	SELECT COUNT(*)
	FROM papers p
	LEFT JOIN paper_tags pt ON p.id = pt.paper_id
	WHERE ` + whereClause

	var total int
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	var orderBy string
	switch filter.Sort {
	case "date":
		orderBy = "p.appeared_date DESC, p.upvotes DESC"
	case "title":
		orderBy = "p.title ASC"
	default:
		orderBy = "p.upvotes DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	query := `
	SELECT p.id, p.title, p.abstract, p.published_date, p.hf_url, p.arxiv_url, p.pdf_url, p.upvotes, p.authors, p.content_hash, p.appeared_date,
	       pt.month, pt.primary_tag, pt.secondary_tags, pt.task_tags, pt.modality_tags, pt.research_question, pt.confidence, pt.rationale
	FROM papers p
	LEFT JOIN paper_tags pt ON p.id = pt.paper_id
	WHERE ` + whereClause + `
	ORDER BY ` + orderBy + `
	LIMIT ? OFFSET ?`

	args = append(args, pageSize, (page-1)*pageSize)

	papers, err := db.queryTaggedPapers(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return papers, total, nil
}

// UntaggedPapers returns the month's papers that have no tags yet.
func (db *DB) UntaggedPapers(ctx context.Context, month string) ([]Paper, error) {
	query := `
	SELECT p.id, p.title, p.abstract, p.published_date, p.hf_url, p.arxiv_url, p.pdf_url, p.upvotes, p.authors, p.content_hash, p.appeared_date
	FROM papers p
	LEFT JOIN paper_tags pt ON p.id = pt.paper_id
	WHERE p.appeared_date LIKE ? AND pt.paper_id IS NULL
	ORDER BY p.appeared_date ASC, p.upvotes DESC
	`

	rows, err := db.conn.QueryContext(ctx, query, month+"-%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *paper)
	}
	return papers, rows.Err()
}

// Months returns the distinct months that have papers, newest first.
func (db *DB) Months(ctx context.Context, limit int) ([]MonthCount, error) {
	query := `
	SELECT substr(appeared_date, 1, 7) AS month, COUNT(*) AS count
	FROM papers
	WHERE appeared_date IS NOT NULL AND appeared_date != ''
	GROUP BY month
	ORDER BY month DESC
	LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var months []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		months = append(months, mc)
	}
	return months, rows.Err()
}

// UpsertTags inserts or replaces the tags for a paper.
func (db *DB) UpsertTags(ctx context.Context, tags *PaperTags) error {
	secondaryJSON, err := json.Marshal(tags.Secondary)
	if err != nil {
		return fmt.Errorf("marshal secondary tags: %w", err)
	}
	taskJSON, err := json.Marshal(tags.TaskTags)
	if err != nil {
		return fmt.Errorf("marshal task tags: %w", err)
	}
	modalityJSON, err := json.Marshal(tags.ModalityTags)
	if err != nil {
		return fmt.Errorf("marshal modality tags: %w", err)
	}

	query := `
	INSERT INTO paper_tags (paper_id, month, primary_tag, secondary_tags, task_tags, modality_tags, research_question, confidence, rationale)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(paper_id) DO UPDATE SET
		month = excluded.month,
		primary_tag = excluded.primary_tag,
		secondary_tags = excluded.secondary_tags,
		task_tags = excluded.task_tags,
		modality_tags = excluded.modality_tags,
		research_question = excluded.research_question,
		confidence = excluded.confidence,
		rationale = excluded.rationale
	`

	_, err = db.conn.ExecContext(ctx, query,
		tags.PaperID,
		tags.Month,
		tags.Primary,
		string(secondaryJSON),
		string(taskJSON),
		string(modalityJSON),
		tags.ResearchQuestion,
		tags.Confidence,
		tags.Rationale,
	)
	return err
}

// GetTags retrieves the tags for a paper.
func (db *DB) GetTags(ctx context.Context, paperID string) (*PaperTags, error) {
	query := `
	SELECT paper_id, month, primary_tag, secondary_tags, task_tags, modality_tags, research_question, confidence, rationale
	FROM paper_tags WHERE paper_id = ?
	`

	tags := &PaperTags{}
	var secondaryJSON, taskJSON, modalityJSON string
	var researchQuestion, rationale sql.NullString

	err := db.conn.QueryRowContext(ctx, query, paperID).Scan(
		&tags.PaperID,
		&tags.Month,
		&tags.Primary,
		&secondaryJSON,
		&taskJSON,
		&modalityJSON,
		&researchQuestion,
		&tags.Confidence,
		&rationale,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tags.ResearchQuestion = researchQuestion.String
	tags.Rationale = rationale.String
	if err := unmarshalStrings(secondaryJSON, &tags.Secondary); err != nil {
		return nil, fmt.Errorf("unmarshal secondary tags: %w", err)
	}
	if err := unmarshalStrings(taskJSON, &tags.TaskTags); err != nil {
		return nil, fmt.Errorf("unmarshal task tags: %w", err)
	}
	if err := unmarshalStrings(modalityJSON, &tags.ModalityTags); err != nil {
		return nil, fmt.Errorf("unmarshal modality tags: %w", err)
	}

	return tags, nil
}

// UpsertTaxonomy saves the taxonomy for a month. Re-saving an existing
// month's taxonomy increments its version.
func (db *DB) UpsertTaxonomy(ctx context.Context, tax *Taxonomy) error {
	contributionJSON, err := json.Marshal(tax.ContributionTags)
	if err != nil {
		return fmt.Errorf("marshal contribution tags: %w", err)
	}
	taskJSON, err := json.Marshal(tax.TaskTags)
	if err != nil {
		return fmt.Errorf("marshal task tags: %w", err)
	}
	modalityJSON, err := json.Marshal(tax.ModalityTags)
	if err != nil {
		return fmt.Errorf("marshal modality tags: %w", err)
	}
	definitions := tax.Definitions
	if definitions == nil {
		definitions = map[string]string{}
	}
	definitionsJSON, err := json.Marshal(definitions)
	if err != nil {
		return fmt.Errorf("marshal definitions: %w", err)
	}

	query := `
	INSERT INTO taxonomies (month, contribution_tags, task_tags, modality_tags, definitions, version)
	VALUES (?, ?, ?, ?, ?, 1)
	ON CONFLICT(month) DO UPDATE SET
		contribution_tags = excluded.contribution_tags,
		task_tags = excluded.task_tags,
		modality_tags = excluded.modality_tags,
		definitions = excluded.definitions,
		version = taxonomies.version + 1
	`

	_, err = db.conn.ExecContext(ctx, query,
		tax.Month,
		string(contributionJSON),
		string(taskJSON),
		string(modalityJSON),
		string(definitionsJSON),
	)
	return err
}

// GetTaxonomy retrieves the taxonomy for a month.
func (db *DB) GetTaxonomy(ctx context.Context, month string) (*Taxonomy, error) {
	query := `
	SELECT month, contribution_tags, task_tags, modality_tags, definitions, version
	FROM taxonomies WHERE month = ?
	`

	tax := &Taxonomy{}
	var contributionJSON, taskJSON, modalityJSON, definitionsJSON string

	err := db.conn.QueryRowContext(ctx, query, month).Scan(
		&tax.Month,
		&contributionJSON,
		&taskJSON,
		&modalityJSON,
		&definitionsJSON,
		&tax.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := unmarshalStrings(contributionJSON, &tax.ContributionTags); err != nil {
		return nil, fmt.Errorf("unmarshal contribution tags: %w", err)
	}
	if err := unmarshalStrings(taskJSON, &tax.TaskTags); err != nil {
		return nil, fmt.Errorf("unmarshal task tags: %w", err)
	}
	if err := unmarshalStrings(modalityJSON, &tax.ModalityTags); err != nil {
		return nil, fmt.Errorf("unmarshal modality tags: %w", err)
	}
	if err := json.Unmarshal([]byte(definitionsJSON), &tax.Definitions); err != nil {
		return nil, fmt.Errorf("unmarshal definitions: %w", err)
	}

	return tax, nil
}

// SaveSnapshot inserts or replaces the snapshot for a date.
func (db *DB) SaveSnapshot(ctx context.Context, snapshot *DailySnapshot) error {
	counts := snapshot.ClusterCounts
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal cluster counts: %w", err)
	}
	topJSON, err := json.Marshal(snapshot.TopPaperIDs)
	if err != nil {
		return fmt.Errorf("marshal top paper ids: %w", err)
	}
	newJSON, err := json.Marshal(snapshot.NewPaperIDs)
	if err != nil {
		return fmt.Errorf("marshal new paper ids: %w", err)
	}

	query := `
	INSERT INTO daily_snapshots (date, total_papers, cluster_counts, top_paper_ids, new_paper_ids)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		total_papers = excluded.total_papers,
		cluster_counts = excluded.cluster_counts,
		top_paper_ids = excluded.top_paper_ids,
		new_paper_ids = excluded.new_paper_ids
	`

	_, err = db.conn.ExecContext(ctx, query,
		snapshot.Date,
		snapshot.TotalPapers,
		string(countsJSON),
		string(topJSON),
		string(newJSON),
	)
	return err
}

// GetSnapshot retrieves the snapshot for a date.
func (db *DB) GetSnapshot(ctx context.Context, date string) (*DailySnapshot, error) {
	query := `
	SELECT date, total_papers, cluster_counts, top_paper_ids, new_paper_ids
	FROM daily_snapshots WHERE date = ?
	`

	snapshot := &DailySnapshot{}
	var countsJSON, topJSON, newJSON string

	err := db.conn.QueryRowContext(ctx, query, date).Scan(
		&snapshot.Date,
		&snapshot.TotalPapers,
		&countsJSON,
		&topJSON,
		&newJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(countsJSON), &snapshot.ClusterCounts); err != nil {
		return nil, fmt.Errorf("unmarshal cluster counts: %w", err)
	}
	if err := unmarshalStrings(topJSON, &snapshot.TopPaperIDs); err != nil {
		return nil, fmt.Errorf("unmarshal top paper ids: %w", err)
	}
	if err := unmarshalStrings(newJSON, &snapshot.NewPaperIDs); err != nil {
		return nil, fmt.Errorf("unmarshal new paper ids: %w", err)
	}

	return snapshot, nil
}

// RecordUpvote stores a point-in-time upvote count. At most one row exists
// per (paper, date); re-recording the same day overwrites.
func (db *DB) RecordUpvote(ctx context.Context, paperID, date string, upvotes int) error {
	query := `
	INSERT INTO upvote_history (paper_id, date, upvotes)
	VALUES (?, ?, ?)
	ON CONFLICT(paper_id, date) DO UPDATE SET upvotes = excluded.upvotes
	`
	_, err := db.conn.ExecContext(ctx, query, paperID, date, upvotes)
	return err
}

// UpvoteHistory returns a paper's upvote observations in date order.
func (db *DB) UpvoteHistory(ctx context.Context, paperID string) ([]UpvotePoint, error) {
	query := `SELECT date, upvotes FROM upvote_history WHERE paper_id = ? ORDER BY date ASC`

	rows, err := db.conn.QueryContext(ctx, query, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []UpvotePoint
	for rows.Next() {
		var p UpvotePoint
		if err := rows.Scan(&p.Date, &p.Upvotes); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// scanner captures the Scan method shared by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(s scanner) (*Paper, error) {
	paper := &Paper{}
	var publishedDate, arxivURL, pdfURL, contentHash, appearedDate sql.NullString
	var authorsJSON string

	err := s.Scan(
		&paper.ID,
		&paper.Title,
		&paper.Abstract,
		&publishedDate,
		&paper.HFURL,
		&arxivURL,
		&pdfURL,
		&paper.Upvotes,
		&authorsJSON,
		&contentHash,
		&appearedDate,
	)
	if err != nil {
		return nil, err
	}

	paper.PublishedDate = publishedDate.String
	paper.ArxivURL = arxivURL.String
	paper.PDFURL = pdfURL.String
	paper.ContentHash = contentHash.String
	paper.AppearedDate = appearedDate.String
	if err := unmarshalStrings(authorsJSON, &paper.Authors); err != nil {
		return nil, fmt.Errorf("unmarshal authors: %w", err)
	}

	return paper, nil
}

func (db *DB) queryTaggedPapers(ctx context.Context, query string, args ...any) ([]TaggedPaper, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []TaggedPaper
	for rows.Next() {
		var tp TaggedPaper
		var publishedDate, arxivURL, pdfURL, contentHash, appearedDate sql.NullString
		var authorsJSON string
		var tagMonth, primaryTag, secondaryJSON, taskJSON, modalityJSON, researchQuestion, rationale sql.NullString
		var confidence sql.NullFloat64

		err := rows.Scan(
			&tp.Paper.ID,
			&tp.Paper.Title,
			&tp.Paper.Abstract,
			&publishedDate,
			&tp.Paper.HFURL,
			&arxivURL,
			&pdfURL,
			&tp.Paper.Upvotes,
			&authorsJSON,
			&contentHash,
			&appearedDate,
			&tagMonth,
			&primaryTag,
			&secondaryJSON,
			&taskJSON,
			&modalityJSON,
			&researchQuestion,
			&confidence,
			&rationale,
		)
		if err != nil {
			return nil, err
		}

		tp.Paper.PublishedDate = publishedDate.String
		tp.Paper.ArxivURL = arxivURL.String
		tp.Paper.PDFURL = pdfURL.String
		tp.Paper.ContentHash = contentHash.String
		tp.Paper.AppearedDate = appearedDate.String
		if err := unmarshalStrings(authorsJSON, &tp.Paper.Authors); err != nil {
			return nil, fmt.Errorf("unmarshal authors: %w", err)
		}

		if primaryTag.Valid {
			tags := &PaperTags{
				PaperID:          tp.Paper.ID,
				Month:            tagMonth.String,
				Primary:          primaryTag.String,
				ResearchQuestion: researchQuestion.String,
				Confidence:       confidence.Float64,
				Rationale:        rationale.String,
			}
			if err := unmarshalStrings(secondaryJSON.String, &tags.Secondary); err != nil {
				return nil, fmt.Errorf("unmarshal secondary tags: %w", err)
			}
			if err := unmarshalStrings(taskJSON.String, &tags.TaskTags); err != nil {
				return nil, fmt.Errorf("unmarshal task tags: %w", err)
			}
			if err := unmarshalStrings(modalityJSON.String, &tags.ModalityTags); err != nil {
				return nil, fmt.Errorf("unmarshal modality tags: %w", err)
			}
			tp.Tags = tags
		}

		papers = append(papers, tp)
	}
	return papers, rows.Err()
}

func unmarshalStrings(data string, dest *[]string) error {
	if data == "" {
		*dest = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return err
	}
	if *dest == nil {
		*dest = []string{}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
