// Package hf scrapes paper listings and paper pages from Hugging Face.
package hf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	defaultBaseURL    = "https://huggingface.co"
	defaultFetchDelay = 1500 * time.Millisecond
	userAgent         = "Mozilla/5.0 (compatible; paper-radar/1.0)"
)

// Paper is the metadata scraped for a single paper.
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

// Client fetches paper listings and paper pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
	fetchDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithFetchDelay sets the pause between consecutive paper fetches.
func WithFetchDelay(d time.Duration) Option {
	return func(c *Client) {
		c.fetchDelay = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a scraping client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		fetchDelay: defaultFetchDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListDay returns the paper IDs listed for one day (YYYY-MM-DD).
func (c *Client) ListDay(ctx context.Context, date string) ([]string, error) {
	return c.listPapers(ctx, fmt.Sprintf("%s/papers/date/%s", c.baseURL, date))
}

// ListMonth returns the paper IDs listed for one month (YYYY-MM).
func (c *Client) ListMonth(ctx context.Context, month string) ([]string, error) {
	return c.listPapers(ctx, fmt.Sprintf("%s/papers/month/%s", c.baseURL, month))
}

func (c *Client) listPapers(ctx context.Context, listURL string) ([]string, error) {
	body, err := c.get(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return extractPaperIDs(doc), nil
}

// FetchPaper fetches and parses one paper page. appearedDate is stamped
// onto the result and may be empty when the arrival day is unknown.
func (c *Client) FetchPaper(ctx context.Context, paperID, appearedDate string) (*Paper, error) {
	pageURL := fmt.Sprintf("%s/papers/%s", c.baseURL, paperID)

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch paper %s: %w", paperID, err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse paper %s: %w", paperID, err)
	}

	title := ""
	if h1 := findElement(doc, func(n *html.Node) bool { return n.Data == "h1" }); h1 != nil {
		title = textContent(h1)
	}

	abstract := extractAbstract(doc)
	if abstract == "" {
		// Last resort: pull the main content out of the page and take
		// the first substantial paragraph.
		if parsed, perr := url.Parse(pageURL); perr == nil {
			if article, rerr := readability.FromReader(bytes.NewReader(body), parsed); rerr == nil {
				abstract = firstLongParagraph(article.TextContent)
			}
		}
	}

	return &Paper{
		ID:            paperID,
		Title:         title,
		Abstract:      abstract,
		PublishedDate: extractPublishedDate(doc),
		HFURL:         pageURL,
		ArxivURL:      fmt.Sprintf("https://arxiv.org/abs/%s", paperID),
		PDFURL:        fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", paperID),
		Upvotes:       extractUpvotes(doc),
		Authors:       extractAuthors(doc),
		ContentHash:   ContentHash(title, abstract),
		AppearedDate:  appearedDate,
	}, nil
}

// ScrapeDay fetches every paper listed for one day, stamping each with
// that day as its appeared date.
func (c *Client) ScrapeDay(ctx context.Context, date string) ([]*Paper, error) {
	ids, err := c.ListDay(ctx, date)
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetched paper listing", "date", date, "count", len(ids))
	return c.fetchAll(ctx, ids, date, nil)
}

// ScrapeMonth fetches every paper listed for one month. Papers carry an
// empty appeared date because the monthly listing does not say which
// day each paper arrived. progress may be nil.
func (c *Client) ScrapeMonth(ctx context.Context, month string, progress func(done, total int, paperID string)) ([]*Paper, error) {
	ids, err := c.ListMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetched paper listing", "month", month, "count", len(ids))
	return c.fetchAll(ctx, ids, "", progress)
}

func (c *Client) fetchAll(ctx context.Context, ids []string, appearedDate string, progress func(int, int, string)) ([]*Paper, error) {
	papers := make([]*Paper, 0, len(ids))
	for i, id := range ids {
		if progress != nil {
			progress(i+1, len(ids), id)
		}

		paper, err := c.FetchPaper(ctx, id, appearedDate)
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			c.logger.Warn("failed to fetch paper", "paper_id", id, "error", err)
		} else {
			papers = append(papers, paper)
		}

		if i < len(ids)-1 && c.fetchDelay > 0 {
			select {
			case <-time.After(c.fetchDelay):
			case <-ctx.Done():
				return papers, ctx.Err()
			}
		}
	}
	return papers, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ContentHash fingerprints a paper's title and abstract, used to detect
// content changes between scrapes.
func ContentHash(title, abstract string) string {
	sum := sha256.Sum256([]byte(title + abstract))
	return hex.EncodeToString(sum[:])[:16]
}
