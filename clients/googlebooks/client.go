// Package googlebooks searches the Google Books volumes API and maps volumes
// onto catalog books.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/butykaidavid/read-rival-quest/models"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://www.googleapis.com/books/v1"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("google books API key not configured")

type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls the volumes endpoint. Calls are rate limited client-side and
// never retried.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		rateLimiter: rate.NewLimiter(limit, 5),
	}
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Volume is the subset of a volumes API item the catalog uses.
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

type VolumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	PublishedDate       string               `json:"publishedDate"`
	PageCount           int                  `json:"pageCount"`
	Categories          []string             `json:"categories"`
	ImageLinks          *ImageLinks          `json:"imageLinks"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers"`
	AverageRating       float64              `json:"averageRating"`
	RatingsCount        int                  `json:"ratingsCount"`
	PreviewLink         string               `json:"previewLink"`
	Language            string               `json:"language"`
}

type ImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// SearchVolumes runs one volumes query.
func (c *Client) SearchVolumes(ctx context.Context, query, filter string, maxResults int) ([]Volume, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 40 {
		maxResults = 40
	}

	params := url.Values{}
	params.Set("q", BuildQuery(query, filter))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("startIndex", "0")
	params.Set("printType", "books")
	params.Set("orderBy", "relevance")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	log.Printf("[GOOGLE_BOOKS] 🔎 Searching volumes q=%q", params.Get("q"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("google books: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("google books: status %d", resp.StatusCode)
	}

	var out volumesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return out.Items, nil
}

// SearchBooks searches and maps the volumes, preserving provider order.
func (c *Client) SearchBooks(ctx context.Context, query, genreFilter string, maxResults int) ([]models.Book, error) {
	volumes, err := c.SearchVolumes(ctx, query, genreFilter, maxResults)
	if err != nil {
		return nil, err
	}
	books := make([]models.Book, 0, len(volumes))
	for _, v := range volumes {
		if v.ID == "" || strings.TrimSpace(v.VolumeInfo.Title) == "" {
			continue
		}
		books = append(books, MapVolume(v))
	}
	return books, nil
}

// BuildQuery adds subject qualifiers for a genre filter. The romance,
// fantasy and booktok presets widen the query the way the reader app's
// search tabs expect.
func BuildQuery(query, filter string) string {
	query = strings.TrimSpace(query)
	switch f := strings.ToLower(strings.TrimSpace(filter)); f {
	case "", "all":
		return query
	case "romance":
		return query + " subject:romance OR subject:love"
	case "fantasy":
		return query + " subject:fantasy OR subject:magic"
	case "booktok":
		return query + " (subject:romance OR subject:fantasy) AND (young adult OR YA)"
	default:
		return query + " subject:" + strings.ReplaceAll(f, " ", "+")
	}
}
