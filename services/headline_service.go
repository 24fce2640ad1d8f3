package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	defaultHeadlineURL = "https://news.google.com/rss/search"
	headlineCacheTTL   = 15 * time.Minute
	promptHeadlines    = 5
)

// HeadlineSource supplies recent news titles for a symbol
type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]Headline, error)
}

// Headline is a single news item from an RSS search feed
type Headline struct {
	Title       string    `xml:"title" json:"title"`
	Link        string    `xml:"link" json:"link"`
	Source      string    `xml:"source" json:"source,omitempty"`
	PubDate     string    `xml:"pubDate" json:"-"`
	PublishedAt time.Time `xml:"-" json:"published_at,omitempty"`
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []Headline `xml:"item"`
	} `xml:"channel"`
}

// HeadlineService searches Google News RSS for stock headlines, caching results per symbol
type HeadlineService struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *logrus.Logger
}

// NewHeadlineService creates a headline service; baseURL may be empty for Google News
func NewHeadlineService(baseURL string) *HeadlineService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if baseURL == "" {
		baseURL = defaultHeadlineURL
	}

	return &HeadlineService{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache:  cache.New(headlineCacheTTL, 2*headlineCacheTTL),
		logger: logger,
	}
}

// Headlines returns up to limit headlines for the symbol, newest feed order first
func (hs *HeadlineService) Headlines(ctx context.Context, symbol string, limit int) ([]Headline, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNoSymbols
	}

	items, ok := hs.cached(symbol)
	if !ok {
		var err error
		items, err = hs.fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}
		hs.cache.SetDefault(symbol, items)
		hs.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"count":  len(items),
		}).Debug("Fetched headlines")
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (hs *HeadlineService) cached(symbol string) ([]Headline, bool) {
	v, ok := hs.cache.Get(symbol)
	if !ok {
		return nil, false
	}
	items, ok := v.([]Headline)
	return items, ok
}

func (hs *HeadlineService) fetch(ctx context.Context, symbol string) ([]Headline, error) {
	query := url.Values{}
	query.Set("q", symbol+" stock")
	query.Set("hl", "en-US")
	query.Set("gl", "US")
	query.Set("ceid", "US:en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := hs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headlines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	items := feed.Channel.Items
	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
		if t, err := time.Parse(time.RFC1123, items[i].PubDate); err == nil {
			items[i].PublishedAt = t
		} else if t, err := time.Parse(time.RFC1123Z, items[i].PubDate); err == nil {
			items[i].PublishedAt = t
		}
	}
	return items, nil
}

func headlineTitles(items []Headline) []string {
	titles := make([]string, 0, len(items))
	for _, item := range items {
		if item.Title != "" {
			titles = append(titles, item.Title)
		}
	}
	return titles
}
