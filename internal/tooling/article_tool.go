package tooling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// HTTPFetcher abstracts HTTP GET requests for testability.
type HTTPFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DefaultFetcher fetches pages with net/http.
type DefaultFetcher struct {
	Client *http.Client
}

// Fetch performs a GET and returns the body. Non-200 responses are errors.
func (f *DefaultFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ArticleInput represents the input structure for the article tool.
type ArticleInput struct {
	URL string `json:"url" jsonschema:"minLength=1,description=Full http(s) URL of the article to read"`
}

// ArticleTool fetches a web article (e.g. a Bulbapedia page), strips
// script/style tags with goquery, and extracts the main content with
// go-readability so the reasoning service gets clean text instead of raw HTML.
type ArticleTool struct {
	fetcher HTTPFetcher
}

// NewArticleTool creates an ArticleTool. fetcher may be nil to use net/http.
func NewArticleTool(fetcher HTTPFetcher) *ArticleTool {
	if fetcher == nil {
		fetcher = &DefaultFetcher{}
	}
	return &ArticleTool{fetcher: fetcher}
}

func (t *ArticleTool) Name() string { return "lookup_article" }

func (t *ArticleTool) Description() string {
	return "Fetches a web article, strips scripts and styles, and returns its readable text content"
}

func (t *ArticleTool) Definition() string {
	return GenerateSchema(ArticleInput{})
}

// Call validates the arguments and runs fetch → strip → extract.
func (t *ArticleTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input ArticleInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return nil, fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	rawHTML, err := t.fetcher.Fetch(ctx, input.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	content, err := extractArticle(rawHTML, input.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to process HTML: %w", err)
	}
	return content, nil
}

// extractArticle strips scripts/styles and extracts readable content, falling
// back to plain text when readability cannot identify an article.
func extractArticle(rawHTML []byte, sourceURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	pageURL, err := url.Parse(sourceURL)
	if err == nil {
		article, rErr := readability.FromReader(strings.NewReader(cleaned), pageURL)
		if rErr == nil && strings.TrimSpace(article.TextContent) != "" {
			return strings.TrimSpace(article.TextContent), nil
		}
	}

	// Fallback: plain text of the cleaned document.
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return "", fmt.Errorf("no content found at URL")
	}
	return text, nil
}
