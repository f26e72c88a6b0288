package tool

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// result anchors in the DuckDuckGo HTML page; snippets follow in a sibling
// element with class result__snippet.
var (
	resultLinkRe    = regexp.MustCompile(`<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnippetRe = regexp.MustCompile(`<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe           = regexp.MustCompile(`<[^>]+>`)
)

// WebSearch queries the DuckDuckGo HTML endpoint and returns formatted
// results.
type WebSearch struct {
	client   *http.Client
	endpoint string
}

// NewWebSearch creates the web_search built-in.
func NewWebSearch() *WebSearch {
	return &WebSearch{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: ddgEndpoint,
	}
}

// Name implements Tool.
func (t *WebSearch) Name() string { return "web_search" }

// Description implements Tool.
func (t *WebSearch) Description() string {
	return "Search the web for current information. Use this when you need up-to-date facts, news, or information not in your training data."
}

// Parameters implements Tool.
func (t *WebSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default: 5)",
				"default":     5,
			},
		},
		"required": []string{"query"},
	}
}

// Execute implements Tool.
func (t *WebSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "Error: 'query' is required.", nil
	}
	maxResults := 5
	if n, ok := args["max_results"].(float64); ok && n > 0 {
		maxResults = int(n)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint,
		strings.NewReader(url.Values{"q": {query}}.Encode()))
	if err != nil {
		return "Search failed: " + err.Error(), nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; parley/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return "Search failed: " + err.Error(), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "Search failed: unexpected status " + resp.Status, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "Search failed: " + err.Error(), nil
	}

	links := resultLinkRe.FindAllStringSubmatch(string(body), maxResults)
	snippets := resultSnippetRe.FindAllStringSubmatch(string(body), maxResults)
	if len(links) == 0 {
		return "No results found.", nil
	}

	var results []string
	for i, link := range links {
		title := cleanFragment(link[2])
		href := html.UnescapeString(link[1])
		snippet := ""
		if i < len(snippets) {
			snippet = cleanFragment(snippets[i][1])
		}
		results = append(results, fmt.Sprintf("**%s**\n%s\n%s\n", title, href, snippet))
	}
	return strings.Join(results, "\n---\n"), nil
}

func cleanFragment(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}
