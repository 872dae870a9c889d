package scraper

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"modstream/internal/domains"
	"modstream/internal/models"
	"modstream/internal/util"
)

// minBodyLength rejects stub/error pages that come back with a 200.
const minBodyLength = 1000

// noResultMarkers flag a "no results" page regardless of status code.
var noResultMarkers = []string{
	"nothing found",
	"no results found",
	"sorry, but nothing matched",
}

// searchSelectors is the ordered selector-fallback chain for result
// extraction: most site-specific first, generic last. The first selector
// yielding at least one match wins.
var searchSelectors = []string{
	"article.latestPost .title a",
	".post-cards article h2 a",
	"h2.title a[href]",
	"article h3 a[href]",
	".post-title a[href]",
}

// contentContainers scopes the anchor-scan fallback when no selector
// matches anything.
var contentContainers = "#content, .content, main, .post-list"

// SearchEngine queries the provider site for a title. Failures surface
// as an empty result list, never as an error: the orchestrator decides
// what an empty search means.
type SearchEngine struct {
	client  *http.Client
	domains *domains.Cache
	cache   *util.ResponseCache
}

// NewSearchEngine wires the search engine to the shared client and the
// base-domain cache.
func NewSearchEngine(dom *domains.Cache) *SearchEngine {
	return &SearchEngine{
		client:  util.GetSharedClient(),
		domains: dom,
		cache:   util.GetSearchCache(),
	}
}

// Search returns the deduplicated candidate list for a title. Two URL
// strategies are tried in order; the first acceptable page is parsed.
func (s *SearchEngine) Search(title string) []models.SearchResult {
	base := strings.TrimRight(s.domains.Current(), "/")

	strategies := []string{
		fmt.Sprintf("%s/search/%s", base, url.PathEscape(title)),
		fmt.Sprintf("%s/?s=%s", base, url.QueryEscape(title)),
	}

	for _, searchURL := range strategies {
		body, ok := s.fetchSearchPage(searchURL)
		if !ok {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			util.Debug("search page parse failed", "url", searchURL, "error", err)
			continue
		}

		results := extractResults(doc, base)
		if len(results) > 0 {
			util.Debug("search succeeded", "url", searchURL, "results", len(results))
			return results
		}
	}

	return nil
}

// fetchSearchPage fetches one search URL, applying the body-length
// minimum and the no-results markers. Pages are cached briefly.
func (s *SearchEngine) fetchSearchPage(searchURL string) ([]byte, bool) {
	if cached, ok := s.cache.Get(searchURL); ok {
		return cached, true
	}

	req, err := http.NewRequest(http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", util.BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		util.Debug("search request failed", "url", searchURL, "error", err)
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		util.Debug("search returned non-200", "url", searchURL, "status", resp.Status)
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil || len(body) < minBodyLength {
		return nil, false
	}

	lower := strings.ToLower(string(body))
	for _, marker := range noResultMarkers {
		if strings.Contains(lower, marker) {
			return nil, false
		}
	}

	s.cache.Set(searchURL, body)
	return body, true
}

func extractResults(doc *goquery.Document, base string) []models.SearchResult {
	var results []models.SearchResult

	for _, selector := range searchSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		sel.Each(func(i int, a *goquery.Selection) {
			if r, ok := resultFromAnchor(a, base); ok {
				results = append(results, r)
			}
		})
		if len(results) > 0 {
			break
		}
	}

	if len(results) == 0 {
		results = scanContentAnchors(doc, base)
	}

	return lo.UniqBy(results, func(r models.SearchResult) string { return r.URL })
}

// scanContentAnchors is the last-resort extraction: any anchor inside a
// generic content container whose target looks like a post link and
// whose visible text is long enough to be a title.
func scanContentAnchors(doc *goquery.Document, base string) []models.SearchResult {
	var results []models.SearchResult
	doc.Find(contentContainers).Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		text := strings.TrimSpace(a.Text())
		if len(text) < 4 {
			return
		}
		if !strings.Contains(href, "/download-") && strings.Contains(href, "/page/") {
			return
		}
		if r, ok := resultFromAnchor(a, base); ok {
			results = append(results, r)
		}
	})
	return results
}

func resultFromAnchor(a *goquery.Selection, base string) (models.SearchResult, bool) {
	href, exists := a.Attr("href")
	if !exists || href == "" {
		return models.SearchResult{}, false
	}
	title := strings.TrimSpace(a.Text())
	if title == "" {
		title = strings.TrimSpace(a.AttrOr("title", ""))
	}
	if title == "" {
		return models.SearchResult{}, false
	}
	return models.SearchResult{Title: title, URL: resolveURL(base, href)}, true
}

func resolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	return base + "/" + ref
}
