package scraper

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"modstream/internal/models"
	"modstream/internal/util"
)

// entryContent scopes extraction to the post body; the provider is a
// WordPress site so the container class varies across themes.
const entryContent = ".entry-content, .post-inner, .thecontent"

// headerElements are the structural headers that label download blocks.
const headerElements = "h3, h4"

// downloadButton matches the styled download anchors under a movie
// quality header.
const downloadButton = "a.maxbutton, a[class*='maxbutton'], a[class*='button'], a[class*='btn']"

var seasonRe = regexp.MustCompile(`(?i)\bseason\b`)

// LinkExtractor enumerates the quality-labeled download links on one
// content page.
type LinkExtractor struct {
	client *http.Client
}

func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{client: util.GetSharedClient()}
}

// Extract returns the page's quality links in document order. series
// selects season-header extraction; otherwise quality subheaders are
// walked. Any failure yields an empty list.
func (e *LinkExtractor) Extract(pageURL string, series bool) []models.QualityLink {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", util.BrowserUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		util.Debug("content page fetch failed", "url", pageURL, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil
	}

	content := doc.Find(entryContent).First()
	if content.Length() == 0 {
		content = doc.Selection
	}

	var links []models.QualityLink
	content.Find(headerElements).Each(func(i int, header *goquery.Selection) {
		headerText := strings.TrimSpace(header.Text())
		if headerText == "" {
			return
		}

		// The block a header labels is everything until the next header.
		block := header.NextUntil(headerElements)

		if series {
			if !seasonRe.MatchString(headerText) {
				return
			}
			links = append(links, episodeLinks(headerText, block)...)
			return
		}

		if ql, ok := movieLink(headerText, block); ok {
			links = append(links, ql)
		}
	})

	util.Debug("extracted quality links", "url", pageURL, "count", len(links))
	return links
}

// episodeLinks collects the "Episode Links" anchors of one season block,
// excluding batch archives.
func episodeLinks(headerText string, block *goquery.Selection) []models.QualityLink {
	var links []models.QualityLink
	block.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "episode links") || strings.Contains(lower, "batch") {
			return
		}
		href, _ := a.Attr("href")
		if href == "" {
			return
		}
		links = append(links, models.QualityLink{
			Quality: headerText + " - " + text,
			URL:     href,
		})
	})
	return links
}

// movieLink takes the first download-button anchor of a quality block.
// Headers without a quality token or without a button are skipped.
func movieLink(headerText string, block *goquery.Selection) (models.QualityLink, bool) {
	quality := ExtractQuality(headerText)
	if quality == "Unknown" {
		return models.QualityLink{}, false
	}
	if tags := TechTags(headerText); len(tags) > 0 {
		quality += " " + strings.Join(tags, " ")
	}

	href, exists := block.Find(downloadButton).First().Attr("href")
	if !exists || href == "" {
		return models.QualityLink{}, false
	}

	return models.QualityLink{Quality: quality, URL: href}, true
}
