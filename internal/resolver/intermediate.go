// Package resolver walks the redirect chain between a quality link and a
// playable file: host-keyed intermediate hops, the gated-host token
// challenge, landing-page download options, and the reachability probe.
package resolver

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"modstream/internal/models"
	"modstream/internal/util"
)

// Host families the intermediate resolver knows how to unwrap. Kept as
// data so rotating domains only require touching these lists.
var (
	defaultAggregatorHosts = []string{"leechpro.blog", "taazabull24"}
	defaultEpisodeHosts    = []string{"episodes.modpro"}
	defaultLegacyHosts     = []string{"modrefer"}

	// defaultDownstreamRe matches anchors that point one hop further
	// down the chain.
	defaultDownstreamRe = regexp.MustCompile(`(?i)(driveseed\.|driveleech\.|tech\.unblockedgames\.|tech\.examzculture\.)`)
)

var episodeLabelRe = regexp.MustCompile(`(?i)episode\s*(\d+)`)

// IntermediateResolver unwraps one layer of redirection, dispatching on
// the link's hostname. Unknown hosts and all errors yield an empty list;
// nothing escapes this boundary.
type IntermediateResolver struct {
	client *http.Client

	aggregatorHosts []string
	episodeHosts    []string
	legacyHosts     []string
	downstreamRe    *regexp.Regexp
}

func NewIntermediateResolver() *IntermediateResolver {
	return &IntermediateResolver{
		client:          util.GetSharedClient(),
		aggregatorHosts: defaultAggregatorHosts,
		episodeHosts:    defaultEpisodeHosts,
		legacyHosts:     defaultLegacyHosts,
		downstreamRe:    defaultDownstreamRe,
	}
}

// Resolve dispatches the link to its host family's scraping strategy.
func (r *IntermediateResolver) Resolve(link, referer string) []models.IntermediateLink {
	u, err := url.Parse(link)
	if err != nil {
		return nil
	}
	host := u.Hostname()

	switch {
	case hostMatches(host, r.aggregatorHosts):
		return r.resolveAggregator(link, referer)
	case hostMatches(host, r.episodeHosts):
		return r.resolveEpisodeIndex(link, referer)
	case hostMatches(host, r.legacyHosts):
		return r.resolveLegacy(u, referer)
	default:
		util.Debug("unknown intermediate host", "host", host)
		return nil
	}
}

func hostMatches(host string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}

// resolveAggregator scans a redirect-aggregator page for anchors pointing
// at known downstream hosts, skipping batch archives. When the primary
// content area has none, the whole page is rescanned with the same filter.
func (r *IntermediateResolver) resolveAggregator(link, referer string) []models.IntermediateLink {
	doc := r.fetchDocument(link, referer, "")
	if doc == nil {
		return nil
	}

	links := r.downstreamAnchors(doc.Find(".entry-content, .post-inner").Find("a[href]"))
	if len(links) == 0 {
		links = r.downstreamAnchors(doc.Find("a[href]"))
	}
	return links
}

// resolveEpisodeIndex walks an episode-index page: every header reading
// "Episode N" contributes its first anchor, labeled by episode number.
func (r *IntermediateResolver) resolveEpisodeIndex(link, referer string) []models.IntermediateLink {
	doc := r.fetchDocument(link, referer, "")
	if doc == nil {
		return nil
	}

	var links []models.IntermediateLink
	doc.Find("h3, h4").Each(func(i int, header *goquery.Selection) {
		m := episodeLabelRe.FindStringSubmatch(header.Text())
		if m == nil {
			return
		}
		href, exists := header.Find("a[href]").First().Attr("href")
		if !exists || href == "" {
			return
		}
		links = append(links, models.IntermediateLink{
			Server: "Episode " + m[1],
			URL:    href,
		})
	})
	return links
}

// resolveLegacy handles the old redirector: the real target travels
// base64-encoded in the query string, and the decoded page hides its
// links inside a timed-content container.
func (r *IntermediateResolver) resolveLegacy(u *url.URL, referer string) []models.IntermediateLink {
	encoded := u.Query().Get("url")
	if encoded == "" {
		encoded = u.Query().Get("id")
	}
	if encoded == "" {
		return nil
	}
	// A '+' in the payload arrives as a space when the site forgets to
	// percent-encode its own parameter.
	encoded = strings.ReplaceAll(encoded, " ", "+")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		util.Debug("legacy redirector carried invalid base64", "url", u.String())
		return nil
	}
	target := strings.TrimSpace(string(decoded))

	doc := r.fetchDocument(target, referer, util.BrowserUserAgent)
	if doc == nil {
		return nil
	}

	links := r.downstreamAnchors(doc.Find(".timed-content-client").Find("a[href]"))
	if len(links) == 0 {
		links = r.downstreamAnchors(doc.Find("a[href]"))
	}
	if len(links) == 0 {
		links = r.downstreamButtons(doc)
	}
	return links
}

func (r *IntermediateResolver) downstreamAnchors(sel *goquery.Selection) []models.IntermediateLink {
	var links []models.IntermediateLink
	sel.Each(func(i int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		text := strings.TrimSpace(a.Text())
		if !r.downstreamRe.MatchString(href) || strings.Contains(strings.ToLower(text), "batch") {
			return
		}
		if text == "" {
			text = "Download"
		}
		links = append(links, models.IntermediateLink{Server: text, URL: href})
	})
	return links
}

// downstreamButtons is the widest legacy fallback: button-like elements
// carrying the target in href or a data attribute.
func (r *IntermediateResolver) downstreamButtons(doc *goquery.Document) []models.IntermediateLink {
	var links []models.IntermediateLink
	doc.Find("button, [class*='btn'], [class*='button']").Each(func(i int, s *goquery.Selection) {
		for _, attr := range []string{"href", "data-href", "data-link", "data-url"} {
			target := s.AttrOr(attr, "")
			if target == "" || !r.downstreamRe.MatchString(target) {
				continue
			}
			text := strings.TrimSpace(s.Text())
			if text == "" {
				text = "Download"
			}
			links = append(links, models.IntermediateLink{Server: text, URL: target})
			break
		}
	})
	return links
}

// fetchDocument fetches a page with referer (and optional user agent)
// and parses it. Any failure returns nil.
func (r *IntermediateResolver) fetchDocument(link, referer, userAgent string) *goquery.Document {
	req, err := http.NewRequest(http.MethodGet, link, nil)
	if err != nil {
		return nil
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		util.Debug("intermediate fetch failed", "url", link, "error", err)
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
	return doc
}

// EpisodeNumber parses a server label of the form "Episode N". ok is
// false for labels that do not name an episode.
func EpisodeNumber(server string) (int, bool) {
	m := episodeLabelRe.FindStringSubmatch(server)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
