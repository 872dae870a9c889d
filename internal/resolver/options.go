package resolver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"modstream/internal/models"
	"modstream/internal/util"
)

// clientRedirectRe catches the landing page's script-driven redirect.
var clientRedirectRe = regexp.MustCompile(`window\.location\.replace\(["']([^"']+)["']\)`)

// LandingPage is the parsed download page of the final host: its named
// options sorted by priority plus file metadata when present.
type LandingPage struct {
	URL      string
	Options  []models.DownloadOption
	Size     string
	FileName string
}

// OptionResolver parses a landing page's prioritized download options
// and resolves each option type to a final URL.
type OptionResolver struct {
	client *http.Client
}

func NewOptionResolver() *OptionResolver {
	return &OptionResolver{client: util.GetSharedClient()}
}

// Landing fetches and parses a landing page, following at most one
// script-driven redirect. nil means this path yielded nothing.
func (r *OptionResolver) Landing(pageURL, referer string) *LandingPage {
	body, ok := r.fetch(pageURL, referer)
	if !ok {
		return nil
	}

	// One client-side redirect hop may sit between us and the real page.
	if m := clientRedirectRe.FindStringSubmatch(body); m != nil {
		redirected := resolveAgainst(pageURL, m[1])
		if redirected != "" {
			if next, ok := r.fetch(redirected, pageURL); ok {
				body = next
				pageURL = redirected
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	page := &LandingPage{URL: pageURL}
	page.Size, page.FileName = fileDetails(doc)
	page.Options = downloadOptions(doc, pageURL)
	if len(page.Options) == 0 {
		util.Debug("landing page had no download options", "url", pageURL)
		return nil
	}
	return page
}

// fileDetails reads size and name from the labeled list, when present.
func fileDetails(doc *goquery.Document) (size, name string) {
	doc.Find("ul li, .list-group li").Each(func(i int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		lower := strings.ToLower(text)
		switch {
		case strings.HasPrefix(lower, "size"):
			size = valueAfterColon(text)
		case strings.HasPrefix(lower, "name"):
			name = valueAfterColon(text)
		}
	})
	return size, name
}

func valueAfterColon(text string) string {
	if _, after, found := strings.Cut(text, ":"); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(text)
}

// downloadOptions enumerates the page's named buttons plus generic
// download anchors, deduplicated by target and sorted by priority.
func downloadOptions(doc *goquery.Document, pageURL string) []models.DownloadOption {
	var options []models.DownloadOption

	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		href := resolveAgainst(pageURL, a.AttrOr("href", ""))
		if href == "" {
			return
		}

		var typ models.OptionType
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "resume cloud"):
			typ = models.OptionResume
		case strings.Contains(lower, "resume worker bot"):
			typ = models.OptionWorker
		case strings.Contains(lower, "instant download"):
			typ = models.OptionInstant
		case strings.Contains(href, "/zfile") || strings.Contains(strings.ToLower(href), "download"):
			typ = models.OptionGeneric
		default:
			return
		}

		options = append(options, models.DownloadOption{
			Title:    text,
			Type:     typ,
			URL:      href,
			Priority: typ.Priority(),
		})
	})

	options = lo.UniqBy(options, func(o models.DownloadOption) string { return o.URL })
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Priority < options[j].Priority
	})
	return options
}

// Finalize resolves one download option to its final URL. lastResort
// reports that the URL was produced without a verifiable hop and should
// only be used when no other option validates.
func (r *OptionResolver) Finalize(opt models.DownloadOption, referer string) (finalURL string, lastResort bool) {
	switch opt.Type {
	case models.OptionResume, models.OptionWorker:
		return r.finalizeResume(opt.URL, referer), false
	case models.OptionInstant:
		return r.finalizeInstant(opt.URL)
	default:
		return opt.URL, true
	}
}

// finalizeResume follows a resume/worker option to its "Cloud Resume
// Download" anchor.
func (r *OptionResolver) finalizeResume(optionURL, referer string) string {
	body, ok := r.fetch(optionURL, referer)
	if !ok {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var final string
	doc.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(a.Text()), "cloud resume download") {
			final = resolveAgainst(optionURL, a.AttrOr("href", ""))
			return false
		}
		return true
	})
	return final
}

// finalizeInstant trades the option's url parameter for a direct link on
// the instant host's API. On any failure the option URL itself is used,
// flagged as a last resort.
func (r *OptionResolver) finalizeInstant(optionURL string) (string, bool) {
	u, err := url.Parse(optionURL)
	if err != nil {
		return "", false
	}
	videoURL := u.Query().Get("url")
	if videoURL == "" {
		return optionURL, true
	}

	apiURL := u.Scheme + "://" + u.Host + "/api"
	form := url.Values{"keys": {videoURL}}

	req, err := http.NewRequest(http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return optionURL, true
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", util.BrowserUserAgent)
	req.Header.Set("X-Token", u.Hostname())

	resp, err := r.client.Do(req)
	if err != nil {
		util.Debug("instant API call failed", "url", apiURL, "error", err)
		return optionURL, true
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return optionURL, true
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.URL == "" {
		return optionURL, true
	}
	return result.URL, false
}

func (r *OptionResolver) fetch(pageURL, referer string) (string, bool) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", util.BrowserUserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		util.Debug("landing fetch failed", "url", pageURL, "error", err)
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", false
	}
	return string(body), true
}

func resolveAgainst(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
