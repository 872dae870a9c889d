// Package streams drives the whole resolution pipeline for one title
// request: search, title selection, quality-link extraction, concurrent
// per-link resolution, validation and ranking.
package streams

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"modstream/internal/config"
	"modstream/internal/domains"
	"modstream/internal/models"
	"modstream/internal/resolver"
	"modstream/internal/scraper"
	"modstream/internal/util"
)

// Request is one title resolution request. Type is "movie" or "tv";
// Season, Episode and Year are 0 when not requested.
type Request struct {
	Title   string
	Type    string
	Season  int
	Episode int
	Year    int
}

// diagnosticResults caps the search-result list echoed back on failure.
const diagnosticResults = 5

// Pipeline seams. Each stage absorbs its own failures and reports them
// as empty results; only the orchestrator turns emptiness into an error.
type (
	Searcher interface {
		Search(title string) []models.SearchResult
	}
	LinkExtractor interface {
		Extract(pageURL string, series bool) []models.QualityLink
	}
	HopResolver interface {
		Resolve(link, referer string) []models.IntermediateLink
	}
	GateSolver interface {
		Gated(rawURL string) bool
		Solve(gatedURL string) string
	}
	OptionSource interface {
		Landing(pageURL, referer string) *resolver.LandingPage
		Finalize(opt models.DownloadOption, referer string) (string, bool)
	}
	Prober interface {
		OK(ctx context.Context, rawURL string) bool
	}
)

// Service is the resolution orchestrator.
type Service struct {
	search   Searcher
	extract  LinkExtractor
	hops     HopResolver
	gate     GateSolver
	options  OptionSource
	probe    Prober
	provider string
	branches int
}

// New wires the real pipeline from configuration.
func New(cfg *config.Config) *Service {
	dom := domains.New(cfg.DomainsURL, strings.ToLower(cfg.Provider), cfg.FallbackDomain)
	return &Service{
		search:   scraper.NewSearchEngine(dom),
		extract:  scraper.NewLinkExtractor(),
		hops:     resolver.NewIntermediateResolver(),
		gate:     resolver.NewChallengeSolver(),
		options:  resolver.NewOptionResolver(),
		probe:    resolver.NewValidator(cfg.ProbeTimeout),
		provider: cfg.Provider,
		branches: cfg.MaxBranches,
	}
}

// GetStreams resolves one title request into the ranked stream list.
// Partial failure is normal: a branch that yields nothing is dropped,
// and only a fully empty stage produces a failure result.
func (s *Service) GetStreams(ctx context.Context, req Request) models.Result {
	series := req.Type == "tv"

	results := s.search.Search(req.Title)
	if len(results) == 0 {
		return failure(fmt.Sprintf("no search results found for %q", req.Title), nil)
	}

	match := scraper.MatchTitle(req.Title, results, req.Type, req.Year)
	if match == nil {
		return failure(fmt.Sprintf("no title matching %q", req.Title), truncate(results))
	}
	util.Info("title selected", "title", match.Title, "url", match.URL)

	links := s.extract.Extract(match.URL, series)
	if len(links) == 0 {
		return failure(fmt.Sprintf("no download links found for %q", match.Title), nil)
	}

	links = filterQualityLinks(links, series, req.Season)
	if len(links) == 0 {
		return failure("no links matching the requested season and quality", nil)
	}

	// One branch per quality link; branches share nothing mutable, each
	// writes only its own slot.
	streams := make([]*models.ResolvedStream, len(links))
	tasks := make([]func(), len(links))
	for i, ql := range links {
		i, ql := i, ql
		tasks[i] = func() {
			streams[i] = s.resolveBranch(ctx, ql, match, req)
		}
	}
	util.ParallelExecute(s.branches, tasks...)

	var resolved []models.ResolvedStream
	for _, st := range streams {
		if st != nil {
			resolved = append(resolved, *st)
		}
	}
	if len(resolved) == 0 {
		return failure(fmt.Sprintf("no playable streams resolved for %q", match.Title), nil)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return scraper.QualityRank(resolved[i].Quality) > scraper.QualityRank(resolved[j].Quality)
	})

	return models.Result{
		Success: true,
		Title:   match.Title,
		URL:     match.URL,
		Streams: resolved,
	}
}

// filterQualityLinks drops 480p entries always, and for series keeps
// only links naming the requested season.
func filterQualityLinks(links []models.QualityLink, series bool, season int) []models.QualityLink {
	var kept []models.QualityLink
	for _, ql := range links {
		lower := strings.ToLower(ql.Quality)
		if strings.Contains(lower, "480p") {
			continue
		}
		if series && season > 0 && !mentionsSeason(lower, season) {
			continue
		}
		kept = append(kept, ql)
	}
	return kept
}

// mentionsSeason requires the season number as a bounded token, so a
// season 1 request never accepts "Season 10" labels.
func mentionsSeason(label string, season int) bool {
	re := regexp.MustCompile(fmt.Sprintf(`(?i)\b(?:season\s*0?%d|s0?%d)\b`, season, season))
	return re.MatchString(label)
}

// resolveBranch runs one quality link to completion: intermediate hop,
// optional gate challenge, landing options, first resolve+validate win.
func (s *Service) resolveBranch(ctx context.Context, ql models.QualityLink, match *models.SearchResult, req Request) *models.ResolvedStream {
	hops := s.hops.Resolve(ql.URL, match.URL)
	if len(hops) == 0 {
		// The quality link may already point past the intermediate layer.
		hops = []models.IntermediateLink{{Server: "Direct", URL: ql.URL}}
	}

	for _, hop := range hops {
		// A hop naming an episode must name the requested one.
		if n, ok := resolver.EpisodeNumber(hop.Server); ok && req.Episode > 0 && n != req.Episode {
			continue
		}

		target := hop.URL
		if s.gate.Gated(target) {
			target = s.gate.Solve(target)
			if target == "" {
				continue
			}
		}

		landing := s.options.Landing(target, hop.URL)
		if landing == nil {
			continue
		}

		if st := s.winningStream(ctx, landing, ql, match, hop); st != nil {
			return st
		}
	}
	return nil
}

// winningStream tries the landing page's options in priority order; the
// first to resolve and validate wins. Fallback URLs carry no probe
// guarantee: they are never probed, only kept aside and used when
// nothing validates.
func (s *Service) winningStream(ctx context.Context, landing *resolver.LandingPage, ql models.QualityLink, match *models.SearchResult, hop models.IntermediateLink) *models.ResolvedStream {
	var lastResort string
	for _, opt := range landing.Options {
		final, fallback := s.options.Finalize(opt, landing.URL)
		if final == "" {
			continue
		}
		if fallback {
			if lastResort == "" {
				lastResort = final
			}
			continue
		}
		if s.probe.OK(ctx, final) {
			return s.stream(final, ql, match, landing, hop)
		}
	}
	if lastResort != "" {
		util.Debug("using unvalidated fallback", "url", lastResort, "quality", ql.Quality)
		return s.stream(lastResort, ql, match, landing, hop)
	}
	return nil
}

func (s *Service) stream(finalURL string, ql models.QualityLink, match *models.SearchResult, landing *resolver.LandingPage, hop models.IntermediateLink) *models.ResolvedStream {
	title := match.Title
	if landing.FileName != "" {
		title = landing.FileName
	}
	return &models.ResolvedStream{
		Name:     fmt.Sprintf("%s %s", s.provider, ql.Quality),
		Title:    title,
		URL:      finalURL,
		Quality:  ql.Quality,
		Size:     landing.Size,
		Headers:  map[string]string{"Referer": landing.URL, "User-Agent": util.BrowserUserAgent},
		Provider: s.provider,
	}
}

func failure(msg string, diag []models.SearchResult) models.Result {
	util.Warn("resolution failed", "reason", msg)
	return models.Result{
		Success:       false,
		Error:         msg,
		Streams:       []models.ResolvedStream{},
		SearchResults: diag,
	}
}

func truncate(results []models.SearchResult) []models.SearchResult {
	if len(results) > diagnosticResults {
		return results[:diagnosticResults]
	}
	return results
}
