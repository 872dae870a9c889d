package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"modstream/internal/models"
	"modstream/internal/util"
)

// matchThreshold is the minimum similarity score for the fuzzy pass;
// below it the stricter whole-word regex fallback takes over.
const matchThreshold = 0.3

// Similarity scores how well a candidate title matches the requested
// one: 1.0 for an exact case-insensitive match, 0.8 for substring
// containment either way, otherwise a token-overlap ratio.
func Similarity(requested, candidate string) float64 {
	req := strings.ToLower(strings.TrimSpace(requested))
	cand := strings.ToLower(strings.TrimSpace(candidate))

	if req == cand {
		return 1.0
	}
	if strings.Contains(cand, req) || strings.Contains(req, cand) {
		return 0.8
	}

	reqWords := strings.Fields(req)
	candWords := strings.Fields(cand)
	if len(reqWords) == 0 || len(candWords) == 0 {
		return 0
	}

	matched := 0
	for _, w := range reqWords {
		if len(w) <= 2 {
			continue
		}
		for _, cw := range candWords {
			if strings.Contains(cw, w) || strings.Contains(w, cw) {
				matched++
				break
			}
		}
	}

	denom := len(reqWords)
	if len(candWords) > denom {
		denom = len(candWords)
	}
	return float64(matched) / float64(denom)
}

// MatchTitle picks the search result best matching the requested title,
// or nil when nothing is convincing. mediaType is "movie" or "tv"; year
// is 0 when not requested. A nil return is a normal negative outcome.
func MatchTitle(requested string, results []models.SearchResult, mediaType string, year int) *models.SearchResult {
	if len(results) == 0 {
		return nil
	}

	best := -1
	bestScore := 0.0
	for i, r := range results {
		score := Similarity(requested, r.Title)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best >= 0 && bestScore > matchThreshold {
		candidate := results[best]
		if mediaType == "movie" && year > 0 && !strings.Contains(candidate.Title, strconv.Itoa(year)) {
			util.Debug("fuzzy match rejected on year", "candidate", candidate.Title, "year", year)
		} else {
			util.Debug("title matched", "candidate", candidate.Title, "score", bestScore)
			return &candidate
		}
	}

	return matchTitleStrict(requested, results, mediaType, year)
}

// matchTitleStrict is the whole-word regex fallback: the requested title
// must appear as a word-bounded phrase, with the year present for movies
// or a season mention for series.
func matchTitleStrict(requested string, results []models.SearchResult, mediaType string, year int) *models.SearchResult {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(requested)) + `\b`)
	if err != nil {
		return nil
	}

	for _, r := range results {
		if !re.MatchString(r.Title) {
			continue
		}
		if mediaType == "movie" {
			if year > 0 && !strings.Contains(r.Title, strconv.Itoa(year)) {
				continue
			}
		} else if !strings.Contains(strings.ToLower(r.Title), "season") {
			continue
		}
		r := r
		util.Debug("title matched by strict fallback", "candidate", r.Title)
		return &r
	}
	return nil
}
