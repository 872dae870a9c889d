// Package scraper turns the provider's unstructured markup into the
// pipeline's entities: search results, a selected title, and the
// quality-labeled download links on a content page.
package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	qualityRe = regexp.MustCompile(`(?i)\b(480p|720p|1080p|2160p|4k)\b`)

	// qualityDetailRe also captures trailing detail up to a closing
	// parenthesis, e.g. "1080p x264 (HQ Print)".
	qualityDetailRe = regexp.MustCompile(`(?i)(\d{3,4}p[^)]*\))`)

	techTagRe = regexp.MustCompile(`(?i)\b(10bit|8bit|hevc|x26[45]|h\.?26[45]|hdr10?\+?|dv|dolby|ddp?\s?5\.1|atmos|remux|blu-?ray|web-?dl|hdrip|esub)\b`)

	qualityNumRe = regexp.MustCompile(`(\d{3,4})p`)
)

// ExtractQuality pulls the quality token out of a header text. It first
// tries a direct resolution match, then a variant that keeps trailing
// parenthetical detail, and falls back to "Unknown".
func ExtractQuality(text string) string {
	if m := qualityRe.FindString(text); m != "" {
		return m
	}
	if m := qualityDetailRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return "Unknown"
}

// QualityRank maps a free-text quality label to a numeric rank for
// sorting. "4k" counts as 2160; unparseable labels rank 0.
func QualityRank(quality string) int {
	if strings.Contains(strings.ToLower(quality), "4k") {
		return 2160
	}
	m := qualityNumRe.FindStringSubmatch(quality)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// TechTags lists the technical encoding tags found in a label, in order
// of appearance ("10bit", "HEVC", ...).
func TechTags(text string) []string {
	return techTagRe.FindAllString(text, -1)
}

// HasTechTags reports whether the label carries any technical tag.
func HasTechTags(text string) bool {
	return techTagRe.MatchString(text)
}
