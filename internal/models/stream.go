// Package models defines the entities flowing through the resolution pipeline.
package models

// SearchResult is one entry from the search page, deduplicated by URL
// within a single search.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// QualityLink is a labeled download entry point for one resolution or
// edition of a title, e.g. "1080p 10bit HEVC" for movies or
// "Season 2 - Episode Links" for series. Ordering follows the document
// order of the source headers.
type QualityLink struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// IntermediateLink is one unwrapped layer of redirection. Server carries
// the label from the source page, possibly "Episode N" for series hops.
type IntermediateLink struct {
	Server string `json:"server"`
	URL    string `json:"url"`
}

// OptionType tags the kind of download button found on a landing page.
type OptionType string

const (
	OptionResume  OptionType = "resume"
	OptionWorker  OptionType = "worker"
	OptionInstant OptionType = "instant"
	OptionGeneric OptionType = "generic"
)

// Priority returns the consumption priority of the option type; lower is
// tried first.
func (t OptionType) Priority() int {
	switch t {
	case OptionResume:
		return 1
	case OptionWorker:
		return 2
	case OptionInstant:
		return 3
	default:
		return 4
	}
}

// DownloadOption is one named download button on a landing page.
type DownloadOption struct {
	Title    string     `json:"title"`
	Type     OptionType `json:"type"`
	URL      string     `json:"url"`
	Priority int        `json:"priority"`
}

// ResolvedStream is the terminal entity returned to the caller: one per
// successfully resolved quality link. URL has passed the reachability
// probe at construction time, except for instant/generic last-resort
// fallbacks.
type ResolvedStream struct {
	Name     string            `json:"name"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Quality  string            `json:"quality"`
	Size     string            `json:"size,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Provider string            `json:"provider"`
}

// Result is the aggregate outcome of one title request.
type Result struct {
	Success       bool             `json:"success"`
	Title         string           `json:"title,omitempty"`
	URL           string           `json:"url,omitempty"`
	Streams       []ResolvedStream `json:"streams"`
	Error         string           `json:"error,omitempty"`
	SearchResults []SearchResult   `json:"searchResults,omitempty"`
}
