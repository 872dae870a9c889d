package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modstream/internal/domains"
)

// pad inflates a page past the minimum body length the engine accepts.
func pad() string {
	return strings.Repeat("<!-- filler -->", 100)
}

func newDomainCache(t *testing.T, siteURL string) *domains.Cache {
	t.Helper()
	domainSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"moviesmod": %q}`, siteURL)
	}))
	t.Cleanup(domainSrv.Close)
	return domains.New(domainSrv.URL, "moviesmod", siteURL)
}

func TestSearchEngineSelectorChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>%s
			<article class="latestPost">
				<h2 class="title"><a href="/download-dune-2021/">Download Dune (2021)</a></h2>
			</article>
			<article class="latestPost">
				<h2 class="title"><a href="/download-dune-2021/">Download Dune (2021)</a></h2>
			</article>
			<article class="latestPost">
				<h2 class="title"><a href="/download-dune-part-two-2024/">Download Dune Part Two (2024)</a></h2>
			</article>
		</body></html>`, pad())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewSearchEngine(newDomainCache(t, srv.URL))
	results := engine.Search("dune " + t.Name()) // unique query dodges the shared cache

	require.Len(t, results, 2, "duplicate URLs must collapse")
	assert.Equal(t, "Download Dune (2021)", results[0].Title)
	assert.Equal(t, srv.URL+"/download-dune-2021/", results[0].URL)
}

func TestSearchEngineQueryStringFallback(t *testing.T) {
	mux := http.NewServeMux()
	// Path-segment strategy yields a too-short body; the query-string
	// strategy must be tried next.
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>tiny</body></html>")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body>%s
			<h2 class="title"><a href="/download-inception-2010/">Download Inception (2010)</a></h2>
		</body></html>`, pad())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewSearchEngine(newDomainCache(t, srv.URL))
	results := engine.Search("inception " + t.Name())

	require.Len(t, results, 1)
	assert.Equal(t, "Download Inception (2010)", results[0].Title)
}

func TestSearchEngineNoResultsMarker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>%s Sorry, but nothing matched your search terms.</body></html>`, pad())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewSearchEngine(newDomainCache(t, srv.URL))
	assert.Empty(t, engine.Search("ghost title "+t.Name()))
}

func TestSearchEngineAnchorScanFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		// No selector in the chain matches this markup; the generic
		// content-anchor scan has to pick up the post link and skip
		// pagination.
		fmt.Fprintf(w, `<html><body>%s
			<div id="content">
				<a href="/download-the-thing-1982/">Download The Thing (1982)</a>
				<a href="/page/2/">2</a>
			</div>
		</body></html>`, pad())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewSearchEngine(newDomainCache(t, srv.URL))
	results := engine.Search("the thing " + t.Name())

	require.Len(t, results, 1)
	assert.Contains(t, results[0].URL, "/download-the-thing-1982/")
}

func TestSearchEngineServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	engine := NewSearchEngine(newDomainCache(t, srv.URL))
	assert.Empty(t, engine.Search("anything "+t.Name()), "transport failure must yield an empty list, not an error")
}
