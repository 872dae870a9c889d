package resolver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modstream/internal/models"
)

func TestLandingOptionOrdering(t *testing.T) {
	// Buttons appear in discovery order 3,1,4,2; consumption order must
	// be strictly 1,2,3,4.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<ul>
				<li>Name : Dune.Part.Two.2024.1080p.mkv</li>
				<li>Size : 2.8GB</li>
			</ul>
			<a href="https://video-seed.xyz/?url=https%3A%2F%2Fcdn.example%2Ff.mkv">Instant Download</a>
			<a href="/zfile/abc">Resume Cloud</a>
			<a href="/zfile/generic-mirror">Mirror Download [Server 2]</a>
			<a href="https://worker.example/bot/abc">Resume Worker Bot</a>
		</body></html>`)
	}))
	defer srv.Close()

	page := NewOptionResolver().Landing(srv.URL+"/file/abc", "https://referrer.example")
	require.NotNil(t, page)

	assert.Equal(t, "2.8GB", page.Size)
	assert.Equal(t, "Dune.Part.Two.2024.1080p.mkv", page.FileName)

	require.Len(t, page.Options, 4)
	got := make([]int, len(page.Options))
	for i, opt := range page.Options {
		got[i] = opt.Priority
	}
	assert.Equal(t, []int{1, 2, 3, 4}, got)
	assert.Equal(t, models.OptionResume, page.Options[0].Type)
	assert.Equal(t, models.OptionWorker, page.Options[1].Type)
	assert.Equal(t, models.OptionInstant, page.Options[2].Type)
	assert.Equal(t, models.OptionGeneric, page.Options[3].Type)
}

func TestLandingFollowsClientRedirect(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/file/abc", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><script>window.location.replace("/moved/abc")</script></body></html>`)
	})
	mux.HandleFunc("/moved/abc", func(w http.ResponseWriter, r *http.Request) {
		// The re-fetch must carry the first page as referer.
		assert.Contains(t, r.Header.Get("Referer"), "/file/abc")
		io.WriteString(w, `<html><body><a href="/zfile/abc">Resume Cloud</a></body></html>`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	page := NewOptionResolver().Landing(srv.URL+"/file/abc", "")
	require.NotNil(t, page)
	assert.Contains(t, page.URL, "/moved/abc")
	require.Len(t, page.Options, 1)
	assert.Equal(t, models.OptionResume, page.Options[0].Type)
}

func TestLandingNoOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>nothing to see</p></body></html>`)
	}))
	defer srv.Close()

	assert.Nil(t, NewOptionResolver().Landing(srv.URL, ""))
}

func TestFinalizeResume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<a href="https://cdn.example/direct/f.mkv">Cloud Resume Download</a>
		</body></html>`)
	}))
	defer srv.Close()

	opt := models.DownloadOption{Type: models.OptionResume, URL: srv.URL + "/zfile/abc", Priority: 1}
	final, lastResort := NewOptionResolver().Finalize(opt, "")

	assert.Equal(t, "https://cdn.example/direct/f.mkv", final)
	assert.False(t, lastResort)
}

func TestFinalizeResumeMissingAnchor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><a href="/other">Something Else</a></body></html>`)
	}))
	defer srv.Close()

	opt := models.DownloadOption{Type: models.OptionResume, URL: srv.URL, Priority: 1}
	final, _ := NewOptionResolver().Finalize(opt, "")
	assert.Empty(t, final)
}

func TestFinalizeInstant(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("X-Token"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://cdn.example/f.mkv", r.PostForm.Get("keys"))
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example/direct/f.mkv"})
	}))
	defer srv.Close()

	opt := models.DownloadOption{
		Type: models.OptionInstant,
		URL:  srv.URL + "/?url=" + "https%3A%2F%2Fcdn.example%2Ff.mkv",
	}
	final, lastResort := NewOptionResolver().Finalize(opt, "")

	assert.Equal(t, "https://cdn.example/direct/f.mkv", final)
	assert.False(t, lastResort)
}

func TestFinalizeInstantAPIFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opt := models.DownloadOption{
		Type: models.OptionInstant,
		URL:  srv.URL + "/?url=https%3A%2F%2Fcdn.example%2Ff.mkv",
	}
	final, lastResort := NewOptionResolver().Finalize(opt, "")

	assert.Equal(t, opt.URL, final, "the option URL itself is the weaker fallback")
	assert.True(t, lastResort)
}

func TestFinalizeGeneric(t *testing.T) {
	opt := models.DownloadOption{Type: models.OptionGeneric, URL: "https://host.example/zfile/x"}
	final, lastResort := NewOptionResolver().Finalize(opt, "")

	assert.Equal(t, opt.URL, final)
	assert.True(t, lastResort)
}
