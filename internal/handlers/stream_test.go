package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modstream/internal/models"
	"modstream/internal/streams"
)

type stubService struct {
	result  models.Result
	lastReq streams.Request
}

func (s *stubService) GetStreams(_ context.Context, req streams.Request) models.Result {
	s.lastReq = req
	return s.result
}

func newApp(svc StreamService) *fiber.App {
	app := fiber.New()
	h := New(svc)
	app.Get("/health", h.Health)
	app.Get("/api/streams", h.GetStreams)
	return app
}

func do(t *testing.T, app *fiber.App, target string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	return resp, decoded
}

func TestGetStreamsMissingTitle(t *testing.T) {
	app := newApp(&stubService{})

	resp, body := do(t, app, "/api/streams")

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["usage"], "/api/streams?title=")
}

func TestGetStreamsBadType(t *testing.T) {
	app := newApp(&stubService{})

	resp, body := do(t, app, "/api/streams?title=Dune&type=anime")

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "'movie' or 'tv'")
}

func TestGetStreamsSuccess(t *testing.T) {
	svc := &stubService{result: models.Result{
		Success: true,
		Title:   "Breaking Bad Season 1",
		Streams: []models.ResolvedStream{
			{Name: "MoviesMod 720p", URL: "https://cdn/e1.mkv", Quality: "720p", Provider: "MoviesMod"},
		},
	}}
	app := newApp(svc)

	resp, body := do(t, app, "/api/streams?title=Breaking+Bad&type=tv&season=1&episode=1")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	require.Len(t, body["streams"], 1)

	// Query parameters must land in the pipeline request intact.
	assert.Equal(t, streams.Request{Title: "Breaking Bad", Type: "tv", Season: 1, Episode: 1}, svc.lastReq)
}

func TestGetStreamsDefaultsToMovie(t *testing.T) {
	svc := &stubService{result: models.Result{Success: true}}
	app := newApp(svc)

	resp, _ := do(t, app, "/api/streams?title=Dune")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "movie", svc.lastReq.Type)
}

func TestGetStreamsNotFound(t *testing.T) {
	svc := &stubService{result: models.Result{
		Success: false,
		Error:   `no search results found for "Nothing"`,
		Streams: []models.ResolvedStream{},
	}}
	app := newApp(svc)

	resp, body := do(t, app, "/api/streams?title=Nothing")

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "no search results")
}

func TestHealth(t *testing.T) {
	app := newApp(&stubService{})

	resp, body := do(t, app, "/health")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
