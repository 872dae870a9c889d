package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatorPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	v := NewValidator(2 * time.Second)
	assert.True(t, v.OK(context.Background(), srv.URL))
}

func TestValidatorOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewValidator(2 * time.Second)
	assert.True(t, v.OK(context.Background(), srv.URL))
}

func TestValidatorNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	v := NewValidator(2 * time.Second)
	assert.False(t, v.OK(context.Background(), srv.URL))
}

func TestValidatorTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	v := NewValidator(200 * time.Millisecond)

	start := time.Now()
	ok := v.OK(context.Background(), srv.URL)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second, "the deadline must cut the probe short")
}
