package resolver

import (
	"context"
	"net/http"
	"time"

	"modstream/internal/util"
)

// DefaultProbeTimeout bounds the reachability probe.
const DefaultProbeTimeout = 10 * time.Second

// Validator confirms a candidate URL actually serves bytes before it is
// handed to the caller.
type Validator struct {
	client  *http.Client
	timeout time.Duration
}

func NewValidator(timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Validator{
		client:  util.GetFastClient(),
		timeout: timeout,
	}
}

// OK issues a bounded HEAD probe with a minimal byte range. Any 2xx
// (206 partial content included) passes; every other status, timeout or
// network error fails.
func (v *Validator) OK(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", util.BrowserUserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		util.Debug("probe failed", "url", rawURL, "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	ok := (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusPartialContent
	util.Debug("probe finished", "url", rawURL, "status", resp.StatusCode, "ok", ok)
	return ok
}
