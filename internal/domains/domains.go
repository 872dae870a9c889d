// Package domains tracks the provider's current base domain. The site
// rotates domains regularly, so the value comes from a remote JSON
// document and is cached for a fixed window.
package domains

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"modstream/internal/util"
)

// DefaultTTL is how long a fetched domain stays fresh.
const DefaultTTL = 4 * time.Hour

// Cache holds the current base domain with lazy time-based refresh.
// A failed refresh retains the previous value (or the fallback), so
// Current never returns an empty string.
type Cache struct {
	client   *http.Client
	endpoint string
	field    string
	fallback string
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	value     string
	fetchedAt time.Time
}

// New creates a domain cache reading the named field from the JSON
// document at endpoint. fallback is used until the first successful fetch.
func New(endpoint, field, fallback string) *Cache {
	return &Cache{
		client:   util.GetFastClient(),
		endpoint: endpoint,
		field:    field,
		fallback: fallback,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
}

// NewWithClock is New with an injected clock, for tests.
func NewWithClock(endpoint, field, fallback string, ttl time.Duration, now func() time.Time) *Cache {
	c := New(endpoint, field, fallback)
	c.ttl = ttl
	c.now = now
	return c
}

// Current returns the base domain, refreshing it first when the cached
// value is stale. Refresh failures are absorbed.
func (c *Cache) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value == "" {
		c.value = c.fallback
	}

	if c.now().Sub(c.fetchedAt) < c.ttl {
		return c.value
	}

	domain, err := c.fetch()
	if err != nil {
		util.Debug("domain refresh failed, keeping cached value", "error", err, "domain", c.value)
		return c.value
	}

	c.value = domain
	c.fetchedAt = c.now()
	util.Debug("base domain refreshed", "domain", domain)
	return c.value
}

func (c *Cache) fetch() (string, error) {
	resp, err := c.client.Get(c.endpoint)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("domain endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var doc map[string]string
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", err
	}

	domain, ok := doc[c.field]
	if !ok || domain == "" {
		return "", errors.Errorf("field %q missing from domain document", c.field)
	}
	return domain, nil
}
