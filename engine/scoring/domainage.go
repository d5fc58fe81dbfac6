package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const rdapCacheTTL = 24 * time.Hour

// rdapEvent is the subset of an RDAP domain response this package reads.
type rdapEvent struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
}

type rdapResponse struct {
	Events []rdapEvent `json:"events"`
}

// DomainAgeLookup resolves a registrable domain's registration date through
// RDAP, caching the result in Redis so repeat scans of the same domain don't
// re-hit the (aggressively rate-limited) RDAP bootstrap servers.
type DomainAgeLookup struct {
	httpClient *http.Client
	redis      *redis.Client
}

// NewDomainAgeLookup builds a lookup. redisClient may be nil, in which case
// every lookup falls through to a live RDAP call with no caching.
func NewDomainAgeLookup(redisClient *redis.Client) *DomainAgeLookup {
	return &DomainAgeLookup{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		redis:      redisClient,
	}
}

// AgeDays returns the domain's age in days since registration, or -1 if it
// could not be determined (RDAP miss, network failure, no registration
// event in the response). Never returns an error: domain age is a scoring
// input, not a scan precondition.
func (d *DomainAgeLookup) AgeDays(ctx context.Context, domain string) int {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return -1
	}

	cacheKey := "kycscan:rdap:age_days:" + domain
	if d.redis != nil {
		if cached, err := d.redis.Get(ctx, cacheKey).Result(); err == nil {
			var days int
			if _, scanErr := fmt.Sscanf(cached, "%d", &days); scanErr == nil {
				return days
			}
		}
	}

	days := d.fetchAgeDays(ctx, domain)
	if d.redis != nil && days >= 0 {
		_ = d.redis.Set(ctx, cacheKey, fmt.Sprintf("%d", days), rdapCacheTTL).Err()
	}
	return days
}

func (d *DomainAgeLookup) fetchAgeDays(ctx context.Context, domain string) int {
	reqURL := "https://rdap.org/domain/" + url.PathEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return -1
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}

	var parsed rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return -1
	}
	for _, ev := range parsed.Events {
		if ev.EventAction != "registration" {
			continue
		}
		t, err := time.Parse(time.RFC3339, ev.EventDate)
		if err != nil {
			continue
		}
		return int(time.Since(t).Hours() / 24)
	}
	return -1
}
