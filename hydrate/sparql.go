package hydrate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/c360studio/semprofile/datatype"
)

// SPARQLConfig configures the SPARQL querier.
type SPARQLConfig struct {
	// Endpoint is the SPARQL query service URL.
	Endpoint string
	// UserAgent is sent with every request; public endpoints require one.
	UserAgent string
	// RateLimit is the sustained requests per second (default: 2).
	RateLimit float64
	// RateBurst is the maximum burst size (default: 2).
	RateBurst int
	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// DefaultSPARQLConfig returns defaults for the public query service.
func DefaultSPARQLConfig() SPARQLConfig {
	return SPARQLConfig{
		Endpoint:  "https://query.wikidata.org/sparql",
		UserAgent: "semprofile/0.1 (entity profile hydration)",
		RateLimit: 2,
		RateBurst: 2,
	}
}

// SPARQLClient runs allowed-item queries against a SPARQL endpoint. It does not
// retry; the Hydrator owns retries and timeouts.
type SPARQLClient struct {
	cfg         SPARQLConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewSPARQLClient creates a rate-limited SPARQL client.
func NewSPARQLClient(cfg SPARQLConfig) *SPARQLClient {
	d := DefaultSPARQLConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = d.Endpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = d.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = d.RateBurst
	}
	return &SPARQLClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   time.Minute,
			Transport: cfg.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]sparqlTerm `json:"bindings"`
	} `json:"results"`
}

type sparqlTerm struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Query executes query and maps the first projected variable to candidate ids
// and "<var>Label" to labels. Non-entity results are skipped; duplicates keep
// their first position.
func (c *SPARQLClient) Query(ctx context.Context, query string) ([]Candidate, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query endpoint returned HTTP %d", resp.StatusCode)
	}

	var parsed sparqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if len(parsed.Head.Vars) == 0 {
		return nil, fmt.Errorf("decode results: no projected variables")
	}

	itemVar := parsed.Head.Vars[0]
	labelVar := itemVar + "Label"
	seen := make(map[string]bool, len(parsed.Results.Bindings))
	candidates := make([]Candidate, 0, len(parsed.Results.Bindings))
	for _, binding := range parsed.Results.Bindings {
		term, ok := binding[itemVar]
		if !ok || term.Type != "uri" || !strings.HasPrefix(term.Value, datatype.EntityPrefix) {
			continue
		}
		id := strings.TrimPrefix(term.Value, datatype.EntityPrefix)
		if seen[id] {
			continue
		}
		seen[id] = true
		candidates = append(candidates, Candidate{ID: id, Label: binding[labelVar].Value})
	}
	return candidates, nil
}
