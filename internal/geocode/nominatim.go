// Package geocode implements the gazetteer collaborator over the
// Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/climq/internal/ir"
)

// DefaultBaseURL is the public Nominatim endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Options configure a Nominatim client.
type Options struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// RequestsPerSecond caps the request rate. The public service allows
	// one request per second.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = "climq"
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 1
	}
}

// Nominatim looks up places by free-text name.
type Nominatim struct {
	url     string
	agent   string
	limiter *rate.Limiter
	do      func(*http.Request) (*http.Response, error)
}

// New creates a Nominatim client.
func New(opts Options) *Nominatim {
	opts.defaults()
	hc := &http.Client{Timeout: opts.Timeout}
	return &Nominatim{
		url:     strings.TrimRight(opts.BaseURL, "/") + "/search",
		agent:   opts.UserAgent,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		do:      hc.Do,
	}
}

type result struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
	Address     struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Lookup returns the best match for phrase within the given country codes,
// or nil when nothing matches.
func (n *Nominatim) Lookup(ctx context.Context, phrase string, regions []string) (*ir.Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", phrase)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")
	if len(regions) > 0 {
		codes := make([]string, len(regions))
		for i, r := range regions {
			codes[i] = strings.ToLower(r)
		}
		q.Set("countrycodes", strings.Join(codes, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", n.agent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("nominatim upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var results []result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	r := results[0]
	p := &ir.Place{
		Name:        r.Name,
		Class:       r.Category,
		Type:        r.Type,
		AddressType: r.AddressType,
		CountryCode: r.Address.CountryCode,
	}
	if p.Class == "" {
		p.Class = r.Class
	}
	if p.Name == "" {
		p.Name, _, _ = strings.Cut(r.DisplayName, ",")
	}
	return p, nil
}
