// Package proapis wraps the ProAPIs iScraper profile-details endpoint used
// for LinkedIn profile enrichment.
package proapis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultBaseURL = "https://api.proapis.com/iscraper/v4"

// Client fetches profile details from ProAPIs.
type Client interface {
	ProfileDetails(ctx context.Context, req ProfileDetailsRequest) (*ProfileDetailsResponse, error)
}

// ProfileDetailsRequest is the request body for POST /profile-details.
type ProfileDetailsRequest struct {
	ProfileID       string `json:"profile_id"`
	ProfileType     string `json:"profile_type"`
	BypassCache     bool   `json:"bypass_cache"`
	RelatedProfiles bool   `json:"related_profiles"`
	NetworkInfo     bool   `json:"network_info"`
	ContactInfo     bool   `json:"contact_info"`
}

// ProfileDetailsResponse is the provider's profile payload, reduced to the
// fields the pipeline consumes.
type ProfileDetailsResponse struct {
	EntityURN      string           `json:"entity_urn"`
	ProfileID      string           `json:"profile_id"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	FullName       string           `json:"full_name"`
	SubTitle       string           `json:"sub_title"`
	Summary        string           `json:"summary"`
	Location       Location         `json:"location"`
	PositionGroups []PositionGroup  `json:"position_groups"`
	Education      []EducationEntry `json:"education"`
	Skills         []Skill          `json:"skills"`
	Contact        *ContactInfo     `json:"contact_info,omitempty"`
}

// Location is the provider's location block.
type Location struct {
	Default string `json:"default"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// PositionGroup is one employer with one or more roles.
type PositionGroup struct {
	Company  PositionCompany `json:"company"`
	Profiles []PositionRole  `json:"profile_positions"`
}

// PositionCompany identifies the employer.
type PositionCompany struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// PositionRole is one role held at an employer.
type PositionRole struct {
	Title     string `json:"title"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// EducationEntry is one education record.
type EducationEntry struct {
	School       string `json:"school_name"`
	Degree       string `json:"degree_name,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
}

// Skill is one listed skill.
type Skill struct {
	Name string `json:"name"`
}

// ContactInfo carries optional contact details.
type ContactInfo struct {
	Emails []string `json:"emails,omitempty"`
}

// ProfileSlug extracts the profile id from a LinkedIn profile URL
// ("https://linkedin.com/in/alice-smith/" → "alice-smith").
func ProfileSlug(profileRef string) (string, error) {
	_, slug, found := strings.Cut(profileRef, "/in/")
	if !found || slug == "" {
		return "", eris.Errorf("proapis: invalid profile reference %q", profileRef)
	}
	slug = strings.TrimSuffix(slug, "/")
	if i := strings.IndexAny(slug, "/?"); i >= 0 {
		slug = slug[:i]
	}
	if slug == "" {
		return "", eris.Errorf("proapis: invalid profile reference %q", profileRef)
	}
	return slug, nil
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a ProAPIs client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ProfileDetails(ctx context.Context, req ProfileDetailsRequest) (*ProfileDetailsResponse, error) {
	if req.ProfileID == "" {
		return nil, eris.New("proapis: profile_id is required")
	}
	if req.ProfileType == "" {
		req.ProfileType = "personal"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "proapis: marshal request")
	}

	return resilience.Do(ctx, c.retry, "proapis.profile_details", func(ctx context.Context) (*ProfileDetailsResponse, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "proapis: rate limit wait")
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/profile-details", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "proapis: create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, eris.Wrap(err, "proapis: send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "proapis: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("proapis: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result ProfileDetailsResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, eris.Wrap(err, "proapis: decode response")
		}
		return &result, nil
	})
}
