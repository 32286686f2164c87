// Package instantly wraps the Instantly.ai v2 API used to push finished
// leads into cold email campaigns.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultBaseURL = "https://api.instantly.ai/api/v2"

// Client pushes leads to Instantly lists.
type Client interface {
	PushLead(ctx context.Context, lead Lead) (*PushResult, error)
}

// Lead is the request body for POST /leads.
type Lead struct {
	Email             string            `json:"email,omitempty"`
	FirstName         string            `json:"first_name,omitempty"`
	LastName          string            `json:"last_name,omitempty"`
	CompanyName       string            `json:"company_name,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	Website           string            `json:"website,omitempty"`
	Personalization   string            `json:"personalization,omitempty"`
	ListID            string            `json:"list_id"`
	SkipIfInWorkspace bool              `json:"skip_if_in_workspace,omitempty"`
	SkipIfInList      bool              `json:"skip_if_in_list,omitempty"`
	CustomVariables   map[string]string `json:"custom_variables,omitempty"`
}

// PushResult is the created lead record returned by Instantly.
type PushResult struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	ListID string `json:"list_id"`
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
	retry   resilience.Policy
}

// NewClient creates an Instantly API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
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

func (c *httpClient) PushLead(ctx context.Context, lead Lead) (*PushResult, error) {
	if lead.ListID == "" {
		return nil, eris.New("instantly: list_id is required")
	}

	body, err := json.Marshal(lead)
	if err != nil {
		return nil, eris.Wrap(err, "instantly: marshal lead")
	}

	return resilience.Do(ctx, c.retry, "instantly.push_lead", func(ctx context.Context) (*PushResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leads", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "instantly: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "instantly: send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "instantly: read response")
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			err := eris.Errorf("instantly: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result PushResult
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, eris.Wrap(err, "instantly: unmarshal response")
		}
		return &result, nil
	})
}
