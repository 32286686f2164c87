// Package vzero wraps the v0 Platform API for generating landing pages.
package vzero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultBaseURL = "https://api.v0.dev/v1"

// Client creates v0 chats that build landing pages from a prompt.
type Client interface {
	CreateChat(ctx context.Context, req CreateChatRequest) (*Chat, error)
}

// CreateChatRequest is the request body for POST /chats.
type CreateChatRequest struct {
	Message string `json:"message"`
	System  string `json:"system,omitempty"`
}

// Chat is a v0 chat with its latest generated version.
type Chat struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Version *Version `json:"version,omitempty"`
}

// Version is one generation within a chat.
type Version struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PreviewURL string `json:"previewUrl"`
}

// PageURL returns the best URL for the generated page: the version preview
// when present, then the chat URL, then a link to the chat itself.
func (c *Chat) PageURL() string {
	if c.Version != nil && c.Version.PreviewURL != "" {
		return c.Version.PreviewURL
	}
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("https://v0.dev/chat/%s", c.ID)
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

// NewClient creates a v0 Platform API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			// Chat creation blocks until the first version is generated.
			Timeout: 5 * time.Minute,
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

func (c *httpClient) CreateChat(ctx context.Context, req CreateChatRequest) (*Chat, error) {
	if req.Message == "" {
		return nil, eris.New("vzero: empty message")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "vzero: marshal request")
	}

	return resilience.Do(ctx, c.retry, "vzero.create_chat", func(ctx context.Context) (*Chat, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chats", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "vzero: create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, eris.Wrap(err, "vzero: send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "vzero: read response")
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			err := eris.Errorf("vzero: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var chat Chat
		if err := json.Unmarshal(respBody, &chat); err != nil {
			return nil, eris.Wrap(err, "vzero: unmarshal response")
		}
		if chat.ID == "" {
			return nil, eris.New("vzero: response missing chat id")
		}
		return &chat, nil
	})
}
