package stage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
	"github.com/sells-group/outreach-cli/pkg/proapis"
	"github.com/sells-group/outreach-cli/pkg/vzero"
)

func testModels() Models {
	return Models{
		Sonnet:    "claude-sonnet-4-5-20250929",
		Haiku:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "stage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedClient(t *testing.T, st store.Store) *model.Client {
	t.Helper()
	c := &model.Client{
		Name:             "Dunbar",
		Website:          "https://dunbar.example",
		Industry:         "Consulting",
		ValueProposition: "Outreach that lands",
		CalendarURL:      "https://cal.example/dunbar",
	}
	require.NoError(t, st.CreateClient(context.Background(), c))
	return c
}

func seedLead(t *testing.T, st store.Store, clientID string) *model.Lead {
	return seedLeadWithRef(t, st, clientID, "https://linkedin.com/in/alice-smith/")
}

func seedLeadWithRef(t *testing.T, st store.Store, clientID, profileRef string) *model.Lead {
	t.Helper()
	l := &model.Lead{ClientID: clientID, ProfileRef: profileRef}
	require.NoError(t, st.CreateLead(context.Background(), l))
	return l
}

func testPrompts() *registry.Prompts {
	return registry.MustDefaults()
}

// mockAnthropic replays queued completions in order and records requests.
type mockAnthropic struct {
	responses []string
	requests  []anthropic.MessageRequest
	err       error
}

func (m *mockAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, eris.New("mock anthropic: no responses queued")
	}
	text := m.responses[0]
	m.responses = m.responses[1:]
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

// mockPerplexity replays queued answers and records prompts.
type mockPerplexity struct {
	answers []string
	prompts []string
	err     error
}

func (m *mockPerplexity) Ask(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.answers) == 0 {
		return "", eris.New("mock perplexity: no answers queued")
	}
	answer := m.answers[0]
	m.answers = m.answers[1:]
	return answer, nil
}

func (m *mockPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, eris.New("mock perplexity: no messages")
	}
	answer, err := m.Ask(ctx, req.Messages[len(req.Messages)-1].Content)
	if err != nil {
		return nil, err
	}
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: answer}}},
	}, nil
}

// mockProfiles returns a canned profile and records the request.
type mockProfiles struct {
	response *proapis.ProfileDetailsResponse
	requests []proapis.ProfileDetailsRequest
	err      error
}

func (m *mockProfiles) ProfileDetails(_ context.Context, req proapis.ProfileDetailsRequest) (*proapis.ProfileDetailsResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

// mockPages returns a canned chat and records the request.
type mockPages struct {
	chat     *vzero.Chat
	requests []vzero.CreateChatRequest
	err      error
}

func (m *mockPages) CreateChat(_ context.Context, req vzero.CreateChatRequest) (*vzero.Chat, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.chat, nil
}
