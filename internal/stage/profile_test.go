package stage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestProfilerExecute(t *testing.T) {
	st := newTestStore(t)
	client := &model.Client{Name: "Dunbar", Website: "https://dunbar.example"}
	require.NoError(t, st.CreateClient(context.Background(), client))

	search := &mockPerplexity{answers: []string{
		"Dunbar is a consulting firm...",
		"Dunbar's brand voice is direct...",
		"Dunbar markets through LinkedIn...",
	}}
	ac := &mockAnthropic{responses: []string{`{
		"industry": "Consulting",
		"company_summary": "Boutique operations consultancy.",
		"target_customer": "Mid-market COOs",
		"value_proposition": "Outreach that lands",
		"location": "Austin, Texas",
		"headcount": 12,
		"linkedin_url": "https://linkedin.com/company/dunbar",
		"features": [{"title": "Research", "description": "Deep lead research"}],
		"testimonials": [{"name": "Alex", "title": "VP Sales", "quote": "It works."}]
	}`}}

	profiler := NewProfiler(st, ac, search, testPrompts(), testModels())
	payload, _ := json.Marshal(ClientPayload{ClientID: client.ID})

	raw, err := profiler.Execute(context.Background(), payload)
	require.NoError(t, err)

	var out ProfileOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, client.ID, out.ClientID)
	assert.Equal(t, 1, out.Features)
	assert.Equal(t, 1, out.Testimonials)

	got, err := st.GetClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileCompleted, got.ProfileStatus)
	assert.Empty(t, got.ProfileError)
	assert.Equal(t, "Consulting", got.Industry)
	assert.Equal(t, "Boutique operations consultancy.", got.CompanySummary)
	assert.Equal(t, 12, got.Headcount)
	require.Len(t, got.Features, 1)
	assert.Equal(t, "Research", got.Features[0].Title)
	require.Len(t, got.Testimonials, 1)

	// Three research passes, all naming the company and its domain.
	require.Len(t, search.prompts, 3)
	for _, prompt := range search.prompts {
		assert.Contains(t, prompt, "Dunbar")
		assert.Contains(t, prompt, "dunbar.example")
	}
}

func TestProfilerKeepsOperatorValues(t *testing.T) {
	st := newTestStore(t)
	client := &model.Client{
		Name:     "Dunbar",
		Website:  "https://dunbar.example",
		Industry: "Hand-set industry",
	}
	require.NoError(t, st.CreateClient(context.Background(), client))

	search := &mockPerplexity{answers: []string{"a", "b", "c"}}
	ac := &mockAnthropic{responses: []string{`{"industry": "Consulting", "headcount": 5}`}}

	profiler := NewProfiler(st, ac, search, testPrompts(), testModels())
	payload, _ := json.Marshal(ClientPayload{ClientID: client.ID})

	_, err := profiler.Execute(context.Background(), payload)
	require.NoError(t, err)

	got, err := st.GetClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hand-set industry", got.Industry)
	assert.Equal(t, 5, got.Headcount)
}

func TestProfilerMarksFailed(t *testing.T) {
	st := newTestStore(t)
	client := &model.Client{Name: "Dunbar", Website: "https://dunbar.example"}
	require.NoError(t, st.CreateClient(context.Background(), client))

	search := &mockPerplexity{err: eris.New("search unavailable")}

	profiler := NewProfiler(st, &mockAnthropic{}, search, testPrompts(), testModels())
	payload, _ := json.Marshal(ClientPayload{ClientID: client.ID})

	_, err := profiler.Execute(context.Background(), payload)
	require.Error(t, err)

	got, err := st.GetClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileFailed, got.ProfileStatus)
	assert.Contains(t, got.ProfileError, "search unavailable")
}
