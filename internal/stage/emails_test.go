package stage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

func seedResearchedLead(t *testing.T, st store.Store, leadID string) {
	t.Helper()
	require.NoError(t, st.UpdateResearch(context.Background(), leadID,
		"# Research Report\n\nAlice Smith leads operations at Acme."))
}

func TestEmailWriterExecute(t *testing.T) {
	st := newTestStore(t)
	client := seedClient(t, st)
	lead := seedLead(t, st, client.ID)
	seedResearchedLead(t, st, lead.ID)

	ac := &mockAnthropic{responses: []string{
		"Quick question about Acme ops",
		"Hi Alice, saw your work at Acme...",
		"Re: Quick question about Acme ops",
		"Hi Alice, following up on my last note...",
	}}

	writer := NewEmailWriter(st, ac, testPrompts(), testModels())
	payload, _ := json.Marshal(Payload{LeadID: lead.ID})

	raw, err := writer.Execute(context.Background(), payload)
	require.NoError(t, err)

	var out AssetsOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Assets, 4)

	byName := map[string]model.LeadAsset{}
	for _, a := range out.Assets {
		assert.Equal(t, lead.ID, a.LeadID)
		byName[a.Name] = a
	}
	assert.Equal(t, model.AssetOutreachSubject, byName[model.AssetNameInitialSubject].Kind)
	assert.Equal(t, model.AssetOutreachBody, byName[model.AssetNameInitialBody].Kind)
	assert.Equal(t, model.AssetOutreachSubject, byName[model.AssetNameFollowupSubject].Kind)
	assert.Equal(t, model.AssetOutreachBody, byName[model.AssetNameFollowupBody].Kind)
	assert.Equal(t, "Quick question about Acme ops", byName[model.AssetNameInitialSubject].Content)
	assert.Equal(t, "Hi Alice, following up on my last note...", byName[model.AssetNameFollowupBody].Content)

	// Followup prompts receive the initial generations.
	require.Len(t, ac.requests, 4)
	assert.Contains(t, ac.requests[2].Messages[0].Content, "Quick question about Acme ops")
	assert.Contains(t, ac.requests[3].Messages[0].Content, "Hi Alice, saw your work at Acme...")

	// All four calls share the cached client context system block.
	for _, req := range ac.requests {
		require.Len(t, req.System, 1)
		assert.Contains(t, req.System[0].Text, "CLIENT INFORMATION")
		require.NotNil(t, req.System[0].CacheControl)
	}
}

func TestEmailWriterRequiresResearch(t *testing.T) {
	st := newTestStore(t)
	client := seedClient(t, st)
	lead := seedLead(t, st, client.ID)

	writer := NewEmailWriter(st, &mockAnthropic{}, testPrompts(), testModels())
	payload, _ := json.Marshal(Payload{LeadID: lead.ID})

	_, err := writer.Execute(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no research report")
}

func TestEmailWriterStopsOnFirstFailure(t *testing.T) {
	st := newTestStore(t)
	client := seedClient(t, st)
	lead := seedLead(t, st, client.ID)
	seedResearchedLead(t, st, lead.ID)

	// Only two completions queued; the third generation fails.
	ac := &mockAnthropic{responses: []string{"Subject", "Body"}}

	writer := NewEmailWriter(st, ac, testPrompts(), testModels())
	payload, _ := json.Marshal(Payload{LeadID: lead.ID})

	_, err := writer.Execute(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email_followup_subject")
	assert.Len(t, ac.requests, 3)
}
