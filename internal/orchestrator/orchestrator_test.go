package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/substrate"
)

func testTimeouts() Timeouts {
	return Timeouts{
		Enrich:   5 * time.Second,
		Research: 5 * time.Second,
		Asset:    5 * time.Second,
		Pipeline: 30 * time.Second,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedLead(t *testing.T, st store.Store) *model.Lead {
	return seedLeadWanting(t, st, true, true)
}

func seedLeadWanting(t *testing.T, st store.Store, emails, landing bool) *model.Lead {
	t.Helper()
	c := &model.Client{Name: "Dunbar", Website: "https://dunbar.example"}
	require.NoError(t, st.CreateClient(context.Background(), c))
	l := &model.Lead{
		ClientID:        c.ID,
		ProfileRef:      "https://linkedin.com/in/alice-smith/",
		WantEmails:      emails,
		WantLandingPage: landing,
	}
	require.NoError(t, st.CreateLead(context.Background(), l))
	return l
}

// stubStages provides canned executors with per-stage call counters.
type stubStages struct {
	enrichCalls  atomic.Int32
	researchErr  error
	emailsErr    error
	landingErr   error
	researchWait time.Duration
}

func (s *stubStages) register(reg *substrate.Registry) {
	reg.Register(stage.Enrich, func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		s.enrichCalls.Add(1)
		return json.Marshal(stage.EnrichOutput{Profile: &model.EnrichmentProfile{
			ProfileID: "alice-smith",
			FullName:  "Alice Smith",
		}})
	})
	reg.Register(stage.Research, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		if s.researchWait > 0 {
			select {
			case <-time.After(s.researchWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if s.researchErr != nil {
			return nil, s.researchErr
		}
		return json.Marshal(stage.ResearchOutput{Report: "# Report"})
	})
	reg.Register(stage.Emails, func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		if s.emailsErr != nil {
			return nil, s.emailsErr
		}
		var p stage.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return json.Marshal(stage.AssetsOutput{Assets: []model.LeadAsset{
			{LeadID: p.LeadID, Kind: model.AssetOutreachSubject, Name: model.AssetNameInitialSubject, Content: "s1"},
			{LeadID: p.LeadID, Kind: model.AssetOutreachBody, Name: model.AssetNameInitialBody, Content: "b1"},
			{LeadID: p.LeadID, Kind: model.AssetOutreachSubject, Name: model.AssetNameFollowupSubject, Content: "s2"},
			{LeadID: p.LeadID, Kind: model.AssetOutreachBody, Name: model.AssetNameFollowupBody, Content: "b2"},
		}})
	})
	reg.Register(stage.LandingPage, func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		if s.landingErr != nil {
			return nil, s.landingErr
		}
		var p stage.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return json.Marshal(stage.AssetsOutput{Assets: []model.LeadAsset{
			{LeadID: p.LeadID, Kind: model.AssetLandingPage, Name: model.AssetNameLandingPageURL, Content: "https://preview.v0.dev/x"},
		}})
	})
}

func newTestRunner(t *testing.T, st store.Store, stubs *stubStages, parallel bool) *Runner {
	t.Helper()
	reg := substrate.NewRegistry()
	stubs.register(reg)
	return New(st, substrate.NewLocal(reg, time.Minute), testTimeouts(), parallel)
}

func TestRunFullPipeline(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	runner := newTestRunner(t, st, &stubStages{}, false)

	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.EnrichmentRan)
	assert.True(t, summary.ResearchRan)
	assert.True(t, summary.EmailsGenerated)
	assert.True(t, summary.LandingPageGenerated)

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, "# Report", got.Research)
	assert.Equal(t, model.StageLandingPageCompleted, got.StageMarker)

	assets, err := st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 5)
}

func TestRunIdempotentResume(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	stubs := &stubStages{}
	runner := newTestRunner(t, st, stubs, false)

	_, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, int32(1), stubs.enrichCalls.Load())

	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.False(t, summary.EnrichmentRan)
	assert.False(t, summary.ResearchRan)
	assert.False(t, summary.EmailsGenerated)
	assert.False(t, summary.LandingPageGenerated)
	assert.Equal(t, int32(1), stubs.enrichCalls.Load(), "cached stages must not re-run")

	assets, err := st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 5, "replay must not duplicate assets")
}

func TestResumeReRunsEnrichmentAfterInterruptedAttempt(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	ctx := context.Background()

	// A previous run persisted the enrichment payload but died before
	// flipping the marker to enrichment_completed.
	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageNone, model.StageEnrichmentStarted))
	require.NoError(t, st.UpdateEnrichment(ctx, lead.ID, &model.EnrichmentProfile{
		ProfileID: "alice-smith",
		FullName:  "Stale Alice",
	}))

	stubs := &stubStages{}
	runner := newTestRunner(t, st, stubs, false)

	summary, err := runner.Run(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.EnrichmentRan, "a started marker re-arms the stage even with a payload present")
	assert.Equal(t, int32(1), stubs.enrichCalls.Load())

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageLandingPageCompleted, got.StageMarker)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, "Alice Smith", got.Enrichment.FullName, "the untrusted payload is replaced")
}

func TestResumeReRunsResearchAfterInterruptedAttempt(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	ctx := context.Background()

	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageNone, model.StageEnrichmentStarted))
	require.NoError(t, st.UpdateEnrichment(ctx, lead.ID, &model.EnrichmentProfile{
		ProfileID: "alice-smith",
		FullName:  "Alice Smith",
	}))
	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageEnrichmentStarted, model.StageEnrichmentCompleted))
	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageEnrichmentCompleted, model.StageResearchStarted))
	// The report landed but the run died before research_completed.
	require.NoError(t, st.UpdateResearch(ctx, lead.ID, "# Stale report"))

	stubs := &stubStages{}
	runner := newTestRunner(t, st, stubs, false)

	summary, err := runner.Run(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, summary.EnrichmentRan)
	assert.True(t, summary.ResearchRan, "a started marker re-arms research even with a report present")

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageLandingPageCompleted, got.StageMarker)
	assert.Equal(t, "# Report", got.Research)
	assert.Zero(t, stubs.enrichCalls.Load(), "enrichment is trusted past its completed marker")
}

func TestRunResumesAfterResearchFailure(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	stubs := &stubStages{researchErr: eris.New("research provider down")}
	runner := newTestRunner(t, st, stubs, false)

	_, err := runner.Run(context.Background(), lead.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageFailed)

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageResearchFailed, got.StageMarker)
	require.NotNil(t, got.Enrichment, "enrichment from the failed run must survive")

	stubs.researchErr = nil
	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.False(t, summary.EnrichmentRan, "enrichment resumes from cache")
	assert.True(t, summary.ResearchRan)
	assert.True(t, summary.EmailsGenerated)
	assert.Equal(t, int32(1), stubs.enrichCalls.Load())
}

func TestRunOnlyRequestedFamilies(t *testing.T) {
	st := newTestStore(t)
	lead := seedLeadWanting(t, st, true, false)
	runner := newTestRunner(t, st, &stubStages{}, false)

	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.EmailsGenerated)
	assert.False(t, summary.LandingPageGenerated)

	assets, err := st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 4)
	for _, a := range assets {
		assert.NotEqual(t, model.AssetLandingPage, a.Kind)
	}

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageEmailsCompleted, got.StageMarker)
}

func TestRunNoFamiliesRequested(t *testing.T) {
	st := newTestStore(t)
	lead := seedLeadWanting(t, st, false, false)
	runner := newTestRunner(t, st, &stubStages{}, false)

	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.ResearchRan)
	assert.False(t, summary.EmailsGenerated)
	assert.False(t, summary.LandingPageGenerated)

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageResearchCompleted, got.StageMarker)

	assets, err := st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestEmailsFailureDoesNotBlockLandingPage(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	stubs := &stubStages{emailsErr: eris.New("model overloaded")}
	runner := newTestRunner(t, st, stubs, false)

	summary, err := runner.Run(context.Background(), lead.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageFailed)
	assert.False(t, summary.EmailsGenerated)
	assert.False(t, summary.LandingPageGenerated, "sequential run aborts on the failed family")

	// The failure marker is what observers see; the sibling must not
	// overwrite it within the same run.
	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageEmailsFailed, got.StageMarker)

	assets, err := st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, assets)

	// The failure blocks neither family in later runs.
	stubs.emailsErr = nil
	summary, err = runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.EmailsGenerated)
	assert.True(t, summary.LandingPageGenerated)

	assets, err = st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 5)
}

func TestAssetFamilySkipsWhenAnyAssetExists(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	ctx := context.Background()

	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageNone, model.StageEnrichmentStarted))
	require.NoError(t, st.UpdateEnrichment(ctx, lead.ID, &model.EnrichmentProfile{ProfileID: "alice-smith", FullName: "Alice Smith"}))
	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageEnrichmentStarted, model.StageEnrichmentCompleted))
	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageEnrichmentCompleted, model.StageResearchStarted))
	require.NoError(t, st.UpdateResearch(ctx, lead.ID, "# Report"))
	require.NoError(t, st.TransitionStage(ctx, lead.ID, model.StageResearchStarted, model.StageResearchCompleted))

	// One persisted email asset is proof the stage ran, whatever the count.
	require.NoError(t, st.CreateAssets(ctx, []model.LeadAsset{
		{LeadID: lead.ID, Kind: model.AssetOutreachSubject, Name: model.AssetNameInitialSubject, Content: "s1"},
	}))

	runner := newTestRunner(t, st, &stubStages{}, false)
	summary, err := runner.Run(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, summary.EmailsGenerated, "an existing email asset skips the family")
	assert.True(t, summary.LandingPageGenerated)

	assets, err := st.ListAssets(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestStageTimeoutMarksFailed(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	stubs := &stubStages{researchWait: time.Second}
	runner := New(st, substrate.NewLocal(func() *substrate.Registry {
		reg := substrate.NewRegistry()
		stubs.register(reg)
		return reg
	}(), time.Minute), Timeouts{
		Enrich:   5 * time.Second,
		Research: 20 * time.Millisecond,
		Asset:    5 * time.Second,
	}, false)

	_, err := runner.Run(context.Background(), lead.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageFailed)

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageResearchFailed, got.StageMarker)
}

func TestRunCanceledLeavesMarkerArmed(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	stubs := &stubStages{researchWait: time.Second}
	runner := newTestRunner(t, st, stubs, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := runner.Run(ctx, lead.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStageFailed)

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageResearchStarted, got.StageMarker,
		"cancellation must not write a failure marker")

	// A later run re-arms the started marker and finishes.
	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.ResearchRan)
}

func TestParallelFanout(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	runner := newTestRunner(t, st, &stubStages{}, true)

	summary, err := runner.Run(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, summary.EmailsGenerated)
	assert.True(t, summary.LandingPageGenerated)

	assets, err := st.ListAssets(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, assets, 5)

	got, err := st.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, got.StageMarker.ResearchDone())
}

func TestRegisterPipeline(t *testing.T) {
	st := newTestStore(t)
	lead := seedLead(t, st)
	reg := substrate.NewRegistry()
	(&stubStages{}).register(reg)
	sub := substrate.NewLocal(reg, time.Minute)
	RegisterPipeline(reg, New(st, sub, testTimeouts(), false))

	res, err := sub.InvokeAndWait(context.Background(), stage.Pipeline, stage.Payload{LeadID: lead.ID}, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.OK, res.Err)

	var summary model.RunSummary
	require.NoError(t, json.Unmarshal(res.Output, &summary))
	assert.True(t, summary.EnrichmentRan)
	assert.True(t, summary.LandingPageGenerated)
}
