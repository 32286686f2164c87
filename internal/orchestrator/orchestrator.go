// Package orchestrator drives a lead through the outreach pipeline:
// enrichment, research, then the email and landing page fan-out. It is the
// sole writer of lead state; stage executors only read and compute.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/substrate"
)

// Timeouts bounds each stage invocation and the whole run.
type Timeouts struct {
	Enrich   time.Duration
	Research time.Duration
	Asset    time.Duration
	Pipeline time.Duration
}

// ErrStageFailed marks a run aborted because a stage reported failure. The
// lead's marker records which one.
var ErrStageFailed = errors.New("stage failed")

// Runner executes pipeline runs against one store and substrate.
type Runner struct {
	store    store.Store
	sub      substrate.Client
	timeouts Timeouts
	parallel bool
}

// New creates a Runner. With parallel set, the email and landing page
// stages of the fan-out run concurrently.
func New(st store.Store, sub substrate.Client, timeouts Timeouts, parallel bool) *Runner {
	return &Runner{store: st, sub: sub, timeouts: timeouts, parallel: parallel}
}

// Run takes the lead from wherever its stage marker left off to the end of
// the pipeline. Completed stages are detected by their persisted outputs and
// skipped; the returned summary reports which stages actually executed.
func (r *Runner) Run(ctx context.Context, leadID string) (*model.RunSummary, error) {
	if r.timeouts.Pipeline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeouts.Pipeline)
		defer cancel()
	}

	summary := &model.RunSummary{LeadID: leadID}

	if err := r.runEnrichment(ctx, leadID, summary); err != nil {
		return summary, err
	}
	if err := r.runResearch(ctx, leadID, summary); err != nil {
		return summary, err
	}
	if err := r.runAssets(ctx, leadID, summary); err != nil {
		return summary, err
	}

	zap.L().Info("pipeline run complete",
		zap.String("lead_id", leadID),
		zap.Bool("enrichment_ran", summary.EnrichmentRan),
		zap.Bool("research_ran", summary.ResearchRan),
		zap.Bool("emails_generated", summary.EmailsGenerated),
		zap.Bool("landing_page_generated", summary.LandingPageGenerated))

	return summary, nil
}

// needsEnrichment reports whether the enrichment stage must run. A *_started
// marker proves only that an attempt began, so it re-arms the stage even when
// a payload from the interrupted attempt was already persisted.
func needsEnrichment(lead *model.Lead) bool {
	switch lead.StageMarker {
	case model.StageNone, model.StageEnrichmentStarted, model.StageEnrichmentFailed:
		return true
	}
	return lead.Enrichment == nil && lead.StageMarker != model.StageEnrichmentCompleted
}

func (r *Runner) runEnrichment(ctx context.Context, leadID string, summary *model.RunSummary) error {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: load lead %s", leadID)
	}
	if !needsEnrichment(lead) {
		zap.L().Debug("enrichment done, skipping",
			zap.String("lead_id", leadID),
			zap.String("marker", string(lead.StageMarker)))
		return nil
	}

	if err := r.store.TransitionStage(ctx, leadID, lead.StageMarker, model.StageEnrichmentStarted); err != nil {
		return eris.Wrapf(err, "orchestrator: start enrichment for lead %s", leadID)
	}

	res, err := r.sub.InvokeAndWait(ctx, stage.Enrich, stage.Payload{LeadID: leadID}, r.timeouts.Enrich)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: enrichment for lead %s", leadID)
	}
	if !res.OK {
		return r.failStage(ctx, leadID, "enrichment", model.StageEnrichmentStarted, model.StageEnrichmentFailed, res.Err)
	}

	var out stage.EnrichOutput
	if err := json.Unmarshal(res.Output, &out); err != nil {
		return eris.Wrapf(err, "orchestrator: decode enrichment output for lead %s", leadID)
	}
	if err := r.store.UpdateEnrichment(ctx, leadID, out.Profile); err != nil {
		return eris.Wrapf(err, "orchestrator: save enrichment for lead %s", leadID)
	}
	if err := r.store.TransitionStage(ctx, leadID, model.StageEnrichmentStarted, model.StageEnrichmentCompleted); err != nil {
		return eris.Wrapf(err, "orchestrator: complete enrichment for lead %s", leadID)
	}

	summary.EnrichmentRan = true
	return nil
}

// needsResearch mirrors needsEnrichment: a lingering research_started marker
// means the previous attempt cannot be trusted, persisted report or not.
func needsResearch(lead *model.Lead) bool {
	switch lead.StageMarker {
	case model.StageEnrichmentCompleted, model.StageResearchStarted, model.StageResearchFailed:
		return true
	}
	return false
}

func (r *Runner) runResearch(ctx context.Context, leadID string, summary *model.RunSummary) error {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: load lead %s", leadID)
	}
	if !needsResearch(lead) {
		zap.L().Debug("research done, skipping",
			zap.String("lead_id", leadID),
			zap.String("marker", string(lead.StageMarker)))
		return nil
	}

	if err := r.store.TransitionStage(ctx, leadID, lead.StageMarker, model.StageResearchStarted); err != nil {
		return eris.Wrapf(err, "orchestrator: start research for lead %s", leadID)
	}

	res, err := r.sub.InvokeAndWait(ctx, stage.Research, stage.Payload{LeadID: leadID}, r.timeouts.Research)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: research for lead %s", leadID)
	}
	if !res.OK {
		return r.failStage(ctx, leadID, "research", model.StageResearchStarted, model.StageResearchFailed, res.Err)
	}

	var out stage.ResearchOutput
	if err := json.Unmarshal(res.Output, &out); err != nil {
		return eris.Wrapf(err, "orchestrator: decode research output for lead %s", leadID)
	}
	if err := r.store.UpdateResearch(ctx, leadID, out.Report); err != nil {
		return eris.Wrapf(err, "orchestrator: save research for lead %s", leadID)
	}
	if err := r.store.TransitionStage(ctx, leadID, model.StageResearchStarted, model.StageResearchCompleted); err != nil {
		return eris.Wrapf(err, "orchestrator: complete research for lead %s", leadID)
	}

	summary.ResearchRan = true
	return nil
}

// assetFamily describes one branch of the post-research fan-out.
type assetFamily struct {
	name      string
	stageName string
	started   model.StageMarker
	completed model.StageMarker
	failed    model.StageMarker
	kinds     []model.AssetKind
	ran       *bool
}

func (r *Runner) runAssets(ctx context.Context, leadID string, summary *model.RunSummary) error {
	lead, err := r.store.GetLead(ctx, leadID)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: load lead %s", leadID)
	}
	if !lead.StageMarker.ResearchDone() {
		return eris.Errorf("orchestrator: lead %s not ready for asset generation (marker %q)", leadID, lead.StageMarker)
	}

	// Only families requested at submission time run. The flags travel on
	// the lead, so a resume honors the original request.
	var families []assetFamily
	if lead.WantEmails {
		families = append(families, assetFamily{
			name:      "emails",
			stageName: stage.Emails,
			started:   model.StageEmailsStarted,
			completed: model.StageEmailsCompleted,
			failed:    model.StageEmailsFailed,
			kinds:     model.EmailAssetKinds,
			ran:       &summary.EmailsGenerated,
		})
	}
	if lead.WantLandingPage {
		families = append(families, assetFamily{
			name:      "landing_page",
			stageName: stage.LandingPage,
			started:   model.StageLandingPageStarted,
			completed: model.StageLandingPageCompleted,
			failed:    model.StageLandingPageFailed,
			kinds:     model.LandingAssetKinds,
			ran:       &summary.LandingPageGenerated,
		})
	}

	if r.parallel {
		// Plain errgroup, no shared cancellation: a failing family must not
		// cancel its sibling.
		var g errgroup.Group
		errs := make([]error, len(families))
		for i, fam := range families {
			g.Go(func() error {
				errs[i] = r.runAssetFamily(ctx, leadID, fam)
				return nil
			})
		}
		_ = g.Wait()
		return errors.Join(errs...)
	}

	// Sequentially a failed family aborts the run, leaving its *_failed
	// marker as the observed status. The sibling stays untouched and its
	// asset-count gate picks it up on the next run.
	for _, fam := range families {
		if err := r.runAssetFamily(ctx, leadID, fam); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runAssetFamily(ctx context.Context, leadID string, fam assetFamily) error {
	count, err := r.store.CountAssetsByKind(ctx, leadID, fam.kinds)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: count %s assets for lead %s", fam.name, leadID)
	}
	// Any existing asset of the family's kinds proves the stage ran;
	// CreateAssets writes a whole family in one transaction.
	if count > 0 {
		zap.L().Debug("assets cached, skipping",
			zap.String("lead_id", leadID),
			zap.String("family", fam.name))
		return nil
	}

	if err := r.transitionFresh(ctx, leadID, fam.started); err != nil {
		return eris.Wrapf(err, "orchestrator: start %s for lead %s", fam.name, leadID)
	}

	res, err := r.sub.InvokeAndWait(ctx, fam.stageName, stage.Payload{LeadID: leadID}, r.timeouts.Asset)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: %s for lead %s", fam.name, leadID)
	}
	if !res.OK {
		return r.failStage(ctx, leadID, fam.name, fam.started, fam.failed, res.Err)
	}

	var out stage.AssetsOutput
	if err := json.Unmarshal(res.Output, &out); err != nil {
		return eris.Wrapf(err, "orchestrator: decode %s output for lead %s", fam.name, leadID)
	}
	if err := r.store.CreateAssets(ctx, out.Assets); err != nil {
		return eris.Wrapf(err, "orchestrator: save %s assets for lead %s", fam.name, leadID)
	}
	if err := r.transitionFresh(ctx, leadID, fam.completed); err != nil {
		return eris.Wrapf(err, "orchestrator: complete %s for lead %s", fam.name, leadID)
	}

	*fam.ran = true
	return nil
}

// failStage records a stage failure marker and returns ErrStageFailed.
func (r *Runner) failStage(ctx context.Context, leadID, name string, from, failed model.StageMarker, reason string) error {
	zap.L().Warn("stage failed",
		zap.String("lead_id", leadID),
		zap.String("stage", name),
		zap.String("reason", reason))
	if err := r.store.TransitionStage(ctx, leadID, from, failed); err != nil {
		zap.L().Error("failed to record stage failure",
			zap.String("lead_id", leadID),
			zap.String("stage", name),
			zap.Error(err))
	}
	return eris.Wrapf(ErrStageFailed, "%s for lead %s: %s", name, leadID, reason)
}

// transitionFresh re-reads the marker before each compare-and-set attempt.
// During the parallel fan-out the two families race each other's marker
// writes, so a lost CAS against a sibling is retried with the fresh value.
func (r *Runner) transitionFresh(ctx context.Context, leadID string, to model.StageMarker) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lead, err := r.store.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		err = r.store.TransitionStage(ctx, leadID, lead.StageMarker, to)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrStageConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
