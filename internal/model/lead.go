package model

import (
	"time"
)

// StageMarker records the last pipeline stage event for a lead. It is both
// the resume pointer the orchestrator decides from and the status string
// shown to observers.
type StageMarker string

const (
	StageNone StageMarker = ""

	StageEnrichmentStarted   StageMarker = "enrichment_started"
	StageEnrichmentCompleted StageMarker = "enrichment_completed"
	StageEnrichmentFailed    StageMarker = "enrichment_failed"

	StageResearchStarted   StageMarker = "research_started"
	StageResearchCompleted StageMarker = "research_completed"
	StageResearchFailed    StageMarker = "research_failed"

	StageEmailsStarted   StageMarker = "emails_started"
	StageEmailsCompleted StageMarker = "emails_completed"
	StageEmailsFailed    StageMarker = "emails_failed"

	StageLandingPageStarted   StageMarker = "landing_page_started"
	StageLandingPageCompleted StageMarker = "landing_page_completed"
	StageLandingPageFailed    StageMarker = "landing_page_failed"
)

// AllStageMarkers lists every marker value including StageNone.
var AllStageMarkers = []StageMarker{
	StageNone,
	StageEnrichmentStarted, StageEnrichmentCompleted, StageEnrichmentFailed,
	StageResearchStarted, StageResearchCompleted, StageResearchFailed,
	StageEmailsStarted, StageEmailsCompleted, StageEmailsFailed,
	StageLandingPageStarted, StageLandingPageCompleted, StageLandingPageFailed,
}

// Valid reports whether m is a known marker value.
func (m StageMarker) Valid() bool {
	for _, s := range AllStageMarkers {
		if m == s {
			return true
		}
	}
	return false
}

// assetMarkers is the set of markers belonging to the asset fan-out families.
// Once a lead has reached research_completed, its marker only moves within
// this set, so seeing any of these proves research finished at some point.
var assetMarkers = map[StageMarker]bool{
	StageEmailsStarted: true, StageEmailsCompleted: true, StageEmailsFailed: true,
	StageLandingPageStarted: true, StageLandingPageCompleted: true, StageLandingPageFailed: true,
}

// ResearchDone reports whether the marker proves research has completed.
func (m StageMarker) ResearchDone() bool {
	return m == StageResearchCompleted || assetMarkers[m]
}

// stageTransitions enumerates the legal marker transitions. A *_started
// marker may transition to itself: a crashed attempt is re-armed the same
// way a failed one is.
var stageTransitions = map[StageMarker][]StageMarker{
	StageNone:                {StageEnrichmentStarted},
	StageEnrichmentStarted:   {StageEnrichmentStarted, StageEnrichmentCompleted, StageEnrichmentFailed},
	StageEnrichmentFailed:    {StageEnrichmentStarted},
	StageEnrichmentCompleted: {StageEnrichmentStarted, StageResearchStarted},
	StageResearchStarted:     {StageResearchStarted, StageResearchCompleted, StageResearchFailed},
	StageResearchFailed:      {StageResearchStarted},
	StageResearchCompleted:   {StageEmailsStarted, StageLandingPageStarted},

	// The two asset families are independent: either can start from any
	// settled or re-armed state of the other.
	StageEmailsStarted:        {StageEmailsStarted, StageEmailsCompleted, StageEmailsFailed, StageLandingPageStarted},
	StageEmailsCompleted:      {StageEmailsStarted, StageLandingPageStarted},
	StageEmailsFailed:         {StageEmailsStarted, StageLandingPageStarted},
	StageLandingPageStarted:   {StageLandingPageStarted, StageLandingPageCompleted, StageLandingPageFailed, StageEmailsStarted},
	StageLandingPageCompleted: {StageLandingPageStarted, StageEmailsStarted},
	StageLandingPageFailed:    {StageLandingPageStarted, StageEmailsStarted},
}

// CanTransition reports whether moving from m to the given marker is legal.
func (m StageMarker) CanTransition(to StageMarker) bool {
	for _, t := range stageTransitions[m] {
		if t == to {
			return true
		}
	}
	return false
}

// Lead is one prospect being worked within one client context. The
// orchestrator is its sole writer; ProfileRef is immutable after creation.
type Lead struct {
	ID          string             `json:"id"`
	ClientID    string             `json:"client_id"`
	ProfileRef  string             `json:"profile_ref"`
	StageMarker StageMarker        `json:"stage_marker"`
	Enrichment  *EnrichmentProfile `json:"enrichment,omitempty"`
	Research    string             `json:"research,omitempty"`

	// Asset families requested at submission time. Carried on the lead so
	// every resume honors the original request.
	WantEmails      bool `json:"want_emails"`
	WantLandingPage bool `json:"want_landing_page"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunSummary reports which stages a pipeline run actually executed. A fully
// cached resume returns all false.
type RunSummary struct {
	LeadID               string `json:"lead_id"`
	EnrichmentRan        bool   `json:"enrichment_ran"`
	ResearchRan          bool   `json:"research_ran"`
	EmailsGenerated      bool   `json:"emails_generated"`
	LandingPageGenerated bool   `json:"landing_page_generated"`
}
