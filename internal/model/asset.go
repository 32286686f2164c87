package model

import "time"

// AssetKind classifies a generated content artifact.
type AssetKind string

const (
	AssetOutreachSubject AssetKind = "outreach_subject"
	AssetOutreachBody    AssetKind = "outreach_body"
	AssetLandingPage     AssetKind = "landing_page"
)

// EmailAssetKinds are the kinds produced by the email generation stage.
var EmailAssetKinds = []AssetKind{AssetOutreachSubject, AssetOutreachBody}

// LandingAssetKinds are the kinds produced by the landing page stage.
var LandingAssetKinds = []AssetKind{AssetLandingPage}

// Well-known asset names within a kind.
const (
	AssetNameInitialSubject  = "initial_outreach_subject"
	AssetNameInitialBody     = "initial_outreach_body"
	AssetNameFollowupSubject = "followup_outreach_subject"
	AssetNameFollowupBody    = "followup_outreach_body"
	AssetNameLandingPageURL  = "landing_page_url"
)

// LeadAsset is one generated artifact owned by a lead. Assets are created in
// bulk by a single successful stage invocation and never mutated; the
// orchestrator treats an existing asset of a stage's kinds as proof the
// stage already ran.
type LeadAsset struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Kind      AssetKind `json:"kind"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
