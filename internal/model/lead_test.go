package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageMarker_Valid(t *testing.T) {
	for _, m := range AllStageMarkers {
		assert.True(t, m.Valid(), "marker %q should be valid", m)
	}
	assert.False(t, StageMarker("enrichment_done").Valid())
	assert.False(t, StageMarker("emails").Valid())
}

func TestStageMarker_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from StageMarker
		to   StageMarker
		ok   bool
	}{
		{"fresh lead starts enrichment", StageNone, StageEnrichmentStarted, true},
		{"fresh lead cannot skip to research", StageNone, StageResearchStarted, false},
		{"crashed enrichment re-arms", StageEnrichmentStarted, StageEnrichmentStarted, true},
		{"enrichment completes", StageEnrichmentStarted, StageEnrichmentCompleted, true},
		{"enrichment fails", StageEnrichmentStarted, StageEnrichmentFailed, true},
		{"failed enrichment retries", StageEnrichmentFailed, StageEnrichmentStarted, true},
		{"failed enrichment cannot complete", StageEnrichmentFailed, StageEnrichmentCompleted, false},
		{"research follows enrichment", StageEnrichmentCompleted, StageResearchStarted, true},
		{"research cannot precede enrichment result", StageEnrichmentCompleted, StageEmailsStarted, false},
		{"emails follow research", StageResearchCompleted, StageEmailsStarted, true},
		{"landing page follows research", StageResearchCompleted, StageLandingPageStarted, true},
		{"landing page after emails", StageEmailsCompleted, StageLandingPageStarted, true},
		{"emails after landing page", StageLandingPageCompleted, StageEmailsStarted, true},
		{"landing page despite email failure", StageEmailsFailed, StageLandingPageStarted, true},
		{"emails despite landing failure", StageLandingPageFailed, StageEmailsStarted, true},
		{"asset stage cannot rewind to research", StageEmailsCompleted, StageResearchStarted, false},
		{"crashed emails re-arm", StageEmailsStarted, StageEmailsStarted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStageMarker_ResearchDone(t *testing.T) {
	done := []StageMarker{
		StageResearchCompleted,
		StageEmailsStarted, StageEmailsCompleted, StageEmailsFailed,
		StageLandingPageStarted, StageLandingPageCompleted, StageLandingPageFailed,
	}
	for _, m := range done {
		assert.True(t, m.ResearchDone(), "marker %q implies research completed", m)
	}
	notDone := []StageMarker{
		StageNone,
		StageEnrichmentStarted, StageEnrichmentCompleted, StageEnrichmentFailed,
		StageResearchStarted, StageResearchFailed,
	}
	for _, m := range notDone {
		assert.False(t, m.ResearchDone(), "marker %q does not imply research completed", m)
	}
}

func TestEnrichmentProfile_DisplayName(t *testing.T) {
	p := &EnrichmentProfile{FullName: "Alice Smith"}
	assert.Equal(t, "Alice Smith", p.DisplayName())

	p = &EnrichmentProfile{FirstName: "Alice", LastName: "Smith"}
	assert.Equal(t, "Alice Smith", p.DisplayName())

	p = &EnrichmentProfile{FirstName: "Alice"}
	assert.Equal(t, "Alice", p.DisplayName())
}

func TestEnrichmentProfile_Validate(t *testing.T) {
	var nilProfile *EnrichmentProfile
	assert.Error(t, nilProfile.Validate())
	assert.Error(t, (&EnrichmentProfile{}).Validate())
	assert.NoError(t, (&EnrichmentProfile{FullName: "Alice Smith"}).Validate())
}

func TestEnrichmentProfile_CurrentPosition(t *testing.T) {
	p := &EnrichmentProfile{}
	assert.Nil(t, p.CurrentPosition())

	p.Positions = []Position{
		{Title: "VP Engineering", Company: "Acme"},
		{Title: "Engineer", Company: "Initech"},
	}
	pos := p.CurrentPosition()
	assert.Equal(t, "VP Engineering", pos.Title)
	assert.Equal(t, "Acme", pos.Company)
}
