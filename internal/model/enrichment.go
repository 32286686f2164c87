package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EnrichmentProfile is the typed contract for the profile enrichment
// provider. Responses are validated into this shape at the boundary rather
// than carried through the pipeline as loose maps.
type EnrichmentProfile struct {
	ProfileID string      `json:"profile_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	FullName  string      `json:"full_name"`
	Headline  string      `json:"headline"`
	Location  string      `json:"location"`
	Summary   string      `json:"summary,omitempty"`
	Positions []Position  `json:"positions,omitempty"`
	Education []Education `json:"education,omitempty"`
	Skills    []string    `json:"skills,omitempty"`
	Emails    []string    `json:"emails,omitempty"`
}

// Position is one entry in a profile's work history, most recent first.
type Position struct {
	Title           string `json:"title"`
	Company         string `json:"company"`
	CompanyURL      string `json:"company_url,omitempty"`
	CompanyLinkedIn string `json:"company_linkedin,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
}

// Education is one entry in a profile's education history.
type Education struct {
	School       string `json:"school"`
	Degree       string `json:"degree,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
}

// Validate checks the minimum fields downstream stages depend on.
func (p *EnrichmentProfile) Validate() error {
	if p == nil {
		return eris.New("enrichment profile is nil")
	}
	if p.DisplayName() == "" {
		return eris.New("enrichment profile has no name")
	}
	return nil
}

// DisplayName returns the best available full name.
func (p *EnrichmentProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// CurrentPosition returns the most recent position, or nil.
func (p *EnrichmentProfile) CurrentPosition() *Position {
	if len(p.Positions) == 0 {
		return nil
	}
	return &p.Positions[0]
}

// PrimaryEmail returns the first known email address, if any.
func (p *EnrichmentProfile) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}
