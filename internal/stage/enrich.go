package stage

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/proapis"
)

// Enricher resolves a lead's profile reference into a structured
// enrichment profile.
type Enricher struct {
	store       store.Store
	profiles    proapis.Client
	bypassCache bool
}

// NewEnricher creates the enrichment stage executor.
func NewEnricher(st store.Store, profiles proapis.Client, bypassCache bool) *Enricher {
	return &Enricher{store: st, profiles: profiles, bypassCache: bypassCache}
}

// Execute fetches profile details for the lead and returns the mapped
// enrichment profile.
func (e *Enricher) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, eris.Wrap(err, "stage: decode enrich payload")
	}

	lead, err := e.store.GetLead(ctx, p.LeadID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load lead %s", p.LeadID)
	}

	slug, err := proapis.ProfileSlug(lead.ProfileRef)
	if err != nil {
		return nil, err
	}

	zap.L().Info("enriching lead",
		zap.String("lead_id", lead.ID),
		zap.String("profile_id", slug))

	resp, err := e.profiles.ProfileDetails(ctx, proapis.ProfileDetailsRequest{
		ProfileID:   slug,
		ProfileType: "personal",
		BypassCache: e.bypassCache,
		ContactInfo: true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: fetch profile details for %s", slug)
	}

	profile := profileFromDetails(resp)
	if err := profile.Validate(); err != nil {
		return nil, eris.Wrapf(err, "stage: enrichment for lead %s", p.LeadID)
	}

	return json.Marshal(EnrichOutput{Profile: profile})
}

func profileFromDetails(resp *proapis.ProfileDetailsResponse) *model.EnrichmentProfile {
	profile := &model.EnrichmentProfile{
		ProfileID: resp.ProfileID,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
		FullName:  resp.FullName,
		Headline:  resp.SubTitle,
		Location:  resp.Location.Default,
		Summary:   resp.Summary,
	}

	for _, group := range resp.PositionGroups {
		for _, role := range group.Profiles {
			profile.Positions = append(profile.Positions, model.Position{
				Title:           role.Title,
				Company:         group.Company.Name,
				CompanyURL:      group.Company.URL,
				CompanyLinkedIn: group.Company.LinkedInURL,
				StartDate:       role.StartDate,
				EndDate:         role.EndDate,
			})
		}
	}

	for _, edu := range resp.Education {
		profile.Education = append(profile.Education, model.Education{
			School:       edu.School,
			Degree:       edu.Degree,
			FieldOfStudy: edu.FieldOfStudy,
		})
	}

	for _, skill := range resp.Skills {
		if skill.Name != "" {
			profile.Skills = append(profile.Skills, skill.Name)
		}
	}

	if resp.Contact != nil {
		profile.Emails = append(profile.Emails, resp.Contact.Emails...)
	}

	return profile
}
