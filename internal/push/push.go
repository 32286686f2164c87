// Package push hands finished leads to the Instantly campaign platform,
// carrying the generated assets as custom variables.
package push

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// Pusher maps leads from the store onto Instantly list entries.
type Pusher struct {
	store     store.Store
	instantly instantly.Client
	listID    string
}

// New creates a Pusher targeting the given default list.
func New(st store.Store, ic instantly.Client, listID string) *Pusher {
	return &Pusher{store: st, instantly: ic, listID: listID}
}

// PushLead sends one lead to Instantly. listID overrides the default list
// when non-empty. The lead must be enriched and carry a contact email.
func (p *Pusher) PushLead(ctx context.Context, leadID, listID string) (*instantly.PushResult, error) {
	if listID == "" {
		listID = p.listID
	}

	lead, err := p.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "push: load lead %s", leadID)
	}
	if lead.Enrichment == nil {
		return nil, eris.Errorf("push: lead %s has no enrichment profile", leadID)
	}

	email := lead.Enrichment.PrimaryEmail()
	if email == "" {
		return nil, eris.Errorf("push: lead %s has no contact email", leadID)
	}

	client, err := p.store.GetClient(ctx, lead.ClientID)
	if err != nil {
		return nil, eris.Wrapf(err, "push: load client %s", lead.ClientID)
	}

	assets, err := p.store.ListAssets(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "push: list assets for lead %s", leadID)
	}

	// Every generated asset rides along under its own name, so campaign
	// templates can reference {{initial_outreach_subject}} directly.
	vars := make(map[string]string, len(assets)+6)
	for _, asset := range assets {
		vars[asset.Name] = asset.Content
	}
	if lead.Research != "" {
		vars["research_report"] = lead.Research
	}
	enrichmentJSON, err := json.Marshal(lead.Enrichment)
	if err != nil {
		return nil, eris.Wrapf(err, "push: marshal enrichment for lead %s", leadID)
	}
	vars["enrichment_data"] = string(enrichmentJSON)
	vars["client_name"] = client.Name
	vars["client_website"] = client.Website
	vars["client_industry"] = client.Industry
	vars["linkedin_url"] = lead.ProfileRef

	company := client.Name
	website := client.Website
	if pos := lead.Enrichment.CurrentPosition(); pos != nil {
		if pos.Company != "" {
			company = pos.Company
		}
		if pos.CompanyURL != "" {
			website = pos.CompanyURL
		}
	}

	result, err := p.instantly.PushLead(ctx, instantly.Lead{
		Email:             email,
		FirstName:         lead.Enrichment.FirstName,
		LastName:          lead.Enrichment.LastName,
		CompanyName:       company,
		Website:           website,
		Personalization:   lead.Research,
		ListID:            listID,
		SkipIfInWorkspace: true,
		SkipIfInList:      true,
		CustomVariables:   vars,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "push: lead %s", leadID)
	}

	zap.L().Info("lead pushed to instantly",
		zap.String("lead_id", leadID),
		zap.String("list_id", listID),
		zap.String("email", email))
	return result, nil
}
