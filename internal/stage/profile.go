package stage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/registry"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

// Profiler fleshes out a client record from its name and website: three
// research passes (company info, branding, marketing presence) followed by a
// structured extract that fills the client's outreach fields.
//
// Unlike the lead stages the profiler owns its persistence: it moves the
// client's profile status through running/completed/failed itself, since no
// orchestrator supervises client profiling.
type Profiler struct {
	store     store.Store
	anthropic anthropic.Client
	search    perplexity.Client
	prompts   *registry.Prompts
	models    Models
}

// NewProfiler creates the client profiling stage executor.
func NewProfiler(st store.Store, ac anthropic.Client, search perplexity.Client, prompts *registry.Prompts, models Models) *Profiler {
	return &Profiler{store: st, anthropic: ac, search: search, prompts: prompts, models: models}
}

// ProfileOutput is the client profiling stage result.
type ProfileOutput struct {
	ClientID     string `json:"client_id"`
	Features     int    `json:"features"`
	Testimonials int    `json:"testimonials"`
}

// profileExtract is the JSON document the extract prompt asks for.
type profileExtract struct {
	Industry         string `json:"industry"`
	CompanySummary   string `json:"company_summary"`
	TargetCustomer   string `json:"target_customer"`
	ValueProposition string `json:"value_proposition"`
	Location         string `json:"location"`
	Headcount        int    `json:"headcount"`
	LinkedInURL      string `json:"linkedin_url"`
	TwitterURL       string `json:"twitter_url"`
	Features         []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"features"`
	Testimonials []struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		Quote string `json:"quote"`
	} `json:"testimonials"`
}

// Execute profiles the client named in the payload. Research or extraction
// failures are written back as a failed profile status before the error is
// returned.
func (p *Profiler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req ClientPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, eris.Wrap(err, "stage: decode profile payload")
	}

	client, err := p.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: load client %s", req.ClientID)
	}

	client.ProfileStatus = model.ProfileRunning
	client.ProfileError = ""
	if err := p.store.UpdateClientProfile(ctx, client); err != nil {
		return nil, eris.Wrapf(err, "stage: mark client %s profiling", client.ID)
	}

	extract, err := p.profile(ctx, client)
	if err != nil {
		client.ProfileStatus = model.ProfileFailed
		client.ProfileError = err.Error()
		if updateErr := p.store.UpdateClientProfile(ctx, client); updateErr != nil {
			zap.L().Error("failed to record profile failure",
				zap.String("client_id", client.ID),
				zap.Error(updateErr))
		}
		return nil, err
	}

	applyExtract(client, extract)
	client.ProfileStatus = model.ProfileCompleted
	client.ProfileError = ""
	if err := p.store.UpdateClientProfile(ctx, client); err != nil {
		return nil, eris.Wrapf(err, "stage: save client %s profile", client.ID)
	}

	zap.L().Info("client profiled",
		zap.String("client_id", client.ID),
		zap.String("industry", client.Industry),
		zap.Int("features", len(client.Features)),
		zap.Int("testimonials", len(client.Testimonials)))

	return json.Marshal(ProfileOutput{
		ClientID:     client.ID,
		Features:     len(client.Features),
		Testimonials: len(client.Testimonials),
	})
}

func (p *Profiler) profile(ctx context.Context, client *model.Client) (*profileExtract, error) {
	domain := strings.TrimPrefix(strings.TrimPrefix(client.Website, "https://"), "http://")
	data := map[string]any{
		"Name":   client.Name,
		"Domain": domain,
	}

	companyInfo, err := p.research(ctx, registry.PromptProfileCompanyInfo, data)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: company info research for %s", client.Name)
	}
	branding, err := p.research(ctx, registry.PromptProfileBranding, data)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: branding research for %s", client.Name)
	}
	marketing, err := p.research(ctx, registry.PromptProfileMarketing, data)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: marketing research for %s", client.Name)
	}

	prompt, err := p.prompts.Render(registry.PromptProfileExtract, map[string]any{
		"Name":        client.Name,
		"CompanyInfo": companyInfo,
		"Branding":    branding,
		"Marketing":   marketing,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.models.Sonnet,
		MaxTokens: p.models.MaxTokens,
		Messages:  anthropic.UserMessage(prompt),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "stage: profile extract for %s", client.Name)
	}
	resp.Usage.LogCost(p.models.Sonnet, "profile_extract")

	var extract profileExtract
	if err := json.Unmarshal([]byte(resp.JSONText()), &extract); err != nil {
		return nil, eris.Wrapf(err, "stage: decode profile extract for %s", client.Name)
	}
	return &extract, nil
}

func (p *Profiler) research(ctx context.Context, promptName string, data map[string]any) (string, error) {
	prompt, err := p.prompts.Render(promptName, data)
	if err != nil {
		return "", err
	}
	return p.search.Ask(ctx, prompt)
}

// applyExtract merges extracted fields into the client without clobbering
// values an operator set by hand.
func applyExtract(client *model.Client, extract *profileExtract) {
	if client.Industry == "" {
		client.Industry = extract.Industry
	}
	if client.CompanySummary == "" {
		client.CompanySummary = extract.CompanySummary
	}
	if client.TargetCustomer == "" {
		client.TargetCustomer = extract.TargetCustomer
	}
	if client.ValueProposition == "" {
		client.ValueProposition = extract.ValueProposition
	}
	if client.Location == "" {
		client.Location = extract.Location
	}
	if client.Headcount == 0 {
		client.Headcount = extract.Headcount
	}
	if client.LinkedInURL == "" {
		client.LinkedInURL = extract.LinkedInURL
	}
	if client.TwitterURL == "" {
		client.TwitterURL = extract.TwitterURL
	}
	if len(client.Features) == 0 {
		for _, f := range extract.Features {
			client.Features = append(client.Features, model.Feature{Title: f.Title, Description: f.Description})
		}
	}
	if len(client.Testimonials) == 0 {
		for _, t := range extract.Testimonials {
			client.Testimonials = append(client.Testimonials, model.Testimonial{Name: t.Name, Title: t.Title, Quote: t.Quote})
		}
	}
}
