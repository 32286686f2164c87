// Package registry holds the prompt templates that drive every model call in
// the pipeline. Built-in defaults can be overridden per deployment from a
// YAML file, which lets prompt iteration happen without a rebuild.
package registry

import (
	"bytes"
	"os"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Template names recognized by the registry.
const (
	PromptResearchExtract      = "research_extract"
	PromptResearchCompany      = "research_company"
	PromptResearchReport       = "research_report"
	PromptEmailInitialSubject  = "email_initial_subject"
	PromptEmailInitialBody     = "email_initial_body"
	PromptEmailFollowupSubject = "email_followup_subject"
	PromptEmailFollowupBody    = "email_followup_body"
	PromptLandingPage          = "landing_page"
	PromptProfileCompanyInfo   = "profile_company_info"
	PromptProfileBranding      = "profile_branding"
	PromptProfileMarketing     = "profile_marketing"
	PromptProfileExtract       = "profile_extract"
)

var defaults = map[string]string{
	PromptResearchExtract: `You are analyzing enriched LinkedIn profile data. Extract the following information as a JSON object with exactly these keys:

- name: Full name of the person
- title: Current job title
- linkedinProfileUrl: Their LinkedIn profile URL
- currentCompany: Name of their current company
- currentCompanyLinkedin: LinkedIn URL of their current company (if available)
- currentCompanyUrl: Website URL of their current company (if available)
- location: Their location/city
- education: Summary of their education background

Here is the unstructured enrichment data:
{{.EnrichmentJSON}}

Extract as much information as possible. If a field is not available, return null. Return ONLY the JSON object, nothing else.`,

	PromptResearchCompany: `Research the company "{{.Company}}"{{if .CompanyURL}} ({{.CompanyURL}}){{end}}.

Provide comprehensive information about:
1. What they do (products/services)
2. Who their customers are (target market and notable clients)
3. Where they are based (headquarters location)
4. How big they are (employee count, revenue if available)
5. Any recent news or announcements (last 6 months)
6. Recent LinkedIn posts or updates
7. Recent Twitter/X posts or updates
8. Recent YouTube videos or content
9. Recent blog posts or thought leadership

Be thorough and detailed in your research.`,

	PromptResearchReport: `You are a sales research analyst. Your job is to analyze a LEAD and determine why they would be interested in the CLIENT's offering. The goal is to create hyper-relevant, personalized cold outreach that doesn't feel personalized - it should just feel RELEVANT.

LEAD PROFILE:
{{.LeadProfileJSON}}

LEAD'S CURRENT COMPANY RESEARCH:
{{.CompanyResearch}}

{{.ClientContext}}

Based on this information, generate a comprehensive research report in the following markdown format:

# Lead Research: [Lead Name]

## Lead Profile
- Name: [Name]
- Title: [Title]
- Company: [Current Company]
- LinkedIn: [LinkedIn URL]
- Company LinkedIn: [Company LinkedIn if available]
- Company Website: [Company URL if available]
- Location: [Location]
- Education: [Education summary]

## Company Analysis
[Detailed analysis of what the lead's company does, their customers, size, recent activities, challenges they might face in their industry]

## Why They'd Be Interested
[Analyze the lead's role, their company's situation, and explain specifically why the CLIENT's solution would be relevant to them. Focus on pain points, challenges, and how the CLIENT addresses them. Be specific and thoughtful.]

## Recommended Talking Points
[List 3-5 specific talking points that connect the CLIENT's value proposition to the LEAD's likely challenges and interests. These should be concrete and actionable for a sales conversation.]

## Recommended Assets to Share
[Based on the CLIENT's marketing materials, recommend which specific assets would be most relevant to this lead and why. If no materials are available, suggest "No specific assets documented yet - consider sharing general company overview."]

## Recommended Testimonials to Share
[Based on the CLIENT's testimonials, recommend which testimonials would resonate most with this lead based on industry, role, or use case similarity. If no testimonials are available, suggest "No testimonials documented yet - consider sharing case study or success metrics."]

Generate a thorough, insightful report that would help a salesperson have a highly relevant conversation with this lead.`,

	PromptEmailInitialSubject: `You are writing a cold email subject line for {{.ClientName}} to reach out to a lead.

RESEARCH REPORT:
{{.Research}}

Write a subject line that:
- Is 5-8 words max
- References something specific from the research (their company, a pain point, or relevant news)
- Sounds natural, not sales-y
- Avoids phrases like "Quick question", "Touching base", "Following up"
- Makes them curious enough to open

Return ONLY the subject line, nothing else.`,

	PromptEmailInitialBody: `You are writing a cold email body for {{.ClientName}} to reach out to a lead.

RESEARCH REPORT:
{{.Research}}

CLIENT INFO:
- Name: {{.ClientName}}
- Value Proposition: {{.ValueProposition}}
- What they do: {{.CompanySummary}}
- Calendar Booking Link: {{.CalendarURL}}

Write an email body that:
- Is exactly 2-3 sentences
- References a specific talking point or insight from the research
- Explains how {{.ClientName}} can help with a relevant pain point
- Ends with a call to action encouraging them to book time on the calendar at {{.CalendarURL}}
- The calendar CTA should be natural and conversational (e.g., "Book some time here: [link]" or "Grab a slot on my calendar: [link]")
- Sounds conversational and direct
- AVOIDS phrases like "Hope this finds you well", "I hope this email finds you", "Reaching out to", "I wanted to touch base"
- AVOIDS overly formal or sales-y language

Return ONLY the email body (2-3 sentences with the calendar link at the end), nothing else.`,

	PromptEmailFollowupSubject: `You are writing a followup email subject line for {{.ClientName}}. The lead didn't respond to the initial email.

RESEARCH REPORT:
{{.Research}}

INITIAL EMAIL SUBJECT: {{.InitialSubject}}

Write a followup subject line that:
- Is 5-8 words max
- Takes a different angle than the initial subject
- References something else from the research
- Sounds natural and conversational
- Makes them want to open it

Return ONLY the subject line, nothing else.`,

	PromptEmailFollowupBody: `You are writing a followup email body for {{.ClientName}}. The lead didn't respond to the initial email.

RESEARCH REPORT:
{{.Research}}

INITIAL EMAIL BODY: {{.InitialBody}}

CLIENT INFO:
- Name: {{.ClientName}}
- Value Proposition: {{.ValueProposition}}
- Calendar Booking Link: {{.CalendarURL}}

Write a followup email body that:
- Is exactly 2-3 sentences
- Takes a different angle or adds new information
- References a different talking point from the research
- Acknowledges they're busy without being apologetic
- Ends with a call to action encouraging them to book time on the calendar at {{.CalendarURL}}
- The calendar CTA should be natural and conversational (e.g., "Here's my calendar if you want to chat: [link]" or "Book a time here: [link]")
- Sounds conversational and direct
- AVOIDS phrases like "Just following up", "Bumping this up", "Circling back", "Did you get my last email?"

Return ONLY the email body (2-3 sentences with the calendar link at the end), nothing else.`,

	PromptLandingPage: `You are creating a V0 prompt to generate a hyper-relevant landing page for a lead.

RESEARCH REPORT:
{{.Research}}

CLIENT INFO:
- Name: {{.ClientName}}
- Website: {{.Website}}
- Industry: {{.Industry}}
- Company Summary: {{.CompanySummary}}
- Target Customer: {{.TargetCustomer}}
- Value Proposition: {{.ValueProposition}}

FEATURES/SERVICES:
{{.Features}}

TESTIMONIALS:
{{.Testimonials}}

Write a detailed V0 prompt to generate a landing page that:
1. Speaks directly to the lead's pain points and interests (from the research)
2. Highlights how {{.ClientName}} solves their specific challenges
3. Uses the talking points from the research
4. Features the client's services/features that are most relevant
5. Includes relevant testimonials if available
6. Has a clear, simple call to action
7. Feels personalized without being creepy

The landing page should be clean, modern, and conversion-focused. Include sections for:
- Hero section (with personalized headline addressing their specific challenge)
- Problem/solution fit (why this is relevant to them)
- Key features/benefits (only the most relevant ones)
- Social proof (testimonials if available)
- Clear CTA

Write a comprehensive V0 prompt that will generate this landing page. Be specific about the messaging and structure.`,

	PromptProfileCompanyInfo: `You are tasked with researching {{.Name}} ({{.Domain}}). Please research them thoroughly and generate a report answering the following questions:

- industry
- company summary (ie high level what they do)
- target customer (who do they sell to, who have they sold to, notable customers)
- value proposition (why should customers care about them, what makes them special?)
- head quarter location
- estimated head count
- features or services offered
- testimonials
- linkedin url
- twitter url

Format your response as structured as possible. Every field here is important to capture, but if you're unable to just return "I couldn't find anything for <field name>".`,

	PromptProfileBranding: `You are tasked with finding public links/urls to branding assets for {{.Name}} ({{.Domain}}). Please research thoroughly and a list of links that point to their branding assets. You should capture the asset type (logo, wordmark, etc) and give a url of where it lives.`,

	PromptProfileMarketing: `You are tasked with finding public marketing material for {{.Name}} ({{.Domain}}). Please research thoroughly and provide a list of links that point to their marketing assets. You should capture the url, title, description, preview image url, and asset type (ie blog post, podcast, video, tweet, white paper, etc.)`,

	PromptProfileExtract: `Extract structured data from the following research about {{.Name}}:

COMPANY INFO RESEARCH:
{{.CompanyInfo}}

BRANDING RESEARCH:
{{.Branding}}

MARKETING RESEARCH:
{{.Marketing}}

Extract all the information as a JSON object with these keys:
- companyInfo: {industry, companySummary, targetCustomer, valueProposition, location, headcount, linkedinUrl, twitterUrl}
- features: [{title, description}]
- testimonials: [{name, title, quote}]
- marketingMaterials: [{url, title, description, assetType}]

For fields you can't find, return null. For lists, return empty arrays if nothing is found. Return ONLY the JSON object, nothing else.`,
}

// Prompts renders named templates against per-call data.
type Prompts struct {
	templates map[string]*template.Template
}

// Load builds the registry from defaults, applying overrides from the YAML
// file at path when it is non-empty. Overrides for unknown template names are
// skipped with a warning rather than rejected, so a newer override file can
// be shared across versions.
func Load(path string) (*Prompts, error) {
	texts := make(map[string]string, len(defaults))
	for name, text := range defaults {
		texts[name] = text
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: read prompt overrides %s", path)
		}

		var file struct {
			Prompts map[string]string `yaml:"prompts"`
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, eris.Wrapf(err, "registry: parse prompt overrides %s", path)
		}

		for name, text := range file.Prompts {
			if _, known := defaults[name]; !known {
				zap.L().Warn("registry: skipping unknown prompt override",
					zap.String("prompt", name),
				)
				continue
			}
			texts[name] = text
		}
	}

	templates := make(map[string]*template.Template, len(texts))
	for name, text := range texts {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: parse prompt %s", name)
		}
		templates[name] = tmpl
	}

	return &Prompts{templates: templates}, nil
}

// MustDefaults builds the registry from built-in templates only. The defaults
// are compile-time constants, so a parse failure is a programming error.
func MustDefaults() *Prompts {
	p, err := Load("")
	if err != nil {
		panic(err)
	}
	return p
}

// Render executes the named template with the given data.
func (p *Prompts) Render(name string, data any) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", eris.Errorf("registry: unknown prompt %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", eris.Wrapf(err, "registry: render prompt %s", name)
	}
	return buf.String(), nil
}
