package model

import (
	"fmt"
	"strings"
	"time"
)

// Client is the customer on whose behalf leads are worked. It is read-only
// from the orchestrator's perspective; only the client profiler and manual
// edits mutate it.
type Client struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Website         string        `json:"website,omitempty"`
	Industry        string        `json:"industry,omitempty"`
	CompanySummary  string        `json:"company_summary,omitempty"`
	TargetCustomer  string        `json:"target_customer,omitempty"`
	ValueProposition string       `json:"value_proposition,omitempty"`
	Location        string        `json:"location,omitempty"`
	Headcount       int           `json:"headcount,omitempty"`
	CalendarURL     string        `json:"calendar_url,omitempty"`
	LinkedInURL     string        `json:"linkedin_url,omitempty"`
	TwitterURL      string        `json:"twitter_url,omitempty"`
	Features        []Feature     `json:"features,omitempty"`
	Testimonials    []Testimonial `json:"testimonials,omitempty"`
	Materials       []Material    `json:"materials,omitempty"`
	ProfileStatus   ProfileStatus `json:"profile_status,omitempty"`
	ProfileError    string        `json:"profile_error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ProfileStatus tracks the automated client profiling lifecycle.
type ProfileStatus string

const (
	ProfilePending   ProfileStatus = "pending"
	ProfileRunning   ProfileStatus = "running"
	ProfileCompleted ProfileStatus = "completed"
	ProfileFailed    ProfileStatus = "failed"
)

// Feature is one product feature or service the client offers.
type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Testimonial is a customer quote usable in outreach content.
type Testimonial struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Quote string `json:"quote"`
}

// Material is a marketing asset (case study, deck, video) with a public URL.
type Material struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	AssetType   string `json:"asset_type,omitempty"`
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PromptContext renders the client as the context block fed to the research
// and generation prompts.
func (c *Client) PromptContext() string {
	var b strings.Builder

	b.WriteString("CLIENT INFORMATION:\n")
	fmt.Fprintf(&b, "- Name: %s\n", c.Name)
	fmt.Fprintf(&b, "- Website: %s\n", orNA(c.Website))
	fmt.Fprintf(&b, "- Industry: %s\n", orNA(c.Industry))
	fmt.Fprintf(&b, "- Company Summary: %s\n", orNA(c.CompanySummary))
	fmt.Fprintf(&b, "- Target Customer: %s\n", orNA(c.TargetCustomer))
	fmt.Fprintf(&b, "- Value Proposition: %s\n", orNA(c.ValueProposition))
	fmt.Fprintf(&b, "- Location: %s\n", orNA(c.Location))
	if c.Headcount > 0 {
		fmt.Fprintf(&b, "- Headcount: %d\n", c.Headcount)
	} else {
		b.WriteString("- Headcount: N/A\n")
	}

	b.WriteString("\nFEATURES/SERVICES OFFERED:\n")
	if len(c.Features) == 0 {
		b.WriteString("No features/services documented yet.\n")
	}
	for _, f := range c.Features {
		fmt.Fprintf(&b, "- %s: %s\n", f.Title, f.Description)
	}

	b.WriteString("\nTESTIMONIALS:\n")
	if len(c.Testimonials) == 0 {
		b.WriteString("No testimonials available yet.\n")
	}
	for _, t := range c.Testimonials {
		fmt.Fprintf(&b, "- %s (%s): %q\n", t.Name, t.Title, t.Quote)
	}

	b.WriteString("\nMARKETING MATERIALS:\n")
	if len(c.Materials) == 0 {
		b.WriteString("No marketing materials available yet.\n")
	}
	for _, m := range c.Materials {
		fmt.Fprintf(&b, "- %s (%s): %s - %s\n", m.Title, orNA(m.AssetType), m.Description, m.URL)
	}

	return b.String()
}
