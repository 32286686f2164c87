// Package export writes a client's worked leads and generated assets to an
// XLSX workbook for handoff.
package export

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var titleCaser = cases.Title(language.English)

// Label renders a snake_case identifier as a human heading
// ("initial_outreach_subject" → "Initial Outreach Subject").
func Label(s string) string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// Exporter assembles workbooks from the store.
type Exporter struct {
	store store.Store
}

// New creates an Exporter.
func New(st store.Store) *Exporter {
	return &Exporter{store: st}
}

var leadHeaders = []string{
	"Lead ID", "Name", "Title", "Company", "Email", "LinkedIn", "Stage", "Created",
}

var assetHeaders = []string{
	"Lead ID", "Lead Name", "Kind", "Asset", "Content", "Created",
}

// WriteWorkbook writes all of a client's leads and their assets to path as
// an XLSX workbook with a Leads and an Assets sheet.
func (e *Exporter) WriteWorkbook(ctx context.Context, clientID, path string) error {
	leads, err := e.store.ListLeads(ctx, store.LeadFilter{ClientID: clientID})
	if err != nil {
		return eris.Wrapf(err, "export: list leads for client %s", clientID)
	}

	f := xlsx.NewFile()

	leadSheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add leads sheet")
	}
	addRow(leadSheet, leadHeaders...)

	assetSheet, err := f.AddSheet("Assets")
	if err != nil {
		return eris.Wrap(err, "export: add assets sheet")
	}
	addRow(assetSheet, assetHeaders...)

	var assetCount int
	for _, lead := range leads {
		addRow(leadSheet, leadRow(&lead)...)

		assets, err := e.store.ListAssets(ctx, lead.ID)
		if err != nil {
			return eris.Wrapf(err, "export: list assets for lead %s", lead.ID)
		}
		for _, asset := range assets {
			addRow(assetSheet,
				asset.LeadID,
				leadName(&lead),
				Label(string(asset.Kind)),
				Label(asset.Name),
				asset.Content,
				asset.CreatedAt.Format(time.RFC3339),
			)
			assetCount++
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}

	zap.L().Info("workbook exported",
		zap.String("client_id", clientID),
		zap.String("path", path),
		zap.Int("leads", len(leads)),
		zap.Int("assets", assetCount))
	return nil
}

func leadRow(lead *model.Lead) []string {
	var name, title, company, email string
	if lead.Enrichment != nil {
		name = lead.Enrichment.DisplayName()
		if pos := lead.Enrichment.CurrentPosition(); pos != nil {
			title = pos.Title
			company = pos.Company
		}
		email = lead.Enrichment.PrimaryEmail()
	}
	return []string{
		lead.ID,
		name,
		title,
		company,
		email,
		lead.ProfileRef,
		Label(string(lead.StageMarker)),
		lead.CreatedAt.Format(time.RFC3339),
	}
}

func leadName(lead *model.Lead) string {
	if lead.Enrichment == nil {
		return ""
	}
	return lead.Enrichment.DisplayName()
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}
