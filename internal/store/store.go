package store

import (
	"context"
	"errors"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Sentinel errors returned by Store implementations. Callers match with
// errors.Is; implementations wrap them with backend context.
var (
	ErrNotFound = errors.New("not found")

	// ErrStageConflict means a compare-and-set stage transition lost: the
	// lead's marker no longer matches the expected value, usually because a
	// concurrent run moved it first.
	ErrStageConflict = errors.New("stage marker conflict")

	// ErrDuplicate means a unique constraint rejected the insert.
	ErrDuplicate = errors.New("duplicate record")
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	ClientID string            `json:"client_id,omitempty"`
	Marker   model.StageMarker `json:"marker,omitempty"`
	Limit    int               `json:"limit,omitempty"`
	Offset   int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Clients
	CreateClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, clientID string) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	UpdateClientProfile(ctx context.Context, c *model.Client) error

	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	BulkCreateLeads(ctx context.Context, leads []model.Lead) (int, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateEnrichment(ctx context.Context, leadID string, profile *model.EnrichmentProfile) error
	UpdateResearch(ctx context.Context, leadID string, research string) error
	// TransitionStage moves the lead's stage marker from the expected value
	// to the new one atomically. Returns ErrStageConflict when the stored
	// marker no longer matches from.
	TransitionStage(ctx context.Context, leadID string, from, to model.StageMarker) error
	CountLeadsByStage(ctx context.Context, clientID string) (map[model.StageMarker]int, error)

	// Assets
	CreateAssets(ctx context.Context, assets []model.LeadAsset) error
	ListAssets(ctx context.Context, leadID string) ([]model.LeadAsset, error)
	CountAssetsByKind(ctx context.Context, leadID string, kinds []model.AssetKind) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
