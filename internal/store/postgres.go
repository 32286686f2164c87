package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations. The orchestrator re-reads
// the lead and flips its marker around every stage invocation.
var preparedStatements = map[string]string{
	"get_lead":          `SELECT id, client_id, profile_ref, stage_marker, enrichment, research, want_emails, want_landing_page, created_at, updated_at FROM leads WHERE id = $1`,
	"transition_stage":  `UPDATE leads SET stage_marker = $1, updated_at = $2 WHERE id = $3 AND stage_marker = $4`,
	"update_enrichment": `UPDATE leads SET enrichment = $1, updated_at = $2 WHERE id = $3`,
	"update_research":   `UPDATE leads SET research = $1, updated_at = $2 WHERE id = $3`,
	"count_assets":      `SELECT COUNT(*) FROM lead_assets WHERE lead_id = $1 AND kind = ANY($2)`,
	"get_client":        `SELECT id, name, website, details, profile_status, profile_error, created_at, updated_at FROM clients WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, primarily for tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	website        TEXT NOT NULL DEFAULT '',
	details        JSONB NOT NULL,
	profile_status TEXT NOT NULL DEFAULT 'pending',
	profile_error  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL REFERENCES clients(id),
	profile_ref  TEXT NOT NULL,
	stage_marker TEXT NOT NULL DEFAULT '',
	enrichment   JSONB,
	research     TEXT NOT NULL DEFAULT '',
	want_emails  BOOLEAN NOT NULL DEFAULT true,
	want_landing_page BOOLEAN NOT NULL DEFAULT true,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (client_id, profile_ref)
);

CREATE TABLE IF NOT EXISTS lead_assets (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (lead_id, name)
);

CREATE INDEX IF NOT EXISTS idx_leads_client_id ON leads(client_id);
CREATE INDEX IF NOT EXISTS idx_leads_stage_marker ON leads(stage_marker);
CREATE INDEX IF NOT EXISTS idx_lead_assets_lead_id ON lead_assets(lead_id);
CREATE INDEX IF NOT EXISTS idx_lead_assets_lead_kind ON lead_assets(lead_id, kind);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Clients

func (s *PostgresStore) CreateClient(ctx context.Context, c *model.Client) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ProfileStatus == "" {
		c.ProfileStatus = model.ProfilePending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	details, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal client")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO clients (id, name, website, details, profile_status, profile_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Website, details, string(c.ProfileStatus), c.ProfileError, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "client %s", c.ID)
		}
		return eris.Wrap(err, "postgres: insert client")
	}
	return nil
}

func (s *PostgresStore) GetClient(ctx context.Context, clientID string) (*model.Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, website, details, profile_status, profile_error, created_at, updated_at FROM clients WHERE id = $1`,
		clientID,
	)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "client %s", clientID)
		}
		return nil, eris.Wrapf(err, "postgres: get client %s", clientID)
	}
	return c, nil
}

func (s *PostgresStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, website, details, profile_status, profile_error, created_at, updated_at FROM clients ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list clients")
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan client")
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "postgres: list clients iterate")
}

func (s *PostgresStore) UpdateClientProfile(ctx context.Context, c *model.Client) error {
	c.UpdatedAt = time.Now().UTC()

	details, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal client")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE clients SET name = $1, website = $2, details = $3, profile_status = $4, profile_error = $5, updated_at = $6 WHERE id = $7`,
		c.Name, c.Website, details, string(c.ProfileStatus), c.ProfileError, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update client profile %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "client %s", c.ID)
	}
	return nil
}

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	var details []byte
	var status string

	if err := row.Scan(&c.ID, &c.Name, &c.Website, &details, &status, &c.ProfileError, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	// The details blob carries the full profile; authoritative columns win.
	id, name, website, profErr := c.ID, c.Name, c.Website, c.ProfileError
	created, updated := c.CreatedAt, c.UpdatedAt
	if err := json.Unmarshal(details, &c); err != nil {
		return nil, eris.Wrap(err, "unmarshal client details")
	}
	c.ID, c.Name, c.Website, c.ProfileError = id, name, website, profErr
	c.ProfileStatus = model.ProfileStatus(status)
	c.CreatedAt, c.UpdatedAt = created, updated
	return &c, nil
}

// Leads

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.StageMarker = model.StageNone

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, client_id, profile_ref, stage_marker, research, want_emails, want_landing_page, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lead.ID, lead.ClientID, lead.ProfileRef, string(lead.StageMarker), "", lead.WantEmails, lead.WantLandingPage, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "lead %s/%s", lead.ClientID, lead.ProfileRef)
		}
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

func (s *PostgresStore) BulkCreateLeads(ctx context.Context, leads []model.Lead) (int, error) {
	rows := make([][]any, len(leads))
	now := time.Now().UTC()
	for i, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows[i] = []any{id, l.ClientID, l.ProfileRef, "", "", l.WantEmails, l.WantLandingPage, now, now}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      []string{"id", "client_id", "profile_ref", "stage_marker", "research", "want_emails", "want_landing_page", "created_at", "updated_at"},
		ConflictKeys: []string{"client_id", "profile_ref"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk create leads")
	}
	return int(n), nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	var l model.Lead
	var marker string
	var enrichment []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, client_id, profile_ref, stage_marker, enrichment, research, want_emails, want_landing_page, created_at, updated_at FROM leads WHERE id = $1`,
		leadID,
	).Scan(&l.ID, &l.ClientID, &l.ProfileRef, &marker, &enrichment, &l.Research, &l.WantEmails, &l.WantLandingPage, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}

	l.StageMarker = model.StageMarker(marker)
	if len(enrichment) > 0 {
		l.Enrichment = &model.EnrichmentProfile{}
		if err := json.Unmarshal(enrichment, l.Enrichment); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichment")
		}
	}
	return &l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, client_id, profile_ref, stage_marker, enrichment, research, want_emails, want_landing_page, created_at, updated_at FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ClientID != "" {
		query += fmt.Sprintf(` AND client_id = $%d`, argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}
	if filter.Marker != "" {
		query += fmt.Sprintf(` AND stage_marker = $%d`, argIdx)
		args = append(args, string(filter.Marker))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var marker string
		var enrichment []byte

		if err := rows.Scan(&l.ID, &l.ClientID, &l.ProfileRef, &marker, &enrichment, &l.Research, &l.WantEmails, &l.WantLandingPage, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l.StageMarker = model.StageMarker(marker)
		if len(enrichment) > 0 {
			l.Enrichment = &model.EnrichmentProfile{}
			if err := json.Unmarshal(enrichment, l.Enrichment); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal enrichment")
			}
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateEnrichment(ctx context.Context, leadID string, profile *model.EnrichmentProfile) error {
	enrichment, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET enrichment = $1, updated_at = $2 WHERE id = $3`,
		enrichment, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update enrichment %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func (s *PostgresStore) UpdateResearch(ctx context.Context, leadID string, research string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET research = $1, updated_at = $2 WHERE id = $3`,
		research, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update research %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func (s *PostgresStore) TransitionStage(ctx context.Context, leadID string, from, to model.StageMarker) error {
	if !from.CanTransition(to) {
		return eris.Errorf("postgres: illegal stage transition %q -> %q", from, to)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET stage_marker = $1, updated_at = $2 WHERE id = $3 AND stage_marker = $4`,
		string(to), time.Now().UTC(), leadID, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition stage %s", leadID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// CAS lost. Distinguish a missing lead from a concurrent transition.
	var current string
	err = s.pool.QueryRow(ctx, `SELECT stage_marker FROM leads WHERE id = $1`, leadID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: transition stage %s", leadID)
	}
	return eris.Wrapf(ErrStageConflict, "lead %s: expected %q, found %q", leadID, from, current)
}

func (s *PostgresStore) CountLeadsByStage(ctx context.Context, clientID string) (map[model.StageMarker]int, error) {
	query := `SELECT stage_marker, COUNT(*) FROM leads`
	args := []any{}
	if clientID != "" {
		query += ` WHERE client_id = $1`
		args = append(args, clientID)
	}
	query += ` GROUP BY stage_marker`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count leads by stage")
	}
	defer rows.Close()

	counts := make(map[model.StageMarker]int)
	for rows.Next() {
		var marker string
		var n int
		if err := rows.Scan(&marker, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage count")
		}
		counts[model.StageMarker(marker)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count leads iterate")
}

// Assets

func (s *PostgresStore) CreateAssets(ctx context.Context, assets []model.LeadAsset) error {
	rows := make([][]any, len(assets))
	now := time.Now().UTC()
	for i, a := range assets {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows[i] = []any{id, a.LeadID, string(a.Kind), a.Name, a.Content, now}
	}

	// ON CONFLICT DO NOTHING keeps a replayed stage from doubling assets.
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "lead_assets",
		Columns:      []string{"id", "lead_id", "kind", "name", "content", "created_at"},
		ConflictKeys: []string{"lead_id", "name"},
		DoNothing:    true,
	}, rows)
	return eris.Wrap(err, "postgres: create assets")
}

func (s *PostgresStore) ListAssets(ctx context.Context, leadID string) ([]model.LeadAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, kind, name, content, created_at FROM lead_assets WHERE lead_id = $1 ORDER BY created_at, name`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list assets %s", leadID)
	}
	defer rows.Close()

	var assets []model.LeadAsset
	for rows.Next() {
		var a model.LeadAsset
		var kind string
		if err := rows.Scan(&a.ID, &a.LeadID, &kind, &a.Name, &a.Content, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan asset")
		}
		a.Kind = model.AssetKind(kind)
		assets = append(assets, a)
	}
	return assets, eris.Wrap(rows.Err(), "postgres: list assets iterate")
}

func (s *PostgresStore) CountAssetsByKind(ctx context.Context, leadID string, kinds []model.AssetKind) (int, error) {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lead_assets WHERE lead_id = $1 AND kind = ANY($2)`,
		leadID, kindStrs,
	).Scan(&count)
	return count, eris.Wrapf(err, "postgres: count assets %s", leadID)
}
