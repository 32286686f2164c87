package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// single-operator runs where standing up postgres is not worth it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	website        TEXT NOT NULL DEFAULT '',
	details        TEXT NOT NULL,
	profile_status TEXT NOT NULL DEFAULT 'pending',
	profile_error  TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL REFERENCES clients(id),
	profile_ref  TEXT NOT NULL,
	stage_marker TEXT NOT NULL DEFAULT '',
	enrichment   TEXT,
	research     TEXT NOT NULL DEFAULT '',
	want_emails  INTEGER NOT NULL DEFAULT 1,
	want_landing_page INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (client_id, profile_ref)
);

CREATE TABLE IF NOT EXISTS lead_assets (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (lead_id, name)
);

CREATE INDEX IF NOT EXISTS idx_leads_client_id ON leads(client_id);
CREATE INDEX IF NOT EXISTS idx_leads_stage_marker ON leads(stage_marker);
CREATE INDEX IF NOT EXISTS idx_lead_assets_lead_id ON lead_assets(lead_id);
CREATE INDEX IF NOT EXISTS idx_lead_assets_lead_kind ON lead_assets(lead_id, kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Clients

func (s *SQLiteStore) CreateClient(ctx context.Context, c *model.Client) error {
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
		return eris.Wrap(err, "sqlite: marshal client")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, website, details, profile_status, profile_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Website, string(details), string(c.ProfileStatus), c.ProfileError, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrDuplicate, "client %s", c.ID)
		}
		return eris.Wrap(err, "sqlite: insert client")
	}
	return nil
}

func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, details, profile_status, profile_error, created_at, updated_at FROM clients WHERE id = ?`,
		clientID,
	)
	c, err := scanSQLiteClient(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "client %s", clientID)
		}
		return nil, eris.Wrapf(err, "sqlite: get client %s", clientID)
	}
	return c, nil
}

func (s *SQLiteStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website, details, profile_status, profile_error, created_at, updated_at FROM clients ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list clients")
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanSQLiteClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan client")
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "sqlite: list clients iterate")
}

func (s *SQLiteStore) UpdateClientProfile(ctx context.Context, c *model.Client) error {
	c.UpdatedAt = time.Now().UTC()

	details, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal client")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, website = ?, details = ?, profile_status = ?, profile_error = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Website, string(details), string(c.ProfileStatus), c.ProfileError, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update client profile %s", c.ID)
	}
	return checkRowsAffected(res, "client", c.ID)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteClient(row scannable) (*model.Client, error) {
	var c model.Client
	var details, status string

	if err := row.Scan(&c.ID, &c.Name, &c.Website, &details, &status, &c.ProfileError, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	id, name, website, profErr := c.ID, c.Name, c.Website, c.ProfileError
	created, updated := c.CreatedAt, c.UpdatedAt
	if err := json.Unmarshal([]byte(details), &c); err != nil {
		return nil, eris.Wrap(err, "unmarshal client details")
	}
	c.ID, c.Name, c.Website, c.ProfileError = id, name, website, profErr
	c.ProfileStatus = model.ProfileStatus(status)
	c.CreatedAt, c.UpdatedAt = created, updated
	return &c, nil
}

// Leads

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.StageMarker = model.StageNone

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, client_id, profile_ref, stage_marker, research, want_emails, want_landing_page, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.ClientID, lead.ProfileRef, "", "", lead.WantEmails, lead.WantLandingPage, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrDuplicate, "lead %s/%s", lead.ClientID, lead.ProfileRef)
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (s *SQLiteStore) BulkCreateLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk create leads begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	inserted := 0
	for _, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO leads (id, client_id, profile_ref, stage_marker, research, want_emails, want_landing_page, created_at, updated_at)
			 VALUES (?, ?, ?, '', '', ?, ?, ?, ?)
			 ON CONFLICT (client_id, profile_ref) DO NOTHING`,
			id, l.ClientID, l.ProfileRef, l.WantEmails, l.WantLandingPage, now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: bulk create leads insert")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: bulk create leads rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk create leads commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, profile_ref, stage_marker, enrichment, research, want_emails, want_landing_page, created_at, updated_at FROM leads WHERE id = ?`,
		leadID,
	)
	l, err := scanLead(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", leadID)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, client_id, profile_ref, stage_marker, enrichment, research, want_emails, want_landing_page, created_at, updated_at FROM leads WHERE 1=1`
	var args []any

	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.Marker != "" {
		query += ` AND stage_marker = ?`
		args = append(args, string(filter.Marker))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var marker string
	var enrichment sql.NullString

	if err := row.Scan(&l.ID, &l.ClientID, &l.ProfileRef, &marker, &enrichment, &l.Research, &l.WantEmails, &l.WantLandingPage, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}

	l.StageMarker = model.StageMarker(marker)
	if enrichment.Valid && enrichment.String != "" {
		l.Enrichment = &model.EnrichmentProfile{}
		if err := json.Unmarshal([]byte(enrichment.String), l.Enrichment); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment")
		}
	}
	return &l, nil
}

func (s *SQLiteStore) UpdateEnrichment(ctx context.Context, leadID string, profile *model.EnrichmentProfile) error {
	enrichment, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET enrichment = ?, updated_at = ? WHERE id = ?`,
		string(enrichment), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update enrichment %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) UpdateResearch(ctx context.Context, leadID string, research string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET research = ?, updated_at = ? WHERE id = ?`,
		research, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update research %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) TransitionStage(ctx context.Context, leadID string, from, to model.StageMarker) error {
	if !from.CanTransition(to) {
		return eris.Errorf("sqlite: illegal stage transition %q -> %q", from, to)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET stage_marker = ?, updated_at = ? WHERE id = ? AND stage_marker = ?`,
		string(to), time.Now().UTC(), leadID, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition stage %s", leadID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT stage_marker FROM leads WHERE id = ?`, leadID).Scan(&current)
	if eris.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition stage %s", leadID)
	}
	return eris.Wrapf(ErrStageConflict, "lead %s: expected %q, found %q", leadID, from, current)
}

func (s *SQLiteStore) CountLeadsByStage(ctx context.Context, clientID string) (map[model.StageMarker]int, error) {
	query := `SELECT stage_marker, COUNT(*) FROM leads`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	query += ` GROUP BY stage_marker`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads by stage")
	}
	defer rows.Close()

	counts := make(map[model.StageMarker]int)
	for rows.Next() {
		var marker string
		var n int
		if err := rows.Scan(&marker, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage count")
		}
		counts[model.StageMarker(marker)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count leads iterate")
}

// Assets

func (s *SQLiteStore) CreateAssets(ctx context.Context, assets []model.LeadAsset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: create assets begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, a := range assets {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lead_assets (id, lead_id, kind, name, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (lead_id, name) DO NOTHING`,
			id, a.LeadID, string(a.Kind), a.Name, a.Content, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: create assets insert")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: create assets commit")
}

func (s *SQLiteStore) ListAssets(ctx context.Context, leadID string) ([]model.LeadAsset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, kind, name, content, created_at FROM lead_assets WHERE lead_id = ? ORDER BY created_at, name`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list assets %s", leadID)
	}
	defer rows.Close()

	var assets []model.LeadAsset
	for rows.Next() {
		var a model.LeadAsset
		var kind string
		if err := rows.Scan(&a.ID, &a.LeadID, &kind, &a.Name, &a.Content, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan asset")
		}
		a.Kind = model.AssetKind(kind)
		assets = append(assets, a)
	}
	return assets, eris.Wrap(rows.Err(), "sqlite: list assets iterate")
}

func (s *SQLiteStore) CountAssetsByKind(ctx context.Context, leadID string, kinds []model.AssetKind) (int, error) {
	if len(kinds) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(kinds))
	args := []any{leadID}
	for i, k := range kinds {
		placeholders[i] = "?"
		args = append(args, string(k))
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lead_assets WHERE lead_id = ? AND kind IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	).Scan(&count)
	return count, eris.Wrapf(err, "sqlite: count assets %s", leadID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
