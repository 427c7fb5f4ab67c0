package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec querier) *PostgresRepository {
	if exec == nil {
		panic("leads: exec required")
	}
	return &PostgresRepository{pool: exec}
}

const leadColumns = `id, tenant_id, phone, COALESCE(name, ''), channel, status,
	COALESCE(case_type, ''), COALESCE(urgency, ''), COALESCE(call_session_id, ''),
	created_at, updated_at`

// FindOrCreate upserts on the (tenant_id, phone) uniqueness constraint. On
// conflict the name is only filled when the stored one is empty, so a push
// name learned later never clobbers one we already have. RETURNING makes the
// whole thing a single round trip with no race window.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, tenantID, phone, name, channel string) (*Lead, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrMissingTenant
	}
	if strings.TrimSpace(phone) == "" {
		return nil, ErrMissingPhone
	}

	query := `
		INSERT INTO leads (id, tenant_id, phone, name, channel, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (tenant_id, phone) DO UPDATE
		SET name = COALESCE(leads.name, NULLIF(EXCLUDED.name, '')),
		    updated_at = now()
		RETURNING ` + leadColumns
	row := r.pool.QueryRow(ctx, query, uuid.New(), tenantID, phone, name, channel, StatusNew)
	lead, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("leads: find or create: %w", err)
	}
	return lead, nil
}

// GetByID fetches a lead scoped to the tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND tenant_id = $2`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select by id: %w", err)
	}
	return lead, nil
}

// FindByCallSession resolves a lead by the external call-session id recorded
// when a voice call started.
func (r *PostgresRepository) FindByCallSession(ctx context.Context, tenantID, sessionID string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE call_session_id = $1 AND tenant_id = $2`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, sessionID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select by call session: %w", err)
	}
	return lead, nil
}

// AttachCallSession stores the external session id as a secondary lookup key.
func (r *PostgresRepository) AttachCallSession(ctx context.Context, leadID, sessionID string) error {
	query := `UPDATE leads SET call_session_id = $2, updated_at = now() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, leadID, sessionID)
	if err != nil {
		return fmt.Errorf("leads: attach call session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpdateStatus moves the lead through its lifecycle.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, leadID string, status Status) error {
	query := `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, leadID, status)
	if err != nil {
		return fmt.Errorf("leads: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// ApplyClassification stores the call analysis classification on the lead.
// Only a lead still in "new" moves to the classified status; qualified,
// scheduled, converted, and lost leads keep their state.
func (r *PostgresRepository) ApplyClassification(ctx context.Context, leadID, caseType, urgency string, status Status) error {
	query := `
		UPDATE leads
		SET case_type = COALESCE(NULLIF($2, ''), case_type),
		    urgency = COALESCE(NULLIF($3, ''), urgency),
		    status = CASE WHEN status = $4 THEN $5 ELSE status END,
		    updated_at = now()
		WHERE id = $1
	`
	ct, err := r.pool.Exec(ctx, query, leadID, caseType, urgency, StatusNew, status)
	if err != nil {
		return fmt.Errorf("leads: apply classification: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	if err := row.Scan(
		&lead.ID,
		&lead.TenantID,
		&lead.Phone,
		&lead.Name,
		&lead.Channel,
		&lead.Status,
		&lead.CaseType,
		&lead.Urgency,
		&lead.CallSessionID,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &lead, nil
}
