package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines appointment persistence.
type Repository interface {
	HasScheduledForLead(ctx context.Context, leadID string) (bool, error)
	HasConflict(ctx context.Context, tenantID string, start time.Time, durationMinutes int) (bool, error)
	Insert(ctx context.Context, req CreateRequest) (*Appointment, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments via pgx.
type PostgresRepository struct {
	pool querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec querier) *PostgresRepository {
	if exec == nil {
		panic("appointments: exec required")
	}
	return &PostgresRepository{pool: exec}
}

// HasScheduledForLead reports whether the lead already has ANY scheduled
// appointment, regardless of slot. This is the idempotency key for booking
// creation: two independent event paths reporting the same underlying booking
// must collapse to one row.
func (r *PostgresRepository) HasScheduledForLead(ctx context.Context, leadID string) (bool, error) {
	query := `SELECT 1 FROM appointments WHERE lead_id = $1 AND status = 'scheduled' LIMIT 1`
	var exists int
	if err := r.pool.QueryRow(ctx, query, leadID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("appointments: check lead scheduled: %w", err)
	}
	return true, nil
}

// HasConflict reports whether another scheduled appointment for the tenant
// overlaps the half-open interval [start, start+duration). Adjacent slots do
// not conflict.
func (r *PostgresRepository) HasConflict(ctx context.Context, tenantID string, start time.Time, durationMinutes int) (bool, error) {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	query := `
		SELECT 1 FROM appointments
		WHERE tenant_id = $1
		  AND status = 'scheduled'
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		LIMIT 1
	`
	var exists int
	if err := r.pool.QueryRow(ctx, query, tenantID, start, end).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("appointments: check conflict: %w", err)
	}
	return true, nil
}

// Insert creates a scheduled appointment row.
func (r *PostgresRepository) Insert(ctx context.Context, req CreateRequest) (*Appointment, error) {
	id := uuid.New()
	query := `
		INSERT INTO appointments (id, tenant_id, lead_id, scheduled_at, duration_minutes, channel, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.TenantID,
		req.LeadID,
		req.ScheduledAt.UTC(),
		req.DurationMinutes,
		req.Channel,
		StatusScheduled,
		req.Notes,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return &Appointment{
		ID:              id.String(),
		TenantID:        req.TenantID,
		LeadID:          req.LeadID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Channel:         req.Channel,
		Status:          StatusScheduled,
		Notes:           req.Notes,
		CreatedAt:       createdAt,
	}, nil
}
