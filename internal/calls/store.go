package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCallNotFound = errors.New("call record not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists call records, one row per voice-call session id.
type Store struct {
	pool querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("calls: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithExec(exec querier) *Store {
	if exec == nil {
		panic("calls: exec required")
	}
	return &Store{pool: exec}
}

// UpsertFromEvent creates or refreshes the record for a session. The started
// and ended events race with each other and with retries, so everything is a
// single upsert keyed on session_id.
func (s *Store) UpsertFromEvent(ctx context.Context, rec CallRecord) (*CallRecord, error) {
	if rec.SessionID == "" {
		return nil, fmt.Errorf("calls: session id required")
	}
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return nil, fmt.Errorf("calls: marshal transcript: %w", err)
	}

	query := `
		INSERT INTO call_records (id, session_id, tenant_id, from_number, to_number, transcript, duration_seconds, status, recording_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE
		SET transcript = CASE WHEN EXCLUDED.transcript <> '[]'::jsonb THEN EXCLUDED.transcript ELSE call_records.transcript END,
		    duration_seconds = GREATEST(call_records.duration_seconds, EXCLUDED.duration_seconds),
		    status = EXCLUDED.status,
		    recording_url = COALESCE(NULLIF(EXCLUDED.recording_url, ''), call_records.recording_url),
		    updated_at = now()
		RETURNING id
	`
	var id string
	if err := s.pool.QueryRow(ctx, query,
		uuid.New(),
		rec.SessionID,
		rec.TenantID,
		rec.FromNumber,
		rec.ToNumber,
		transcript,
		rec.DurationSeconds,
		rec.Status,
		rec.RecordingURL,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("calls: upsert record: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

// ApplyAnalysis attaches the post-call analysis to an existing record. The
// analysis event may be the first we hear of a session, so a missing row is
// created rather than rejected.
func (s *Store) ApplyAnalysis(ctx context.Context, sessionID, tenantID string, analysis Analysis) error {
	if sessionID == "" {
		return fmt.Errorf("calls: session id required")
	}
	query := `
		INSERT INTO call_records (id, session_id, tenant_id, summary, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET summary = EXCLUDED.summary,
		    status = $5,
		    updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), sessionID, tenantID, analysis.Summary, CallStatusAnalyzed); err != nil {
		return fmt.Errorf("calls: apply analysis: %w", err)
	}
	return nil
}

// GetBySession loads a record by session id scoped to the tenant.
func (s *Store) GetBySession(ctx context.Context, tenantID, sessionID string) (*CallRecord, error) {
	query := `
		SELECT id, session_id, tenant_id, COALESCE(from_number, ''), COALESCE(to_number, ''),
		       transcript, COALESCE(summary, ''), duration_seconds, status, COALESCE(recording_url, ''),
		       created_at, updated_at
		FROM call_records
		WHERE session_id = $1 AND tenant_id = $2
	`
	var rec CallRecord
	var transcript []byte
	if err := s.pool.QueryRow(ctx, query, sessionID, tenantID).Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.TenantID,
		&rec.FromNumber,
		&rec.ToNumber,
		&transcript,
		&rec.Summary,
		&rec.DurationSeconds,
		&rec.Status,
		&rec.RecordingURL,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("calls: select by session: %w", err)
	}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
			return nil, fmt.Errorf("calls: decode transcript: %w", err)
		}
	}
	return &rec, nil
}
