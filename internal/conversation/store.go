package conversation

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

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one ordered entry in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the per-lead async-text thread. WhatsApp and SMS share this
// shape; one conversation per lead per channel family.
type Conversation struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrConversationNotFound = errors.New("conversation not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists conversations and their turns. Turns are appended in receipt
// order per contact; cross-contact ordering is neither guaranteed nor needed.
type Store struct {
	pool querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithExec(exec querier) *Store {
	if exec == nil {
		panic("conversation: exec required")
	}
	return &Store{pool: exec}
}

// FindOrCreate returns the lead's conversation, creating it lazily on first
// message. Upsert on the lead_id uniqueness constraint keeps concurrent first
// messages from creating two threads.
func (s *Store) FindOrCreate(ctx context.Context, tenantID, leadID string) (*Conversation, error) {
	if leadID == "" {
		return nil, fmt.Errorf("conversation: lead id required")
	}
	query := `
		INSERT INTO conversations (id, tenant_id, lead_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (lead_id) DO UPDATE SET lead_id = EXCLUDED.lead_id
		RETURNING id, lead_id, tenant_id, created_at
	`
	var conv Conversation
	if err := s.pool.QueryRow(ctx, query, uuid.New(), tenantID, leadID).Scan(
		&conv.ID, &conv.LeadID, &conv.TenantID, &conv.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("conversation: find or create: %w", err)
	}
	return &conv, nil
}

// AppendTurn adds one turn to the thread.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, turn Turn) error {
	if conversationID == "" {
		return ErrConversationNotFound
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO conversation_turns (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), conversationID, turn.Role, turn.Content, turn.CreatedAt); err != nil {
		return fmt.Errorf("conversation: append turn: %w", err)
	}
	return nil
}

// History returns the thread's turns in append order.
func (s *Store) History(ctx context.Context, conversationID string) ([]Turn, error) {
	query := `
		SELECT role, content, created_at
		FROM conversation_turns
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate history: %w", err)
	}
	return turns, nil
}
