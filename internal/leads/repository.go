package leads

import "context"

// Repository defines the interface for lead storage.
type Repository interface {
	// FindOrCreate resolves the lead for (tenant, phone), creating it when
	// unseen. The display name is filled opportunistically: a name supplied
	// later fills an empty one but never overwrites a name the lead already
	// has. Implementations must be insert-or-fetch-on-conflict, not
	// read-then-write, so concurrent first-contact events cannot create
	// duplicate leads.
	FindOrCreate(ctx context.Context, tenantID, phone, name, channel string) (*Lead, error)
	GetByID(ctx context.Context, tenantID, id string) (*Lead, error)
	FindByCallSession(ctx context.Context, tenantID, sessionID string) (*Lead, error)
	AttachCallSession(ctx context.Context, leadID, sessionID string) error
	UpdateStatus(ctx context.Context, leadID string, status Status) error
	// ApplyClassification copies a completed call's classification onto the
	// lead. The status transition only applies to a lead still in "new";
	// later lifecycle states are never downgraded by a call outcome.
	ApplyClassification(ctx context.Context, leadID, caseType, urgency string, status Status) error
}
