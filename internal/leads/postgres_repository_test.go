package leads

import (
	"context"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func leadRows(name string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "phone", "name", "channel", "status",
		"case_type", "urgency", "call_session_id", "created_at", "updated_at",
	}).AddRow("lead-1", "tenant-1", "+15550001111", name, "whatsapp", Status("new"), "", "", "", now, now)
}

func TestFindOrCreateValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	if _, err := repo.FindOrCreate(context.Background(), "", "+15550001111", "", "sms"); err != ErrMissingTenant {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
	if _, err := repo.FindOrCreate(context.Background(), "tenant-1", "  ", "", "sms"); err != ErrMissingPhone {
		t.Fatalf("expected ErrMissingPhone, got %v", err)
	}
}

func TestFindOrCreateUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "tenant-1", "+15550001111", "Maria", "whatsapp", StatusNew).
		WillReturnRows(leadRows("Maria"))

	lead, err := repo.FindOrCreate(context.Background(), "tenant-1", "+15550001111", "Maria", "whatsapp")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if lead.Phone != "+15550001111" || lead.TenantID != "tenant-1" {
		t.Fatalf("unexpected lead %+v", lead)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectQuery("SELECT (.+) FROM leads WHERE id").
		WithArgs("missing", "tenant-1").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "tenant-1", "missing"); err != ErrLeadNotFound {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestApplyClassification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectExec("UPDATE leads").
		WithArgs("lead-1", "personal_injury", "high", StatusNew, StatusQualified).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ApplyClassification(context.Background(), "lead-1", "personal_injury", "high", StatusQualified); err != nil {
		t.Fatalf("ApplyClassification: %v", err)
	}

	mock.ExpectExec("UPDATE leads").
		WithArgs("gone", "other", "low", StatusNew, StatusLost).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.ApplyClassification(context.Background(), "gone", "other", "low", StatusLost); err != ErrLeadNotFound {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	mock.ExpectExec("UPDATE leads SET status").
		WithArgs("lead-1", StatusAppointment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateStatus(context.Background(), "lead-1", StatusAppointment); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	mock.ExpectExec("UPDATE leads SET status").
		WithArgs("gone", StatusLost).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateStatus(context.Background(), "gone", StatusLost); err != ErrLeadNotFound {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}
