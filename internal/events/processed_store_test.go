package events

import (
	"context"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("whatsapp", "msg-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.TryClaim(context.Background(), "whatsapp", "msg-1")
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got ok=%v err=%v", ok, err)
	}

	// Duplicate delivery: ON CONFLICT DO NOTHING affects zero rows.
	mock.ExpectExec("INSERT INTO processed_events").WithArgs("whatsapp", "msg-1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	ok, err = store.TryClaim(context.Background(), "whatsapp", "msg-1")
	if err != nil {
		t.Fatalf("duplicate claim should not error: %v", err)
	}
	if ok {
		t.Fatal("duplicate claim should return false")
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("voice", "call-9").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	processed, err := store.AlreadyProcessed(context.Background(), "voice", "call-9")
	if err != nil || !processed {
		t.Fatalf("expected existing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("voice", "call-miss").WillReturnError(pgx.ErrNoRows)
	processed, err = store.AlreadyProcessed(context.Background(), "voice", "call-miss")
	if err != nil || processed {
		t.Fatalf("expected missing row, got processed=%v err=%v", processed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
