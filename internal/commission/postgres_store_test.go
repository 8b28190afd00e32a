//go:build integration

package commission

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("partnerhub_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(ctr)
	})

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func testRecord(id, idemKey string) *Record {
	now := time.Now()
	return &Record{
		ID:                    id,
		PartnerID:             "ptn_itest001",
		CustomerID:            "cus_itest001",
		RevenueAmountCents:    100_000,
		RateBPS:               2000,
		CommissionAmountCents: 20_000,
		Status:                StatusPending,
		IdempotencyKey:        idemKey,
		Source:                "api",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestPostgresCommission_CreateAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("cmr_itest001", "evt-create")
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "cmr_itest001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RateBPS != 2000 {
		t.Errorf("RateBPS: got %d, want 2000", got.RateBPS)
	}
	if got.CommissionAmountCents != 20_000 {
		t.Errorf("CommissionAmountCents: got %d, want 20000", got.CommissionAmountCents)
	}
	if got.Status != StatusPending {
		t.Errorf("Status: got %s, want pending", got.Status)
	}

	_, err = store.Get(ctx, "cmr_missing")
	if err != ErrRecordNotFound {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestPostgresCommission_IdempotencyKeyUnique(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Create(ctx, testRecord("cmr_itest010", "evt-dup")); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	err := store.Create(ctx, testRecord("cmr_itest011", "evt-dup"))
	if err != ErrIdempotencyConflict {
		t.Errorf("expected ErrIdempotencyConflict, got %v", err)
	}

	got, err := store.GetByIdempotencyKey(ctx, "ptn_itest001", "evt-dup")
	if err != nil {
		t.Fatalf("GetByIdempotencyKey failed: %v", err)
	}
	if got.ID != "cmr_itest010" {
		t.Errorf("expected original record, got %s", got.ID)
	}
}

func TestPostgresCommission_UpdateStatusCAS(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("cmr_itest020", "evt-cas")
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec.Status = StatusApproved
	rec.UpdatedAt = time.Now()
	if err := store.UpdateStatus(ctx, rec, StatusPending); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// A second transition expecting the stale status loses the race.
	stale := *rec
	stale.Status = StatusDisputed
	if err := store.UpdateStatus(ctx, &stale, StatusPending); err != ErrConcurrentModification {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("Status: got %s, want approved", got.Status)
	}
}

func TestPostgresCommission_ListByPartnerOrdering(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i, id := range []string{"cmr_lc", "cmr_la", "cmr_lb"} {
		rec := testRecord(id, "evt-list-"+id)
		rec.CreatedAt = base // identical timestamps force the ID tie-break
		rec.UpdatedAt = base
		if i == 0 {
			rec.CreatedAt = base.Add(time.Second)
		}
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}

	records, err := store.ListByPartner(ctx, "ptn_itest001", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListByPartner failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []string{"cmr_la", "cmr_lb", "cmr_lc"}
	for i, w := range want {
		if records[i].ID != w {
			t.Errorf("position %d: got %s, want %s", i, records[i].ID, w)
		}
	}

	// Window excludes the later record.
	windowed, err := store.ListByPartner(ctx, "ptn_itest001", base, base.Add(500*time.Millisecond))
	if err != nil {
		t.Fatalf("windowed ListByPartner failed: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("expected 2 records in window, got %d", len(windowed))
	}
}
