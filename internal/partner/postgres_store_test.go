//go:build integration

package partner

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/partnerhq/partnerhub/internal/tier"
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

func seedTestPartner(t *testing.T, store *PostgresStore, id string) {
	t.Helper()
	now := time.Now()
	err := store.CreatePartner(context.Background(), &Partner{
		ID:                id,
		Name:              "Integration Partner",
		Email:             id + "@itest.example",
		Tier:              tier.Silver,
		Status:            StatusActive,
		ReportingTimezone: "UTC",
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		t.Fatalf("CreatePartner failed: %v", err)
	}
}

func testCustomer(id, partnerID string) *Customer {
	now := time.Now()
	return &Customer{
		ID:        id,
		PartnerID: partnerID,
		Name:      "Customer " + id,
		Status:    CustomerActive,
		MRRCents:  50_000,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgresCreateCustomer_EnforcesCap(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedTestPartner(t, store, "ptn_itest_cap")

	if err := store.CreateCustomer(ctx, testCustomer("cus_cap1", "ptn_itest_cap"), 2); err != nil {
		t.Fatalf("first CreateCustomer failed: %v", err)
	}
	if err := store.CreateCustomer(ctx, testCustomer("cus_cap2", "ptn_itest_cap"), 2); err != nil {
		t.Fatalf("second CreateCustomer failed: %v", err)
	}

	err := store.CreateCustomer(ctx, testCustomer("cus_cap3", "ptn_itest_cap"), 2)
	if err != ErrLimitExceeded {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}

	// Churned customers free their slot.
	c, err := store.GetCustomer(ctx, "cus_cap1")
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	churned := time.Now()
	c.Status = CustomerChurned
	c.ChurnedAt = &churned
	c.UpdatedAt = churned
	if err := store.UpdateCustomer(ctx, c); err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}
	if err := store.CreateCustomer(ctx, testCustomer("cus_cap4", "ptn_itest_cap"), 2); err != nil {
		t.Errorf("CreateCustomer after churn failed: %v", err)
	}
}

func TestPostgresCreateCustomer_ConcurrentLastSlot(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedTestPartner(t, store, "ptn_itest_race")

	const maxSlots = 5
	for i := 0; i < maxSlots-1; i++ {
		id := "cus_race_seed" + string(rune('a'+i))
		if err := store.CreateCustomer(ctx, testCustomer(id, "ptn_itest_race"), maxSlots); err != nil {
			t.Fatalf("seed CreateCustomer %s failed: %v", id, err)
		}
	}

	// Two onboardings race for the single remaining slot. The partner row
	// lock serializes them, so exactly one lands.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "cus_race_contender" + string(rune('a'+i))
			errs[i] = store.CreateCustomer(ctx, testCustomer(id, "ptn_itest_race"), maxSlots)
		}(i)
	}
	wg.Wait()

	var ok, denied int
	for _, err := range errs {
		switch err {
		case nil:
			ok++
		case ErrLimitExceeded:
			denied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || denied != 1 {
		t.Errorf("expected exactly one winner and one denial, got %d winners, %d denials", ok, denied)
	}

	count, err := store.CountCustomers(ctx, "ptn_itest_race")
	if err != nil {
		t.Fatalf("CountCustomers failed: %v", err)
	}
	if count != maxSlots {
		t.Errorf("expected %d non-churned customers, got %d", maxSlots, count)
	}
}

func TestPostgresCreateCustomer_UnknownPartner(t *testing.T) {
	store := setupTestDB(t)

	err := store.CreateCustomer(context.Background(), testCustomer("cus_orphan", "ptn_missing"), 10)
	if err != ErrPartnerNotFound {
		t.Errorf("expected ErrPartnerNotFound, got %v", err)
	}
}

func TestPostgresCreateCustomer_UnlimitedTier(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedTestPartner(t, store, "ptn_itest_unlim")

	for i := 0; i < 3; i++ {
		id := "cus_unlim" + string(rune('a'+i))
		if err := store.CreateCustomer(ctx, testCustomer(id, "ptn_itest_unlim"), tier.Unlimited); err != nil {
			t.Fatalf("CreateCustomer %s failed: %v", id, err)
		}
	}

	count, err := store.CountCustomers(ctx, "ptn_itest_unlim")
	if err != nil {
		t.Fatalf("CountCustomers failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 customers, got %d", count)
	}
}
