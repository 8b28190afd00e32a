package commission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/partnerhq/partnerhub/internal/money"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *Service
	partners *partner.Service
	p        *partner.Partner
	c        *partner.Customer
}

func newFixture(t *testing.T, tierID tier.ID) *fixture {
	t.Helper()
	ctx := context.Background()

	pstore := partner.NewMemoryStore()
	psvc := partner.NewService(pstore, nil)

	p, err := psvc.CreatePartner(ctx, "Acme", "acme@example.com", tierID, "")
	require.NoError(t, err)
	c, err := psvc.OnboardCustomer(ctx, p.ID, "Widgets Inc", 50_000, partner.CustomerActive)
	require.NoError(t, err)

	return &fixture{
		svc:      NewService(NewMemoryStore(), pstore, nil),
		partners: psvc,
		p:        p,
		c:        c,
	}
}

func TestRecordRevenue_SnapshotsRate(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	// $1000.00 at the silver 20% rate earns $200.00.
	rec, created, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID:      f.p.ID,
		CustomerID:     f.c.ID,
		AmountCents:    100_000,
		IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, 2000, rec.RateBPS)
	assert.Equal(t, int64(20_000), rec.CommissionAmountCents)
}

func TestRecordRevenue_Idempotent(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	ev := RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 100_000, IdempotencyKey: "evt-dup",
	}
	first, created, err := f.svc.RecordRevenue(ctx, ev)
	require.NoError(t, err)
	require.True(t, created)

	// Replaying returns the original record, not a second one.
	second, created, err := f.svc.RecordRevenue(ctx, ev)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	records, err := f.svc.ListByPartner(ctx, f.p.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordRevenue_RateFrozenAcrossTierChange(t *testing.T) {
	f := newFixture(t, tier.Bronze)
	ctx := context.Background()

	before, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 100_000, IdempotencyKey: "evt-before",
	})
	require.NoError(t, err)
	assert.Equal(t, 1500, before.RateBPS)
	assert.Equal(t, int64(15_000), before.CommissionAmountCents)

	_, err = f.partners.ChangeTier(ctx, f.p.ID, tier.Silver, "admin", "promotion")
	require.NoError(t, err)

	after, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 100_000, IdempotencyKey: "evt-after",
	})
	require.NoError(t, err)
	assert.Equal(t, 2000, after.RateBPS)

	// The earlier record still carries the bronze rate.
	got, err := f.svc.Get(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, 1500, got.RateBPS)
	assert.Equal(t, int64(15_000), got.CommissionAmountCents)
}

func TestRecordRevenue_Rejections(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	_, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 0, IdempotencyKey: "evt-zero",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: -100, IdempotencyKey: "evt-neg",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Amounts past money.MaxCents would overflow the commission math.
	_, _, err = f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: money.MaxCents + 1, IdempotencyKey: "evt-huge",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: "ptn_missing", CustomerID: f.c.ID,
		AmountCents: 100, IdempotencyKey: "evt-nop",
	})
	assert.ErrorIs(t, err, partner.ErrPartnerNotFound)

	_, _, err = f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: "cus_missing",
		AmountCents: 100, IdempotencyKey: "evt-noc",
	})
	assert.ErrorIs(t, err, partner.ErrCustomerNotFound)
}

func TestRecordRevenue_CustomerOwnership(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	other, err := f.partners.CreatePartner(ctx, "Rival", "rival@example.com", tier.Silver, "")
	require.NoError(t, err)

	_, _, err = f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: other.ID, CustomerID: f.c.ID,
		AmountCents: 100, IdempotencyKey: "evt-steal",
	})
	assert.ErrorIs(t, err, partner.ErrNotOwned)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	rec, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 100_000, IdempotencyKey: "evt-life",
	})
	require.NoError(t, err)

	// pending → paid is not allowed.
	now := time.Now()
	_, err = f.svc.MarkPaid(ctx, rec.ID, &now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	rec, err = f.svc.Approve(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, rec.Status)

	// paid requires a payment date.
	_, err = f.svc.MarkPaid(ctx, rec.ID, nil)
	assert.ErrorIs(t, err, ErrPaymentDateRequired)

	rec, err = f.svc.MarkPaid(ctx, rec.ID, &now)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, rec.Status)
	require.NotNil(t, rec.PaymentDate)

	// paid is terminal.
	_, err = f.svc.Dispute(ctx, rec.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDisputeAndReopen(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	rec, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 100_000, IdempotencyKey: "evt-dispute",
	})
	require.NoError(t, err)

	rec, err = f.svc.Dispute(ctx, rec.ID, "invoice mismatch")
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, rec.Status)
	assert.Equal(t, "invoice mismatch", rec.DisputeReason)

	// Disputed records do not move through Transition.
	_, err = f.svc.Approve(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Only the explicit reopen returns it to pending.
	rec, err = f.svc.Reopen(ctx, rec.ID, "amounts reconciled")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Empty(t, rec.DisputeReason)

	// Reopening a non-disputed record fails.
	_, err = f.svc.Reopen(ctx, rec.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_ConcurrentApprovals(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	rec, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
		PartnerID: f.p.ID, CustomerID: f.c.ID,
		AmountCents: 100_000, IdempotencyKey: "evt-race",
	})
	require.NoError(t, err)

	// Two finance operators approve at once; exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(ctx, rec.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t,
				err == ErrConcurrentModification || err == ErrInvalidTransition,
				"unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestListByPartner_OrderedAndWindowed(t *testing.T) {
	f := newFixture(t, tier.Silver)
	ctx := context.Background()

	for i, key := range []string{"evt-a", "evt-b", "evt-c"} {
		_, _, err := f.svc.RecordRevenue(ctx, RevenueEvent{
			PartnerID: f.p.ID, CustomerID: f.c.ID,
			AmountCents: int64((i + 1) * 1000), IdempotencyKey: key,
		})
		require.NoError(t, err)
	}

	records, err := f.svc.ListByPartner(ctx, f.p.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		ordered := prev.CreatedAt.Before(cur.CreatedAt) ||
			(prev.CreatedAt.Equal(cur.CreatedAt) && prev.ID < cur.ID)
		assert.True(t, ordered, "records out of order at %d", i)
	}

	// A window in the far past is empty.
	past, err := f.svc.ListByPartner(ctx, f.p.ID,
		time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, past)
}
