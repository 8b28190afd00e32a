// Package reporting builds partner-facing commission reports and their
// CSV export. Exports are deterministic: the same records produce the
// same bytes every time.
package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/partnerhq/partnerhub/internal/commission"
	"github.com/partnerhq/partnerhub/internal/money"
	"github.com/partnerhq/partnerhub/internal/partner"
)

var (
	ErrInvalidRange  = errors.New("reporting: range start is after end")
	ErrInvalidStatus = errors.New("reporting: unknown status filter")
)

// csvHeader is the fixed export header. Column order is part of the
// export contract; partners feed these files into spreadsheets.
var csvHeader = []string{"Date", "Customer", "Amount", "Commission Rate", "Commission Amount", "Status"}

// Service reads the commission ledger on behalf of reports.
type Service struct {
	partners    partner.Store
	commissions commission.Store
}

// NewService creates a new reporting service.
func NewService(partners partner.Store, commissions commission.Store) *Service {
	return &Service{partners: partners, commissions: commissions}
}

// Partner resolves the partner a report is for.
func (s *Service) Partner(ctx context.Context, id string) (*partner.Partner, error) {
	return s.partners.GetPartner(ctx, id)
}

// Report returns a partner's commission records for the inclusive
// [start, end] range, ordered by creation time then id. A zero start or
// end leaves that side unbounded. statusFilter narrows to one status;
// empty means all.
func (s *Service) Report(ctx context.Context, partnerID string, start, end time.Time, statusFilter commission.Status) ([]*commission.Record, error) {
	if statusFilter != "" && !commission.ValidStatus(statusFilter) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, statusFilter)
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return nil, ErrInvalidRange
	}
	if _, err := s.partners.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}

	// The store window is half-open [from, to); nudge the end forward to
	// make the report range inclusive.
	to := end
	if !to.IsZero() {
		to = to.Add(time.Nanosecond)
	}

	records, err := s.commissions.ListByPartner(ctx, partnerID, start, to)
	if err != nil {
		return nil, fmt.Errorf("listing commission records: %w", err)
	}
	if statusFilter == "" {
		return records, nil
	}

	filtered := records[:0]
	for _, r := range records {
		if r.Status == statusFilter {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Totals sums a record set for report summaries.
type Totals struct {
	Records               int   `json:"records"`
	RevenueCents          int64 `json:"revenueCents"`
	CommissionCents       int64 `json:"commissionCents"`
	PaidCommissionCents   int64 `json:"paidCommissionCents"`
	UnpaidCommissionCents int64 `json:"unpaidCommissionCents"`
}

// Summarize computes totals over a record set. Disputed records count
// toward revenue but not toward unpaid commission.
func Summarize(records []*commission.Record) Totals {
	var t Totals
	t.Records = len(records)
	for _, r := range records {
		t.RevenueCents += r.RevenueAmountCents
		t.CommissionCents += r.CommissionAmountCents
		switch r.Status {
		case commission.StatusPaid:
			t.PaidCommissionCents += r.CommissionAmountCents
		case commission.StatusPending, commission.StatusApproved:
			t.UnpaidCommissionCents += r.CommissionAmountCents
		}
	}
	return t
}

// ExportCSV renders records as CSV. Dates are rendered in the partner's
// reporting timezone and the output is byte-identical for identical
// inputs.
func (s *Service) ExportCSV(p *partner.Partner, records []*commission.Record) ([]byte, error) {
	loc, err := time.LoadLocation(p.ReportingTimezone)
	if err != nil {
		loc = time.UTC
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.CreatedAt.In(loc).Format("2006-01-02"),
			r.CustomerID,
			money.Format(r.RevenueAmountCents),
			money.FormatRate(r.RateBPS),
			money.Format(r.CommissionAmountCents),
			string(r.Status),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
