// Package performance aggregates a partner's customer portfolio and
// commission ledger into point-in-time snapshots: MRR, churn, conversion,
// satisfaction, and commission totals by status, with monthly buckets in
// the partner's reporting timezone.
package performance

import (
	"time"

	"github.com/partnerhq/partnerhub/internal/commission"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/tier"
)

// ChurnWindow is the trailing window churn rate is computed over.
const ChurnWindow = 30 * 24 * time.Hour

// MonthBucket aggregates revenue and commission for one calendar month in
// the partner's reporting timezone.
type MonthBucket struct {
	Month           string `json:"month"` // "2026-01"
	Records         int    `json:"records"`
	RevenueCents    int64  `json:"revenueCents"`
	CommissionCents int64  `json:"commissionCents"`
}

// Snapshot is a point-in-time view of a partner's performance.
type Snapshot struct {
	PartnerID   string    `json:"partnerId"`
	Tier        tier.ID   `json:"tier"`
	GeneratedAt time.Time `json:"generatedAt"`

	TotalCustomers     int `json:"totalCustomers"` // non-churned
	ActiveCustomers    int `json:"activeCustomers"`
	TrialCustomers     int `json:"trialCustomers"`
	SuspendedCustomers int `json:"suspendedCustomers"`
	ChurnedCustomers   int `json:"churnedCustomers"` // all time
	ChurnedLast30Days  int `json:"churnedLast30Days"`

	MRRCents        int64   `json:"mrrCents"` // active customers only
	AvgSatisfaction float64 `json:"avgSatisfaction"`
	ChurnRate       float64 `json:"churnRate"`
	ConversionRate  float64 `json:"conversionRate"`

	TotalRevenueCents       int64 `json:"totalRevenueCents"`
	PendingCommissionCents  int64 `json:"pendingCommissionCents"`
	ApprovedCommissionCents int64 `json:"approvedCommissionCents"`
	PaidCommissionCents     int64 `json:"paidCommissionCents"`
	DisputedCommissionCents int64 `json:"disputedCommissionCents"`

	// Earned (approved or paid) commission over calendar windows in the
	// partner's reporting timezone: the previous full month and the
	// current year to date.
	LastPeriodCommissionCents int64 `json:"lastPeriodCommissionCents"`
	YTDCommissionCents        int64 `json:"ytdCommissionCents"`

	Months []MonthBucket `json:"months,omitempty"`
}

// Inputs is everything a snapshot computation consumes, collected at one
// point in time by a Source.
type Inputs struct {
	Partner   *partner.Partner
	Customers []*partner.Customer
	Records   []*commission.Record
	At        time.Time
}

// Compute derives a snapshot from collected inputs. Pure function; all
// consistency concerns live in the Source that produced the inputs.
func Compute(in Inputs) *Snapshot {
	s := &Snapshot{
		PartnerID:   in.Partner.ID,
		Tier:        in.Partner.Tier,
		GeneratedAt: in.At,
	}

	windowStart := in.At.Add(-ChurnWindow)
	var scored int
	var satSum float64
	for _, c := range in.Customers {
		switch c.Status {
		case partner.CustomerActive:
			s.ActiveCustomers++
			s.MRRCents += c.MRRCents
		case partner.CustomerTrial:
			s.TrialCustomers++
		case partner.CustomerSuspended:
			s.SuspendedCustomers++
		case partner.CustomerChurned:
			s.ChurnedCustomers++
			if c.ChurnedAt != nil && c.ChurnedAt.After(windowStart) {
				s.ChurnedLast30Days++
			}
		}
		if c.SatisfactionScore != nil {
			satSum += *c.SatisfactionScore
			scored++
		}
	}
	s.TotalCustomers = s.ActiveCustomers + s.TrialCustomers + s.SuspendedCustomers

	if scored > 0 {
		s.AvgSatisfaction = satSum / float64(scored)
	}

	// Churn: who was active at the window start? Approximately everyone
	// still non-churned now plus those who churned inside the window.
	if base := s.TotalCustomers + s.ChurnedLast30Days; base > 0 {
		s.ChurnRate = float64(s.ChurnedLast30Days) / float64(base)
	}
	if base := s.ActiveCustomers + s.TrialCustomers; base > 0 {
		s.ConversionRate = float64(s.ActiveCustomers) / float64(base)
	}

	loc := reportingLocation(in.Partner)
	asOf := in.At.In(loc)
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, loc)
	lastPeriodStart := monthStart.AddDate(0, -1, 0)
	yearStart := time.Date(asOf.Year(), 1, 1, 0, 0, 0, 0, loc)

	buckets := make(map[string]*MonthBucket)
	var order []string
	for _, r := range in.Records {
		s.TotalRevenueCents += r.RevenueAmountCents
		switch r.Status {
		case commission.StatusPending:
			s.PendingCommissionCents += r.CommissionAmountCents
		case commission.StatusApproved:
			s.ApprovedCommissionCents += r.CommissionAmountCents
		case commission.StatusPaid:
			s.PaidCommissionCents += r.CommissionAmountCents
		case commission.StatusDisputed:
			s.DisputedCommissionCents += r.CommissionAmountCents
		}

		if r.Status == commission.StatusApproved || r.Status == commission.StatusPaid {
			created := r.CreatedAt.In(loc)
			if !created.Before(lastPeriodStart) && created.Before(monthStart) {
				s.LastPeriodCommissionCents += r.CommissionAmountCents
			}
			if !created.Before(yearStart) {
				s.YTDCommissionCents += r.CommissionAmountCents
			}
		}

		month := r.CreatedAt.In(loc).Format("2006-01")
		b, ok := buckets[month]
		if !ok {
			b = &MonthBucket{Month: month}
			buckets[month] = b
			order = append(order, month)
		}
		b.Records++
		b.RevenueCents += r.RevenueAmountCents
		b.CommissionCents += r.CommissionAmountCents
	}
	// Records arrive ordered by creation time, so first-seen month order
	// is already chronological.
	for _, m := range order {
		s.Months = append(s.Months, *buckets[m])
	}

	return s
}

// Metrics converts a snapshot into the figures tier eligibility consumes.
func (s *Snapshot) Metrics() tier.Metrics {
	return tier.Metrics{
		TotalCustomers: s.TotalCustomers,
		MRRCents:       s.MRRCents,
		Satisfaction:   s.AvgSatisfaction,
	}
}

func reportingLocation(p *partner.Partner) *time.Location {
	loc, err := time.LoadLocation(p.ReportingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
