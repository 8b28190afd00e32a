package tier

import "fmt"

// Metrics are the performance figures an eligibility evaluation consumes.
// Callers derive them from a performance snapshot.
type Metrics struct {
	TotalCustomers int
	MRRCents       int64
	Satisfaction   float64
}

// ThresholdCheck reports a single threshold comparison.
type ThresholdCheck struct {
	Name     string `json:"name"`
	Required string `json:"required"`
	Actual   string `json:"actual"`
	Met      bool   `json:"met"`
}

// Evaluation is the result of an upgrade eligibility check.
type Evaluation struct {
	CurrentTier ID               `json:"currentTier"`
	NextTier    ID               `json:"nextTier,omitempty"`
	Eligible    bool             `json:"eligible"`
	AtTop       bool             `json:"atTop"`
	Checks      []ThresholdCheck `json:"checks,omitempty"`
}

// NextTier returns the tier one rank above current, if any.
func NextTier(current ID) (Definition, bool) {
	cur, ok := Catalog[current]
	if !ok {
		return Definition{}, false
	}
	for _, d := range Catalog {
		if d.Rank == cur.Rank+1 {
			return d, true
		}
	}
	return Definition{}, false
}

// Evaluate checks upgrade eligibility from the current tier given the
// partner's performance metrics. Eligibility requires every threshold of
// the next tier to be met; a partner on the top tier is never eligible.
//
// Eligibility does not change the tier. Promotion stays a deliberate
// admin action so a partner hovering around a threshold doesn't flap.
func Evaluate(current ID, m Metrics) Evaluation {
	ev := Evaluation{CurrentTier: current}

	next, ok := NextTier(current)
	if !ok {
		ev.AtTop = true
		return ev
	}
	ev.NextTier = next.ID

	th := next.Upgrade
	checks := []ThresholdCheck{
		{
			Name:     "total_customers",
			Required: fmt.Sprintf("%d", th.MinCustomers),
			Actual:   fmt.Sprintf("%d", m.TotalCustomers),
			Met:      m.TotalCustomers >= th.MinCustomers,
		},
		{
			Name:     "monthly_recurring_revenue_cents",
			Required: fmt.Sprintf("%d", th.MinMRRCents),
			Actual:   fmt.Sprintf("%d", m.MRRCents),
			Met:      m.MRRCents >= th.MinMRRCents,
		},
		{
			Name:     "customer_satisfaction",
			Required: fmt.Sprintf("%.1f", th.MinSatisfaction),
			Actual:   fmt.Sprintf("%.2f", m.Satisfaction),
			Met:      m.Satisfaction >= th.MinSatisfaction,
		},
	}

	ev.Eligible = true
	for _, c := range checks {
		if !c.Met {
			ev.Eligible = false
		}
	}
	ev.Checks = checks
	return ev
}
