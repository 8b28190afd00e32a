// Package tier defines the partner tier catalogue: commission rates,
// resource limits, benefits, and the thresholds a partner must meet to
// become eligible for the next tier.
//
// The catalogue is the single source of truth for tier-to-limit mapping.
// Reconfiguring a tier here takes effect immediately for every partner on
// that tier; commission records already written keep their snapshotted
// rate.
package tier

import "sort"

// Unlimited is the sentinel limit value meaning "no cap".
const Unlimited = -1

// ID identifies a tier.
type ID string

const (
	Bronze   ID = "bronze"
	Silver   ID = "silver"
	Gold     ID = "gold"
	Platinum ID = "platinum"
)

// Limits defines the resource caps for a tier. Unlimited (-1) disables a cap.
type Limits struct {
	MaxCustomers          int  `json:"maxCustomers"`
	MaxTenantsPerCustomer int  `json:"maxTenantsPerCustomer"`
	MaxUsersPerTenant     int  `json:"maxUsersPerTenant"`
	StorageGB             int  `json:"storageGb"`
	APICallsPerMonth      int  `json:"apiCallsPerMonth"`
	CustomDomains         int  `json:"customDomains"`
	WhiteLabel            bool `json:"whiteLabel"`
	PrioritySupport       bool `json:"prioritySupport"`
}

// Thresholds are the minimum performance figures required to become
// eligible for a tier from below. All of them must be met (conjunction).
type Thresholds struct {
	MinCustomers    int     `json:"minCustomers"`
	MinMRRCents     int64   `json:"minMrrCents"`
	MinSatisfaction float64 `json:"minSatisfaction"`
}

// Definition is a static tier description.
type Definition struct {
	ID                ID         `json:"id"`
	Name              string     `json:"name"`
	Rank              int        `json:"rank"` // total order; upgrades move to higher rank
	CommissionRateBPS int        `json:"commissionRateBps"`
	Limits            Limits     `json:"limits"`
	Benefits          []string   `json:"benefits"`
	Upgrade           Thresholds `json:"upgrade"`
}

// Catalog is the hardcoded tier catalogue.
var Catalog = map[ID]Definition{
	Bronze: {
		ID:                Bronze,
		Name:              "Bronze",
		Rank:              1,
		CommissionRateBPS: 1500,
		Limits: Limits{
			MaxCustomers:          10,
			MaxTenantsPerCustomer: 2,
			MaxUsersPerTenant:     5,
			StorageGB:             10,
			APICallsPerMonth:      10_000,
			CustomDomains:         0,
		},
		Benefits: []string{"standard_support", "partner_portal"},
	},
	Silver: {
		ID:                Silver,
		Name:              "Silver",
		Rank:              2,
		CommissionRateBPS: 2000,
		Limits: Limits{
			MaxCustomers:          50,
			MaxTenantsPerCustomer: 5,
			MaxUsersPerTenant:     20,
			StorageGB:             50,
			APICallsPerMonth:      100_000,
			CustomDomains:         1,
		},
		Benefits: []string{"standard_support", "partner_portal", "quarterly_reviews"},
		Upgrade: Thresholds{
			MinCustomers:    5,
			MinMRRCents:     100_000, // $1,000 MRR
			MinSatisfaction: 3.5,
		},
	},
	Gold: {
		ID:                Gold,
		Name:              "Gold",
		Rank:              3,
		CommissionRateBPS: 2500,
		Limits: Limits{
			MaxCustomers:          200,
			MaxTenantsPerCustomer: 10,
			MaxUsersPerTenant:     50,
			StorageGB:             250,
			APICallsPerMonth:      1_000_000,
			CustomDomains:         3,
			WhiteLabel:            true,
			PrioritySupport:       true,
		},
		Benefits: []string{"priority_support", "partner_portal", "white_label", "dedicated_csm"},
		Upgrade: Thresholds{
			MinCustomers:    20,
			MinMRRCents:     500_000, // $5,000 MRR
			MinSatisfaction: 4.0,
		},
	},
	Platinum: {
		ID:                Platinum,
		Name:              "Platinum",
		Rank:              4,
		CommissionRateBPS: 3000,
		Limits: Limits{
			MaxCustomers:          Unlimited,
			MaxTenantsPerCustomer: Unlimited,
			MaxUsersPerTenant:     Unlimited,
			StorageGB:             1000,
			APICallsPerMonth:      Unlimited,
			CustomDomains:         10,
			WhiteLabel:            true,
			PrioritySupport:       true,
		},
		Benefits: []string{"priority_support", "white_label", "dedicated_csm", "co_marketing", "roadmap_input"},
		Upgrade: Thresholds{
			MinCustomers:    75,
			MinMRRCents:     2_500_000, // $25,000 MRR
			MinSatisfaction: 4.5,
		},
	},
}

// Get returns the definition for a tier ID.
func Get(id ID) (Definition, bool) {
	def, ok := Catalog[id]
	return def, ok
}

// Valid returns true if the tier ID is recognised.
func Valid(id ID) bool {
	_, ok := Catalog[id]
	return ok
}

// ByRank returns all tier definitions ordered by ascending rank.
func ByRank() []Definition {
	defs := make([]Definition, 0, len(Catalog))
	for _, d := range Catalog {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Rank < defs[j].Rank })
	return defs
}
