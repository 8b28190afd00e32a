package tier

import "fmt"

// Resource identifies a usage-capped resource kind.
type Resource string

const (
	ResourceCustomers          Resource = "customers"
	ResourceTenantsPerCustomer Resource = "tenants_per_customer"
	ResourceUsersPerTenant     Resource = "users_per_tenant"
	ResourceStorageGB          Resource = "storage_gb"
	ResourceAPICallsPerMonth   Resource = "api_calls_per_month"
	ResourceCustomDomains      Resource = "custom_domains"
)

// ValidResource returns true if the resource kind is recognised.
func ValidResource(r Resource) bool {
	switch r {
	case ResourceCustomers, ResourceTenantsPerCustomer, ResourceUsersPerTenant,
		ResourceStorageGB, ResourceAPICallsPerMonth, ResourceCustomDomains:
		return true
	}
	return false
}

// Decision is the outcome of a limit check. Denials carry the limiting
// threshold and current usage so callers can render an actionable message.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Resource Resource `json:"resource"`
	Limit    int      `json:"limit"`
	Current  int      `json:"current"`
	Reason   string   `json:"reason,omitempty"`
}

// CheckLimit answers whether consuming delta more units of a resource is
// allowed under the tier's limits. A limit of Unlimited always allows.
// Pure function of (tier, usage); the caller supplies current usage.
//
// This check is advisory: creation paths that consume a slot must still
// re-check atomically at the point of insertion (see partner.Store).
func CheckLimit(def Definition, res Resource, current, delta int) Decision {
	limit := limitFor(def, res)
	d := Decision{Resource: res, Limit: limit, Current: current}

	if limit == Unlimited {
		d.Allowed = true
		return d
	}
	if current+delta <= limit {
		d.Allowed = true
		return d
	}

	d.Reason = fmt.Sprintf("%s %s limit of %d reached (current %d); upgrade required",
		def.Name, res, limit, current)
	return d
}

func limitFor(def Definition, res Resource) int {
	switch res {
	case ResourceCustomers:
		return def.Limits.MaxCustomers
	case ResourceTenantsPerCustomer:
		return def.Limits.MaxTenantsPerCustomer
	case ResourceUsersPerTenant:
		return def.Limits.MaxUsersPerTenant
	case ResourceStorageGB:
		return def.Limits.StorageGB
	case ResourceAPICallsPerMonth:
		return def.Limits.APICallsPerMonth
	case ResourceCustomDomains:
		return def.Limits.CustomDomains
	}
	return 0 // unknown resources never allow
}
