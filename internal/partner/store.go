package partner

import "context"

// Store persists partners, their customers, and tier change history.
type Store interface {
	CreatePartner(ctx context.Context, p *Partner) error
	GetPartner(ctx context.Context, id string) (*Partner, error)
	GetPartnerByEmail(ctx context.Context, email string) (*Partner, error)
	UpdatePartner(ctx context.Context, p *Partner) error
	ListPartners(ctx context.Context, limit, offset int) ([]*Partner, error)

	// CreateCustomer inserts a customer only if the partner's non-churned
	// customer count is below maxCustomers (tier.Unlimited disables the
	// cap). The count-and-insert is atomic so two concurrent onboardings
	// cannot both land in the last slot. Returns ErrLimitExceeded when the
	// slot is taken.
	CreateCustomer(ctx context.Context, c *Customer, maxCustomers int) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	ListCustomers(ctx context.Context, partnerID string) ([]*Customer, error)
	CountCustomers(ctx context.Context, partnerID string) (int, error) // non-churned

	RecordTierChange(ctx context.Context, tc *TierChange) error
	ListTierChanges(ctx context.Context, partnerID string) ([]*TierChange, error)
}
