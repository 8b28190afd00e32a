package branding

import (
	"context"
	"errors"
	"time"

	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/tier"
	"github.com/partnerhq/partnerhub/internal/validation"
)

// PartnerDirectory resolves partners. Satisfied by partner.Store.
type PartnerDirectory interface {
	GetPartner(ctx context.Context, id string) (*partner.Partner, error)
}

// View is what a branding read returns: the effective config plus whether
// the partner's own branding is the one being served.
type View struct {
	Config     Config `json:"config"`
	WhiteLabel bool   `json:"whiteLabel"`
	// Stored is true when a custom config exists, even if the current
	// tier doesn't serve it.
	Stored bool `json:"stored"`
}

// Service applies white-label entitlement rules over the branding store.
type Service struct {
	store    Store
	partners PartnerDirectory
}

// NewService creates a new branding service.
func NewService(store Store, partners PartnerDirectory) *Service {
	return &Service{store: store, partners: partners}
}

// Effective returns the branding to serve for a partner: their own config
// when the tier includes white-label and one is stored, the platform
// default otherwise.
func (s *Service) Effective(ctx context.Context, partnerID string) (*View, error) {
	p, err := s.partners.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	def, _ := tier.Get(p.Tier)

	stored, err := s.store.Get(ctx, partnerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	v := &View{Config: PlatformDefault, Stored: stored != nil}
	if def.Limits.WhiteLabel && stored != nil {
		v.Config = *stored
		v.WhiteLabel = true
	}
	return v, nil
}

// Update patches a partner's branding. Requires the white-label
// entitlement; the stored config is written as a whole so a later
// downgrade keeps it intact.
func (s *Service) Update(ctx context.Context, partnerID string, patch Patch) (*Config, error) {
	p, err := s.partners.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	def, ok := tier.Get(p.Tier)
	if !ok || !def.Limits.WhiteLabel {
		return nil, ErrNotEntitled
	}

	cfg, err := s.store.Get(ctx, partnerID)
	if errors.Is(err, ErrNotFound) {
		base := PlatformDefault
		base.PartnerID = partnerID
		base.DisplayName = p.Name
		cfg = &base
		err = nil
	}
	if err != nil {
		return nil, err
	}

	// Setting a first custom domain claims a domain slot against the
	// tier's custom_domains limit. Replacing an existing one does not.
	if patch.CustomDomain != nil && *patch.CustomDomain != "" && cfg.CustomDomain == "" {
		if d := tier.CheckLimit(def, tier.ResourceCustomDomains, 0, 1); !d.Allowed {
			return nil, ErrDomainLimitExceeded
		}
	}

	applyPatch(cfg, patch)
	cfg.UpdatedAt = time.Now()

	if err := s.store.Upsert(ctx, cfg); err != nil {
		return nil, err
	}

	logging.P(ctx, partnerID).Info("branding updated", "custom_domain", cfg.CustomDomain)
	return cfg, nil
}

func applyPatch(cfg *Config, patch Patch) {
	set := func(dst *string, src *string, maxLen int) {
		if src != nil {
			*dst = validation.SanitizeString(*src, maxLen)
		}
	}
	set(&cfg.DisplayName, patch.DisplayName, 200)
	set(&cfg.LogoURL, patch.LogoURL, 500)
	set(&cfg.PrimaryColor, patch.PrimaryColor, 20)
	set(&cfg.SecondaryColor, patch.SecondaryColor, 20)
	set(&cfg.SupportEmail, patch.SupportEmail, 200)
	set(&cfg.CustomDomain, patch.CustomDomain, 255)
}
