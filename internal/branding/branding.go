// Package branding manages white-label branding for partners on tiers
// that include it.
//
// A partner's stored branding survives tier downgrades: reads fall back
// to the platform default while the entitlement is missing and the custom
// branding comes back untouched on re-upgrade.
package branding

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotEntitled         = errors.New("branding: white-label not included in current tier")
	ErrDomainLimitExceeded = errors.New("branding: custom domain limit reached for current tier")
	ErrNotFound            = errors.New("branding: no configuration stored")
)

// Config is a partner's white-label branding.
type Config struct {
	PartnerID      string    `json:"partnerId"`
	DisplayName    string    `json:"displayName"`
	LogoURL        string    `json:"logoUrl,omitempty"`
	PrimaryColor   string    `json:"primaryColor,omitempty"`
	SecondaryColor string    `json:"secondaryColor,omitempty"`
	SupportEmail   string    `json:"supportEmail,omitempty"`
	CustomDomain   string    `json:"customDomain,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PlatformDefault is what non-entitled partners' customers see.
var PlatformDefault = Config{
	DisplayName:    "PartnerHub",
	PrimaryColor:   "#1a56db",
	SecondaryColor: "#f3f4f6",
	SupportEmail:   "support@partnerhub.example",
}

// Patch is a partial branding update. Nil fields are left unchanged.
type Patch struct {
	DisplayName    *string `json:"displayName"`
	LogoURL        *string `json:"logoUrl"`
	PrimaryColor   *string `json:"primaryColor"`
	SecondaryColor *string `json:"secondaryColor"`
	SupportEmail   *string `json:"supportEmail"`
	CustomDomain   *string `json:"customDomain"`
}

// Store persists branding configurations.
type Store interface {
	Get(ctx context.Context, partnerID string) (*Config, error)
	Upsert(ctx context.Context, cfg *Config) error
}
