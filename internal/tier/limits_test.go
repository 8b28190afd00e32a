package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimit_DeniesAtCap(t *testing.T) {
	silver, _ := Get(Silver)

	// 50 customers on a 50-cap tier: the 51st is denied.
	d := CheckLimit(silver, ResourceCustomers, 50, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50, d.Limit)
	assert.Equal(t, 50, d.Current)
	assert.Contains(t, d.Reason, "upgrade required")

	// One below the cap still fits.
	d = CheckLimit(silver, ResourceCustomers, 49, 1)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

func TestCheckLimit_UnlimitedSentinel(t *testing.T) {
	platinum, _ := Get(Platinum)
	require.Equal(t, Unlimited, platinum.Limits.MaxCustomers)

	d := CheckLimit(platinum, ResourceCustomers, 1_000_000, 1)
	assert.True(t, d.Allowed)
	assert.Equal(t, Unlimited, d.Limit)
}

func TestCheckLimit_ZeroLimit(t *testing.T) {
	bronze, _ := Get(Bronze)

	// Bronze has no custom domain allowance at all.
	d := CheckLimit(bronze, ResourceCustomDomains, 0, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Limit)
}

func TestCheckLimit_AllResources(t *testing.T) {
	gold, _ := Get(Gold)
	for _, res := range []Resource{
		ResourceCustomers, ResourceTenantsPerCustomer, ResourceUsersPerTenant,
		ResourceStorageGB, ResourceAPICallsPerMonth, ResourceCustomDomains,
	} {
		d := CheckLimit(gold, res, 0, 1)
		assert.True(t, d.Allowed, "resource %s at zero usage", res)
	}
}

func TestCheckLimit_UnknownResource(t *testing.T) {
	gold, _ := Get(Gold)
	d := CheckLimit(gold, Resource("gpus"), 0, 1)
	assert.False(t, d.Allowed)
	assert.False(t, ValidResource("gpus"))
}
