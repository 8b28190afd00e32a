package partner

import (
	"testing"

	"github.com/partnerhq/partnerhub/internal/tier"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveRateBPS(t *testing.T) {
	p := &Partner{Tier: tier.Silver}
	assert.Equal(t, 2000, p.EffectiveRateBPS())

	override := 2750
	p.RateOverrideBPS = &override
	assert.Equal(t, 2750, p.EffectiveRateBPS())

	p.RateOverrideBPS = nil
	p.Tier = tier.Platinum
	assert.Equal(t, 3000, p.EffectiveRateBPS())

	p.Tier = "unknown"
	assert.Equal(t, 0, p.EffectiveRateBPS())
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusActive))
	assert.True(t, ValidStatus(StatusSuspended))
	assert.True(t, ValidStatus(StatusPending))
	assert.False(t, ValidStatus("deleted"))

	assert.True(t, ValidCustomerStatus(CustomerTrial))
	assert.True(t, ValidCustomerStatus(CustomerChurned))
	assert.False(t, ValidCustomerStatus("paused"))
}
