package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("FLAG_FAST_VERIFICATION", v)
		assert.True(t, Enabled(FastVerification), v)
	}
	for _, v := range []string{"", "0", "off", "maybe"} {
		t.Setenv("FLAG_FAST_VERIFICATION", v)
		assert.False(t, Enabled(FastVerification), v)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("FLAG_VERIFICATION_CHAOS_VALUE", "0.25")
	assert.Equal(t, 0.25, Float(VerificationChaos, 0.1))

	t.Setenv("FLAG_VERIFICATION_CHAOS_VALUE", "lots")
	assert.Equal(t, 0.1, Float(VerificationChaos, 0.1))

	t.Setenv("FLAG_VERIFICATION_CHAOS_VALUE", "")
	assert.Equal(t, 0.1, Float(VerificationChaos, 0.1))
}

func TestSnapshot(t *testing.T) {
	t.Setenv("FLAG_FAST_VERIFICATION", "true")
	t.Setenv("FLAG_VERIFICATION_CHAOS", "")
	assert.Equal(t, map[string]bool{FastVerification: true, VerificationChaos: false}, Snapshot())
}
