package compressed_tensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceCapability(t *testing.T) {
	cases := []struct {
		given       DeviceCapability
		expectedInt int
		expectedStr string
	}{
		{DeviceCapability{Major: 8, Minor: 0}, 80, "8.0"},
		{DeviceCapability{Major: 8, Minor: 9}, 89, "8.9"},
		{DeviceCapability{Major: 9, Minor: 0}, 90, "9.0"},
		{DeviceCapability{Major: 7, Minor: 5}, 75, "7.5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expectedInt, tc.given.ToInt())
		assert.Equal(t, tc.expectedStr, tc.given.String())
	}
}

func TestRegisterDeviceCapabilityProvider(t *testing.T) {
	t.Cleanup(func() {
		deviceCapabilityProvider = nil
	})

	RegisterDeviceCapabilityProvider(func() (DeviceCapability, bool) {
		return DeviceCapability{Major: 8, Minor: 6}, true
	})

	c, err := ParseCompressedTensorsConfig(map[string]any{"format": "dense"})
	assert.NoError(t, err)

	supported, err := c.checkSchemeSupported(80, true)
	assert.True(t, supported)
	assert.NoError(t, err)

	// Per-config override wins over the process-wide provider.
	c, err = ParseCompressedTensorsConfig(map[string]any{"format": "dense"}, WithDeviceCapability(7, 0))
	assert.NoError(t, err)

	supported, _ = c.checkSchemeSupported(80, false)
	assert.False(t, supported)
}
