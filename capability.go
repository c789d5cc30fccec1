package compressed_tensors

import (
	"errors"
	"strconv"
)

var ErrCapabilityUnsupported = errors.New("quantization scheme is not supported for the current device")

// DeviceCapability is a device's numeric identifier of supported hardware
// instruction generations, used as a minimum-version gate.
type DeviceCapability struct {
	Major int
	Minor int
}

func (c DeviceCapability) String() string {
	return strconv.Itoa(c.Major) + "." + strconv.Itoa(c.Minor)
}

// ToInt expresses the capability as an integer <major><minor>.
//
// The minor version is assumed to be a single digit.
func (c DeviceCapability) ToInt() int {
	return c.Major*10 + c.Minor
}

// DeviceCapabilityProvider reports the running device's capability,
// returning false if no capable device is present.
type DeviceCapabilityProvider func() (DeviceCapability, bool)

var deviceCapabilityProvider DeviceCapabilityProvider

// RegisterDeviceCapabilityProvider installs the process-wide capability
// source, usually done by the device runtime binding at start up.
//
// Without a provider, and without a per-config WithDeviceCapability
// override, every capability check reports unsupported.
func RegisterDeviceCapabilityProvider(p DeviceCapabilityProvider) {
	deviceCapabilityProvider = p
}
