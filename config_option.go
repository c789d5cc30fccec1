package compressed_tensors

import (
	"net/url"
	"time"

	"github.com/go-logr/logr"

	"github.com/gpustack/compressed-tensors-go/util/ptr"
)

type (
	_ConfigOptions struct {
		Logger           logr.Logger
		DeviceCapability *DeviceCapability

		Debug bool

		// Remote.
		ProxyURL            *url.URL
		SkipProxy           bool
		SkipTLSVerification bool
		SkipDNSCache        bool
		BearerAuthToken     string
		CachePath           string
		CacheExpiration     time.Duration
	}
	ConfigOption func(o *_ConfigOptions)
)

// WithLogger uses the given logger for warning and debug output,
// scoped to the parsed config's lifecycle.
func WithLogger(l logr.Logger) ConfigOption {
	return func(o *_ConfigOptions) {
		o.Logger = l
	}
}

// WithDeviceCapability overrides the process-wide device capability provider
// for this config, which is mainly useful for planning against a device
// other than the running one.
func WithDeviceCapability(major, minor int) ConfigOption {
	return func(o *_ConfigOptions) {
		o.DeviceCapability = ptr.To(DeviceCapability{Major: major, Minor: minor})
	}
}

// UseDebug uses debug mode when fetching from a remote URL.
func UseDebug() ConfigOption {
	return func(o *_ConfigOptions) {
		o.Debug = true
	}
}

// UseProxy uses the given url as a proxy when fetching from a remote URL.
func UseProxy(url *url.URL) ConfigOption {
	return func(o *_ConfigOptions) {
		o.ProxyURL = url
	}
}

// SkipProxy skips the proxy when fetching from a remote URL.
func SkipProxy() ConfigOption {
	return func(o *_ConfigOptions) {
		o.SkipProxy = true
	}
}

// SkipTLSVerification skips the TLS verification when fetching from a remote URL.
func SkipTLSVerification() ConfigOption {
	return func(o *_ConfigOptions) {
		o.SkipTLSVerification = true
	}
}

// SkipDNSCache skips the DNS cache when fetching from a remote URL.
func SkipDNSCache() ConfigOption {
	return func(o *_ConfigOptions) {
		o.SkipDNSCache = true
	}
}

// UseBearerAuth uses the given token as a bearer auth when fetching from a
// remote URL.
func UseBearerAuth(token string) ConfigOption {
	return func(o *_ConfigOptions) {
		o.BearerAuthToken = token
	}
}

// UseCachePath caches the fetched config under the given path.
func UseCachePath(path string) ConfigOption {
	return func(o *_ConfigOptions) {
		o.CachePath = path
	}
}

// UseCacheExpiration expires the cached config after the given duration,
// zero means never.
func UseCacheExpiration(exp time.Duration) ConfigOption {
	return func(o *_ConfigOptions) {
		o.CacheExpiration = exp
	}
}
