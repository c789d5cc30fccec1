package compressed_tensors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gpustack/compressed-tensors-go/util/httpx"
	"github.com/gpustack/compressed-tensors-go/util/osx"
)

// ParseCompressedTensorsConfigFromHuggingFace parses the config.json of a
// model repo from Hugging Face(https://huggingface.co/),
// and returns a CompressedTensorsConfig, or an error if any.
func ParseCompressedTensorsConfigFromHuggingFace(ctx context.Context, repo string, opts ...ConfigOption) (*CompressedTensorsConfig, error) {
	ep := osx.Getenv("HF_ENDPOINT", "https://huggingface.co")
	return ParseCompressedTensorsConfigFromRemote(ctx, fmt.Sprintf("%s/%s/resolve/main/config.json", ep, repo), opts...)
}

// ParseCompressedTensorsConfigFromModelScope parses the config.json of a
// model repo from Model Scope(https://modelscope.cn/),
// and returns a CompressedTensorsConfig, or an error if any.
func ParseCompressedTensorsConfigFromModelScope(ctx context.Context, repo string, opts ...ConfigOption) (*CompressedTensorsConfig, error) {
	ep := osx.Getenv("MS_ENDPOINT", "https://modelscope.cn")
	return ParseCompressedTensorsConfigFromRemote(ctx, fmt.Sprintf("%s/models/%s/resolve/master/config.json", ep, repo), opts...)
}

// ParseCompressedTensorsConfigFromRemote parses a model's config.json from a
// remote URL, and returns a CompressedTensorsConfig, or an error if any.
func ParseCompressedTensorsConfigFromRemote(ctx context.Context, url string, opts ...ConfigOption) (cfg *CompressedTensorsConfig, err error) {
	var o _ConfigOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Cache.
	cc := CompressedTensorsConfigCache(o.CachePath)
	{
		if bs, err := cc.Get(url, o.CacheExpiration); err == nil {
			return parseCompressedTensorsConfigBytes(bs, opts...)
		}
	}

	cli := httpx.Client(
		httpx.ClientOptions().
			WithUserAgent("compressed-tensors-go").
			If(o.Debug,
				func(x *httpx.ClientOption) *httpx.ClientOption {
					return x.WithDebug()
				},
			).
			If(o.BearerAuthToken != "",
				func(x *httpx.ClientOption) *httpx.ClientOption {
					return x.WithBearerAuth(o.BearerAuthToken)
				},
			).
			WithTimeout(0).
			WithTransport(
				httpx.TransportOptions().
					WithoutKeepalive().
					TimeoutForDial(5*time.Second).
					TimeoutForTLSHandshake(5*time.Second).
					TimeoutForResponseHeader(5*time.Second).
					If(o.SkipProxy,
						func(x *httpx.TransportOption) *httpx.TransportOption {
							return x.WithoutProxy()
						},
					).
					If(o.ProxyURL != nil,
						func(x *httpx.TransportOption) *httpx.TransportOption {
							return x.WithProxy(http.ProxyURL(o.ProxyURL))
						},
					).
					If(o.SkipTLSVerification || !strings.HasPrefix(url, "https://"),
						func(x *httpx.TransportOption) *httpx.TransportOption {
							return x.WithoutInsecureVerify()
						},
					).
					If(o.SkipDNSCache,
						func(x *httpx.TransportOption) *httpx.TransportOption {
							return x.WithoutDNSCache()
						},
					),
			),
	)

	req, err := httpx.NewGetRequestWithContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	var bs []byte
	err = httpx.Do(cli, req, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status code %d", resp.StatusCode)
		}
		bs = httpx.BodyBytes(resp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch remote config: %w", err)
	}

	cfg, err = parseCompressedTensorsConfigBytes(bs, opts...)
	if err == nil {
		_ = cc.Put(url, bs)
	}
	return cfg, err
}
