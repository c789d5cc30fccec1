package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr/funcr"
	"github.com/olekukonko/tablewriter"

	"github.com/gpustack/compressed-tensors-go/util/json"
	"github.com/gpustack/compressed-tensors-go/util/signalx"

	. "github.com/gpustack/compressed-tensors-go"
)

var Version = "v0.0.0"

func main() {
	ctx := signalx.Handler()

	// Parse arguments.

	var (
		// config source options
		path   string
		url    string
		hfRepo string
		msRepo string
		token  string
		// read options
		debug         bool
		skipProxy     bool
		skipTLSVerify bool
		skipDNSCache  bool
		cachePath     string
		// selection options
		capability string
		layers     string
		// output options
		verbose bool
		asJSON  bool
		version bool
	)
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage of compressed-tensors %v:\n", Version)
		fs.PrintDefaults()
	}
	fs.StringVar(&path, "path", path, "Path of a model config.json, or a bare quantization_config document.")
	fs.StringVar(&url, "url", url, "URL of a model config.json.")
	fs.StringVar(&hfRepo, "hf-repo", hfRepo, "Hugging Face repo, e.g. neuralmagic/Meta-Llama-3-8B-Instruct-FP8.")
	fs.StringVar(&msRepo, "ms-repo", msRepo, "Model Scope repo.")
	fs.StringVar(&token, "token", token, "Bearer auth token for fetching.")
	fs.BoolVar(&debug, "debug", debug, "Enable debugging of the remote fetching.")
	fs.BoolVar(&skipProxy, "skip-proxy", skipProxy, "Skip the proxy when fetching.")
	fs.BoolVar(&skipTLSVerify, "skip-tls-verify", skipTLSVerify, "Skip the TLS verification when fetching.")
	fs.BoolVar(&skipDNSCache, "skip-dns-cache", skipDNSCache, "Skip the DNS cache when fetching.")
	fs.StringVar(&cachePath, "cache-path", cachePath, "Cache the fetched config under the given path.")
	fs.StringVar(&capability, "device-capability", "9.0", "Device compute capability to select schemes for, e.g. 8.9.")
	fs.StringVar(&layers, "layers", "model.layers.0.self_attn.qkv_proj,model.layers.0.mlp.down_proj,lm_head",
		"Comma-separated layer names to resolve schemes for.")
	fs.BoolVar(&verbose, "verbose", verbose, "Log scheme selection to stderr.")
	fs.BoolVar(&asJSON, "json", asJSON, "Output as JSON.")
	fs.BoolVar(&version, "version", version, "Show version.")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if version {
		fmt.Println(Version)
		return
	}

	major, minor, err := parseCapability(capability)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid -device-capability: %v\n", err)
		os.Exit(1)
	}

	opts := []ConfigOption{
		WithDeviceCapability(major, minor),
	}
	if debug {
		opts = append(opts, UseDebug())
	}
	if skipProxy {
		opts = append(opts, SkipProxy())
	}
	if skipTLSVerify {
		opts = append(opts, SkipTLSVerification())
	}
	if skipDNSCache {
		opts = append(opts, SkipDNSCache())
	}
	if token != "" {
		opts = append(opts, UseBearerAuth(token))
	}
	if cachePath != "" {
		opts = append(opts, UseCachePath(cachePath))
	}
	if verbose {
		opts = append(opts, WithLogger(funcr.New(func(prefix, args string) {
			_, _ = fmt.Fprintln(os.Stderr, args)
		}, funcr.Options{Verbosity: 1})))
	}

	// Parse config.

	var cfg *CompressedTensorsConfig
	switch {
	case path != "":
		cfg, err = ParseCompressedTensorsConfigFromFile(path, opts...)
	case url != "":
		cfg, err = ParseCompressedTensorsConfigFromRemote(ctx, url, opts...)
	case hfRepo != "":
		cfg, err = ParseCompressedTensorsConfigFromHuggingFace(ctx, hfRepo, opts...)
	case msRepo != "":
		cfg, err = ParseCompressedTensorsConfigFromModelScope(ctx, msRepo, opts...)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "no config source given, provide one of -path, -url, -hf-repo, -ms-repo\n")
		os.Exit(1)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(1)
	}

	// Resolve schemes.

	type resolution struct {
		Layer  string `json:"layer"`
		Scheme string `json:"scheme"`
		MinCap int    `json:"minCapability,omitempty"`
		Error  string `json:"error,omitempty"`
	}

	var rs []resolution
	for _, name := range strings.Split(layers, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		r := resolution{Layer: name}

		layer := &LinearLayer{}
		switch m, err := cfg.GetQuantMethod(layer, name); {
		case err != nil:
			r.Error = err.Error()
		case layer.Scheme() != nil:
			s := layer.Scheme()
			r.Scheme = describeScheme(s)
			r.MinCap = s.MinCapability()
		case m != nil:
			r.Scheme = "Unquantized"
		default:
			r.Scheme = "-"
		}

		rs = append(rs, r)
	}

	// Output.

	if asJSON {
		bs, err := json.Marshal(rs)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(bs))
		return
	}

	tb := tablewriter.NewWriter(os.Stdout)
	tb.SetHeader([]string{"Layer", "Scheme", "Min Capability"})
	tb.SetAutoWrapText(false)
	for i := range rs {
		mc := ""
		if rs[i].MinCap != 0 {
			mc = strconv.Itoa(rs[i].MinCap)
		}
		sc := rs[i].Scheme
		if rs[i].Error != "" {
			sc = "error: " + rs[i].Error
		}
		tb.Append([]string{rs[i].Layer, sc, mc})
	}
	tb.Render()
}

func parseCapability(s string) (major, minor int, err error) {
	mj, mn, ok := strings.Cut(s, ".")
	if !ok {
		return 0, 0, fmt.Errorf("expected <major>.<minor>, got %q", s)
	}
	if major, err = strconv.Atoi(mj); err != nil {
		return 0, 0, err
	}
	if minor, err = strconv.Atoi(mn); err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

func describeScheme(s Scheme) string {
	switch v := s.(type) {
	case SchemeWNA16:
		return fmt.Sprintf("%v(bits=%d, group=%d)", s.Kind(), v.NumBits, v.GroupSize)
	case SchemeW4A16Sparse24:
		return fmt.Sprintf("%v(bits=%d, group=%d)", s.Kind(), v.NumBits, v.GroupSize)
	case SchemeSparse24:
		return fmt.Sprintf("%v(quantized=%t)", s.Kind(), v.Quantized)
	case SchemeW8A8Fp8:
		return fmt.Sprintf("%v(static=%t)", s.Kind(), v.IsStaticInputScheme)
	case SchemeW8A16Fp8:
		return fmt.Sprintf("%v(static=%t)", s.Kind(), v.IsStaticInputScheme)
	case SchemeW8A8Int8:
		return fmt.Sprintf("%v(static=%t)", s.Kind(), v.IsStaticInputScheme)
	default:
		return fmt.Sprintf("%v", s.Kind())
	}
}
