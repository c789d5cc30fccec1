package compressed_tensors

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/exp/maps"

	"github.com/gpustack/compressed-tensors-go/util/anyx"
)

var (
	ErrInvalidConfig     = errors.New("invalid compressed-tensors config")
	ErrSchemeUnsupported = errors.New("no compressed-tensors compatible scheme was found")
)

const _SparsityConfigName = "sparsity_config"

// Types for CompressedTensorsConfig.
type (
	// TargetScheme is the per-target pair of quantization axes.
	//
	// InputActivations is nil for weight-only targets.
	TargetScheme struct {
		Weights          *QuantizationArgs
		InputActivations *QuantizationArgs
	}

	// CompressedTensorsConfig is the parsed whole-model quantization
	// configuration.
	//
	// It is created once at model-configuration-load time, immutable
	// afterwards, and referenced (not copied) by every layer's quantize
	// method.
	CompressedTensorsConfig struct {
		// TargetSchemeMap maps a target to its quantization axes.
		TargetSchemeMap map[string]TargetScheme
		// Ignore lists the targets to skip for quantization.
		Ignore []string
		// QuantFormat identifies the checkpoint's format family.
		QuantFormat CompressionFormat
		// SparsitySchemeMap maps a target to its sparsity config.
		SparsitySchemeMap map[string]*SparsityCompressionConfig
		// SparsityIgnoreList lists the targets to skip for sparsity.
		SparsityIgnoreList []string
		// KVCacheScheme is the attention-cache quantization section,
		// consumed by the cache subsystem as opaque key/value data.
		KVCacheScheme map[string]any
		// PackedModulesMapping maps a fused layer name to its constituent
		// original names.
		PackedModulesMapping map[string][]string

		raw        map[string]any
		logger     logr.Logger
		capability *DeviceCapability
		warned     map[string]struct{}
	}
)

// ParseCompressedTensorsConfig parses the given quantization_config mapping,
// and returns a CompressedTensorsConfig, or an error if any.
func ParseCompressedTensorsConfig(raw map[string]any, opts ...ConfigOption) (*CompressedTensorsConfig, error) {
	var o _ConfigOptions
	o.Logger = logr.Discard()
	for _, opt := range opts {
		opt(&o)
	}

	c := &CompressedTensorsConfig{
		raw:        raw,
		logger:     o.Logger,
		capability: o.DeviceCapability,
		warned:     make(map[string]struct{}),
	}

	qf := anyx.String(raw["format"])
	if qf == "" {
		return nil, fmt.Errorf("%w: format is required", ErrInvalidConfig)
	}
	c.QuantFormat = CompressionFormat(qf)
	if !c.QuantFormat.IsValid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, qf)
	}

	c.Ignore = stringSlice(raw["ignore"])
	c.KVCacheScheme, _ = raw["kv_cache_scheme"].(map[string]any)
	c.PackedModulesMapping = parsePackedModulesMapping(raw["packed_modules_mapping"])

	var err error
	c.TargetSchemeMap, err = parseTargetSchemeMap(raw, c.QuantFormat)
	if err != nil {
		return nil, err
	}

	c.SparsitySchemeMap, c.SparsityIgnoreList, err = parseSparsityConfig(raw)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// parseTargetSchemeMap flattens the config_groups mapping into a mapping
// from target to its weight/input-activation quantization args.
//
// Each config group holds a weights key, an optional input_activations key,
// and a targets list naming the layers the group applies to. A target
// appearing in several groups keeps the last written scheme.
func parseTargetSchemeMap(raw map[string]any, quantFormat CompressionFormat) (map[string]TargetScheme, error) {
	tsm := make(map[string]TargetScheme)

	groups, _ := raw["config_groups"].(map[string]any)
	gns := maps.Keys(groups)
	slices.Sort(gns)
	for _, gn := range gns {
		group, ok := groups[gn].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: config group %q is not a mapping", ErrInvalidConfig, gn)
		}

		weights, err := ParseQuantizationArgs(group["weights"])
		if err != nil {
			return nil, fmt.Errorf("config group %q weights: %w", gn, err)
		}

		var inputActivations *QuantizationArgs
		if quantFormat.IsActivationQuantization() {
			if ia := group["input_activations"]; ia == nil {
				// The only activation-quantizing format case without an
				// input_activations section is float weight-only (w8a16fp8),
				// which can also run with an ignored input quant.
				if weights.Type != QuantizationTypeFloat {
					return nil, fmt.Errorf("%w: config group %q expects input_activations under format %q",
						ErrInvalidConfig, gn, quantFormat)
				}
			} else {
				inputActivations, err = ParseQuantizationArgs(ia)
				if err != nil {
					return nil, fmt.Errorf("config group %q input_activations: %w", gn, err)
				}
			}
		}

		for _, target := range stringSlice(group["targets"]) {
			tsm[target] = TargetScheme{
				Weights:          weights,
				InputActivations: inputActivations,
			}
		}
	}

	return tsm, nil
}

// parseSparsityConfig maps every target of the sparsity_config section to
// the single sparsity config object, and returns its ignore list separately.
func parseSparsityConfig(raw map[string]any) (map[string]*SparsityCompressionConfig, []string, error) {
	sc, ok := raw[_SparsityConfigName]
	if !ok || sc == nil {
		return map[string]*SparsityCompressionConfig{}, nil, nil
	}

	c, err := ParseSparsityCompressionConfig(sc)
	if err != nil {
		return nil, nil, err
	}

	ssm := make(map[string]*SparsityCompressionConfig, len(c.Targets))
	for _, target := range c.Targets {
		ssm[target] = c
	}
	return ssm, c.Ignore, nil
}

func parsePackedModulesMapping(v any) map[string][]string {
	vm, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	m := make(map[string][]string, len(vm))
	for k := range vm {
		m[k] = stringSlice(vm[k])
	}
	return m
}

func stringSlice(v any) []string {
	vs, ok := v.([]any)
	if !ok {
		return nil
	}
	ss := make([]string, 0, len(vs))
	for i := range vs {
		ss = append(ss, anyx.String(vs[i]))
	}
	return ss
}

// Name returns the name of the quantization method family.
func (c *CompressedTensorsConfig) Name() string {
	return "compressed_tensors"
}

// MinCapability returns the minimum device capability of the method family,
// individual schemes gate stricter minimums on top.
func (c *CompressedTensorsConfig) MinCapability() int {
	return 70
}

// SupportedActDTypes returns the activation dtypes the method accepts.
func (c *CompressedTensorsConfig) SupportedActDTypes() []DType {
	return []DType{DTypeF16, DTypeBF16}
}

// GetScheme selects the scheme the given layer runs under,
// or nil if the layer falls back to the unquantized execution path.
//
// Targets of config_groups support non-uniform quantization: each group has
// a list of targets which can be a full layer name, a regex for a layer
// name, or a module type name. The layer's matched target decides its
// quantization args, and the sparsity targets decide its sparsity config,
// with fused layers inheriting their first component's schemes.
func (c *CompressedTensorsConfig) GetScheme(layer Module, layerName string) (Scheme, error) {
	// Empty for checkpoints with only sparsity.
	var weightQuant, inputQuant *QuantizationArgs
	if len(c.TargetSchemeMap) != 0 {
		targets := maps.Keys(c.TargetSchemeMap)
		slices.Sort(targets)

		matched, err := FindMatchedTarget(layerName, layer, targets, c.PackedModulesMapping)
		if err != nil {
			return nil, err
		}

		ts := c.TargetSchemeMap[matched]
		weightQuant, inputQuant = ts.Weights, ts.InputActivations
	}

	var sparsityScheme *SparsityCompressionConfig
	{
		targets := maps.Keys(c.SparsitySchemeMap)
		slices.Sort(targets)
		targets = slices.DeleteFunc(targets, func(t string) bool {
			return slices.Contains(c.SparsityIgnoreList, t)
		})

		matched, err := FindMatchedTarget(layerName, layer, targets, c.PackedModulesMapping)
		switch {
		case err == nil:
			sparsityScheme = c.SparsitySchemeMap[matched]
		case !errors.Is(err, ErrNoMatchedTarget):
			return nil, err
		}
	}

	var scheme Scheme
	switch {
	case SupportsSparse24(weightQuant, inputQuant, sparsityScheme):
		var compressionConfig map[string]any
		if sparsityScheme.Format != CompressionFormatDense {
			compressionConfig = c.raw
		}
		scheme = SchemeSparse24{
			Quantized:         weightQuant != nil || inputQuant != nil,
			WeightQuant:       weightQuant,
			InputQuant:        inputQuant,
			CompressionConfig: compressionConfig,
		}
	case weightQuant == nil:
		c.warnOnce("unquantized-fallback",
			"acceleration for non-quantized schemes is not supported by compressed-tensors, "+
				"falling back to the unquantized method")
		return nil, nil
	default:
		s, err := c.schemeFromParts(weightQuant, inputQuant)
		if err != nil {
			return nil, err
		}
		scheme = s
	}

	// E.g. fp8 needs Ada Lovelace.
	if _, err := c.checkSchemeSupported(scheme.MinCapability(), true); err != nil {
		return nil, err
	}
	c.logger.V(1).Info("selected scheme", "scheme", scheme.Kind().String(), "layer", layerName)
	return scheme, nil
}

// schemeFromParts classifies a weight/input quantization pair into a scheme.
//
// The branch order matters: mixed-precision weight-only shapes are probed
// first, then the activation-quantizing shapes in fixed priority.
func (c *CompressedTensorsConfig) schemeFromParts(weightQuant, inputQuant *QuantizationArgs) (Scheme, error) {
	if isWNA16GroupChannel(weightQuant, inputQuant) {
		if c.QuantFormat == CompressionFormatMarlin24 &&
			slices.Contains(W4A16Sparse24SupportedBits, weightQuant.NumBits) {
			return SchemeW4A16Sparse24{
				NumBits:   weightQuant.NumBits,
				Strategy:  weightQuant.Strategy,
				GroupSize: weightQuant.GetGroupSize(-1),
			}, nil
		}
		if c.QuantFormat == CompressionFormatPackQuantized &&
			slices.Contains(WNA16SupportedBits, weightQuant.NumBits) {
			return SchemeWNA16{
				NumBits:   weightQuant.NumBits,
				Strategy:  weightQuant.Strategy,
				GroupSize: weightQuant.GetGroupSize(-1),
				ActOrder:  weightQuant.ActOrder,
			}, nil
		}
	}

	if c.QuantFormat.IsActivationQuantization() {
		if isFp8W8A8(weightQuant, inputQuant) {
			supported, _ := c.checkSchemeSupported(SchemeW8A8Fp8{}.MinCapability(), false)
			if supported {
				return SchemeW8A8Fp8{
					Strategy:            weightQuant.Strategy,
					IsStaticInputScheme: inputQuant != nil && !inputQuant.Dynamic,
				}, nil
			}
			// Input quant stays present for converted checkpoints,
			// it is ignored during inference after loading.
			return SchemeW8A16Fp8{
				Strategy:            weightQuant.Strategy,
				IsStaticInputScheme: !inputQuant.Dynamic,
			}, nil
		}

		// Input quant can be nil here.
		if isFp8W8A16(weightQuant, inputQuant) {
			return SchemeW8A16Fp8{
				Strategy:            weightQuant.Strategy,
				IsStaticInputScheme: inputQuant != nil && !inputQuant.Dynamic,
			}, nil
		}

		if isStaticTensorW8A8(weightQuant, inputQuant) {
			return SchemeW8A8Int8{
				Strategy:            weightQuant.Strategy,
				IsStaticInputScheme: true,
				InputSymmetric:      inputQuant.Symmetric,
			}, nil
		}

		if isDynamicTokenW8A8(weightQuant, inputQuant) {
			return SchemeW8A8Int8{
				Strategy:            weightQuant.Strategy,
				IsStaticInputScheme: false,
				InputSymmetric:      inputQuant.Symmetric,
			}, nil
		}
	}

	return nil, ErrSchemeUnsupported
}

// SupportsSparse24 checks if the layer is supported by the sparse 2:4 kernel.
//
// Conditions:
//   - the sparsity structure is 2:4 and stored dense or 2:4-bitmask;
//   - unquantized cases are supported;
//   - weight-only quantization is not supported;
//   - supported weight quantization strategies are tensor and channel;
//   - supported input quantization strategies are tensor and token;
//   - only 8 bit quantization is supported.
func SupportsSparse24(weightQuant, inputQuant *QuantizationArgs, sparsityScheme *SparsityCompressionConfig) bool {
	if sparsityScheme == nil || !sparsityScheme.IsTwoFour() {
		return false
	}
	switch sparsityScheme.Format {
	case CompressionFormatDense, CompressionFormatSparse24Bitmask:
	default:
		return false
	}

	if weightQuant == nil && inputQuant == nil {
		return true
	}
	if weightQuant == nil || inputQuant == nil {
		return false
	}

	switch weightQuant.Strategy {
	case QuantizationStrategyTensor, QuantizationStrategyChannel:
	default:
		return false
	}
	switch inputQuant.Strategy {
	case QuantizationStrategyTensor, QuantizationStrategyToken:
	default:
		return false
	}

	return weightQuant.NumBits == 8 && inputQuant.NumBits == 8
}

func isStaticTensorW8A8(weightQuant, inputQuant *QuantizationArgs) bool {
	if weightQuant == nil || inputQuant == nil {
		return false
	}

	is8Bits := weightQuant.NumBits == 8 && inputQuant.NumBits == 8
	isWeightStrategy := weightQuant.Strategy == QuantizationStrategyTensor ||
		weightQuant.Strategy == QuantizationStrategyChannel
	isTensor := isWeightStrategy && inputQuant.Strategy == QuantizationStrategyTensor
	isStatic := !weightQuant.Dynamic && !inputQuant.Dynamic

	// Both symmetric and asymmetric input quantization supported.
	// Only symmetric weight quantization supported.
	return is8Bits && isTensor && weightQuant.Symmetric && isStatic
}

func isDynamicTokenW8A8(weightQuant, inputQuant *QuantizationArgs) bool {
	if weightQuant == nil || inputQuant == nil {
		return false
	}

	is8Bits := weightQuant.NumBits == 8 && inputQuant.NumBits == 8
	isWeightStrategy := weightQuant.Strategy == QuantizationStrategyTensor ||
		weightQuant.Strategy == QuantizationStrategyChannel
	isToken := isWeightStrategy && inputQuant.Strategy == QuantizationStrategyToken
	isDynamic := !weightQuant.Dynamic && inputQuant.Dynamic

	// Both symmetric and asymmetric input quantization supported.
	// Only symmetric weight quantization supported.
	return is8Bits && isToken && weightQuant.Symmetric && isDynamic
}

func isFp8W8A8(weightQuant, inputQuant *QuantizationArgs) bool {
	// Confirm weights and activations quantized.
	if weightQuant == nil || inputQuant == nil {
		return false
	}

	// Confirm weight scheme is supported.
	isFloatingPoint := weightQuant.Type == QuantizationTypeFloat &&
		inputQuant.Type == QuantizationTypeFloat
	isPerTensorOrChannelWeight := weightQuant.Strategy == QuantizationStrategyTensor ||
		weightQuant.Strategy == QuantizationStrategyChannel
	if !isFloatingPoint || !weightQuant.Symmetric || weightQuant.Dynamic || !isPerTensorOrChannelWeight {
		return false
	}

	// Dynamic quantization is always supported if weights supported.
	if inputQuant.Dynamic {
		return true
	}

	// Confirm activation scheme is supported.
	return inputQuant.Symmetric && inputQuant.Strategy == QuantizationStrategyTensor
}

func isFp8W8A16(weightQuant, inputQuant *QuantizationArgs) bool {
	// Confirm weights quantized with floating points,
	// the input quant does not matter for eligibility.
	_ = inputQuant
	if weightQuant == nil || weightQuant.Type != QuantizationTypeFloat {
		return false
	}

	// Confirm weight scheme is supported.
	isPerTensorOrChannelWeight := weightQuant.Strategy == QuantizationStrategyTensor ||
		weightQuant.Strategy == QuantizationStrategyChannel
	return weightQuant.Symmetric && !weightQuant.Dynamic && isPerTensorOrChannelWeight
}

func isWNA16GroupChannel(weightQuant, inputQuant *QuantizationArgs) bool {
	if weightQuant == nil || inputQuant != nil {
		return false
	}

	isChannelGroup := weightQuant.Strategy == QuantizationStrategyChannel ||
		weightQuant.Strategy == QuantizationStrategyGroup
	return isChannelGroup && weightQuant.Symmetric && !weightQuant.Dynamic
}

// checkSchemeSupported verifies the device capability against the given
// minimum. In fatal mode an unmet minimum is returned as an
// ErrCapabilityUnsupported error identifying both values, otherwise the
// result is advisory.
func (c *CompressedTensorsConfig) checkSchemeSupported(minCapability int, fatal bool) (bool, error) {
	dc, ok := c.deviceCapability()
	if !ok {
		if fatal {
			return false, fmt.Errorf("%w: no capable device detected, min capability: %d",
				ErrCapabilityUnsupported, minCapability)
		}
		return false, nil
	}

	supported := dc.ToInt() >= minCapability
	if fatal && !supported {
		return false, fmt.Errorf("%w: min capability: %d, current capability: %d",
			ErrCapabilityUnsupported, minCapability, dc.ToInt())
	}
	return supported, nil
}

func (c *CompressedTensorsConfig) deviceCapability() (DeviceCapability, bool) {
	if c.capability != nil {
		return *c.capability, true
	}
	if deviceCapabilityProvider != nil {
		return deviceCapabilityProvider()
	}
	return DeviceCapability{}, false
}

// GetCacheScale checks whether the param name matches the format for k/v
// cache scales in compressed-tensors, and if so returns the equivalent
// attention-cache-scale param name.
func (c *CompressedTensorsConfig) GetCacheScale(name string) (string, bool) {
	if strings.HasSuffix(name, ".output_scale") && strings.Contains(name, ".k_proj") {
		return strings.Replace(name, ".k_proj.output_scale", ".attn.k_scale", 1), true
	}
	if strings.HasSuffix(name, ".output_scale") && strings.Contains(name, ".v_proj") {
		return strings.Replace(name, ".v_proj.output_scale", ".attn.v_scale", 1), true
	}
	return "", false
}

// warnOnce deduplicates warnings within one model-load session,
// the config's lifecycle, instead of process-wide.
func (c *CompressedTensorsConfig) warnOnce(key, msg string) {
	if _, ok := c.warned[key]; ok {
		return
	}
	if c.warned == nil {
		c.warned = make(map[string]struct{}, 1)
	}
	c.warned[key] = struct{}{}
	c.logger.Info(msg)
}
