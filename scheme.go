package compressed_tensors

import (
	"errors"
	"fmt"
	"slices"
)

// Types for Scheme.
type (
	// SchemeKind identifies one concrete numeric-kernel selection.
	SchemeKind uint32

	// Scheme is the concrete numeric-precision/kernel choice bound to one
	// layer, carrying only the tunables relevant to its kind.
	//
	// Exactly one Scheme is attached to a layer at initialization and never
	// changes afterwards. The set of kinds is closed, and the numeric work
	// behind each kind is delegated to a registered Kernel.
	Scheme interface {
		// Kind returns the kind of the scheme.
		Kind() SchemeKind
		// MinCapability returns the minimum device capability required to
		// run the scheme's kernel.
		MinCapability() int
	}
)

// SchemeKind constants.
const (
	SchemeKindUnknown       SchemeKind = iota // Unknown
	SchemeKindUnquantized                     // Unquantized
	SchemeKindW8A8Fp8                         // W8A8Fp8
	SchemeKindW8A16Fp8                        // W8A16Fp8
	SchemeKindW8A8Int8                        // W8A8Int8
	SchemeKindWNA16                           // WNA16
	SchemeKindW4A16Sparse24                   // W4A16Sparse24
	SchemeKindSparse24                        // Sparse24
)

// Supported weight bit widths.
var (
	// WNA16SupportedBits are the weight bit widths the packed wNa16 kernel accepts.
	WNA16SupportedBits = []int{4, 8}
	// W4A16Sparse24SupportedBits are the weight bit widths the marlin-24 kernel accepts.
	W4A16Sparse24SupportedBits = []int{4, 8}
)

type (
	// SchemeUnquantized is the pass-through scheme for layers that are not
	// quantized but still route through a quantize method.
	SchemeUnquantized struct{}

	// SchemeW8A8Fp8 is FP8 weights with FP8 activations.
	SchemeW8A8Fp8 struct {
		Strategy QuantizationStrategy
		// IsStaticInputScheme means the activation scale is precomputed
		// instead of derived at each forward pass.
		IsStaticInputScheme bool
	}

	// SchemeW8A16Fp8 is FP8 weights with 16-bit activations,
	// also the graceful degradation of SchemeW8A8Fp8 on devices below its
	// minimum capability.
	SchemeW8A16Fp8 struct {
		Strategy            QuantizationStrategy
		IsStaticInputScheme bool
	}

	// SchemeW8A8Int8 is INT8 weights with INT8 activations,
	// static per-tensor or dynamic per-token.
	SchemeW8A8Int8 struct {
		Strategy            QuantizationStrategy
		IsStaticInputScheme bool
		InputSymmetric      bool
	}

	// SchemeWNA16 is weight-only N-bit grouped or per-channel quantization
	// with 16-bit activations.
	SchemeWNA16 struct {
		NumBits   int
		Strategy  QuantizationStrategy
		GroupSize int
		ActOrder  ActivationOrdering
	}

	// SchemeW4A16Sparse24 is weight-only N-bit quantization packed in the
	// marlin-24 format on top of 2:4 structured sparsity.
	SchemeW4A16Sparse24 struct {
		NumBits   int
		Strategy  QuantizationStrategy
		GroupSize int
	}

	// SchemeSparse24 is 2:4 structured sparsity,
	// optionally additionally quantized on both weights and activations.
	SchemeSparse24 struct {
		Quantized   bool
		WeightQuant *QuantizationArgs
		InputQuant  *QuantizationArgs
		// CompressionConfig is the whole quantization_config mapping,
		// present only for non-dense sparsity storage formats.
		CompressionConfig map[string]any
	}
)

func (SchemeUnquantized) Kind() SchemeKind   { return SchemeKindUnquantized }
func (SchemeW8A8Fp8) Kind() SchemeKind       { return SchemeKindW8A8Fp8 }
func (SchemeW8A16Fp8) Kind() SchemeKind      { return SchemeKindW8A16Fp8 }
func (SchemeW8A8Int8) Kind() SchemeKind      { return SchemeKindW8A8Int8 }
func (SchemeWNA16) Kind() SchemeKind         { return SchemeKindWNA16 }
func (SchemeW4A16Sparse24) Kind() SchemeKind { return SchemeKindW4A16Sparse24 }
func (SchemeSparse24) Kind() SchemeKind      { return SchemeKindSparse24 }

// Minimum capabilities follow the native kernels:
// FP8 activations need Ada Lovelace (89),
// the sparse 2:4 matmul needs Hopper (90),
// marlin-family kernels need Ampere (80),
// INT8 needs Turing (75).
func (SchemeUnquantized) MinCapability() int   { return 0 }
func (SchemeW8A8Fp8) MinCapability() int       { return 89 }
func (SchemeW8A16Fp8) MinCapability() int      { return 80 }
func (SchemeW8A8Int8) MinCapability() int      { return 75 }
func (SchemeWNA16) MinCapability() int         { return 80 }
func (SchemeW4A16Sparse24) MinCapability() int { return 80 }
func (SchemeSparse24) MinCapability() int      { return 90 }

var ErrKernelUnavailable = errors.New("kernel unavailable")

// Kernel is the native implementation backing one scheme kind.
//
// Kernels are registered at process start by an external kernel-provider
// binding; this package only selects which one a layer uses.
type Kernel interface {
	// CreateWeights allocates and registers the layer's weight-related
	// parameters for the given scheme.
	CreateWeights(layer *LinearLayer, scheme Scheme, cfg WeightsConfig) error
	// ProcessWeightsAfterLoading repacks the loaded parameters into the
	// kernel's serving layout.
	ProcessWeightsAfterLoading(layer *LinearLayer, scheme Scheme) error
	// Apply computes output = input @ weights + bias under the scheme.
	Apply(layer *LinearLayer, scheme Scheme, input Tensor, bias Tensor) (Tensor, error)
}

var kernels = map[SchemeKind]Kernel{}

// RegisterKernel installs the kernel backing the given scheme kind,
// replacing any previous registration.
//
// Call it from the kernel provider's init, before any model construction.
func RegisterKernel(kind SchemeKind, k Kernel) {
	kernels[kind] = k
}

// RegisteredKernelKinds returns the scheme kinds with a registered kernel.
func RegisteredKernelKinds() []SchemeKind {
	ks := make([]SchemeKind, 0, len(kernels))
	for k := range kernels {
		ks = append(ks, k)
	}
	slices.Sort(ks)
	return ks
}

func kernelFor(kind SchemeKind) (Kernel, error) {
	k, ok := kernels[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no kernel registered for scheme %v, "+
			"install a kernel provider supporting it", ErrKernelUnavailable, kind)
	}
	return k, nil
}
