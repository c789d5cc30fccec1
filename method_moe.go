package compressed_tensors

import (
	"errors"
	"fmt"
)

// MoEMethodKind identifies the quantization family a fused MoE layer runs
// under. MoE kernels are fused per family instead of per linear scheme.
type MoEMethodKind uint32

// MoEMethodKind constants.
const (
	MoEMethodKindUnknown MoEMethodKind = iota
	MoEMethodKindWNA16
	MoEMethodKindW8A8Fp8
	MoEMethodKindW8A8Int8
)

func (k MoEMethodKind) String() string {
	switch k {
	case MoEMethodKindWNA16:
		return "MoEWNA16"
	case MoEMethodKindW8A8Fp8:
		return "MoEW8A8Fp8"
	case MoEMethodKindW8A8Int8:
		return "MoEW8A8Int8"
	default:
		return "Unknown"
	}
}

func (k MoEMethodKind) minCapability() int {
	switch k {
	case MoEMethodKindWNA16:
		return 80
	case MoEMethodKindW8A8Fp8:
		return 89
	case MoEMethodKindW8A8Int8:
		return 75
	default:
		return 0
	}
}

// MoEWeightsConfig carries the shape information a fused MoE kernel needs to
// create the expert parameters.
type MoEWeightsConfig struct {
	NumExperts       int
	HiddenSize       uint64
	IntermediateSize uint64
	ParamsDType      DType
	WeightLoader     WeightLoader
}

// MoEKernel is the native implementation backing one MoE method family.
type MoEKernel interface {
	CreateWeights(layer *FusedMoELayer, cfg MoEWeightsConfig) error
	ProcessWeightsAfterLoading(layer *FusedMoELayer) error
	Apply(layer *FusedMoELayer, input Tensor, routerLogits Tensor) (Tensor, error)
}

var moeKernels = map[MoEMethodKind]MoEKernel{}

// RegisterMoEKernel installs the kernel backing the given MoE family,
// replacing any previous registration.
func RegisterMoEKernel(kind MoEMethodKind, k MoEKernel) {
	moeKernels[kind] = k
}

func moeKernelFor(kind MoEMethodKind) (MoEKernel, error) {
	k, ok := moeKernels[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no kernel registered for MoE method %v, "+
			"install a kernel provider supporting it", ErrKernelUnavailable, kind)
	}
	return k, nil
}

// MoEMethod drives a fused MoE layer through its family's kernel.
//
// Fused MoE layers are uniform: the method is keyed on the "Linear" target's
// quantization args rather than matched per expert projection.
type MoEMethod struct {
	config *CompressedTensorsConfig

	Kind        MoEMethodKind
	WeightQuant *QuantizationArgs
	InputQuant  *QuantizationArgs
}

func (c *CompressedTensorsConfig) getMoEMethod() (*MoEMethod, error) {
	ts, ok := c.TargetSchemeMap["Linear"]
	if !ok {
		return nil, fmt.Errorf("%w: fused MoE layers expect a %q target", ErrSchemeUnsupported, "Linear")
	}
	weightQuant, inputQuant := ts.Weights, ts.InputActivations

	var kind MoEMethodKind
	switch {
	case isWNA16GroupChannel(weightQuant, inputQuant):
		kind = MoEMethodKindWNA16
	case isFp8W8A8(weightQuant, inputQuant):
		kind = MoEMethodKindW8A8Fp8
	case isDynamicTokenW8A8(weightQuant, inputQuant):
		kind = MoEMethodKindW8A8Int8
	default:
		return nil, fmt.Errorf("%w: unsupported fused MoE quantization", ErrSchemeUnsupported)
	}

	if _, err := c.checkSchemeSupported(kind.minCapability(), true); err != nil {
		return nil, err
	}

	return &MoEMethod{
		config:      c,
		Kind:        kind,
		WeightQuant: weightQuant,
		InputQuant:  inputQuant,
	}, nil
}

func (m *MoEMethod) CreateWeights(layer *FusedMoELayer, cfg MoEWeightsConfig) error {
	k, err := moeKernelFor(m.Kind)
	if err != nil {
		return err
	}
	return k.CreateWeights(layer, cfg)
}

func (m *MoEMethod) ProcessWeightsAfterLoading(layer Module) error {
	l, ok := layer.(*FusedMoELayer)
	if !ok {
		return errors.New("MoE method got a non-MoE layer")
	}

	k, err := moeKernelFor(m.Kind)
	if err != nil {
		return err
	}
	return k.ProcessWeightsAfterLoading(l)
}

func (m *MoEMethod) Apply(layer *FusedMoELayer, input Tensor, routerLogits Tensor) (Tensor, error) {
	k, err := moeKernelFor(m.Kind)
	if err != nil {
		return nil, err
	}
	return k.Apply(layer, input, routerLogits)
}
