package compressed_tensors

import (
	"errors"
	"fmt"
)

var ErrSchemeNotAttached = errors.New("a scheme must be defined for each layer")

// QuantizeMethod is the per-layer adapter the model-construction framework
// drives for parameter creation, post-load processing and forward
// computation. Concrete methods are LinearMethod, UnquantizedLinearMethod
// and MoEMethod.
type QuantizeMethod interface {
	// ProcessWeightsAfterLoading repacks the layer's loaded parameters into
	// the serving layout.
	ProcessWeightsAfterLoading(layer Module) error
}

// GetQuantMethod returns the quantize method the given layer is constructed
// with, or nil if the layer type takes no quantize method at all.
//
// For a linear layer this performs the full selection pipeline: ignore
// check, target matching, scheme classification and the device capability
// gate, and attaches the selected scheme to the layer. Call it exactly once
// per layer.
func (c *CompressedTensorsConfig) GetQuantMethod(layer Module, prefix string) (QuantizeMethod, error) {
	ignored, err := ShouldIgnoreLayer(prefix, c.Ignore, c.PackedModulesMapping)
	if err != nil {
		return nil, err
	}
	if ignored {
		return UnquantizedLinearMethod{}, nil
	}

	switch l := layer.(type) {
	case *LinearLayer:
		scheme, err := c.GetScheme(l, prefix)
		if err != nil {
			return nil, err
		}
		if scheme == nil {
			return UnquantizedLinearMethod{}, nil
		}
		l.scheme = scheme
		return &LinearMethod{config: c}, nil
	case *FusedMoELayer:
		return c.getMoEMethod()
	default:
		return nil, nil
	}
}

// LinearMethod drives a linear layer through its attached scheme's kernel.
type LinearMethod struct {
	config *CompressedTensorsConfig
}

// CreateWeights uses the scheme associated with the layer to create the
// necessary parameters for the layer.
func (m *LinearMethod) CreateWeights(layer *LinearLayer, cfg WeightsConfig) error {
	s := layer.scheme
	if s == nil {
		return ErrSchemeNotAttached
	}

	k, err := kernelFor(s.Kind())
	if err != nil {
		return err
	}
	return k.CreateWeights(layer, s, cfg)
}

func (m *LinearMethod) ProcessWeightsAfterLoading(layer Module) error {
	l, ok := layer.(*LinearLayer)
	if !ok {
		return fmt.Errorf("linear method got a %s layer", layer.ModuleType())
	}
	s := l.scheme
	if s == nil {
		return ErrSchemeNotAttached
	}

	k, err := kernelFor(s.Kind())
	if err != nil {
		return err
	}
	return k.ProcessWeightsAfterLoading(l, s)
}

// Apply uses the output of CreateWeights and the scheme associated with the
// layer to apply the forward pass with the layer input.
func (m *LinearMethod) Apply(layer *LinearLayer, input Tensor, bias Tensor) (Tensor, error) {
	s := layer.scheme
	if s == nil {
		return nil, ErrSchemeNotAttached
	}

	k, err := kernelFor(s.Kind())
	if err != nil {
		return nil, err
	}
	return k.Apply(layer, s, input, bias)
}

// UnquantizedLinearMethod is the fallback for ignored and non-quantized
// linear layers, routing through the unquantized kernel.
type UnquantizedLinearMethod struct{}

func (UnquantizedLinearMethod) CreateWeights(layer *LinearLayer, cfg WeightsConfig) error {
	k, err := kernelFor(SchemeKindUnquantized)
	if err != nil {
		return err
	}
	return k.CreateWeights(layer, SchemeUnquantized{}, cfg)
}

func (UnquantizedLinearMethod) ProcessWeightsAfterLoading(layer Module) error {
	l, ok := layer.(*LinearLayer)
	if !ok {
		return nil
	}

	k, err := kernelFor(SchemeKindUnquantized)
	if err != nil {
		return err
	}
	return k.ProcessWeightsAfterLoading(l, SchemeUnquantized{})
}

func (UnquantizedLinearMethod) Apply(layer *LinearLayer, input Tensor, bias Tensor) (Tensor, error) {
	k, err := kernelFor(SchemeKindUnquantized)
	if err != nil {
		return nil, err
	}
	return k.Apply(layer, SchemeUnquantized{}, input, bias)
}
