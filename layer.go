package compressed_tensors

// DType is the element type of an activation/parameter tensor.
type DType uint8

// DType constants.
const (
	DTypeF32 DType = iota
	DTypeF16
	DTypeBF16
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	case DTypeBF16:
		return "bf16"
	default:
		return "unknown"
	}
}

// Tensor is the opaque handle of a device tensor owned by the external
// numeric runtime. This package never touches tensor values, it only routes
// handles between layers and kernels.
type Tensor interface {
	// Shape returns the dimensions of the tensor.
	Shape() []uint64
	// DType returns the element type of the tensor.
	DType() DType
}

// WeightLoader copies a checkpoint shard into a created parameter.
type WeightLoader func(param Tensor, loaded Tensor) error

// WeightsConfig carries the shape information a kernel needs to create a
// linear layer's parameters.
type WeightsConfig struct {
	InputSize             uint64
	OutputSize            uint64
	InputSizePerPartition uint64
	OutputPartitionSizes  []uint64
	ParamsDType           DType
	WeightLoader          WeightLoader
}

// LinearLayer is a linear computational unit under construction.
//
// It owns exactly one Scheme after configuration and delegates parameter
// creation and forward computation to it through its quantize method.
type LinearLayer struct {
	params map[string]Tensor
	scheme Scheme
}

func (l *LinearLayer) ModuleType() string {
	return "Linear"
}

// Scheme returns the scheme attached by scheme selection,
// or nil if the layer fell back to the unquantized path.
func (l *LinearLayer) Scheme() Scheme {
	return l.scheme
}

// RegisterParameter stores a created parameter on the layer,
// called by kernels during CreateWeights and ProcessWeightsAfterLoading.
func (l *LinearLayer) RegisterParameter(name string, t Tensor) {
	if l.params == nil {
		l.params = make(map[string]Tensor, 4)
	}
	l.params[name] = t
}

// Parameter returns a previously registered parameter.
func (l *LinearLayer) Parameter(name string) (Tensor, bool) {
	t, ok := l.params[name]
	return t, ok
}

// FusedMoELayer is a fused mixture-of-experts computational unit under
// construction.
type FusedMoELayer struct {
	NumExperts int
}

func (l *FusedMoELayer) ModuleType() string {
	return "FusedMoE"
}
