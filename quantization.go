package compressed_tensors

import (
	"errors"
	"fmt"

	"github.com/gpustack/compressed-tensors-go/util/json"
	"github.com/gpustack/compressed-tensors-go/util/ptr"
)

// Types for QuantizationArgs.
type (
	// QuantizationType is the numeric family of the quantized values,
	// see https://github.com/neuralmagic/compressed-tensors/blob/main/src/compressed_tensors/quantization/quant_args.py.
	QuantizationType string

	// QuantizationStrategy is the granularity at which scales/zero-points apply.
	QuantizationStrategy string

	// ActivationOrdering is the ordering applied to grouped weight quantization.
	ActivationOrdering string

	// QuantizationArgs describes one axis (weights or input activations) of
	// quantization for a target.
	//
	// It mirrors the compressed-tensors QuantizationArgs schema and is
	// immutable once parsed.
	QuantizationArgs struct {
		NumBits   int                  `json:"num_bits"`
		Type      QuantizationType     `json:"type"`
		Symmetric bool                 `json:"symmetric"`
		GroupSize *int                 `json:"group_size,omitempty"`
		Strategy  QuantizationStrategy `json:"strategy,omitempty"`
		// Dynamic means the scale factors are computed at each forward pass
		// from actual data, instead of being precomputed.
		Dynamic  bool               `json:"dynamic"`
		ActOrder ActivationOrdering `json:"actorder,omitempty"`
	}
)

// QuantizationType constants.
const (
	QuantizationTypeInt   QuantizationType = "int"
	QuantizationTypeFloat QuantizationType = "float"
)

// QuantizationStrategy constants.
const (
	QuantizationStrategyTensor  QuantizationStrategy = "tensor"
	QuantizationStrategyChannel QuantizationStrategy = "channel"
	QuantizationStrategyGroup   QuantizationStrategy = "group"
	QuantizationStrategyBlock   QuantizationStrategy = "block"
	QuantizationStrategyToken   QuantizationStrategy = "token"
)

// ActivationOrdering constants.
const (
	ActivationOrderingGroup  ActivationOrdering = "group"
	ActivationOrderingWeight ActivationOrdering = "weight"
)

var ErrInvalidQuantizationArgs = errors.New("invalid quantization args")

// ParseQuantizationArgs parses the given raw value,
// usually a map decoded from a model's quantization_config,
// and returns the validated QuantizationArgs, or an error if any.
func ParseQuantizationArgs(v any) (*QuantizationArgs, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: empty", ErrInvalidQuantizationArgs)
	}

	bs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal quantization args: %w", err)
	}

	a := QuantizationArgs{
		NumBits:   8,
		Type:      QuantizationTypeInt,
		Symmetric: true,
	}
	if err = json.Unmarshal(bs, &a); err != nil {
		return nil, fmt.Errorf("unmarshal quantization args: %w", err)
	}

	if err = a.normalize(); err != nil {
		return nil, err
	}
	return &a, nil
}

// normalize applies the schema's defaulting rules and
// rejects inconsistent combinations.
func (a *QuantizationArgs) normalize() error {
	switch a.Type {
	case QuantizationTypeInt, QuantizationTypeFloat:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuantizationArgs, a.Type)
	}

	if a.NumBits <= 0 {
		return fmt.Errorf("%w: num_bits must be positive, got %d", ErrInvalidQuantizationArgs, a.NumBits)
	}

	// Strategy is inferred from group_size when absent:
	// a positive group size means grouped quantization,
	// -1 is the conventional marker for per-channel.
	if a.Strategy == "" {
		switch {
		case a.GroupSize == nil:
			a.Strategy = QuantizationStrategyTensor
		case *a.GroupSize > 0:
			a.Strategy = QuantizationStrategyGroup
		case *a.GroupSize == -1:
			a.Strategy = QuantizationStrategyChannel
		default:
			return fmt.Errorf("%w: group_size %d requires an explicit strategy",
				ErrInvalidQuantizationArgs, *a.GroupSize)
		}
	}

	switch a.Strategy {
	case QuantizationStrategyTensor,
		QuantizationStrategyChannel,
		QuantizationStrategyGroup,
		QuantizationStrategyBlock,
		QuantizationStrategyToken:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidQuantizationArgs, a.Strategy)
	}

	if a.Strategy == QuantizationStrategyGroup && (a.GroupSize == nil || *a.GroupSize <= 0) {
		return fmt.Errorf("%w: strategy %q requires a positive group_size",
			ErrInvalidQuantizationArgs, a.Strategy)
	}

	if a.ActOrder != "" {
		if a.Strategy != QuantizationStrategyGroup {
			return fmt.Errorf("%w: actorder is only valid for strategy %q",
				ErrInvalidQuantizationArgs, QuantizationStrategyGroup)
		}
		switch a.ActOrder {
		case ActivationOrderingGroup, ActivationOrderingWeight:
		default:
			return fmt.Errorf("%w: unknown actorder %q", ErrInvalidQuantizationArgs, a.ActOrder)
		}
	}

	return nil
}

// GetGroupSize returns the group size, or the given default if absent.
func (a *QuantizationArgs) GetGroupSize(def int) int {
	return ptr.Deref(a.GroupSize, def)
}
