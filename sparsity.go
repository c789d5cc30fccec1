package compressed_tensors

import (
	"errors"
	"fmt"

	"github.com/gpustack/compressed-tensors-go/util/json"
)

// SparsityCompressionConfig describes structured sparsity for a set of targets,
// see https://github.com/neuralmagic/compressed-tensors/blob/main/src/compressed_tensors/config/base.py.
type SparsityCompressionConfig struct {
	Format            CompressionFormat `json:"format"`
	SparsityStructure SparsityStructure `json:"sparsity_structure"`
	Targets           []string          `json:"targets,omitempty"`
	Ignore            []string          `json:"ignore,omitempty"`
}

var ErrInvalidSparsityConfig = errors.New("invalid sparsity config")

// ParseSparsityCompressionConfig parses the given raw value,
// usually the sparsity_config section of a model's quantization_config,
// and returns the validated SparsityCompressionConfig, or an error if any.
func ParseSparsityCompressionConfig(v any) (*SparsityCompressionConfig, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSparsityConfig)
	}

	bs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal sparsity config: %w", err)
	}

	var c SparsityCompressionConfig
	if err = json.Unmarshal(bs, &c); err != nil {
		return nil, fmt.Errorf("unmarshal sparsity config: %w", err)
	}

	if c.Format == "" {
		return nil, fmt.Errorf("%w: format is required", ErrInvalidSparsityConfig)
	}
	if !c.Format.IsValid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidSparsityConfig, c.Format)
	}
	return &c, nil
}

// IsTwoFour returns true if the config declares 2:4 structured sparsity,
// meaning exactly 2 of every 4 contiguous weight values are zero.
func (c *SparsityCompressionConfig) IsTwoFour() bool {
	return c != nil && c.SparsityStructure == SparsityStructureTwoFour
}
