package compressed_tensors

// Types for CompressionFormat.
type (
	// CompressionFormat is the on-disk/activation format family of a
	// compressed-tensors checkpoint,
	// see https://github.com/neuralmagic/compressed-tensors/blob/main/src/compressed_tensors/config/base.py.
	CompressionFormat string

	// SparsityStructure is the structured-sparsity pattern of a checkpoint,
	// see https://github.com/neuralmagic/compressed-tensors/blob/main/src/compressed_tensors/config/sparsity.py.
	SparsityStructure string
)

// CompressionFormat constants.
const (
	CompressionFormatDense           CompressionFormat = "dense"
	CompressionFormatSparseBitmask   CompressionFormat = "sparse-bitmask"
	CompressionFormatSparse24Bitmask CompressionFormat = "sparse-24-bitmask"
	CompressionFormatIntQuantized    CompressionFormat = "int-quantized"
	CompressionFormatFloatQuantized  CompressionFormat = "float-quantized"
	CompressionFormatNaiveQuantized  CompressionFormat = "naive-quantized"
	CompressionFormatPackQuantized   CompressionFormat = "pack-quantized"
	CompressionFormatMarlin24        CompressionFormat = "marlin-24"
)

// SparsityStructure constants.
//
// SparsityStructureUnstructured is the catch-all for checkpoints without a
// recognizable N:M pattern.
const (
	SparsityStructureTwoFour      SparsityStructure = "2:4"
	SparsityStructureZeroZero     SparsityStructure = "0:0"
	SparsityStructureUnstructured SparsityStructure = "unstructured"
)

// IsActivationQuantization returns true if the format quantizes input
// activations in addition to weights.
func (f CompressionFormat) IsActivationQuantization() bool {
	switch f {
	case CompressionFormatNaiveQuantized,
		CompressionFormatIntQuantized,
		CompressionFormatFloatQuantized:
		return true
	default:
		return false
	}
}

// IsValid returns true if the format is a known CompressionFormat.
func (f CompressionFormat) IsValid() bool {
	switch f {
	case CompressionFormatDense,
		CompressionFormatSparseBitmask,
		CompressionFormatSparse24Bitmask,
		CompressionFormatIntQuantized,
		CompressionFormatFloatQuantized,
		CompressionFormatNaiveQuantized,
		CompressionFormatPackQuantized,
		CompressionFormatMarlin24:
		return true
	default:
		return false
	}
}
