package compressed_tensors

import (
	"fmt"
	"os"

	"github.com/gpustack/compressed-tensors-go/util/json"
)

// ParseCompressedTensorsConfigFromFile parses a model's config.json file,
// or a bare quantization_config document, from the given path,
// and returns a CompressedTensorsConfig, or an error if any.
func ParseCompressedTensorsConfigFromFile(path string, opts ...ConfigOption) (*CompressedTensorsConfig, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parseCompressedTensorsConfigBytes(bs, opts...)
}

func parseCompressedTensorsConfigBytes(bs []byte, opts ...ConfigOption) (*CompressedTensorsConfig, error) {
	var doc map[string]any
	if err := json.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A model config.json wraps the quantization section,
	// a bare document is taken as the section itself.
	raw := doc
	for _, k := range []string{"quantization_config", "compression_config"} {
		if m, ok := doc[k].(map[string]any); ok {
			raw = m
			break
		}
	}

	return ParseCompressedTensorsConfig(raw, opts...)
}
