package compressed_tensors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpustack/compressed-tensors-go/util/json"
)

func TestParseCompressedTensorsConfigFromFile(t *testing.T) {
	c, err := ParseCompressedTensorsConfigFromFile(filepath.Join("testdata", "config.json"))
	require.NoError(t, err)

	assert.Equal(t, CompressionFormatFloatQuantized, c.QuantFormat)
	assert.Equal(t, []string{"lm_head"}, c.Ignore)
	require.Contains(t, c.TargetSchemeMap, "Linear")

	ts := c.TargetSchemeMap["Linear"]
	require.NotNil(t, ts.Weights)
	assert.Equal(t, 8, ts.Weights.NumBits)
	assert.Equal(t, QuantizationTypeFloat, ts.Weights.Type)
	assert.Equal(t, QuantizationStrategyChannel, ts.Weights.Strategy)
	require.NotNil(t, ts.InputActivations)
	assert.True(t, ts.InputActivations.Dynamic)
	assert.Equal(t, QuantizationStrategyToken, ts.InputActivations.Strategy)
}

func TestParseCompressedTensorsConfigFromFile_BareDocument(t *testing.T) {
	bs, err := os.ReadFile(filepath.Join("testdata", "config.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(bs, &doc))
	inner, ok := doc["quantization_config"].(map[string]any)
	require.True(t, ok)
	bare, err := json.Marshal(inner)
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "quantization_config.json")
	require.NoError(t, os.WriteFile(p, bare, 0o600))

	c, err := ParseCompressedTensorsConfigFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, CompressionFormatFloatQuantized, c.QuantFormat)
	assert.Contains(t, c.TargetSchemeMap, "Linear")
}

func TestParseCompressedTensorsConfigFromFile_Missing(t *testing.T) {
	_, err := ParseCompressedTensorsConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
