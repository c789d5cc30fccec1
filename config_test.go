package compressed_tensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp8Group(dynamic bool) map[string]any {
	g := map[string]any{
		"targets": []any{"Linear"},
		"weights": map[string]any{
			"num_bits": 8,
			"type":     "float",
			"strategy": "tensor",
		},
		"input_activations": map[string]any{
			"num_bits": 8,
			"type":     "float",
			"strategy": "tensor",
			"dynamic":  dynamic,
		},
	}
	return g
}

func TestParseCompressedTensorsConfig(t *testing.T) {
	raw := map[string]any{
		"format": "float-quantized",
		"ignore": []any{"lm_head"},
		"config_groups": map[string]any{
			"group_0": fp8Group(false),
		},
		"packed_modules_mapping": map[string]any{
			"qkv_proj": []any{"q_proj", "k_proj", "v_proj"},
		},
	}

	c, err := ParseCompressedTensorsConfig(raw)
	require.NoError(t, err)

	assert.Equal(t, CompressionFormatFloatQuantized, c.QuantFormat)
	assert.Equal(t, []string{"lm_head"}, c.Ignore)
	assert.Equal(t, map[string][]string{"qkv_proj": {"q_proj", "k_proj", "v_proj"}}, c.PackedModulesMapping)

	require.Contains(t, c.TargetSchemeMap, "Linear")
	ts := c.TargetSchemeMap["Linear"]
	require.NotNil(t, ts.Weights)
	require.NotNil(t, ts.InputActivations)
	assert.Equal(t, QuantizationTypeFloat, ts.Weights.Type)
	assert.False(t, ts.InputActivations.Dynamic)

	assert.Empty(t, c.SparsitySchemeMap)
	assert.Empty(t, c.SparsityIgnoreList)
}

func TestParseCompressedTensorsConfig_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		given map[string]any
	}{
		{
			name:  "missing format",
			given: map[string]any{},
		},
		{
			name:  "unknown format",
			given: map[string]any{"format": "zip"},
		},
		{
			name: "int weights without input activations under activation format",
			given: map[string]any{
				"format": "int-quantized",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{
							"num_bits": 8,
							"type":     "int",
							"strategy": "tensor",
						},
					},
				},
			},
		},
		{
			name: "malformed weights",
			given: map[string]any{
				"format": "pack-quantized",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{"strategy": "diagonal"},
					},
				},
			},
		},
	}
	for _, tc := range cases {
		_, err := ParseCompressedTensorsConfig(tc.given)
		assert.Error(t, err, tc.name)
	}
}

func TestParseCompressedTensorsConfig_FloatWeightOnlyUnderActivationFormat(t *testing.T) {
	// w8a16fp8 checkpoints carry an activation-quantizing format but no
	// input_activations section.
	raw := map[string]any{
		"format": "float-quantized",
		"config_groups": map[string]any{
			"group_0": map[string]any{
				"targets": []any{"Linear"},
				"weights": map[string]any{
					"num_bits": 8,
					"type":     "float",
					"strategy": "channel",
				},
			},
		},
	}

	c, err := ParseCompressedTensorsConfig(raw)
	require.NoError(t, err)
	assert.Nil(t, c.TargetSchemeMap["Linear"].InputActivations)
}

func TestParseCompressedTensorsConfig_Sparsity(t *testing.T) {
	raw := map[string]any{
		"format": "dense",
		"sparsity_config": map[string]any{
			"format":             "sparse-24-bitmask",
			"sparsity_structure": "2:4",
			"targets":            []any{"Linear"},
			"ignore":             []any{"lm_head"},
		},
	}

	c, err := ParseCompressedTensorsConfig(raw)
	require.NoError(t, err)

	require.Contains(t, c.SparsitySchemeMap, "Linear")
	assert.True(t, c.SparsitySchemeMap["Linear"].IsTwoFour())
	assert.Equal(t, []string{"lm_head"}, c.SparsityIgnoreList)
}

func TestGetScheme(t *testing.T) {
	cases := []struct {
		name     string
		raw      map[string]any
		expected Scheme
	}{
		{
			name: "fp8 w8a8 static",
			raw: map[string]any{
				"format":        "float-quantized",
				"config_groups": map[string]any{"group_0": fp8Group(false)},
			},
			expected: SchemeW8A8Fp8{
				Strategy:            QuantizationStrategyTensor,
				IsStaticInputScheme: true,
			},
		},
		{
			name: "fp8 w8a8 dynamic",
			raw: map[string]any{
				"format":        "float-quantized",
				"config_groups": map[string]any{"group_0": fp8Group(true)},
			},
			expected: SchemeW8A8Fp8{
				Strategy:            QuantizationStrategyTensor,
				IsStaticInputScheme: false,
			},
		},
		{
			name: "int8 w8a8 static per-tensor",
			raw: map[string]any{
				"format": "int-quantized",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{
							"num_bits": 8,
							"type":     "int",
							"strategy": "tensor",
						},
						"input_activations": map[string]any{
							"num_bits": 8,
							"type":     "int",
							"strategy": "tensor",
						},
					},
				},
			},
			expected: SchemeW8A8Int8{
				Strategy:            QuantizationStrategyTensor,
				IsStaticInputScheme: true,
				InputSymmetric:      true,
			},
		},
		{
			name: "int8 w8a8 dynamic per-token",
			raw: map[string]any{
				"format": "int-quantized",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{
							"num_bits": 8,
							"type":     "int",
							"strategy": "tensor",
						},
						"input_activations": map[string]any{
							"num_bits": 8,
							"type":     "int",
							"strategy": "token",
							"dynamic":  true,
						},
					},
				},
			},
			expected: SchemeW8A8Int8{
				Strategy:            QuantizationStrategyTensor,
				IsStaticInputScheme: false,
				InputSymmetric:      true,
			},
		},
		{
			name: "weight-only 4-bit grouped",
			raw: map[string]any{
				"format": "pack-quantized",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{
							"num_bits":   4,
							"type":       "int",
							"group_size": 128,
						},
					},
				},
			},
			expected: SchemeWNA16{
				NumBits:   4,
				Strategy:  QuantizationStrategyGroup,
				GroupSize: 128,
			},
		},
		{
			name: "weight-only 4-bit marlin-24",
			raw: map[string]any{
				"format": "marlin-24",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{
							"num_bits":   4,
							"type":       "int",
							"group_size": 128,
						},
					},
				},
			},
			expected: SchemeW4A16Sparse24{
				NumBits:   4,
				Strategy:  QuantizationStrategyGroup,
				GroupSize: 128,
			},
		},
		{
			name: "fp8 weight-only",
			raw: map[string]any{
				"format": "float-quantized",
				"config_groups": map[string]any{
					"group_0": map[string]any{
						"targets": []any{"Linear"},
						"weights": map[string]any{
							"num_bits": 8,
							"type":     "float",
							"strategy": "channel",
						},
					},
				},
			},
			expected: SchemeW8A16Fp8{
				Strategy:            QuantizationStrategyChannel,
				IsStaticInputScheme: false,
			},
		},
		{
			name: "2:4 sparse unquantized",
			raw: map[string]any{
				"format": "dense",
				"sparsity_config": map[string]any{
					"format":             "dense",
					"sparsity_structure": "2:4",
					"targets":            []any{"Linear"},
				},
			},
			expected: SchemeSparse24{
				Quantized: false,
			},
		},
	}
	for _, tc := range cases {
		c, err := ParseCompressedTensorsConfig(tc.raw, WithDeviceCapability(9, 0))
		require.NoError(t, err, tc.name)

		actual, err := c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.expected, actual, tc.name)
	}
}

func TestGetScheme_Sparse24Quantized(t *testing.T) {
	raw := map[string]any{
		"format": "int-quantized",
		"config_groups": map[string]any{
			"group_0": map[string]any{
				"targets": []any{"Linear"},
				"weights": map[string]any{
					"num_bits": 8,
					"type":     "int",
					"strategy": "channel",
				},
				"input_activations": map[string]any{
					"num_bits": 8,
					"type":     "int",
					"strategy": "token",
					"dynamic":  true,
				},
			},
		},
		"sparsity_config": map[string]any{
			"format":             "sparse-24-bitmask",
			"sparsity_structure": "2:4",
			"targets":            []any{"Linear"},
		},
	}

	c, err := ParseCompressedTensorsConfig(raw, WithDeviceCapability(9, 0))
	require.NoError(t, err)

	actual, err := c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
	require.NoError(t, err)

	s, ok := actual.(SchemeSparse24)
	require.True(t, ok)
	assert.True(t, s.Quantized)
	assert.NotNil(t, s.WeightQuant)
	assert.NotNil(t, s.InputQuant)
	// Non-dense sparsity storage carries the whole config for decompression.
	assert.NotNil(t, s.CompressionConfig)
}

func TestGetScheme_WeightOnlySparse24Unsupported(t *testing.T) {
	raw := map[string]any{
		"format": "pack-quantized",
		"config_groups": map[string]any{
			"group_0": map[string]any{
				"targets": []any{"Linear"},
				"weights": map[string]any{
					"num_bits": 8,
					"type":     "int",
					"strategy": "tensor",
				},
			},
		},
		"sparsity_config": map[string]any{
			"format":             "dense",
			"sparsity_structure": "2:4",
			"targets":            []any{"Linear"},
		},
	}

	c, err := ParseCompressedTensorsConfig(raw, WithDeviceCapability(9, 0))
	require.NoError(t, err)

	_, err = c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
	assert.ErrorIs(t, err, ErrSchemeUnsupported)
}

func TestGetScheme_UnquantizedFallback(t *testing.T) {
	raw := map[string]any{
		"format": "dense",
	}

	c, err := ParseCompressedTensorsConfig(raw, WithDeviceCapability(9, 0))
	require.NoError(t, err)

	s, err := c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetScheme_Fp8CapabilityDegradation(t *testing.T) {
	raw := map[string]any{
		"format":        "float-quantized",
		"config_groups": map[string]any{"group_0": fp8Group(false)},
	}

	// Ampere misses the FP8 kernel minimum of 89,
	// the classifier degrades to the weight-only FP8 scheme.
	c, err := ParseCompressedTensorsConfig(raw, WithDeviceCapability(8, 0))
	require.NoError(t, err)

	actual, err := c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
	require.NoError(t, err)
	assert.Equal(t, SchemeW8A16Fp8{
		Strategy:            QuantizationStrategyTensor,
		IsStaticInputScheme: true,
	}, actual)
}

func TestGetScheme_CapabilityFatal(t *testing.T) {
	raw := map[string]any{
		"format": "dense",
		"sparsity_config": map[string]any{
			"format":             "dense",
			"sparsity_structure": "2:4",
			"targets":            []any{"Linear"},
		},
	}

	// The sparse 2:4 kernel needs capability 90.
	c, err := ParseCompressedTensorsConfig(raw, WithDeviceCapability(8, 9))
	require.NoError(t, err)

	_, err = c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
	assert.ErrorIs(t, err, ErrCapabilityUnsupported)
}

func TestCheckSchemeSupported(t *testing.T) {
	c, err := ParseCompressedTensorsConfig(map[string]any{"format": "dense"}, WithDeviceCapability(8, 0))
	require.NoError(t, err)

	supported, err := c.checkSchemeSupported(89, true)
	assert.False(t, supported)
	assert.ErrorIs(t, err, ErrCapabilityUnsupported)

	supported, err = c.checkSchemeSupported(89, false)
	assert.False(t, supported)
	assert.NoError(t, err)

	c, err = ParseCompressedTensorsConfig(map[string]any{"format": "dense"}, WithDeviceCapability(8, 9))
	require.NoError(t, err)

	supported, err = c.checkSchemeSupported(89, true)
	assert.True(t, supported)
	assert.NoError(t, err)
}

func TestGetCacheScale(t *testing.T) {
	c, err := ParseCompressedTensorsConfig(map[string]any{"format": "dense"})
	require.NoError(t, err)

	cases := []struct {
		given    string
		expected string
		ok       bool
	}{
		{
			given:    "model.layers.3.self_attn.k_proj.output_scale",
			expected: "model.layers.3.self_attn.attn.k_scale",
			ok:       true,
		},
		{
			given:    "model.layers.3.self_attn.v_proj.output_scale",
			expected: "model.layers.3.self_attn.attn.v_scale",
			ok:       true,
		},
		{
			given: "x.output_scale",
		},
		{
			given: "model.layers.3.self_attn.k_proj.weight",
		},
	}
	for _, tc := range cases {
		actual, ok := c.GetCacheScale(tc.given)
		assert.Equal(t, tc.ok, ok, tc.given)
		assert.Equal(t, tc.expected, actual, tc.given)
	}
}

func TestGetScheme_DuplicateTargetsLastWriteWins(t *testing.T) {
	raw := map[string]any{
		"format": "pack-quantized",
		"config_groups": map[string]any{
			"group_0": map[string]any{
				"targets": []any{"Linear"},
				"weights": map[string]any{
					"num_bits":   4,
					"type":       "int",
					"group_size": 128,
				},
			},
			"group_1": map[string]any{
				"targets": []any{"Linear"},
				"weights": map[string]any{
					"num_bits":   8,
					"type":       "int",
					"group_size": 128,
				},
			},
		},
	}

	c, err := ParseCompressedTensorsConfig(raw, WithDeviceCapability(9, 0))
	require.NoError(t, err)

	actual, err := c.GetScheme(&LinearLayer{}, "model.layers.0.mlp.down_proj")
	require.NoError(t, err)
	assert.Equal(t, 8, actual.(SchemeWNA16).NumBits)
}
