package compressed_tensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindMatchedTarget(t *testing.T) {
	fused := map[string][]string{
		"qkv_proj":     {"q_proj", "k_proj", "v_proj"},
		"gate_up_proj": {"gate_proj", "up_proj"},
	}

	cases := []struct {
		name      string
		layerName string
		module    Module
		targets   []string
		expected  string
		err       error
	}{
		{
			name:      "exact wins over regex",
			layerName: "model.layers.0.self_attn.k_proj",
			targets:   []string{"re:.*k_proj$", "model.layers.0.self_attn.k_proj"},
			expected:  "model.layers.0.self_attn.k_proj",
		},
		{
			name:      "regex",
			layerName: "model.layers.3.self_attn.k_proj",
			targets:   []string{"re:.*k_proj$"},
			expected:  "re:.*k_proj$",
		},
		{
			name:      "module type",
			layerName: "model.layers.3.mlp.down_proj",
			module:    &LinearLayer{},
			targets:   []string{"Linear"},
			expected:  "Linear",
		},
		{
			name:      "fused resolves to first constituent",
			layerName: "model.layers.0.self_attn.qkv_proj",
			targets:   []string{"re:.*q_proj$"},
			expected:  "re:.*q_proj$",
		},
		{
			name:      "fused mlp",
			layerName: "model.layers.0.mlp.gate_up_proj",
			targets:   []string{"model.layers.0.mlp.gate_proj"},
			expected:  "model.layers.0.mlp.gate_proj",
		},
		{
			name:      "no match",
			layerName: "model.embed_tokens",
			targets:   []string{"re:.*proj$"},
			err:       ErrNoMatchedTarget,
		},
	}
	for _, tc := range cases {
		actual, err := FindMatchedTarget(tc.layerName, tc.module, tc.targets, fused)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.name)
			continue
		}
		assert.NoError(t, err, tc.name)
		assert.Equal(t, tc.expected, actual, tc.name)
	}
}

func TestShouldIgnoreLayer(t *testing.T) {
	fused := map[string][]string{
		"qkv_proj": {"q_proj", "k_proj", "v_proj"},
	}

	cases := []struct {
		name      string
		layerName string
		ignore    []string
		expected  bool
	}{
		{
			name:      "exact",
			layerName: "lm_head",
			ignore:    []string{"lm_head"},
			expected:  true,
		},
		{
			name:      "regex",
			layerName: "model.layers.11.mlp.down_proj",
			ignore:    []string{"re:.*down_proj$"},
			expected:  true,
		},
		{
			name:      "fused with all constituents ignored",
			layerName: "model.layers.0.self_attn.qkv_proj",
			ignore: []string{
				"model.layers.0.self_attn.q_proj",
				"model.layers.0.self_attn.k_proj",
				"model.layers.0.self_attn.v_proj",
			},
			expected: true,
		},
		{
			name:      "not ignored",
			layerName: "model.layers.0.mlp.up_proj",
			ignore:    []string{"lm_head"},
			expected:  false,
		},
	}
	for _, tc := range cases {
		actual, err := ShouldIgnoreLayer(tc.layerName, tc.ignore, fused)
		assert.NoError(t, err, tc.name)
		assert.Equal(t, tc.expected, actual, tc.name)
	}

	// Constituents disagreeing on skip status is a configuration error.
	_, err := ShouldIgnoreLayer("model.layers.0.self_attn.qkv_proj",
		[]string{"model.layers.0.self_attn.k_proj"}, fused)
	assert.ErrorIs(t, err, ErrInconsistentFusedSkip)
}
