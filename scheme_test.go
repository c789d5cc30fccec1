package compressed_tensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemeKindString(t *testing.T) {
	cases := []struct {
		given    SchemeKind
		expected string
	}{
		{SchemeKindUnknown, "Unknown"},
		{SchemeKindUnquantized, "Unquantized"},
		{SchemeKindW8A8Fp8, "W8A8Fp8"},
		{SchemeKindW8A16Fp8, "W8A16Fp8"},
		{SchemeKindW8A8Int8, "W8A8Int8"},
		{SchemeKindWNA16, "WNA16"},
		{SchemeKindW4A16Sparse24, "W4A16Sparse24"},
		{SchemeKindSparse24, "Sparse24"},
		{SchemeKind(42), "SchemeKind(42)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, tc.given.String())
	}
}

func TestSchemeMinCapability(t *testing.T) {
	cases := []struct {
		given    Scheme
		expected int
	}{
		{SchemeUnquantized{}, 0},
		{SchemeW8A8Fp8{}, 89},
		{SchemeW8A16Fp8{}, 80},
		{SchemeW8A8Int8{}, 75},
		{SchemeWNA16{}, 80},
		{SchemeW4A16Sparse24{}, 80},
		{SchemeSparse24{}, 90},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, tc.given.MinCapability(), tc.given.Kind().String())
	}
}

func TestRegisterKernel(t *testing.T) {
	k := &_TestKernel{}
	RegisterKernel(SchemeKindWNA16, k)
	t.Cleanup(func() {
		delete(kernels, SchemeKindWNA16)
	})

	assert.Contains(t, RegisteredKernelKinds(), SchemeKindWNA16)

	got, err := kernelFor(SchemeKindWNA16)
	assert.NoError(t, err)
	assert.Same(t, k, got)

	_, err = kernelFor(SchemeKindSparse24)
	assert.ErrorIs(t, err, ErrKernelUnavailable)
}
