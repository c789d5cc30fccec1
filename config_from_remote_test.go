package compressed_tensors

import (
	"context"
	"os"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestParseCompressedTensorsConfigFromHuggingFace(t *testing.T) {
	hr, ok := os.LookupEnv("TEST_HUGGINGFACE_REPO")
	if !ok {
		t.Skip("TEST_HUGGINGFACE_REPO is not set")
		return
	}

	ctx := context.Background()

	c, err := ParseCompressedTensorsConfigFromHuggingFace(ctx, hr, UseDebug())
	if err != nil {
		t.Fatal(err)
		return
	}
	s := spew.ConfigState{
		Indent:   "  ",
		MaxDepth: 5, // Avoid console overflow.
	}
	t.Log("\n", s.Sdump(c), "\n")
}

func TestParseCompressedTensorsConfigFromModelScope(t *testing.T) {
	mr, ok := os.LookupEnv("TEST_MODELSCOPE_REPO")
	if !ok {
		t.Skip("TEST_MODELSCOPE_REPO is not set")
		return
	}

	ctx := context.Background()

	c, err := ParseCompressedTensorsConfigFromModelScope(ctx, mr, UseDebug())
	if err != nil {
		t.Fatal(err)
		return
	}
	t.Log("\n", spew.Sdump(c), "\n")
}
