package compressed_tensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressedTensorsConfigCache(t *testing.T) {
	const key = "https://huggingface.co/fake/repo/resolve/main/config.json"
	doc := []byte(`{"quant_method": "compressed-tensors"}`)

	c := CompressedTensorsConfigCache(t.TempDir())

	_, err := c.Get(key, 0)
	assert.ErrorIs(t, err, ErrConfigCacheMissed)

	require.NoError(t, c.Put(key, doc))

	bs, err := c.Get(key, 0)
	require.NoError(t, err)
	assert.Equal(t, doc, bs)

	// An expired entry reads as a miss.
	_, err = c.Get(key, time.Nanosecond)
	assert.ErrorIs(t, err, ErrConfigCacheMissed)

	// A corrupted entry is dropped on read.
	require.NoError(t, c.Put(key, []byte("not json")))
	_, err = c.Get(key, 0)
	assert.ErrorIs(t, err, ErrConfigCacheCorrupted)
	_, err = c.Get(key, 0)
	assert.ErrorIs(t, err, ErrConfigCacheMissed)

	require.NoError(t, c.Put(key, doc))
	require.NoError(t, c.Delete(key))
	assert.ErrorIs(t, c.Delete(key), ErrConfigCacheMissed)

	// The zero value is disabled.
	var disabled CompressedTensorsConfigCache
	_, err = disabled.Get(key, 0)
	assert.ErrorIs(t, err, ErrConfigCacheDisabled)
	assert.ErrorIs(t, disabled.Put(key, doc), ErrConfigCacheDisabled)
}
