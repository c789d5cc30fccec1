package compressed_tensors

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gpustack/compressed-tensors-go/util/json"
	"github.com/gpustack/compressed-tensors-go/util/osx"
	"github.com/gpustack/compressed-tensors-go/util/stringx"
)

var (
	ErrConfigCacheDisabled  = errors.New("compressed-tensors config cache disabled")
	ErrConfigCacheMissed    = errors.New("compressed-tensors config cache missed")
	ErrConfigCacheCorrupted = errors.New("compressed-tensors config cache corrupted")
)

// CompressedTensorsConfigCache caches fetched config.json documents under a
// directory, keyed by the FNV sum of the source URL.
//
// An empty path disables the cache.
type CompressedTensorsConfigCache string

func (c CompressedTensorsConfigCache) getKeyPath(key string) string {
	k := stringx.SumByFNV64a(key)
	p := filepath.Join(string(c), k[:1], k)
	return p
}

func (c CompressedTensorsConfigCache) Get(key string, exp time.Duration) ([]byte, error) {
	if c == "" {
		return nil, ErrConfigCacheDisabled
	}

	if key == "" {
		return nil, ErrConfigCacheMissed
	}

	p := c.getKeyPath(key)
	if !osx.Exists(p, func(stat os.FileInfo) bool {
		if !stat.Mode().IsRegular() {
			return false
		}
		return exp == 0 || time.Since(stat.ModTime()) < exp
	}) {
		return nil, ErrConfigCacheMissed
	}

	bs, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("compressed-tensors config cache get: %w", err)
	}

	var doc map[string]any
	if len(bs) == 0 || json.Unmarshal(bs, &doc) != nil {
		_ = os.Remove(p)
		return nil, ErrConfigCacheCorrupted
	}

	return bs, nil
}

func (c CompressedTensorsConfigCache) Put(key string, bs []byte) error {
	if c == "" {
		return ErrConfigCacheDisabled
	}

	if key == "" || len(bs) == 0 {
		return nil
	}

	p := c.getKeyPath(key)
	if err := osx.WriteFile(p, bs, 0o600); err != nil {
		return fmt.Errorf("compressed-tensors config cache put: %w", err)
	}
	return nil
}

func (c CompressedTensorsConfigCache) Delete(key string) error {
	if c == "" {
		return ErrConfigCacheDisabled
	}

	if key == "" {
		return ErrConfigCacheMissed
	}

	p := c.getKeyPath(key)
	if !osx.ExistsFile(p) {
		return ErrConfigCacheMissed
	}

	if err := os.Remove(p); err != nil {
		return fmt.Errorf("compressed-tensors config cache delete: %w", err)
	}
	return nil
}
