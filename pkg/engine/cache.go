package engine

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero"

	"github.com/certen/wavs/pkg/types"
)

// moduleCache is the LRU-by-digest compiled-component cache of spec §4.5.
// hashicorp/golang-lru is already an indirect dependency of the sibling
// example repo (cuemby-warren), promoted to direct here for exactly the
// "cached LRU by digest" requirement.
type moduleCache struct {
	cache *lru.Cache[types.Digest, wazero.CompiledModule]
}

func newModuleCache(capacity int) (*moduleCache, error) {
	c, err := lru.NewWithEvict[types.Digest, wazero.CompiledModule](capacity, func(_ types.Digest, mod wazero.CompiledModule) {
		_ = mod.Close(context.Background()) // best-effort; evicted modules are never in-flight
	})
	if err != nil {
		return nil, err
	}
	return &moduleCache{cache: c}, nil
}

func (c *moduleCache) get(d types.Digest) (wazero.CompiledModule, bool) {
	return c.cache.Get(d)
}

func (c *moduleCache) put(d types.Digest, mod wazero.CompiledModule) {
	c.cache.Add(d, mod)
}
