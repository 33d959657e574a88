package workflow

import lru "github.com/hashicorp/golang-lru/v2"

// NodeTypeCache caches ShapeName -> NodeType lookups, since the engine
// looks up a Node Type at every step it visits (the dominant read pattern
// per spec.md §4.7).
type NodeTypeCache struct {
	cache *lru.Cache[string, NodeType]
	load  func(shapeName string) (NodeType, bool)
}

// NewNodeTypeCache builds a cache of the given size, backed by load for
// misses.
func NewNodeTypeCache(size int, load func(shapeName string) (NodeType, bool)) *NodeTypeCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, NodeType](size)
	return &NodeTypeCache{cache: c, load: load}
}

// Get returns the NodeType for shapeName, populating the cache on miss.
func (c *NodeTypeCache) Get(shapeName string) (NodeType, bool) {
	if nt, ok := c.cache.Get(shapeName); ok {
		return nt, true
	}
	nt, ok := c.load(shapeName)
	if !ok {
		return NodeType{}, false
	}
	c.cache.Add(shapeName, nt)
	return nt, true
}

// Invalidate drops shapeName from the cache (call on Node Type mutation).
func (c *NodeTypeCache) Invalidate(shapeName string) {
	c.cache.Remove(shapeName)
}

// Func adapts the cache's Get method to the nodeTypeOf signature Validate
// and FindStart expect.
func (c *NodeTypeCache) Func() func(shapeName string) (NodeType, bool) {
	return c.Get
}
