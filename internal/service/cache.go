package service

import (
	"strconv"
	"strings"
	"sync"

	"github.com/quiby-ai/review-compare/internal/types"
)

// ClusterCache memoizes clustering results by review-id content key.
// Entries live for the process lifetime: the store is unbounded with no
// eviction, which is accepted for this service's scale.
type ClusterCache struct {
	mu      sync.RWMutex
	entries map[string][]types.ReviewCluster
}

// NewClusterCache builds an empty cache.
func NewClusterCache() *ClusterCache {
	return &ClusterCache{entries: make(map[string][]types.ReviewCluster)}
}

// Key derives the content key for a filtered review list: the ordered
// review IDs joined with "|" plus the list length.
func (c *ClusterCache) Key(reviews []types.Review) string {
	ids := make([]string, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	return strings.Join(ids, "|") + ":" + strconv.Itoa(len(reviews))
}

// Get returns the cached clusters for key, if present.
func (c *ClusterCache) Get(key string) ([]types.ReviewCluster, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clusters, ok := c.entries[key]
	return clusters, ok
}

// Set stores clusters under key.
func (c *ClusterCache) Set(key string, clusters []types.ReviewCluster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = clusters
}

// Len returns the number of cached entries.
func (c *ClusterCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
