// Package resolve converts extracted page fields into entity records and
// reconciles records discovered independently in different crawl phases.
package resolve

import (
	"hash/fnv"
	"sync"
)

// AgencyMeta is the global-directory metadata for an agency, keyed by its
// name-only hash. It is collected in phase 2 and joined onto placements
// discovered during ministry traversal.
type AgencyMeta struct {
	Name        string
	Description string
	LogoURL     string
	AgencyURL   string
}

const indexShards = 32

// Index is an append-only map from agency_name_hash to directory metadata.
// Locking is striped per shard so parallel parse workers contend only on
// keys that hash to the same shard.
type Index struct {
	shards [indexShards]indexShard
}

type indexShard struct {
	mu      sync.RWMutex
	entries map[string]AgencyMeta
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i].entries = make(map[string]AgencyMeta)
	}
	return idx
}

func (x *Index) shard(key string) *indexShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &x.shards[h.Sum32()%indexShards]
}

// Put stores meta under nameHash. The index is append-only: the first write
// for a key wins and Put reports whether the entry was stored.
func (x *Index) Put(nameHash string, meta AgencyMeta) bool {
	if nameHash == "" {
		return false
	}
	s := x.shard(nameHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[nameHash]; exists {
		return false
	}
	s.entries[nameHash] = meta
	return true
}

// Get looks up the metadata for nameHash.
func (x *Index) Get(nameHash string) (AgencyMeta, bool) {
	s := x.shard(nameHash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.entries[nameHash]
	return meta, ok
}

// Len returns the number of indexed entries.
func (x *Index) Len() int {
	total := 0
	for i := range x.shards {
		x.shards[i].mu.RLock()
		total += len(x.shards[i].entries)
		x.shards[i].mu.RUnlock()
	}
	return total
}
