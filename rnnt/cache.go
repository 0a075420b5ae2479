package rnnt

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ieee0824/transducer-go/tensor"
)

// Scored is the memoized prediction-network result for one token prefix.
// Output is [1, 1, H]; State is the bundle after the prefix; LastToken is
// the id that was fed (blank for the initial step).
type Scored struct {
	Output    *tensor.Tensor
	State     *State
	LastToken int
}

type cacheEntry struct {
	seq   []int
	value *Scored
}

// Cache memoizes Scored values by token sequence for one decode pass.
// Entries are only ever added. A Cache has no locking and must not be
// shared between concurrently running decode passes.
type Cache struct {
	entries map[uint64][]cacheEntry
	size    int
	hits    int
	misses  int
	logger  *zap.Logger
}

// NewCache returns an empty cache. A nil logger discards output.
func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[uint64][]cacheEntry),
		logger:  logger,
	}
}

// Get returns the value stored for seq.
func (c *Cache) Get(seq []int) (*Scored, bool) {
	for _, e := range c.entries[sequenceKey(seq)] {
		if slices.Equal(e.seq, seq) {
			c.hits++
			RecordCacheHit()
			return e.value, true
		}
	}
	c.misses++
	RecordCacheMiss()
	return nil, false
}

// Put stores v for seq unless seq is already present, and returns the value
// now associated with seq.
func (c *Cache) Put(seq []int, v *Scored) *Scored {
	key := sequenceKey(seq)
	bucket := c.entries[key]
	for _, e := range bucket {
		if slices.Equal(e.seq, seq) {
			return e.value
		}
	}
	if len(bucket) > 0 {
		c.logger.Debug("Hypothesis cache key collision", zap.Uint64("key", key), zap.Ints("sequence", seq))
	}
	c.entries[key] = append(bucket, cacheEntry{seq: slices.Clone(seq), value: v})
	c.size++
	return v
}

// Len returns the number of stored prefixes.
func (c *Cache) Len() int { return c.size }

// Stats returns lookup hit and miss counts.
func (c *Cache) Stats() (hits, misses int) { return c.hits, c.misses }

// sequenceKey hashes the little-endian int64 encoding of seq. A length
// prefix keeps the empty sequence distinct from everything else.
func sequenceKey(seq []int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(seq)))
	_, _ = d.Write(buf[:])
	for _, id := range seq {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(id)))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
