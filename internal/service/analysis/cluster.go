// internal/service/analysis/cluster.go

package analysis

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/bits"
	"strings"
	"sync"
)

// Clusterer groups near-duplicate perceptual hashes into template clusters.
// A new hash joins the cluster of the nearest existing representative when
// the Hamming distance is within the similarity threshold, otherwise it
// seeds a new cluster. Representatives never change once set, so clusters
// stay stable against drift and membership never needs a transitive
// closure. Representative creation is shared-state mutation, so every
// assignment runs under the lock.
type Clusterer struct {
	mu        sync.Mutex
	threshold int
	reps      []representative
	members   map[string]string // hash -> cluster id
}

type representative struct {
	id   string
	bits []byte
}

// NewClusterer creates a clusterer with the given Hamming distance threshold.
func NewClusterer(threshold int) *Clusterer {
	return &Clusterer{
		threshold: threshold,
		members:   make(map[string]string),
	}
}

// SetThreshold applies a reloaded similarity threshold. Existing memberships
// are kept; only future assignments use the new distance.
func (c *Clusterer) SetThreshold(threshold int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = threshold
}

// Assign returns the cluster id for a perceptual hash, creating a new
// cluster when no representative is close enough. The cluster id is the
// representative's hash, which doubles as the unit key for image-template
// units. Malformed hashes return an error so the caller can drop just that
// media reference.
func (c *Clusterer) Assign(hash string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(hash))
	if normalized == "" {
		return "", fmt.Errorf("empty perceptual hash")
	}

	raw, err := hex.DecodeString(normalized)
	if err != nil {
		return "", fmt.Errorf("malformed perceptual hash %q: %w", hash, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Exact-match short circuit: hashes seen before keep their cluster.
	if id, ok := c.members[normalized]; ok {
		return id, nil
	}

	best := -1
	bestDist := math.MaxInt
	for i, rep := range c.reps {
		d := hammingDistance(raw, rep.bits)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	if best >= 0 && bestDist <= c.threshold {
		id := c.reps[best].id
		c.members[normalized] = id
		return id, nil
	}

	c.reps = append(c.reps, representative{id: normalized, bits: raw})
	c.members[normalized] = normalized
	return normalized, nil
}

// Assignments returns a copy of the hash to cluster id mapping for
// persistence.
func (c *Clusterer) Assignments() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.members))
	for h, id := range c.members {
		out[h] = id
	}
	return out
}

// Load rebuilds the cluster table from a persisted hash to cluster id
// mapping. Entries whose cluster id decodes become representatives; the rest
// become plain members. Undecodable entries are skipped.
func (c *Clusterer) Load(assignments map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	for _, id := range assignments {
		if seen[id] {
			continue
		}
		raw, err := hex.DecodeString(id)
		if err != nil {
			continue
		}
		seen[id] = true
		c.reps = append(c.reps, representative{id: id, bits: raw})
	}
	for h, id := range assignments {
		c.members[h] = id
	}
}

// hammingDistance counts differing bits. Hashes of different lengths come
// from different hash functions and are never similar.
func hammingDistance(a, b []byte) int {
	if len(a) != len(b) {
		return math.MaxInt
	}
	d := 0
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}
