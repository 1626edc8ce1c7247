package telemetry

import (
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/patrickmn/go-cache"
)

// ChangeMonitor reduces log/event spam for values that may repeat tick
// after tick (e.g. the same blocked-task reason), adapted from the
// teacher's pkg/utils/pretty.ChangeMonitor. Recorded values expire after
// the visibility timeout so a value logged once at startup doesn't
// silently suppress it forever.
type ChangeMonitor struct {
	lastSeen *cache.Cache
}

// NewChangeMonitor creates a monitor with the given visibility timeout,
// defaulting to 24h like the teacher's when timeout is zero.
func NewChangeMonitor(visibilityTimeout time.Duration) *ChangeMonitor {
	if visibilityTimeout == 0 {
		visibilityTimeout = 24 * time.Hour
	}
	return &ChangeMonitor{lastSeen: cache.New(visibilityTimeout, visibilityTimeout/2)}
}

// HasChanged reports whether value's hash differs from the last
// recorded hash for key, recording the new hash either way.
func (c *ChangeMonitor) HasChanged(key string, value any) bool {
	hv, _ := hashstructure.Hash(value, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: true})
	existing, ok := c.lastSeen.Get(key)
	var existingHash uint64
	if ok {
		existingHash = existing.(uint64)
	}
	if !ok || existingHash != hv {
		c.lastSeen.SetDefault(key, hv)
		return true
	}
	return false
}
