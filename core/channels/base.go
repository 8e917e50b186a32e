package channels

import "path/filepath"

// BaseLayer holds the configuration and capacity-resolution logic shared by
// every layer implementation, mirroring BaseChannelLayer from spec.md §4.3.
// Concrete layers embed BaseLayer and implement the rest of the Layer
// interface themselves.
type BaseLayer struct {
	Expiry          int // message TTL seconds
	GroupExpiry     int // membership TTL seconds
	Capacity        int // default per-channel inbox bound
	ChannelCapacity []CapacityOverride
}

// DefaultExpiry, DefaultGroupExpiry and DefaultCapacity are the layer
// defaults named in spec.md §4.3 / §6.
const (
	DefaultExpiry      = 60
	DefaultGroupExpiry = 86400
	DefaultCapacity    = 100
)

// NewBaseLayer builds a BaseLayer with spec.md's defaults, then applies
// overrides for any non-zero field supplied.
func NewBaseLayer(expiry, groupExpiry, capacity int, channelCapacity []CapacityOverride) BaseLayer {
	b := BaseLayer{
		Expiry:          DefaultExpiry,
		GroupExpiry:     DefaultGroupExpiry,
		Capacity:        DefaultCapacity,
		ChannelCapacity: channelCapacity,
	}
	if expiry > 0 {
		b.Expiry = expiry
	}
	if groupExpiry > 0 {
		b.GroupExpiry = groupExpiry
	}
	if capacity > 0 {
		b.Capacity = capacity
	}
	return b
}

// GetCapacity returns the capacity that applies to channel: the first
// matching glob override, evaluated in configuration order, or the layer's
// default capacity if none match. First-match order resolves spec.md's
// Open Question about overlapping channel_capacity globs.
func (b BaseLayer) GetCapacity(channel string) int {
	for _, o := range b.ChannelCapacity {
		if ok, _ := filepath.Match(o.Pattern, channel); ok {
			return o.Capacity
		}
	}
	return b.Capacity
}
