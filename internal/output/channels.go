package output

import (
	"fmt"
	"math"

	"github.com/banshee-data/posegrain/internal/params"
)

const (
	DefaultChannelCount = 16
	MaxChannelCount     = 32
	// DefaultChannelPrefix is the address prefix for numbered channels.
	DefaultChannelPrefix = "/ch"
)

// Channel describes one numbered output channel. Values are always in [0,1].
type Channel struct {
	ID      string  `json:"id"`
	Channel int     `json:"channel"`
	Label   string  `json:"label"`
	Address string  `json:"address"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// NormalizeChannelCount returns the default for non-positive counts and caps
// the result at MaxChannelCount.
func NormalizeChannelCount(n int) int {
	if n <= 0 {
		return DefaultChannelCount
	}
	if n > MaxChannelCount {
		return MaxChannelCount
	}
	return n
}

// ChannelAddress returns the address for channel n, e.g. "/ch/03".
func ChannelAddress(prefix string, n int) string {
	return fmt.Sprintf("%s/%02d", params.NormalizePrefix(prefix), n)
}

// Channels generates the channel list for count channels under prefix.
func Channels(count int, prefix string) []Channel {
	count = NormalizeChannelCount(count)
	out := make([]Channel, count)
	for i := range out {
		n := i + 1
		out[i] = Channel{
			ID:      fmt.Sprintf("ch-%02d", n),
			Channel: n,
			Label:   fmt.Sprintf("Channel %d", n),
			Address: ChannelAddress(prefix, n),
			Min:     0,
			Max:     1,
		}
	}
	return out
}

// channelValue validates a channel number against count and clamps value.
func channelValue(count, channel int, value float64) (float64, bool) {
	if channel < 1 || channel > count {
		return 0, false
	}
	if math.IsNaN(value) || value <= 0 {
		return 0, true
	}
	if value >= 1 {
		return 1, true
	}
	return value, true
}
