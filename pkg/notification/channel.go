package notification

// Channel is a delivery medium a notification can be sent through.
type Channel string

const (
	ChannelRealtime Channel = "realtime"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelChat     Channel = "chat"
	ChannelWebhook  Channel = "webhook"
)

// Valid reports whether the channel is one of the known delivery media.
func (c Channel) Valid() bool {
	switch c {
	case ChannelRealtime, ChannelEmail, ChannelSMS, ChannelChat, ChannelWebhook:
		return true
	}
	return false
}

// AllChannels returns every known channel in declaration order.
func AllChannels() []Channel {
	return []Channel{ChannelRealtime, ChannelEmail, ChannelSMS, ChannelChat, ChannelWebhook}
}

// DefaultChannelWeights maps each channel to its default delivery priority.
// Lower weight is delivered first.
var DefaultChannelWeights = map[Channel]int{
	ChannelRealtime: 1,
	ChannelEmail:    2,
	ChannelSMS:      3,
	ChannelChat:     4,
	ChannelWebhook:  5,
}

// SortChannelsByWeight orders channels by ascending weight. Channels absent
// from the weight map sort last, keeping their relative order stable.
func SortChannelsByWeight(channels []Channel, weights map[Channel]int) []Channel {
	sorted := make([]Channel, len(channels))
	copy(sorted, channels)

	weightOf := func(c Channel) int {
		if w, ok := weights[c]; ok {
			return w
		}
		return int(^uint(0) >> 1)
	}

	// Insertion sort keeps equal-weight channels in their incoming order.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && weightOf(sorted[j]) < weightOf(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
