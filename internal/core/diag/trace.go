package diag

import (
	"fmt"
	"log/slog"
)

// Channel is an enumerated debug-trace channel. Channels are enabled via
// configuration at construction time, never via process environment, so test
// runs stay reproducible.
type Channel string

const (
	ChannelGraph     Channel = "graph"
	ChannelDiscovery Channel = "discovery"
	ChannelPipeline  Channel = "pipeline"
	ChannelCache     Channel = "cache"
)

// Tracer is the injected debug-tracing capability. A nil *Tracer is valid
// and silent.
type Tracer struct {
	enabled map[Channel]bool
	logger  *slog.Logger
}

func NewTracer(logger *slog.Logger, channels ...Channel) *Tracer {
	enabled := make(map[Channel]bool, len(channels))
	for _, ch := range channels {
		enabled[ch] = true
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{enabled: enabled, logger: logger}
}

func (t *Tracer) Enabled(ch Channel) bool {
	return t != nil && t.enabled[ch]
}

func (t *Tracer) Tracef(ch Channel, format string, args ...interface{}) {
	if !t.Enabled(ch) {
		return
	}
	t.logger.Debug(fmt.Sprintf(format, args...), "channel", string(ch))
}
