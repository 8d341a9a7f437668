package detector

import (
	"fmt"
	"time"

	"github.com/nomi-labs/guardian/moderation"
)

type FloodConfig struct {
	// Window and message budget for the rate check.
	Window      time.Duration
	MaxMessages int
	// Two consecutive messages closer together than this get flagged.
	MinInterval time.Duration
}

func DefaultFloodConfig() FloodConfig {
	return FloodConfig{
		Window:      time.Minute,
		MaxMessages: 10,
		MinInterval: 2 * time.Second,
	}
}

// FloodDetector flags senders whose recent-message timestamps (supplied by
// the caller, not stored here) exceed the per-window budget, or who post
// consecutive messages faster than the minimum interval.
type FloodDetector struct {
	cfg FloodConfig
}

func NewFloodDetector(cfg FloodConfig) *FloodDetector {
	return &FloodDetector{cfg: cfg}
}

func (d *FloodDetector) Name() string { return "flood" }

func (d *FloodDetector) Detect(msg moderation.Message, dctx moderation.DetectionContext) []moderation.Violation {
	var out []moderation.Violation

	cutoff := msg.ReceivedAt.Add(-d.cfg.Window)
	recent := 0
	for _, ts := range dctx.RecentTimestamps {
		if ts.After(cutoff) {
			recent++
		}
	}
	// the current message is the recent+1'th in the window
	if recent >= d.cfg.MaxMessages || dctx.RecentBurst {
		out = append(out, moderation.Violation{
			Kind:       moderation.KindFlood,
			Severity:   5,
			DetectedAt: msg.ReceivedAt,
			Evidence: map[string]string{
				"rule":     "message_rate",
				"messages": fmt.Sprintf("%d", recent+1),
				"window":   d.cfg.Window.String(),
			},
		})
	}

	if n := len(dctx.RecentTimestamps); n > 0 {
		gap := msg.ReceivedAt.Sub(dctx.RecentTimestamps[n-1])
		if gap >= 0 && gap < d.cfg.MinInterval {
			out = append(out, moderation.Violation{
				Kind:       moderation.KindFlood,
				Severity:   3,
				DetectedAt: msg.ReceivedAt,
				Evidence: map[string]string{
					"rule":     "message_interval",
					"interval": gap.String(),
				},
			})
		}
	}

	return out
}
