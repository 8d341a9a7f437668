package engine

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nomi-labs/guardian/moderation"
)

// burstLimit is the per-key message budget inside the rolling window before
// the flood detector is told the subject is bursting.
const burstLimit = 10

// history keeps a short rolling record of each subject's recent messages,
// feeding the detection context. State is in-process only; it rebuilds
// naturally after a restart.
type history struct {
	entries *xsync.MapOf[moderation.UserKey, *userWindow]
	window  time.Duration
	keep    int
}

type userWindow struct {
	mu         sync.Mutex
	limiter    *slidingwindow.Limiter
	timestamps []time.Time
	texts      []string
}

func newHistory(window time.Duration, keep int) *history {
	return &history{
		entries: xsync.NewMapOf[moderation.UserKey, *userWindow](),
		window:  window,
		keep:    keep,
	}
}

// observe snapshots the subject's prior activity into a detection context,
// then records the new message. The snapshot excludes the message itself so
// detectors compare it against what came before.
func (h *history) observe(key moderation.UserKey, msg moderation.Message) moderation.DetectionContext {
	uw, _ := h.entries.LoadOrCompute(key, func() *userWindow {
		// the local window implementation cannot fail
		lim, _ := slidingwindow.NewLimiter(h.window, burstLimit, func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
		return &userWindow{limiter: lim}
	})

	uw.mu.Lock()
	defer uw.mu.Unlock()

	cutoff := msg.ReceivedAt.Add(-h.window)
	kept := uw.timestamps[:0]
	for _, ts := range uw.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	uw.timestamps = kept

	dctx := moderation.DetectionContext{
		RecentTimestamps: append([]time.Time(nil), uw.timestamps...),
		RecentTexts:      append([]string(nil), uw.texts...),
		RecentBurst:      !uw.limiter.Allow(),
	}

	uw.timestamps = append(uw.timestamps, msg.ReceivedAt)
	uw.texts = append(uw.texts, msg.Text)
	if len(uw.texts) > h.keep {
		uw.texts = uw.texts[len(uw.texts)-h.keep:]
	}
	return dctx
}
