// Coordinator tying detectors, the points ledger, the escalation policy,
// and the sanction lifecycle together. One Evaluate call per inbound
// message; evaluations for the same subject are serialized, different
// subjects proceed in parallel.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/nomi-labs/guardian/moderation"
	"github.com/nomi-labs/guardian/moderation/detector"
	"github.com/nomi-labs/guardian/moderation/ledger"
	"github.com/nomi-labs/guardian/moderation/policy"
	"github.com/nomi-labs/guardian/moderation/sanction"
	"github.com/nomi-labs/guardian/moderation/warning"
)

// Config is the swappable part of the engine: the policy knobs, the
// detector set, and per-group toggles. Replaced atomically via SetConfig.
type Config struct {
	Policy    moderation.PolicyConfig
	Detectors []detector.Detector
	// groups where plain links are tolerated
	LinkFriendlyGroups map[int64]bool
}

type snapshot struct {
	policy    moderation.PolicyConfig
	decide    *policy.Policy
	detectors []detector.Detector
	admins    map[int64]bool
	linkOK    map[int64]bool
}

func newSnapshot(cfg Config) (*snapshot, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	admins := make(map[int64]bool, len(cfg.Policy.AdminIDs))
	for _, id := range cfg.Policy.AdminIDs {
		admins[id] = true
	}
	return &snapshot{
		policy:    cfg.Policy,
		decide:    policy.New(cfg.Policy),
		detectors: cfg.Detectors,
		admins:    admins,
		linkOK:    cfg.LinkFriendlyGroups,
	}, nil
}

type Engine struct {
	Logger    *slog.Logger
	Ledger    ledger.Ledger
	Sanctions sanction.Store
	Warnings  warning.Store

	cfg     atomic.Pointer[snapshot]
	locks   keyLock
	history *history
	dedupe  *expirable.LRU[string, bool]
}

func New(logger *slog.Logger, led ledger.Ledger, sancs sanction.Store, warns warning.Store, cfg Config) (*Engine, error) {
	snap, err := newSnapshot(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	e := &Engine{
		Logger:    logger,
		Ledger:    led,
		Sanctions: sancs,
		Warnings:  warns,
		history:   newHistory(time.Minute, 10),
		dedupe:    expirable.NewLRU[string, bool](4096, nil, time.Minute),
	}
	e.cfg.Store(snap)
	return e, nil
}

// SetConfig swaps in a new policy and detector set. On validation failure
// the running config is kept.
func (e *Engine) SetConfig(cfg Config) error {
	snap, err := newSnapshot(cfg)
	if err != nil {
		return err
	}
	e.cfg.Store(snap)
	e.Logger.Info("moderation config replaced", "detectors", len(cfg.Detectors))
	return nil
}

// Result of one message evaluation.
type Result struct {
	Decision   moderation.SanctionDecision
	Violations []moderation.Violation
	// set when the decision produced a warning
	Warning *warning.Warning
	// set when the decision applied a sanction
	Sanction *sanction.Sanction
	// set when the subject was already sanctioned and evaluation was skipped
	Existing    *sanction.Sanction
	PointsTotal int
	// true when an identical sanction was applied moments ago; callers can
	// use this to avoid repeating notifications
	Duplicate bool
}

// Evaluate runs one message through the full pipeline: admin bypass, the
// already-sanctioned short-circuit, detection, ledger recording, the
// escalation decision, and sanction or warning application. Store failures
// never abort an evaluation: a failed read is logged, counted, and treated
// as absent state (not sanctioned, no history); a failed write is retried
// once, then logged, and the message proceeds.
func (e *Engine) Evaluate(ctx context.Context, msg moderation.Message) (*Result, error) {
	start := time.Now()
	snap := e.cfg.Load()
	key := msg.Key()
	logger := e.Logger.With("user", key.UserID, "group", key.GroupID)

	// admins are exempt and leave no trace in history or stores
	if snap.admins[msg.SenderID] {
		messagesProcessed.WithLabelValues("admin_bypass").Inc()
		return &Result{Decision: moderation.SanctionDecision{RuleApplied: "admin/bypass"}}, nil
	}

	unlock := e.locks.lock(key)
	defer unlock()

	for _, kind := range []sanction.Kind{sanction.KindBan, sanction.KindMute} {
		existing, active, err := e.Sanctions.Get(ctx, key, kind, msg.ReceivedAt)
		if err != nil {
			readErrorCount.WithLabelValues("sanction_get").Inc()
			logger.Warn("sanction check failed, treating as not sanctioned", "kind", kind, "err", err)
			continue
		}
		if active {
			messagesProcessed.WithLabelValues("already_sanctioned").Inc()
			return &Result{
				Existing: &existing,
				Decision: decisionFromSanction(existing, msg.ReceivedAt),
			}, nil
		}
	}

	dctx := e.history.observe(key, msg)
	dctx.GroupAllowsLinks = snap.linkOK[msg.GroupID]

	violations := e.runDetectors(msg, dctx, snap, logger)
	if len(violations) == 0 {
		messagesProcessed.WithLabelValues("clean").Inc()
		messageEvalDuration.WithLabelValues("clean").Observe(time.Since(start).Seconds())
		return &Result{Violations: nil}, nil
	}
	for _, v := range violations {
		violationsDetected.WithLabelValues(string(v.Kind)).Inc()
	}

	res := e.applyOutcome(ctx, key, msg, violations, snap, logger)
	messagesProcessed.WithLabelValues("violation").Inc()
	messageEvalDuration.WithLabelValues("violation").Observe(time.Since(start).Seconds())
	return res, nil
}

// runDetectors fans out over the configured detectors and collects their
// violations in configuration order, so the outcome does not depend on
// goroutine scheduling. A panicking detector is skipped, not fatal.
func (e *Engine) runDetectors(msg moderation.Message, dctx moderation.DetectionContext, snap *snapshot, logger *slog.Logger) []moderation.Violation {
	found := make([][]moderation.Violation, len(snap.detectors))
	var g errgroup.Group
	for i, det := range snap.detectors {
		i, det := i, det
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					detectorPanicCount.WithLabelValues(det.Name()).Inc()
					logger.Error("detector panicked", "detector", det.Name(), "err", r)
				}
			}()
			found[i] = det.Detect(msg, dctx)
			return nil
		})
	}
	_ = g.Wait()

	var violations []moderation.Violation
	for _, vs := range found {
		violations = append(violations, vs...)
	}
	return violations
}

func (e *Engine) applyOutcome(ctx context.Context, key moderation.UserKey, msg moderation.Message, violations []moderation.Violation, snap *snapshot, logger *slog.Logger) *Result {
	now := msg.ReceivedAt
	res := &Result{Violations: violations}

	for _, v := range violations {
		points := snap.policy.PointWeights[v.Kind]
		if points <= 0 {
			points = v.Severity
		}
		e.writeWithRetry(ctx, snap, "ledger_record", logger, func(wctx context.Context) error {
			return e.Ledger.Record(wctx, key, v, points)
		})
	}

	ledgerPoints, err := e.Ledger.TotalPoints(ctx, key, snap.policy.DecayWindow, now)
	if err != nil {
		readErrorCount.WithLabelValues("ledger_points").Inc()
		logger.Warn("ledger read failed, treating as no history", "err", err)
		ledgerPoints = 0
	}
	warnPoints, err := e.Warnings.ActivePoints(ctx, key, now)
	if err != nil {
		readErrorCount.WithLabelValues("warning_points").Inc()
		logger.Warn("warning read failed, treating as no history", "err", err)
		warnPoints = 0
	}
	res.PointsTotal = ledgerPoints + warnPoints

	// every violation gets its own decision; the strongest one is enforced,
	// so an instant-ban kind is never masked by a higher-severity kind that
	// only mutes
	priorByKind := make(map[moderation.ViolationKind]int)
	var top moderation.Violation
	for i, v := range violations {
		prior, seen := priorByKind[v.Kind]
		if !seen {
			var cerr error
			prior, cerr = e.Sanctions.CountOffenses(ctx, key, v.Kind, now.Add(-snap.policy.OffenseLookback))
			if cerr != nil {
				readErrorCount.WithLabelValues("offense_count").Inc()
				logger.Warn("offense count read failed, treating as first offense", "kind", v.Kind, "err", cerr)
				prior = 0
			}
			priorByKind[v.Kind] = prior
		}
		dec := snap.decide.Decide(v, policy.OffenseHistory{
			PriorSanctions: prior,
			TotalPoints:    res.PointsTotal,
		})
		if i == 0 || strongerDecision(dec, res.Decision) {
			res.Decision = dec
			top = v
		}
	}
	logger.Info("moderation decision",
		"action", res.Decision.Action,
		"rule", res.Decision.RuleApplied,
		"kind", top.Kind,
		"points", res.PointsTotal,
		"prior_offenses", priorByKind[top.Kind])

	switch res.Decision.Action {
	case moderation.ActionWarn:
		level := warning.LevelForSeverity(top.Severity)
		w, werr := e.Warnings.Issue(ctx, key, level, 0, res.Decision.Reason, snap.policy.WarningTTL, now)
		if werr != nil {
			persistErrorCount.WithLabelValues("warning_issue").Inc()
			logger.Warn("issuing warning failed", "err", werr)
		} else {
			res.Warning = &w
			warningsIssued.WithLabelValues(string(level)).Inc()
		}
	case moderation.ActionMute, moderation.ActionBan:
		kind := sanction.KindMute
		if res.Decision.Action == moderation.ActionBan {
			kind = sanction.KindBan
		}
		var applied sanction.Sanction
		ok := e.writeWithRetry(ctx, snap, "sanction_apply", logger, func(wctx context.Context) error {
			var aerr error
			applied, aerr = e.Sanctions.Apply(wctx, key, kind, res.Decision.EvidenceKind, res.Decision.Duration, res.Decision.Reason, now)
			return aerr
		})
		if ok {
			res.Sanction = &applied
			sanctionsApplied.WithLabelValues(string(kind)).Inc()
			// flag repeats so callers do not notify twice for one burst; the
			// sanction itself is always applied
			dedupeKey := fmt.Sprintf("%s/%s/%s", key, kind, res.Decision.EvidenceKind)
			if _, seen := e.dedupe.Get(dedupeKey); seen {
				res.Duplicate = true
			} else {
				e.dedupe.Add(dedupeKey, true)
			}
		}
	}
	return res
}

// writeWithRetry attempts a persistence write with the configured timeout,
// retrying once. Persistent failure is logged and counted but does not
// abort the evaluation.
func (e *Engine) writeWithRetry(ctx context.Context, snap *snapshot, op string, logger *slog.Logger, fn func(context.Context) error) bool {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, snap.policy.PersistTimeout)
		err = fn(wctx)
		cancel()
		if err == nil {
			return true
		}
	}
	persistErrorCount.WithLabelValues(op).Inc()
	logger.Warn("persistence write failed after retry", "op", op, "err", err)
	return false
}

// decisionFromSanction reflects an already-active sanction back to the
// caller so a muted or banned subject's message is still dropped.
func decisionFromSanction(sanc sanction.Sanction, now time.Time) moderation.SanctionDecision {
	action := moderation.ActionMute
	if sanc.Kind == sanction.KindBan {
		action = moderation.ActionBan
	}
	dec := moderation.SanctionDecision{
		Action:      action,
		Reason:      sanc.Reason,
		RuleApplied: "sanction/active",
	}
	if sanc.ExpiresAt != nil {
		dec.Duration = sanc.ExpiresAt.Sub(now)
	}
	return dec
}

// strongerDecision reports whether a should be enforced over b: higher
// action first, then permanence, then the longer duration.
func strongerDecision(a, b moderation.SanctionDecision) bool {
	if a.Action != b.Action {
		return a.Action > b.Action
	}
	if a.Permanent() != b.Permanent() {
		return a.Permanent()
	}
	return a.Duration > b.Duration
}

// Revoke lifts an active sanction, for manual moderator intervention.
func (e *Engine) Revoke(ctx context.Context, key moderation.UserKey, kind sanction.Kind, reason string) (bool, error) {
	unlock := e.locks.lock(key)
	defer unlock()
	return e.Sanctions.Revoke(ctx, key, kind, reason, time.Now())
}
