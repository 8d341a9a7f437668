// Moderation engine for group messaging: detects rule violations in inbound
// messages, accumulates time-windowed violation points per (user, group), and
// converts repeat-offense history into graduated sanctions (warn, mute, ban)
// with automatic expiry.
//
// This package holds the shared value types. The pipeline itself lives in
// sub-packages: `detector` (stateless rule evaluators), `ledger` (windowed
// points accumulator), `policy` (escalation decisions), `sanction` (active
// mute/ban state), `warning` (warning point pool), and `engine` (the
// per-message coordinator). See `cmd/warden` for a daemon built on this
// package.
package moderation
