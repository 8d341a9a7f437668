package detector

import (
	"regexp"
	"strings"

	"github.com/nomi-labs/guardian/moderation"
)

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

// hostnames only: labels plus a letters-only TLD, so "3.14" is not a domain
var domainRegex = regexp.MustCompile(`^[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}$`)

type LinkConfig struct {
	// Severity for links to explicitly blocked domains.
	BlockedSeverity int
	// Severity for links to unknown domains when the group denies open links.
	UnknownSeverity int
}

func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		BlockedSeverity: 8,
		UnknownSeverity: 5,
	}
}

// LinkDetector extracts URLs (with-protocol and bare-domain heuristics) and
// classifies their domains against the configured allow and block lists. An
// explicit block always wins over an allow; unknown domains are denied unless
// the group allows open links.
type LinkDetector struct {
	cfg     LinkConfig
	allowed map[string]bool
	blocked map[string]bool
}

func NewLinkDetector(cfg LinkConfig, allowed, blocked []string) *LinkDetector {
	d := &LinkDetector{
		cfg:     cfg,
		allowed: make(map[string]bool, len(allowed)),
		blocked: make(map[string]bool, len(blocked)),
	}
	for _, dom := range allowed {
		d.allowed[normalizeDomain(dom)] = true
	}
	for _, dom := range blocked {
		d.blocked[normalizeDomain(dom)] = true
	}
	return d
}

func (d *LinkDetector) Name() string { return "link" }

func (d *LinkDetector) Detect(msg moderation.Message, dctx moderation.DetectionContext) []moderation.Violation {
	if blankText(msg.Text) {
		return nil
	}

	var out []moderation.Violation
	for _, domain := range ExtractDomains(msg.Text) {
		switch {
		case d.blocked[domain]:
			// block wins even when the domain is also allow-listed
			out = append(out, moderation.Violation{
				Kind:       moderation.KindMaliciousLink,
				Severity:   d.cfg.BlockedSeverity,
				DetectedAt: msg.ReceivedAt,
				Evidence:   map[string]string{"rule": "blocked_domain", "domain": domain},
			})
		case d.allowed[domain]:
			// explicitly allowed
		case dctx.GroupAllowsLinks:
			// group permits open links
		default:
			out = append(out, moderation.Violation{
				Kind:       moderation.KindLink,
				Severity:   d.cfg.UnknownSeverity,
				DetectedAt: msg.ReceivedAt,
				Evidence:   map[string]string{"rule": "unknown_domain", "domain": domain},
			})
		}
	}
	return out
}

// ExtractDomains returns the normalized, deduplicated domains of every URL
// found in the text.
func ExtractDomains(text string) []string {
	var out []string
	for _, raw := range urlRegex.FindAllString(text, -1) {
		if domain := normalizeDomain(raw); domain != "" {
			out = append(out, domain)
		}
	}
	return dedupeStrings(out)
}

func normalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, scheme := range []string{"https://", "http://", "ftp://"} {
		s = strings.TrimPrefix(s, scheme)
	}
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	if !domainRegex.MatchString(s) {
		return ""
	}
	return s
}
