// Package detect decides whether a page belongs to the tracked site.
//
// A single matching signal is not enough: a page is tracked only when at
// least MinSignals independent signals agree, which keeps one misleading
// hint (a custom domain, a copied DOM class) from registering a context.
package detect

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/vburojevic/readtime/internal/config"
	"github.com/vburojevic/readtime/internal/domain"
)

// Signal names reported in a Verdict.
const (
	SignalHost      = "host"
	SignalPath      = "path"
	SignalGenerator = "generator"
	SignalMarker    = "marker"
)

// Verdict is the outcome of classifying a page.
type Verdict struct {
	Tracked bool
	Signals []string // signals that matched, in evaluation order
}

// Classifier matches pages against the configured site description.
type Classifier struct {
	hosts        []glob.Glob
	pathPrefixes []string
	generator    string
	markers      []string
	minSignals   int
}

// NewClassifier compiles the host patterns in cfg.
func NewClassifier(cfg config.SiteConfig) (*Classifier, error) {
	c := &Classifier{
		pathPrefixes: lo.Compact(cfg.PathPrefixes),
		generator:    strings.ToLower(strings.TrimSpace(cfg.Generator)),
		markers:      lo.Compact(cfg.Markers),
		minSignals:   cfg.MinSignals,
	}
	if c.minSignals < 1 {
		c.minSignals = 2
	}
	for _, pattern := range lo.Compact(cfg.Hosts) {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid host pattern %q: %w", pattern, err)
		}
		c.hosts = append(c.hosts, g)
	}
	return c, nil
}

// Classify evaluates every signal for page.
func (c *Classifier) Classify(page domain.Page) Verdict {
	var matched []string

	u, err := url.Parse(strings.TrimSpace(page.URL))
	if err == nil && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if lo.SomeBy(c.hosts, func(g glob.Glob) bool { return g.Match(host) }) {
			matched = append(matched, SignalHost)
		}
		if lo.SomeBy(c.pathPrefixes, func(p string) bool { return strings.HasPrefix(u.Path, p) }) {
			matched = append(matched, SignalPath)
		}
	}

	if c.generator != "" && strings.Contains(strings.ToLower(page.Generator), c.generator) {
		matched = append(matched, SignalGenerator)
	}

	if len(lo.Intersect(c.markers, page.Markers)) > 0 {
		matched = append(matched, SignalMarker)
	}

	return Verdict{
		Tracked: len(matched) >= c.minSignals,
		Signals: matched,
	}
}
