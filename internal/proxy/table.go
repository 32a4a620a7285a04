package proxy

import (
	"errors"
	"fmt"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/angeloszaimis/termsim-devserver/config"
	"github.com/angeloszaimis/termsim-devserver/internal/metrics"
)

var ErrNoRule = errors.New("no proxy rule matches path")

// Rule forwards requests whose path starts with Prefix to Upstream.
type Rule struct {
	Prefix       string
	Upstream     *Upstream
	PreserveHost bool
	proxy        *httputil.ReverseProxy
}

// Table is the ordered, immutable set of proxy rules.
type Table struct {
	rules     []*Rule
	upstreams []*Upstream
}

// NewTable builds a table from configured rules, sharing one Upstream per
// distinct target origin.
func NewTable(cfgRules []config.ProxyRule) (*Table, error) {
	t := &Table{}
	byOrigin := make(map[string]*Upstream)

	for _, cr := range cfgRules {
		if !strings.HasPrefix(cr.Prefix, "/") {
			return nil, fmt.Errorf("proxy rule %q: prefix must start with /", cr.Prefix)
		}

		target, err := url.Parse(cr.Target)
		if err != nil {
			return nil, fmt.Errorf("proxy rule %q: parse target: %w", cr.Prefix, err)
		}
		if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
			return nil, fmt.Errorf("proxy rule %q: target %q must be an http(s) origin", cr.Prefix, cr.Target)
		}

		up, ok := byOrigin[target.String()]
		if !ok {
			up = NewUpstream(target)
			byOrigin[target.String()] = up
			t.upstreams = append(t.upstreams, up)
		}

		rule := &Rule{
			Prefix:       cr.Prefix,
			Upstream:     up,
			PreserveHost: cr.PreserveHost,
		}
		rule.proxy = newReverseProxy(rule)
		t.rules = append(t.rules, rule)
	}

	return t, nil
}

// Match returns the first rule, in declaration order, whose prefix starts
// path.
func (t *Table) Match(path string) (*Rule, bool) {
	for _, r := range t.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return nil, false
}

// Resolve returns the URL a request for path would be forwarded to.
func (t *Table) Resolve(path string) (*url.URL, error) {
	rule, ok := t.Match(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRule, path)
	}

	in, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}

	return rule.forwardURL(in), nil
}

func (t *Table) Rules() []*Rule {
	return t.rules
}

func (t *Table) Upstreams() []*Upstream {
	return t.upstreams
}

// UpstreamStats reports the live state of every upstream, keyed by origin.
func (t *Table) UpstreamStats() map[string]metrics.UpstreamMetrics {
	stats := make(map[string]metrics.UpstreamMetrics, len(t.upstreams))
	for _, up := range t.upstreams {
		stats[up.Origin()] = metrics.UpstreamMetrics{
			Healthy:           up.IsHealthy(),
			ActiveConnections: up.ActiveConnections(),
			EWMAResponse:      up.EWMATime(),
		}
	}
	return stats
}
