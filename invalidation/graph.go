// Package invalidation maps successful writes to the cached reads they make
// stale.
package invalidation

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jmcleod/tablehand/cache"
)

// ErrUnknownMutation is returned for an outcome whose kind has no rule.
var ErrUnknownMutation = errors.New("no invalidation rule for mutation")

// Invalidator marks cached entries stale. cache.Store satisfies it.
type Invalidator interface {
	Invalidate(patterns ...cache.Pattern) int
}

// Rule is one row of the table.
type Rule struct {
	Mutation  Mutation
	Templates []Template
}

func (r Rule) String() string {
	parts := make([]string, len(r.Templates))
	for i, t := range r.Templates {
		parts[i] = t.String()
	}
	return string(r.Mutation) + " -> " + strings.Join(parts, ", ")
}

// Graph applies the rule table to a cache.
type Graph struct {
	rules  map[Mutation][]Template
	target Invalidator
	logger *slog.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GraphOption {
	return func(g *Graph) {
		g.logger = l
	}
}

// New returns a graph over rules that invalidates entries in target.
func New(rules map[Mutation][]Template, target Invalidator, opts ...GraphOption) *Graph {
	g := &Graph{
		rules:  make(map[Mutation][]Template, len(rules)),
		target: target,
		logger: slog.Default(),
	}
	for m, ts := range rules {
		g.rules[m] = slices.Clone(ts)
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "invalidation")
	return g
}

// Default returns a graph over DefaultRules.
func Default(target Invalidator, opts ...GraphOption) *Graph {
	return New(DefaultRules(), target, opts...)
}

// Patterns resolves the cache patterns an outcome invalidates. An id the
// rule needs but the outcome lacks widens that position to a wildcard.
func (g *Graph) Patterns(o Outcome) ([]cache.Pattern, error) {
	templates, ok := g.rules[o.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMutation, o.Kind)
	}
	patterns := make([]cache.Pattern, 0, len(templates))
	for _, t := range templates {
		p, missing := t.resolve(o.IDs)
		if len(missing) > 0 {
			g.logger.Warn("outcome missing id, widening to wildcard",
				"mutation", string(o.Kind),
				"template", t.String(),
				"missing", strings.Join(missing, ","))
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Apply invalidates everything the outcome makes stale and returns the
// number of entries marked.
func (g *Graph) Apply(o Outcome) (int, error) {
	patterns, err := g.Patterns(o)
	if err != nil {
		g.logger.Error("unknown mutation", "mutation", string(o.Kind))
		return 0, err
	}
	n := g.target.Invalidate(patterns...)
	g.logger.Debug("applied", "mutation", string(o.Kind), "marked", n)
	return n, nil
}

// Rules returns the table sorted by mutation, for auditing.
func (g *Graph) Rules() []Rule {
	out := make([]Rule, 0, len(g.rules))
	for m, ts := range g.rules {
		out = append(out, Rule{Mutation: m, Templates: slices.Clone(ts)})
	}
	slices.SortFunc(out, func(a, b Rule) int { return strings.Compare(string(a.Mutation), string(b.Mutation)) })
	return out
}

// Validate checks that every known mutation has a non-empty rule and that
// every template names an entity.
func (g *Graph) Validate() error {
	var errs []error
	for _, m := range AllMutations() {
		ts, ok := g.rules[m]
		if !ok || len(ts) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownMutation, m))
			continue
		}
		for i, t := range ts {
			if t.Entity == "" {
				errs = append(errs, fmt.Errorf("%s: template %d has no entity", m, i))
			}
		}
	}
	return errors.Join(errs...)
}
