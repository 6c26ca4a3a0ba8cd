// Package engine is the top-level entry point base spec §6 describes:
// execute(source) and matches(conceptId, source) against a caller-supplied
// backend. It wires together the compiler, the evaluator, the optional
// query-result cache, and per-query-shape latency digests.
package engine

import (
	"context"
	"time"

	"github.com/snomedtools/goecl/internal/digests"
	"github.com/snomedtools/goecl/internal/evaluator"
	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
	"github.com/snomedtools/goecl/pkg/ecl/cache"
	"github.com/snomedtools/goecl/pkg/ecl/compiler"
	"github.com/snomedtools/goecl/pkg/ecl/result"
)

// Config controls an Engine's optional query-result cache and resource
// guards. The zero Config (passed through DefaultConfig) disables caching;
// callers enable it with WithCache.
type Config struct {
	cacheEnabled bool
	cacheConfig  cache.Config

	evalLimits evaluator.Limits
}

// Option configures an Engine at construction time, following this
// codebase's functional-options style (the idiomatic Go replacement for
// the original implementation's builder pattern).
type Option func(*Config)

// DefaultConfig returns a Config with caching disabled and the evaluator's
// default resource limits.
func DefaultConfig() Config {
	return Config{evalLimits: evaluator.DefaultLimits()}
}

// WithCache enables the query-result cache with the given capacity/TTL.
func WithCache(cacheConfig cache.Config) Option {
	return func(c *Config) {
		c.cacheEnabled = true
		c.cacheConfig = cacheConfig
	}
}

// WithMaxResultSize bounds a query's wildcard materialization, each of its
// hierarchy results and its final result to at most n members, failing
// with a ResourceError beyond that, per base spec §5's memory guard. Other
// intermediate sets are not checked. Zero (the default) means unbounded.
func WithMaxResultSize(n int) Option {
	return func(c *Config) { c.evalLimits.MaxResultSize = n }
}

// WithRefinementConcurrency bounds how many candidate concepts a single
// attribute refinement checks in parallel.
func WithRefinementConcurrency(n int) Option {
	return func(c *Config) { c.evalLimits.RefinementConcurrency = n }
}

// Engine executes compiled ECL queries against a fixed backend.Backend.
// It is safe for concurrent use: the backend must itself be concurrency-safe
// for reads (base spec §4.1), and the query cache internally synchronizes.
type Engine struct {
	backend backend.Backend
	eval    *evaluator.Evaluator
	config  Config
	cache   *cache.QueryCache
	digests *digests.DigestMap
}

// New builds an Engine over b, applying opts to DefaultConfig.
func New(b backend.Backend, opts ...Option) (*Engine, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var qc *cache.QueryCache
	if config.cacheEnabled {
		built, err := cache.New(config.cacheConfig)
		if err != nil {
			return nil, err
		}
		qc = built
	}

	return &Engine{
		backend: b,
		eval:    evaluator.New(b, config.evalLimits),
		config:  config,
		cache:   qc,
		digests: digests.NewDigestMap(),
	}, nil
}

// Close releases the engine's background cache resources, if caching was
// enabled.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Execute parses, compiles, and evaluates source against the engine's
// backend, returning the matching concept set and execution diagnostics.
// ctx's deadline, if any, governs the whole evaluation per base spec §5.
func (e *Engine) Execute(ctx context.Context, source string) (result.Set, result.Stats, error) {
	stats := result.NewStats()
	start := time.Now()

	query, err := compiler.Compile(source)
	if err != nil {
		return result.Set{}, stats, err
	}

	if e.cache != nil {
		var visited int64
		set, hit, _, err := e.cache.GetOrCompute(ctx, query.CacheKey, func(ctx context.Context) (result.Set, error) {
			evaluated, n, err := e.eval.Evaluate(ctx, query.AST)
			if err != nil {
				return result.Set{}, err
			}
			visited = n
			return result.NewSet(evaluated), nil
		})
		if err != nil {
			return result.Set{}, stats, err
		}
		if hit {
			stats.CacheHits++
		} else {
			stats.CacheMisses++
		}
		stats.ConceptsVisited = visited
		stats.Elapsed = time.Since(start)
		e.recordLatency(query, stats.Elapsed)
		return set, stats, nil
	}

	set, visited, err := e.eval.Evaluate(ctx, query.AST)
	if err != nil {
		return result.Set{}, stats, err
	}
	stats.ConceptsVisited = visited
	stats.Elapsed = time.Since(start)
	e.recordLatency(query, stats.Elapsed)
	return result.NewSet(set), stats, nil
}

// Matches reports whether conceptId is a member of source's evaluated
// result. It gives the same answer as calling Execute then testing
// membership, without the query cache, and short-circuits `*` and `<`,
// `<<`, `<!` or `>!` applied to a single concept: `*` is a HasConcept
// check, `<!`/`>!` scan the concept's children or parents, and `<`/`<<`
// evaluate the concept's descendant set and test membership in it. Every
// other expression is evaluated in full.
func (e *Engine) Matches(ctx context.Context, conceptId ast.ConceptId, source string) (bool, error) {
	query, err := compiler.Compile(source)
	if err != nil {
		return false, err
	}

	if short, shortErr, handled := e.tryMatchShortcut(ctx, query.AST, conceptId); handled {
		return short, shortErr
	}

	set, _, err := e.eval.Evaluate(ctx, query.AST)
	if err != nil {
		return false, err
	}
	return set.Contains(conceptId), nil
}

// tryMatchShortcut handles the Wildcard and single-concept Hierarchy cases
// listed on Matches. handled is false for every other expression shape,
// including the ancestor operators, which fall through to full evaluation
// in Matches.
func (e *Engine) tryMatchShortcut(ctx context.Context, expr ast.Expression, conceptId ast.ConceptId) (matched bool, err error, handled bool) {
	switch node := expr.(type) {
	case ast.Wildcard:
		return e.backend.HasConcept(conceptId), nil, true
	case ast.Hierarchy:
		self, ok := node.Inner.(ast.Self)
		if !ok {
			return false, nil, false
		}
		switch node.Op {
		case ast.DescendantOf:
			found, err := e.isAncestorDescendant(ctx, self.Id, conceptId)
			return conceptId != self.Id && found, err, true
		case ast.DescendantOrSelf:
			if conceptId == self.Id {
				return true, nil, true
			}
			found, err := e.isAncestorDescendant(ctx, self.Id, conceptId)
			return found, err, true
		case ast.ChildOf:
			return containsId(e.backend.GetChildren(self.Id), conceptId), nil, true
		case ast.ParentOf:
			return containsId(e.backend.GetParents(self.Id), conceptId), nil, true
		default:
			return false, nil, false
		}
	default:
		return false, nil, false
	}
}

func (e *Engine) isAncestorDescendant(ctx context.Context, ancestor, descendant ast.ConceptId) (bool, error) {
	set, _, err := e.eval.Evaluate(ctx, ast.Hierarchy{Op: ast.DescendantOf, Inner: ast.Self{Id: ancestor}})
	if err != nil {
		return false, err
	}
	return set.Contains(descendant), nil
}

func containsId(ids []ast.ConceptId, id ast.ConceptId) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// recordLatency adds this execution's elapsed time to the digest keyed by
// the query's canonical AST "shape" (its display form), so an operator
// embedding the engine can query p50/p90/p99 per distinct query pattern.
func (e *Engine) recordLatency(query *compiler.Query, elapsed time.Duration) {
	e.digests.Add(ast.Display(query.Canonical), float64(elapsed.Microseconds()))
}

// LatencyQuantile returns the estimated latency (in microseconds) at
// quantile q for queries canonically equal to the one compiled from
// source, or ok=false if no such query has executed yet.
func (e *Engine) LatencyQuantile(source string, q float64) (microseconds float64, ok bool) {
	query, err := compiler.Compile(source)
	if err != nil {
		return 0, false
	}
	return e.digests.Quantile(ast.Display(query.Canonical), q)
}
