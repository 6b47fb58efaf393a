package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medledger/core/log"
)

// Engine composes a Registry with a verdict Cache, giving callers a single
// Evaluate entry point (spec.md §4.5).
type Engine struct {
	registry *Registry
	cache    *Cache
	logger   *log.Logger
}

// NewEngine creates a policy Engine over registry, caching up to
// cacheSize verdicts.
func NewEngine(registry *Registry, cacheSize int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		registry: registry,
		cache:    NewCache(cacheSize),
		logger:   logger.Module("policy"),
	}
}

// Registry returns the engine's underlying policy registry, for
// StorePolicy/RemovePolicy/SetStrategy calls.
func (e *Engine) Registry() *Registry { return e.registry }

// Cache returns the engine's verdict cache, for Stats().
func (e *Engine) Cache() *Cache { return e.cache }

// Evaluate returns the access decision for ctx, consulting the cache first
// and falling back to a fresh Registry.Decide on a miss or stale
// generation.
func (e *Engine) Evaluate(ctx EvalContext) (bool, error) {
	key := cacheKey(ctx)
	generation := e.registry.Generation()
	decision, err := e.cache.Decide(key, generation, func() (bool, error) {
		return e.registry.Decide(ctx)
	})
	if err != nil {
		e.logger.Warn("policy evaluation failed", "resource", ctx.ResourceID, "error", err)
		return false, err
	}
	return decision, nil
}

// cacheKey incorporates every field Eval can branch on, including
// attributes: two requests sharing (subject, resource, action, timestamp)
// but differing attributes must not share a cached verdict.
func cacheKey(ctx EvalContext) string {
	keys := make([]string, 0, len(ctx.Attributes))
	for k := range ctx.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, ctx.Attributes[k])
	}
	return fmt.Sprintf("%s|%s|%s|%d|%s", ctx.Subject, ctx.ResourceID, ctx.Action, ctx.Timestamp, b.String())
}
