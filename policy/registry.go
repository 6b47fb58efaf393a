package policy

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/medledger/core/ledgererr"
)

// Strategy selects how multiple matching policies for the same
// (resource, action) are combined into a single verdict (spec.md §4.5).
type Strategy uint8

const (
	// DenyOverride: any matching policy that denies wins. Default.
	DenyOverride Strategy = iota
	// PermitOverride: any matching policy that permits wins.
	PermitOverride
	// FirstApplicable: the first policy, after ascending-priority sort,
	// that applies to the resource wins outright.
	FirstApplicable
	// Priority: the lowest-numbered-priority applicable policy wins.
	Priority
)

func (s Strategy) String() string {
	switch s {
	case PermitOverride:
		return "permit-override"
	case FirstApplicable:
		return "first-applicable"
	case Priority:
		return "priority"
	default:
		return "deny-override"
	}
}

// Policy binds a rule tree to a resource pattern with an evaluation
// priority (ascending = evaluated first under FirstApplicable/Priority).
type Policy struct {
	ID         string
	ResourceID string
	Rule       Rule
	Priority   int
}

// Config bounds policy-engine behavior.
type Config struct {
	// MaxRuleDepth rejects any stored policy whose rule tree exceeds this
	// nesting depth (spec.md §9, "suggested 32").
	MaxRuleDepth int
}

// DefaultConfig returns the engine's default bounds.
func DefaultConfig() Config {
	return Config{MaxRuleDepth: 32}
}

// Registry holds the set of stored policies plus a process-wide generation
// counter bumped on any mutation, for the cache in cache.go to key on
// (spec.md §4.5's caching rule).
type Registry struct {
	mu         sync.RWMutex
	policies   map[string]Policy
	strategy   Strategy
	cfg        Config
	generation atomic.Uint64
}

// NewRegistry creates an empty Registry using the given default strategy
// and bounds.
func NewRegistry(strategy Strategy, cfg Config) *Registry {
	if cfg.MaxRuleDepth <= 0 {
		cfg.MaxRuleDepth = 32
	}
	return &Registry{
		policies: make(map[string]Policy),
		strategy: strategy,
		cfg:      cfg,
	}
}

// Generation returns the current mutation generation counter.
func (reg *Registry) Generation() uint64 {
	return reg.generation.Load()
}

// Strategy returns the registry's current conflict-resolution strategy.
func (reg *Registry) Strategy() Strategy {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.strategy
}

// SetStrategy changes the conflict-resolution strategy, bumping the
// generation counter so cached verdicts are invalidated.
func (reg *Registry) SetStrategy(s Strategy) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.strategy = s
	reg.generation.Add(1)
}

// StorePolicy registers or replaces a policy by ID, rejecting rule trees
// exceeding the registry's MaxRuleDepth.
func (reg *Registry) StorePolicy(p Policy) error {
	if depth := p.Rule.Depth(); depth > reg.cfg.MaxRuleDepth {
		return fmt.Errorf("policy: %w: rule depth %d exceeds max %d", ledgererr.ErrInvalidPolicy, depth, reg.cfg.MaxRuleDepth)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.policies[p.ID] = p
	reg.generation.Add(1)
	return nil
}

// RemovePolicy deletes a policy by ID. A no-op removal (ID not present)
// still bumps the generation counter, matching spec.md §4.5's "any
// remove_policy call" wording.
func (reg *Registry) RemovePolicy(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.policies, id)
	reg.generation.Add(1)
}

// PoliciesFor returns every stored policy whose ResourceID matches
// resourceID, sorted by ascending Priority.
func (reg *Registry) PoliciesFor(resourceID string) []Policy {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var out []Policy
	for _, p := range reg.policies {
		if p.ResourceID == resourceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Decide evaluates every policy matching ctx.ResourceID and combines the
// results per the registry's strategy. A resource with no matching policy
// always denies (spec.md §8's universal invariant).
func (reg *Registry) Decide(ctx EvalContext) (bool, error) {
	policies := reg.PoliciesFor(ctx.ResourceID)
	if len(policies) == 0 {
		return false, nil
	}

	strategy := reg.Strategy()
	switch strategy {
	case FirstApplicable:
		return policies[0].Rule.Eval(ctx)
	case Priority:
		return policies[0].Rule.Eval(ctx)
	case PermitOverride:
		for _, p := range policies {
			ok, err := p.Rule.Eval(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default: // DenyOverride
		for _, p := range policies {
			ok, err := p.Rule.Eval(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}
