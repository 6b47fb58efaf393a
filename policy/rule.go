// Package policy implements the composable access-policy rule tree of
// spec.md §4.5: boolean combinators, attribute predicates, temporal
// windows, delegation-chain validation, and configurable conflict
// resolution across multiple matching policies.
//
// Grounded on the teacher's bal/conflict_detector.go for the
// strategy-dispatch shape (an enum selecting among a small fixed set of
// resolution behaviors) and on proofs/proof_cache.go for the size-bounded,
// counter-instrumented cache in cache.go.
package policy

import (
	"fmt"

	"github.com/medledger/core/ledgererr"
)

// EvalContext is the request context a rule tree is evaluated against
// (spec.md §4.5).
type EvalContext struct {
	Subject    string
	ResourceID string
	Action     string
	Timestamp  int64
	Attributes map[string]string
}

// CompareOp names an Attribute rule's comparison operator.
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNotEq
	OpIn
	OpGte
	OpLte
)

// AttributeCondition is the predicate body of an Attribute rule.
type AttributeCondition struct {
	Key   string
	Op    CompareOp
	Value string   // used by Eq, NotEq, Gte, Lte
	Set   []string // used by In
}

// RuleKind discriminates the node types of the policy rule tree.
type RuleKind uint8

const (
	KindAllow RuleKind = iota
	KindDeny
	KindAnd
	KindOr
	KindNot
	KindIfThenElse
	KindUnless
	KindAttribute
	KindTemporal
	KindDelegation
)

// Rule is a single node of a policy's boolean rule tree (spec.md §4.5).
// Children is interpreted per Kind: And/Or take any number; Not takes
// exactly one; IfThenElse takes exactly 3 ([cond, then, else]); Unless
// takes exactly 2 ([rule, exception]).
type Rule struct {
	Kind      RuleKind
	Children  []Rule
	Attribute AttributeCondition
	Temporal  TemporalWindow
	Chain     []DelegationLink
}

// Allow is the literal-true leaf rule.
func Allow() Rule { return Rule{Kind: KindAllow} }

// Deny is the literal-false leaf rule.
func Deny() Rule { return Rule{Kind: KindDeny} }

// And requires every child to evaluate true, short-circuiting on the first
// false child.
func And(children ...Rule) Rule { return Rule{Kind: KindAnd, Children: children} }

// Or requires at least one child to evaluate true, short-circuiting on the
// first true child.
func Or(children ...Rule) Rule { return Rule{Kind: KindOr, Children: children} }

// NotRule negates inner. Exactly one child is expected at evaluation time.
func NotRule(inner Rule) Rule { return Rule{Kind: KindNot, Children: []Rule{inner}} }

// IfThenElseRule evaluates cond; if true evaluates then, else evaluates els.
func IfThenElseRule(cond, then, els Rule) Rule {
	return Rule{Kind: KindIfThenElse, Children: []Rule{cond, then, els}}
}

// UnlessRule evaluates to false if exception is true, else to rule.
func UnlessRule(rule, exception Rule) Rule {
	return Rule{Kind: KindUnless, Children: []Rule{rule, exception}}
}

// AttributeRule matches a single attribute condition against the eval
// context.
func AttributeRule(cond AttributeCondition) Rule {
	return Rule{Kind: KindAttribute, Attribute: cond}
}

// TemporalRule gates on a time-of-day / day-of-week / validity window.
func TemporalRule(w TemporalWindow) Rule {
	return Rule{Kind: KindTemporal, Temporal: w}
}

// DelegationRule validates a delegation chain against the eval context's
// subject (the chain's final delegatee must equal ctx.Subject).
func DelegationRule(chain []DelegationLink) Rule {
	return Rule{Kind: KindDelegation, Chain: chain}
}

// Eval evaluates the rule tree against ctx, per spec.md §4.5's rule
// semantics.
func (r Rule) Eval(ctx EvalContext) (bool, error) {
	switch r.Kind {
	case KindAllow:
		return true, nil
	case KindDeny:
		return false, nil
	case KindAnd:
		for _, c := range r.Children {
			ok, err := c.Eval(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case KindOr:
		for _, c := range r.Children {
			ok, err := c.Eval(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		if len(r.Children) != 1 {
			return false, nil
		}
		ok, err := r.Children[0].Eval(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case KindIfThenElse:
		if len(r.Children) != 3 {
			return false, fmt.Errorf("policy: %w: IfThenElse requires 3 children", ledgererr.ErrInvalidPolicy)
		}
		cond, err := r.Children[0].Eval(ctx)
		if err != nil {
			return false, err
		}
		if cond {
			return r.Children[1].Eval(ctx)
		}
		return r.Children[2].Eval(ctx)
	case KindUnless:
		if len(r.Children) != 2 {
			return false, fmt.Errorf("policy: %w: Unless requires 2 children", ledgererr.ErrInvalidPolicy)
		}
		exception, err := r.Children[1].Eval(ctx)
		if err != nil {
			return false, err
		}
		if exception {
			return false, nil
		}
		return r.Children[0].Eval(ctx)
	case KindAttribute:
		return evalAttribute(r.Attribute, ctx), nil
	case KindTemporal:
		return r.Temporal.Allows(ctx.Timestamp), nil
	case KindDelegation:
		return ValidateDelegationChain(r.Chain, ctx.Timestamp) == nil, nil
	default:
		return false, fmt.Errorf("policy: %w: unknown rule kind %d", ledgererr.ErrInvalidPolicy, r.Kind)
	}
}

// evalAttribute implements spec.md §4.5's attribute predicate: missing
// attributes fail Eq/In/Gte/Lte and pass NotEq (vacuously). Gte/Lte use
// lexicographic string ordering; callers must pad numeric strings.
func evalAttribute(cond AttributeCondition, ctx EvalContext) bool {
	actual, present := ctx.Attributes[cond.Key]
	switch cond.Op {
	case OpEq:
		return present && actual == cond.Value
	case OpNotEq:
		if !present {
			return true
		}
		return actual != cond.Value
	case OpIn:
		if !present {
			return false
		}
		for _, v := range cond.Set {
			if actual == v {
				return true
			}
		}
		return false
	case OpGte:
		return present && actual >= cond.Value
	case OpLte:
		return present && actual <= cond.Value
	default:
		return false
	}
}

// Depth returns the maximum nesting depth of the rule tree, counting the
// root as depth 1. Used to enforce Config.MaxRuleDepth before evaluation.
func (r Rule) Depth() int {
	if len(r.Children) == 0 {
		return 1
	}
	max := 0
	for _, c := range r.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}
