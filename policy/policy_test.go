package policy

import "testing"

func ctx(subject, resource, action string, ts int64, attrs map[string]string) EvalContext {
	return EvalContext{Subject: subject, ResourceID: resource, Action: action, Timestamp: ts, Attributes: attrs}
}

func TestRule_AndShortCircuits(t *testing.T) {
	r := And(Allow(), Deny(), Allow())
	ok, err := r.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if ok {
		t.Fatal("expected And with a Deny child to be false")
	}
}

func TestRule_OrShortCircuits(t *testing.T) {
	r := Or(Deny(), Allow(), Deny())
	ok, err := r.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || !ok {
		t.Fatalf("expected Or to be true, got %v err=%v", ok, err)
	}
}

func TestRule_NotRequiresExactlyOneChild(t *testing.T) {
	empty := Rule{Kind: KindNot}
	ok, err := empty.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || ok {
		t.Fatalf("expected empty Not to evaluate false, got %v err=%v", ok, err)
	}

	single := NotRule(Allow())
	ok, err = single.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || ok {
		t.Fatalf("expected Not(Allow) to be false, got %v err=%v", ok, err)
	}
}

func TestRule_IfThenElse(t *testing.T) {
	r := IfThenElseRule(Allow(), Allow(), Deny())
	ok, err := r.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || !ok {
		t.Fatalf("expected then-branch true, got %v err=%v", ok, err)
	}

	r2 := IfThenElseRule(Deny(), Allow(), Deny())
	ok, err = r2.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || ok {
		t.Fatalf("expected else-branch false, got %v err=%v", ok, err)
	}

	malformed := Rule{Kind: KindIfThenElse, Children: []Rule{Allow(), Allow()}}
	if _, err := malformed.Eval(ctx("u", "r", "read", 0, nil)); err == nil {
		t.Fatal("expected error for malformed IfThenElse")
	}
}

func TestRule_Unless(t *testing.T) {
	r := UnlessRule(Allow(), Deny())
	ok, err := r.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || !ok {
		t.Fatalf("expected Unless(Allow, Deny-exception) true, got %v err=%v", ok, err)
	}

	r2 := UnlessRule(Allow(), Allow())
	ok, err = r2.Eval(ctx("u", "r", "read", 0, nil))
	if err != nil || ok {
		t.Fatalf("expected Unless(Allow, Allow-exception) false, got %v err=%v", ok, err)
	}
}

func TestRule_AttributePredicates(t *testing.T) {
	eq := AttributeRule(AttributeCondition{Key: "role", Op: OpEq, Value: "doctor"})
	if ok, _ := eq.Eval(ctx("u", "r", "read", 0, map[string]string{"role": "doctor"})); !ok {
		t.Fatal("expected Eq match")
	}
	if ok, _ := eq.Eval(ctx("u", "r", "read", 0, nil)); ok {
		t.Fatal("expected Eq to fail on missing attribute")
	}

	notEq := AttributeRule(AttributeCondition{Key: "role", Op: OpNotEq, Value: "nurse"})
	if ok, _ := notEq.Eval(ctx("u", "r", "read", 0, nil)); !ok {
		t.Fatal("expected NotEq to pass vacuously on missing attribute")
	}

	in := AttributeRule(AttributeCondition{Key: "dept", Op: OpIn, Set: []string{"cardiology", "oncology"}})
	if ok, _ := in.Eval(ctx("u", "r", "read", 0, map[string]string{"dept": "oncology"})); !ok {
		t.Fatal("expected In match")
	}

	gte := AttributeRule(AttributeCondition{Key: "level", Op: OpGte, Value: "005"})
	if ok, _ := gte.Eval(ctx("u", "r", "read", 0, map[string]string{"level": "010"})); !ok {
		t.Fatal("expected Gte lexicographic match")
	}
	if ok, _ := gte.Eval(ctx("u", "r", "read", 0, nil)); ok {
		t.Fatal("expected Gte to fail on missing attribute")
	}
}

// TestTemporal_OvernightWindow is spec.md's concrete scenario 5: an
// overnight window start=22,end=6, all days, no date bounds.
func TestTemporal_OvernightWindow(t *testing.T) {
	w := TemporalWindow{AllowedHourStart: 22, AllowedHourEnd: 6, DayMask: 0x7F}
	if !w.Allows(22 * 3600) {
		t.Fatal("expected 22:00 to be allowed")
	}
	if !w.Allows(2 * 3600) {
		t.Fatal("expected 02:00 to be allowed")
	}
	if w.Allows(12 * 3600) {
		t.Fatal("expected 12:00 to be rejected")
	}
}

func TestTemporal_ValidityWindow(t *testing.T) {
	w := TemporalWindow{ValidFrom: 100, ValidUntil: 200, AllowedHourStart: 0, AllowedHourEnd: 23}
	if w.Allows(50) {
		t.Fatal("expected timestamp before ValidFrom to be rejected")
	}
	if w.Allows(250) {
		t.Fatal("expected timestamp after ValidUntil to be rejected")
	}
	if !w.Allows(150) {
		t.Fatal("expected timestamp inside window to be allowed")
	}
}

func TestTemporal_DayMaskZeroDisablesCheck(t *testing.T) {
	w := TemporalWindow{AllowedHourStart: 0, AllowedHourEnd: 23}
	if !w.Allows(0) {
		t.Fatal("expected zero day mask to disable the day check")
	}
}

func TestDelegationChain_Valid(t *testing.T) {
	chain := []DelegationLink{
		{Delegator: "hospitalA", Delegatee: "drB", Permissions: []string{"read", "write"}, ExpiresAt: 1000},
		{Delegator: "drB", Delegatee: "drC", Permissions: []string{"read"}, ExpiresAt: 1000},
	}
	if err := ValidateDelegationChain(chain, 500); err != nil {
		t.Fatalf("expected valid chain, got %v", err)
	}
}

func TestDelegationChain_RejectsWidenedScope(t *testing.T) {
	chain := []DelegationLink{
		{Delegator: "hospitalA", Delegatee: "drB", Permissions: []string{"read"}},
		{Delegator: "drB", Delegatee: "drC", Permissions: []string{"read", "write"}},
	}
	if err := ValidateDelegationChain(chain, 0); err == nil {
		t.Fatal("expected widened scope to be rejected")
	}
}

func TestDelegationChain_RejectsBrokenLink(t *testing.T) {
	chain := []DelegationLink{
		{Delegator: "hospitalA", Delegatee: "drB", Permissions: []string{"read"}},
		{Delegator: "drX", Delegatee: "drC", Permissions: []string{"read"}},
	}
	if err := ValidateDelegationChain(chain, 0); err == nil {
		t.Fatal("expected broken chain to be rejected")
	}
}

func TestDelegationChain_RejectsExpiredLink(t *testing.T) {
	chain := []DelegationLink{
		{Delegator: "hospitalA", Delegatee: "drB", Permissions: []string{"read"}, ExpiresAt: 100},
	}
	if err := ValidateDelegationChain(chain, 200); err == nil {
		t.Fatal("expected expired link to be rejected")
	}
}

func TestDelegationChain_RejectsEmpty(t *testing.T) {
	if err := ValidateDelegationChain(nil, 0); err == nil {
		t.Fatal("expected empty chain to be rejected")
	}
}

func TestRule_Depth(t *testing.T) {
	leaf := Allow()
	if leaf.Depth() != 1 {
		t.Fatalf("expected leaf depth 1, got %d", leaf.Depth())
	}
	nested := NotRule(NotRule(NotRule(Allow())))
	if nested.Depth() != 4 {
		t.Fatalf("expected depth 4, got %d", nested.Depth())
	}
}

func TestRegistry_NoMatchingPolicyDenies(t *testing.T) {
	reg := NewRegistry(DenyOverride, DefaultConfig())
	ok, err := reg.Decide(ctx("u", "rec-1", "read", 0, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no-matching-policy to deny")
	}
}

func TestRegistry_RejectsExcessiveDepth(t *testing.T) {
	reg := NewRegistry(DenyOverride, Config{MaxRuleDepth: 3})
	deep := NotRule(NotRule(NotRule(NotRule(Allow()))))
	if err := reg.StorePolicy(Policy{ID: "p1", ResourceID: "rec-1", Rule: deep}); err == nil {
		t.Fatal("expected depth-exceeding policy to be rejected")
	}
}

func TestRegistry_DenyOverride(t *testing.T) {
	reg := NewRegistry(DenyOverride, DefaultConfig())
	mustStore(t, reg, Policy{ID: "allow", ResourceID: "rec-1", Rule: Allow(), Priority: 1})
	mustStore(t, reg, Policy{ID: "deny", ResourceID: "rec-1", Rule: Deny(), Priority: 2})

	ok, err := reg.Decide(ctx("u", "rec-1", "read", 0, nil))
	if err != nil || ok {
		t.Fatalf("expected DenyOverride to deny when any policy denies, got %v err=%v", ok, err)
	}
}

func TestRegistry_PermitOverride(t *testing.T) {
	reg := NewRegistry(PermitOverride, DefaultConfig())
	mustStore(t, reg, Policy{ID: "allow", ResourceID: "rec-1", Rule: Allow(), Priority: 1})
	mustStore(t, reg, Policy{ID: "deny", ResourceID: "rec-1", Rule: Deny(), Priority: 2})

	ok, err := reg.Decide(ctx("u", "rec-1", "read", 0, nil))
	if err != nil || !ok {
		t.Fatalf("expected PermitOverride to allow when any policy permits, got %v err=%v", ok, err)
	}
}

func TestRegistry_FirstApplicable(t *testing.T) {
	reg := NewRegistry(FirstApplicable, DefaultConfig())
	mustStore(t, reg, Policy{ID: "second", ResourceID: "rec-1", Rule: Allow(), Priority: 2})
	mustStore(t, reg, Policy{ID: "first", ResourceID: "rec-1", Rule: Deny(), Priority: 1})

	ok, err := reg.Decide(ctx("u", "rec-1", "read", 0, nil))
	if err != nil || ok {
		t.Fatalf("expected lowest-priority (first) policy's Deny to win, got %v err=%v", ok, err)
	}
}

func TestRegistry_Priority(t *testing.T) {
	reg := NewRegistry(Priority, DefaultConfig())
	mustStore(t, reg, Policy{ID: "low-priority-num", ResourceID: "rec-1", Rule: Allow(), Priority: 0})
	mustStore(t, reg, Policy{ID: "high-priority-num", ResourceID: "rec-1", Rule: Deny(), Priority: 10})

	ok, err := reg.Decide(ctx("u", "rec-1", "read", 0, nil))
	if err != nil || !ok {
		t.Fatalf("expected lowest-priority-number policy to win, got %v err=%v", ok, err)
	}
}

func mustStore(t *testing.T, reg *Registry, p Policy) {
	t.Helper()
	if err := reg.StorePolicy(p); err != nil {
		t.Fatalf("StorePolicy(%s) failed: %v", p.ID, err)
	}
}

func TestEngine_CacheInvalidatedOnMutation(t *testing.T) {
	reg := NewRegistry(DenyOverride, DefaultConfig())
	eng := NewEngine(reg, 16, nil)
	mustStore(t, reg, Policy{ID: "p1", ResourceID: "rec-1", Rule: Allow(), Priority: 1})

	c := ctx("u", "rec-1", "read", 0, nil)
	ok, err := eng.Evaluate(c)
	if err != nil || !ok {
		t.Fatalf("expected allow, got %v err=%v", ok, err)
	}
	if eng.Cache().Stats().Misses != 1 {
		t.Fatalf("expected 1 miss on first evaluation, got %d", eng.Cache().Stats().Misses)
	}

	ok, err = eng.Evaluate(c)
	if err != nil || !ok {
		t.Fatalf("expected cached allow, got %v err=%v", ok, err)
	}
	if eng.Cache().Stats().Hits != 1 {
		t.Fatalf("expected 1 hit on second evaluation, got %d", eng.Cache().Stats().Hits)
	}

	mustStore(t, reg, Policy{ID: "p2", ResourceID: "rec-1", Rule: Deny(), Priority: 2})
	ok, err = eng.Evaluate(c)
	if err != nil || ok {
		t.Fatalf("expected the new Deny policy to be picked up after invalidation, got %v err=%v", ok, err)
	}
}

func TestEngine_CacheKeyDistinguishesAttributes(t *testing.T) {
	reg := NewRegistry(DenyOverride, DefaultConfig())
	mustStore(t, reg, Policy{
		ID:         "p1",
		ResourceID: "rec-1",
		Rule:       AttributeRule(AttributeCondition{Key: "role", Op: OpEq, Value: "doctor"}),
	})
	eng := NewEngine(reg, 16, nil)

	ok, err := eng.Evaluate(ctx("u", "rec-1", "read", 0, map[string]string{"role": "doctor"}))
	if err != nil || !ok {
		t.Fatalf("expected allow for doctor, got %v err=%v", ok, err)
	}
	ok, err = eng.Evaluate(ctx("u", "rec-1", "read", 0, map[string]string{"role": "nurse"}))
	if err != nil || ok {
		t.Fatalf("expected deny for nurse despite identical cache tuple minus attributes, got %v err=%v", ok, err)
	}
}
