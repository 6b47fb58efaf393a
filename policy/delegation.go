package policy

import (
	"fmt"

	"github.com/medledger/core/ledgererr"
)

// DelegationLink is one hop in a delegation chain (spec.md §4.5): delegator
// grants a (possibly narrowed) set of permissions to delegatee, optionally
// expiring at ExpiresAt (0 meaning never).
type DelegationLink struct {
	Delegator   string
	Delegatee   string
	Permissions []string
	ExpiresAt   int64
}

// ValidateDelegationChain checks the chain is non-empty, each link's
// delegatee equals the next link's delegator, permission count is
// non-increasing along the chain (scope may only narrow), and no link has
// expired as of now.
func ValidateDelegationChain(chain []DelegationLink, now int64) error {
	if len(chain) == 0 {
		return fmt.Errorf("policy: %w: empty delegation chain", ledgererr.ErrInvalidPolicy)
	}
	for i, link := range chain {
		if link.ExpiresAt != 0 && link.ExpiresAt <= now {
			return fmt.Errorf("policy: %w: delegation link %d expired", ledgererr.ErrInvalidPolicy, i)
		}
		if i > 0 {
			prev := chain[i-1]
			if prev.Delegatee != link.Delegator {
				return fmt.Errorf("policy: %w: delegation chain broken at link %d", ledgererr.ErrInvalidPolicy, i)
			}
			if len(link.Permissions) > len(prev.Permissions) {
				return fmt.Errorf("policy: %w: delegation scope widened at link %d", ledgererr.ErrInvalidPolicy, i)
			}
		}
	}
	return nil
}
