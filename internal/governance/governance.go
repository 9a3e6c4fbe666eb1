// Package governance models the privileged roles of the court. Instead of
// relying on implicit caller identity, every privileged entry point receives
// a Caller carrying the roles it was granted and checks them explicitly.
package governance

import (
	"errors"
	"fmt"

	"github.com/eigerco/tribunal/internal/common"
)

var ErrSenderNotAllowed = errors.New("sender not allowed")

// Role is a bit set of governor capabilities
type Role uint8

const (
	// RoleConfigGovernor may schedule config changes and delay the court start.
	RoleConfigGovernor Role = 1 << iota
	// RoleFundsGovernor may move funds held by the fee ledger on behalf of the court.
	RoleFundsGovernor
	// RoleModulesGovernor may replace court modules.
	RoleModulesGovernor
)

func (r Role) String() string {
	switch r {
	case RoleConfigGovernor:
		return "config-governor"
	case RoleFundsGovernor:
		return "funds-governor"
	case RoleModulesGovernor:
		return "modules-governor"
	default:
		return fmt.Sprintf("roles(%08b)", uint8(r))
	}
}

// Caller identifies who is performing a call and what it may do
type Caller struct {
	Address common.Address
	Roles   Role
}

// Anyone is a caller without privileges.
func Anyone(address common.Address) Caller {
	return Caller{Address: address}
}

// Has reports whether the caller holds every role in r
func (c Caller) Has(r Role) bool {
	return r != 0 && c.Roles&r == r
}

// Require fails with ErrSenderNotAllowed unless the caller holds r.
func (c Caller) Require(r Role) error {
	if !c.Has(r) {
		return fmt.Errorf("%w: %s lacks %s", ErrSenderNotAllowed, c.Address, r)
	}
	return nil
}
