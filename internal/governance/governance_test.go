package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaller_Require(t *testing.T) {
	governor := Caller{Address: "gov", Roles: RoleConfigGovernor | RoleFundsGovernor}
	assert.NoError(t, governor.Require(RoleConfigGovernor))
	assert.NoError(t, governor.Require(RoleFundsGovernor))
	assert.ErrorIs(t, governor.Require(RoleModulesGovernor), ErrSenderNotAllowed)

	anyone := Anyone("alice")
	assert.ErrorIs(t, anyone.Require(RoleConfigGovernor), ErrSenderNotAllowed)
	assert.False(t, anyone.Has(0))
}
