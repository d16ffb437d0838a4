// Package auth holds the capability checks for role-gated administration.
// The ledger never looks permissions up ambiently: components receive an
// Authorizer and ask it explicitly.
package auth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	tmsync "github.com/stvaults/vaulthub/libs/sync"
	"github.com/stvaults/vaulthub/types"
)

// Role is a bit set of administrative capabilities.
type Role uint64

// Base roles are like unix permissions (the index is already bit shifted)
const (
	RoleReporter            Role = 1 << iota // publishes report roots
	RoleVaultMaster                          // connects, reconfigures and force-disconnects vaults
	RoleRedemptionMaster                     // sets liability share targets
	RolePauser                               // pauses and resumes the hub
	RoleSanityParamsUpdater                  // updates oracle sanity parameters

	NumRoles uint = 5
	AllRoles Role = (1 << NumRoles) - 1
)

var roleNames = map[Role]string{
	RoleReporter:            "reporter",
	RoleVaultMaster:         "vault_master",
	RoleRedemptionMaster:    "redemption_master",
	RolePauser:              "pauser",
	RoleSanityParamsUpdater: "sanity_params_updater",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	var names []string
	for bit := Role(1); bit <= AllRoles; bit <<= 1 {
		if r&bit != 0 {
			names = append(names, roleNames[bit])
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Role(%d)", uint64(r))
	}
	return strings.Join(names, "|")
}

// ParseRole maps a role name, as written in the config file, to its Role.
func ParseRole(name string) (Role, error) {
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Authorizer answers capability questions.
type Authorizer interface {
	HasRole(who common.Address, role Role) bool
}

// Check returns ErrNotAuthorized unless who holds role.
func Check(a Authorizer, who common.Address, role Role) error {
	if a == nil || !a.HasRole(who, role) {
		return fmt.Errorf("%w: %s lacks role %s", types.ErrNotAuthorized, who, role)
	}
	return nil
}

// Roles is an in-memory Authorizer.
type Roles struct {
	mtx    tmsync.RWMutex
	grants map[common.Address]Role
}

var _ Authorizer = (*Roles)(nil)

func NewRoles() *Roles {
	return &Roles{grants: make(map[common.Address]Role)}
}

// NewRolesFromGrants builds Roles from a role to holders mapping.
func NewRolesFromGrants(grants map[Role][]common.Address) *Roles {
	r := NewRoles()
	for role, holders := range grants {
		for _, who := range holders {
			r.Grant(who, role)
		}
	}
	return r
}

// Grant adds role to who. Granting a held role is a no-op.
func (r *Roles) Grant(who common.Address, role Role) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.grants[who] |= role
}

// Revoke removes role from who.
func (r *Roles) Revoke(who common.Address, role Role) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	left := r.grants[who] &^ role
	if left == 0 {
		delete(r.grants, who)
		return
	}
	r.grants[who] = left
}

// HasRole reports whether who holds every bit of role.
func (r *Roles) HasRole(who common.Address, role Role) bool {
	if role == 0 {
		return false
	}
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.grants[who]&role == role
}
