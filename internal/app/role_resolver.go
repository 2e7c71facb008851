// internal/app/role_resolver.go
package app

import (
	"context"
	"fmt"

	domainTelegram "membership_compliance_bot/internal/domain/telegram"
)

// RoleResolver answers privilege questions for the engine. It is the single
// injected capability for role checks; nothing else reads owner/admin IDs.
//
// PrivilegedSet returns an error when the gateway cannot be consulted, so a
// transient outage is distinguishable from "definitely not an admin".
type RoleResolver interface {
	// IsOperator reports whether the user may run operator commands.
	IsOperator(userID int64) bool
	// PrivilegedSet returns every user ID in the group that is excluded from
	// destructive action: owner, super-admins, models, and live group admins.
	PrivilegedSet(ctx context.Context, groupID int64) (map[int64]struct{}, error)
}

// StaticRoleResolver combines configured ID sets with the live administrator
// list of the group being swept.
type StaticRoleResolver struct {
	ownerID       int64
	superAdminIDs map[int64]struct{}
	modelIDs      map[int64]struct{}
	gateway       domainTelegram.Gateway
}

func NewStaticRoleResolver(ownerID int64, superAdminIDs, modelIDs []int64, gw domainTelegram.Gateway) *StaticRoleResolver {
	r := &StaticRoleResolver{
		ownerID:       ownerID,
		superAdminIDs: make(map[int64]struct{}, len(superAdminIDs)),
		modelIDs:      make(map[int64]struct{}, len(modelIDs)),
		gateway:       gw,
	}
	for _, id := range superAdminIDs {
		r.superAdminIDs[id] = struct{}{}
	}
	for _, id := range modelIDs {
		r.modelIDs[id] = struct{}{}
	}
	return r
}

func (r *StaticRoleResolver) IsOperator(userID int64) bool {
	if userID == r.ownerID {
		return true
	}
	_, ok := r.superAdminIDs[userID]
	return ok
}

func (r *StaticRoleResolver) PrivilegedSet(ctx context.Context, groupID int64) (map[int64]struct{}, error) {
	set := make(map[int64]struct{}, len(r.superAdminIDs)+len(r.modelIDs)+4)
	set[r.ownerID] = struct{}{}
	for id := range r.superAdminIDs {
		set[id] = struct{}{}
	}
	for id := range r.modelIDs {
		set[id] = struct{}{}
	}

	admins, err := r.gateway.GroupAdmins(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch admins of group %d: %w", groupID, err)
	}
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return set, nil
}
