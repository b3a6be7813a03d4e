package entitlement

import "github.com/acumant/ai-portal/internal/database/models"

// The predicates below are pure and nil-safe. They are the server-side
// authorization rules; clients may mirror them to hide controls but the API
// evaluates them on every request.

func IsSuperAdmin(u *models.User) bool {
	return u != nil && u.Role == models.RoleSuperAdmin
}

func IsAdmin(u *models.User) bool {
	return u != nil && (u.Role == models.RoleAdmin || u.Role == models.RoleSuperAdmin)
}

// CanManageOrganization reports whether actor may read or administer the
// users and tool licenses of organizationID.
func CanManageOrganization(actor *models.User, organizationID string) bool {
	if IsSuperAdmin(actor) {
		return true
	}
	return IsAdmin(actor) && actor.OrganizationID == organizationID
}

// CanManageUser reports whether actor may view and edit target. Admins
// cannot manage anyone ranked above them.
func CanManageUser(actor, target *models.User) bool {
	if target == nil || !CanManageOrganization(actor, target.OrganizationID) {
		return false
	}
	return IsSuperAdmin(actor) || target.Role.Rank() <= actor.Role.Rank()
}

// CanAssignRole reports whether actor may give role to someone. Nobody can
// grant a role above their own, and only super admins create super admins.
func CanAssignRole(actor *models.User, role models.Role) bool {
	if !IsAdmin(actor) || !role.Valid() {
		return false
	}
	return role.Rank() <= actor.Role.Rank()
}

// Screen names a management area of the portal.
type Screen string

const (
	ScreenDashboard     Screen = "dashboard"
	ScreenUsers         Screen = "users"
	ScreenTools         Screen = "tools"
	ScreenOrganizations Screen = "organizations"
	ScreenSubscriptions Screen = "subscriptions"
	ScreenAudit         Screen = "audit"
)

// VisibleScreens lists the management screens actor may open, in menu order.
func VisibleScreens(actor *models.User) []Screen {
	if actor == nil {
		return nil
	}
	screens := []Screen{ScreenDashboard}
	if IsAdmin(actor) {
		screens = append(screens, ScreenUsers, ScreenTools)
	}
	if IsSuperAdmin(actor) {
		screens = append(screens, ScreenOrganizations, ScreenSubscriptions, ScreenAudit)
	}
	return screens
}
