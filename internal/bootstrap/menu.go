package bootstrap

import "github.com/campusgate/access-core/internal/core/domain"

func req(action domain.Action, resource domain.Resource) []domain.PermissionKey {
	return []domain.PermissionKey{domain.Key(action, resource)}
}

// anyOf merges requirement lists. Group nodes list every key their children
// need so a user who can reach none of them does not see the group.
func anyOf(lists ...[]domain.PermissionKey) []domain.PermissionKey {
	var out []domain.PermissionKey
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// DefaultMenu is the navigation installed when the menu store is empty.
func DefaultMenu() []domain.MenuNode {
	return []domain.MenuNode{
		{ID: "dashboard", Title: "Dashboard", Icon: "home", Route: "/", SortOrder: 1},

		{ID: "learning", Title: "Learning", Icon: "book", SortOrder: 2,
			RequiredPermissions: anyOf(
				req(domain.ActionView, domain.ResourceCourses),
				req(domain.ActionView, domain.ResourceContent),
				req(domain.ActionEdit, domain.ResourceContent),
			)},
		{ID: "learning.courses", ParentID: "learning", Title: "Courses", Route: "/courses", SortOrder: 1,
			RequiredPermissions: req(domain.ActionView, domain.ResourceCourses)},
		{ID: "learning.content", ParentID: "learning", Title: "Content", Route: "/content", SortOrder: 2,
			RequiredPermissions: req(domain.ActionView, domain.ResourceContent)},
		{ID: "learning.authoring", ParentID: "learning", Title: "Authoring", Route: "/content/edit", SortOrder: 3,
			RequiredPermissions: req(domain.ActionEdit, domain.ResourceContent)},

		{ID: "reports", Title: "Reports", Icon: "chart", SortOrder: 3,
			RequiredPermissions: req(domain.ActionView, domain.ResourceReports)},
		{ID: "reports.progress", ParentID: "reports", Title: "Progress", Route: "/reports/progress", SortOrder: 1},
		{ID: "reports.financials", ParentID: "reports", Title: "Financials", Route: "/reports/financials", SortOrder: 2,
			RequiredPermissions: req(domain.ActionView, domain.ResourceFinancials)},

		{ID: "admin", Title: "Administration", Icon: "shield", SortOrder: 4,
			RequiredPermissions: anyOf(
				req(domain.ActionView, domain.ResourceUsers),
				req(domain.ActionManage, domain.ResourceRoles),
				req(domain.ActionManage, domain.ResourcePermissions),
				req(domain.ActionManage, domain.ResourceSubscriptions),
				req(domain.ActionManage, domain.ResourceSettings),
			)},
		{ID: "admin.users", ParentID: "admin", Title: "Users", Route: "/admin/users", SortOrder: 1,
			RequiredPermissions: req(domain.ActionView, domain.ResourceUsers)},
		{ID: "admin.access", ParentID: "admin", Title: "Access control", SortOrder: 2,
			RequiredPermissions: anyOf(
				req(domain.ActionManage, domain.ResourceRoles),
				req(domain.ActionManage, domain.ResourcePermissions),
			)},
		{ID: "admin.access.roles", ParentID: "admin.access", Title: "Roles", Route: "/admin/roles", SortOrder: 1,
			RequiredPermissions: req(domain.ActionManage, domain.ResourceRoles)},
		{ID: "admin.access.permissions", ParentID: "admin.access", Title: "Permissions", Route: "/admin/permissions", SortOrder: 2,
			RequiredPermissions: req(domain.ActionManage, domain.ResourcePermissions)},
		{ID: "admin.subscriptions", ParentID: "admin", Title: "Subscriptions", Route: "/admin/subscriptions", SortOrder: 3,
			RequiredPermissions: req(domain.ActionManage, domain.ResourceSubscriptions)},
		{ID: "admin.settings", ParentID: "admin", Title: "Settings", Route: "/admin/settings", SortOrder: 4,
			RequiredPermissions: req(domain.ActionManage, domain.ResourceSettings)},
	}
}
