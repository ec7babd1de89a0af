package rbac

// PermissionMode selects how the evaluator resolves a request.
type PermissionMode string

const (
	// ModeCasbin matches (subject, path, method) policy rules.
	ModeCasbin PermissionMode = "casbin"
	// ModeRoleMenu matches the permission identifier stamped on the route
	// against the menus reachable from the principal's roles.
	ModeRoleMenu PermissionMode = "role-menu"
)

// Principal is the resolved view of the acting user carried through the
// request pipeline.
type Principal struct {
	ID           int64
	UUID         string
	Username     string
	IsSuperuser  bool
	IsStaff      bool
	IsMultiLogin bool
	Active       bool
	DeptID       *int64
	RoleIDs      []int64
	RoleNames    []string
}
