package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermRotationRead    Permission = "rotation:read"
	PermRotationControl Permission = "rotation:control"
	PermGroupsManage    Permission = "groups:manage"
	PermSceneSwitch     Permission = "scene:switch"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermRotationRead,
	},
	RoleOperator: {
		PermRotationRead,
		PermRotationControl,
		PermGroupsManage,
		PermSceneSwitch,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
