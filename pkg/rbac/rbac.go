package rbac

import "slices"

// 权限常量
const (
	PermissionCreateHabit = "habit:create"
	PermissionReadHabit   = "habit:read"
	PermissionLogHabit    = "habit:log"
	PermissionDeleteHabit = "habit:delete"

	// 管理操作
	PermissionReplayOutbox = "outbox:replay"
)

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionCreateHabit,
		PermissionReadHabit,
		PermissionLogHabit,
		PermissionDeleteHabit,
	},
	RoleAdmin: {
		PermissionCreateHabit,
		PermissionReadHabit,
		PermissionLogHabit,
		PermissionDeleteHabit,
		PermissionReplayOutbox,
	},
}

// NormalizeRole 未知或空角色按 user 处理
func NormalizeRole(role string) string {
	if _, ok := rolePermissions[role]; ok {
		return role
	}
	return RoleUser
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	return slices.Contains(rolePermissions[NormalizeRole(role)], permission)
}

// CheckPermission 返回错误而不是布尔值，便于 handler 处理
func CheckPermission(userID int, role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足
type PermissionDeniedError struct {
	UserID     int
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
