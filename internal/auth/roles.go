package auth

// Role 是固定的四级角色，权限从高到低 OWNER > ADMIN > MANAGER > USER。
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

var roleRank = map[Role]int{
	RoleUser:    0,
	RoleManager: 1,
	RoleAdmin:   2,
	RoleOwner:   3,
}

// RoleNames 返回全部角色名，迁移时用来补齐 roles 表。
func RoleNames() []string {
	return []string{string(RoleOwner), string(RoleAdmin), string(RoleManager), string(RoleUser)}
}

// ParseRole 把角色名转成 Role，未知角色返回 false。
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleRank[r]
	return r, ok
}

// Rank 返回角色在层级里的序号，越大权限越高。
func (r Role) Rank() int { return roleRank[r] }

// Highest 返回角色集合中权限最高的那个，空集合视为 USER。
func Highest(names []string) Role {
	best := RoleUser
	for _, n := range names {
		if r, ok := ParseRole(n); ok && r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}

// CanAssign 判断 actor 能否把 target（当前最高角色）改为 newRole：
//   - OWNER 可以改任何人，唯独不能动另一个 OWNER；
//   - ADMIN 只能授予 MANAGER/USER，且目标当前必须低于 ADMIN；
//   - 其余角色一律禁止。
func CanAssign(actor, target, newRole Role) bool {
	switch actor {
	case RoleOwner:
		return target != RoleOwner
	case RoleAdmin:
		if newRole != RoleManager && newRole != RoleUser {
			return false
		}
		return target.Rank() < RoleAdmin.Rank()
	default:
		return false
	}
}
