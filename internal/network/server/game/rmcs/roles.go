package rmcs

// Role 回合角色
type Role string

const (
	RoleRaja   Role = "raja"   // 国王
	RoleMantri Role = "mantri" // 大臣
	RoleSipahi Role = "sipahi" // 捕快
	RoleChor   Role = "chor"   // 飞贼
)

// rolePoints 各角色的基础分，每回合四人合计 2300
var rolePoints = map[Role]int{
	RoleRaja:   1000,
	RoleMantri: 800,
	RoleSipahi: 500,
	RoleChor:   0,
}

// allRoles 一副签的四个签面
var allRoles = [4]Role{RoleRaja, RoleMantri, RoleSipahi, RoleChor}

// IsLookout 是否为明牌角色，选中即对全房间公开
func (r Role) IsLookout() bool {
	return r == RoleRaja || r == RoleSipahi
}
