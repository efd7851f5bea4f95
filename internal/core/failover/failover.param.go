package failover

// RegisterServerInput 注册服务器
type RegisterServerInput struct {
	Name string `json:"name" binding:"required,max=128"`
	URL  string `json:"url" binding:"required"`
	Role string `json:"role" binding:"required"`
}

// Action 服务器操作
type Action string

const (
	ActionPromote Action = "promote"
	ActionRemove  Action = "remove"
	ActionCheck   Action = "check"
)

// EditServerInput PUT /failover/servers
type EditServerInput struct {
	ServerID string `json:"serverId" binding:"required"`
	Action   Action `json:"action" binding:"required"`
}
