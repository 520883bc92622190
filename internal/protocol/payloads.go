package protocol

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// RespawnMePayload 断线重连请求
type RespawnMePayload struct {
	PlayerID     string `json:"player_id"`     // 稳定玩家 ID
	Token        string `json:"token"`         // 房间重生令牌
	SessionToken string `json:"session_token"` // Connected 下发的会话令牌
}

// SearchPayload 匹配请求
type SearchPayload struct {
	GameID    string `json:"game_id"`    // 游戏种类
	PartySize int    `json:"party_size"` // 期望人数
}

// ClientTSPayload 延迟探测应答
type ClientTSPayload struct {
	ServerTime int64 `json:"server_time"` // 服务端下发的时钟
	ClientTime int64 `json:"client_time"` // 客户端本地时钟
}

// PickChitPayload 选签请求
type PickChitPayload struct {
	Slot int `json:"slot"` // 签位索引 0-3
}

// SelectionPayload 捕快指认请求
type SelectionPayload struct {
	AccusedID string `json:"accused_id"` // 被指认玩家 ID
}

// MarkCellPayload Bingo 标记请求
type MarkCellPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Token      string `json:"token"` // 会话令牌
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// StatusUpdatePayload 玩家状态变更
type StatusUpdatePayload struct {
	PlayerID string `json:"player_id"`
	Status   string `json:"status"` // idle / searching / playing
}

// PlayerInfo 玩家简要信息
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InLobbyPayload 等待队列成员列表
type InLobbyPayload struct {
	GameID    string       `json:"game_id"`
	PartySize int          `json:"party_size"`
	Players   []PlayerInfo `json:"players"`
}

// NewOpponentPayload 新玩家进入等待队列
type NewOpponentPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// SendACKPayload 握手请求
type SendACKPayload struct {
	RespawnToken string `json:"respawn_token"` // 授权重连回本房间的令牌
}

// GotoGamePayload 握手完成
type GotoGamePayload struct {
	GameID  string   `json:"game_id"`
	Players []string `json:"players"` // 按入队顺序的玩家 ID 列表
}

// ServerTSPayload 服务端时钟
type ServerTSPayload struct {
	ServerTime int64 `json:"server_time"`
}

// ServerACKPayload 双端时钟回执
type ServerACKPayload struct {
	ServerTime int64 `json:"server_time"`
	ClientTime int64 `json:"client_time"`
}

// ChitIDPayload 签位认领广播
type ChitIDPayload struct {
	Slot     int    `json:"slot"`
	PlayerID string `json:"player_id"`
}

// PickChitPromptPayload 回合开始，选签提示
type PickChitPromptPayload struct {
	Round int `json:"round"`
	Slots int `json:"slots"`
}

// PersonaPayload 角色揭示
type PersonaPayload struct {
	PlayerID string `json:"player_id"`
	Slot     int    `json:"slot"`
	Role     string `json:"role,omitempty"` // 遮蔽时为空
	Masked   bool   `json:"masked"`
}

// StartRoundPayload 对抗阶段开始
type StartRoundPayload struct {
	SipahiID   string   `json:"sipahi_id"`
	Candidates []string `json:"candidates,omitempty"` // 仅发给捕快
	Timeout    int      `json:"timeout"`              // 秒
}

// CorrectTimerPayload 倒计时校正
type CorrectTimerPayload struct {
	Remaining int `json:"remaining"` // 剩余秒数
}

// RoundEndsPayload 回合结算
type RoundEndsPayload struct {
	Round     int           `json:"round"`
	Roles     []RoleReveal  `json:"roles"` // 全部角色揭示
	Scores    []PlayerScore `json:"scores"`
	LeaderID  string        `json:"leader_id"`
	Caught    bool          `json:"caught"`   // 捕快是否指认正确
	TmrLoss   bool          `json:"tmr_loss"` // 是否因超时判负
	LastRound bool          `json:"last_round"`
}

// RoleReveal 角色揭示条目
type RoleReveal struct {
	PlayerID string `json:"player_id"`
	Slot     int    `json:"slot"`
	Role     string `json:"role"`
}

// PlayerScore 玩家分数条目
type PlayerScore struct {
	PlayerID    string `json:"player_id"`
	RoundPoints int    `json:"round_points"` // 本回合获得
	Points      int    `json:"points"`       // 累计
	Leading     bool   `json:"leading"`
}

// ReJoinedPayload 掉线玩家已归广播
type ReJoinedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// RenderGamePayload 重连快照
type RenderGamePayload struct {
	GameID     string           `json:"game_id"`
	InRound    bool             `json:"in_round"`
	Phase      string           `json:"phase"`
	Round      int              `json:"round"`
	Players    []string         `json:"players"`
	Personas   []PersonaPayload `json:"personas"` // 按观察者视角遮蔽
	Scores     []PlayerScore    `json:"scores"`
	Remaining  int              `json:"remaining,omitempty"`  // 对抗阶段剩余秒数（含宽限）
	Candidates []string         `json:"candidates,omitempty"` // 观察者为捕快时下发
	Board      []string         `json:"board,omitempty"`      // Bingo/井字棋棋盘
}

// QuitNoticePayload 同房玩家退出广播
type QuitNoticePayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// GameEndsPayload 最终排名
type GameEndsPayload struct {
	GameID  string         `json:"game_id"`
	Reason  string         `json:"reason"` // complete / quit / timeout
	Results []RankedResult `json:"results"`
}

// RankedResult 最终排名条目（并列共享名次，密集排名）
type RankedResult struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Points     int    `json:"points"`
}

// DisconnectedPayload 玩家掉线通知
type DisconnectedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Timeout    int    `json:"timeout"` // 重连窗口（秒）
}

// BoardPayload 棋盘下发，Bingo 为各自的 25 格，井字棋为共享的 9 格
type BoardPayload struct {
	Board []string `json:"board"`          // 按行排列
	Mark  string   `json:"mark,omitempty"` // 井字棋执子（X/O）
}

// CellMarkedPayload 落子/标记广播
type CellMarkedPayload struct {
	PlayerID string        `json:"player_id"`
	Cell     int           `json:"cell"`             // 行动者棋盘上的格子下标
	Value    string        `json:"value"`            // Bingo 为报出的数字，井字棋为执子
	Scores   []PlayerScore `json:"scores,omitempty"` // Bingo 各玩家当前完成线数
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
