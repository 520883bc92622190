package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgPing      MessageType = "Ping"       // 心跳探测
	MsgRespawnMe MessageType = "Respawn-Me" // 断线重连请求

	// 匹配操作
	MsgSearch       MessageType = "Search"        // 请求匹配
	MsgCancelSearch MessageType = "Cancel-Search" // 取消匹配

	// 房间协议
	MsgAck          MessageType = "Ack"           // 握手确认
	MsgClientTS     MessageType = "Client-TS"     // 延迟探测应答
	MsgGameRendered MessageType = "Game-Rendered" // 重连快照确认
	MsgQuit         MessageType = "Quit"          // 主动退出（也用于向其他人广播退出通知）

	// RMCS 游戏操作
	MsgPickChit  MessageType = "Pick-Chit" // 选签（服务端也用它广播开始选签）
	MsgSelection MessageType = "Selection" // 捕快指认

	// Bingo / 井字棋游戏操作
	MsgMarkCell MessageType = "Mark-Cell" // 标记棋盘格 / 落子
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected    MessageType = "Connected"     // 连接成功，带会话令牌
	MsgPong         MessageType = "Pong"          // 心跳应答
	MsgStatusUpdate MessageType = "Status-Update" // 玩家状态变更广播
	MsgDisconnected MessageType = "Disconnected"  // 同房玩家掉线通知

	// 匹配相关
	MsgGotoLobby       MessageType = "Goto-Lobby"       // 匹配请求已接受
	MsgLobbyCancel     MessageType = "Lobby-Cancel"     // 匹配请求被拒绝
	MsgSearchCancelled MessageType = "Search-Cancelled" // 取消匹配成功
	MsgInLobby         MessageType = "In-Lobby"         // 当前等待队列成员
	MsgNewOpponent     MessageType = "New-Opponent"     // 新玩家进入等待队列

	// 房间握手
	MsgSendACK  MessageType = "Send-ACK"  // 请求确认就绪，携带重生令牌
	MsgGotoGame MessageType = "Goto-Game" // 握手完成，进入游戏

	// 延迟探测
	MsgServerTS  MessageType = "Server-TS"     // 服务端时钟
	MsgServerACK MessageType = "Server-ACK-TS" // 双端时钟回执

	// RMCS 游戏流程
	MsgChitID       MessageType = "Chit-Id"       // 签位已被认领
	MsgPersona      MessageType = "Persona"       // 角色揭示（完整或遮蔽）
	MsgStartRound   MessageType = "Start-Round"   // 对抗阶段开始
	MsgCorrectTimer MessageType = "Correct-Timer" // 倒计时校正
	MsgRoundEnds    MessageType = "Round-Ends"    // 回合结算

	// Bingo / 井字棋游戏流程
	MsgBoard      MessageType = "Board"       // 发放棋盘
	MsgCellMarked MessageType = "Cell-Marked" // 格子标记结果

	// 重连协议
	MsgReJoined   MessageType = "Re-Joined"   // 掉线玩家已归
	MsgRenderGame MessageType = "Render-Game" // 当前局面快照
	MsgReStart    MessageType = "Re-Start"    // 全员归位，恢复计时

	// 终局
	MsgQuitSuccess MessageType = "Quit-Success" // 退出确认
	MsgGameEnds    MessageType = "Game-Ends"    // 最终排名

	// 错误
	MsgError MessageType = "Error" // 错误消息
)
