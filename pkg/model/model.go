package model

// User 用户资料（联系人视图）
// 资料字段一经拉取视为不可变，仅通过显式的资料更新刷新
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`

	// LastActivityAt 最近一次消息往来时间（Unix 毫秒），0 表示从未聊过
	LastActivityAt int64 `json:"lastActivityAt"`
	// HasChatted 是否与当前用户有过消息往来
	HasChatted bool `json:"hasChatted"`
}

// Message 单聊消息
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	Seen       bool   `json:"seen"`
	// CreatedAt 服务端落库时间（Unix 毫秒）
	CreatedAt int64 `json:"createdAt"`
}
