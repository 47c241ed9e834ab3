package session

import "sudooom.chat/pkg/model"

// Conversation 会话条目，按 PeerID 唯一
type Conversation struct {
	PeerID   string
	FullName string
	Avatar   string
	Bio      string

	// LastActivityAt 最近消息往来时间（Unix 毫秒），0 表示从未聊过
	LastActivityAt int64
	UnseenCount    int
	HasChatted     bool
}

// State 会话层全量状态
// Conversations 按 LastActivityAt 降序排列，从未聊过的排在末尾；
// Messages 只缓存当前活跃会话的消息
type State struct {
	Conversations []Conversation
	ActivePeerID  string
	Messages      []model.Message
	Online        map[string]bool
}

// Clone 深拷贝，保证函数式更新之间不共享底层存储
func (s State) Clone() State {
	out := s
	if s.Conversations != nil {
		out.Conversations = make([]Conversation, len(s.Conversations))
		copy(out.Conversations, s.Conversations)
	}
	if s.Messages != nil {
		out.Messages = make([]model.Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	out.Online = make(map[string]bool, len(s.Online))
	for id := range s.Online {
		out.Online[id] = true
	}
	return out
}

// Conversation 按 PeerID 查找会话，返回副本
func (s State) Conversation(peerID string) (Conversation, bool) {
	for _, conv := range s.Conversations {
		if conv.PeerID == peerID {
			return conv, true
		}
	}
	return Conversation{}, false
}

// HasMessage 消息缓冲区中是否已有该 ID
func (s State) HasMessage(id string) bool {
	for _, msg := range s.Messages {
		if msg.ID == id {
			return true
		}
	}
	return false
}
