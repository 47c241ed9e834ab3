package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"sudooom.chat/client/session"
	"sudooom.chat/pkg/model"
	"sudooom.chat/pkg/proto"
)

// SeenAcker 已读回执通道。尽力而为：失败只记日志，不重试
type SeenAcker interface {
	MarkSeen(ctx context.Context, messageID string) error
}

// Reconciler 同步协调器：请求/响应通道的快照和推送通道的事件
// 都经由它合并进 session.Store，除它之外无人写状态。
// 每个入口都写成对旧状态的纯函数，且与事件到达顺序无关：
// 删除幂等、自回显按 senderId 过滤、排序每次全量重算。
type Reconciler struct {
	store  *session.Store
	selfID string
	acker  SeenAcker
	logger *slog.Logger

	// now 可注入，便于测试
	now func() int64
}

// New 创建协调器，acker 可为 nil（不发已读回执）
func New(store *session.Store, selfID string, acker SeenAcker) *Reconciler {
	return &Reconciler{
		store:  store,
		selfID: selfID,
		acker:  acker,
		logger: slog.Default(),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// HandlePush 类型化推送事件的统一入口，dispatch.Dispatcher 调用
func (r *Reconciler) HandlePush(ev *proto.PushEvent) {
	switch {
	case ev.NewMessage != nil:
		r.ApplyInboundMessage(*ev.NewMessage)
	case ev.ChatDeleted != nil:
		// 双方收到相同载荷，从本端视角解析出对端
		partner := ev.ChatDeleted.PartnerID
		if ev.ChatDeleted.DeletedBy != r.selfID {
			partner = ev.ChatDeleted.DeletedBy
		}
		r.ApplyChatDeleted(partner)
	case ev.Presence != nil:
		r.ApplyPresence(ev.Presence)
	}
}

// ApplySnapshot 用快照全量替换会话列表
// 本地已知的更新的 LastActivityAt 优先于快照携带的值，
// 防止推送先于一次较旧的拉取到达时被回拨
func (r *Reconciler) ApplySnapshot(users []model.User, unseen map[string]int) {
	r.store.Apply(func(st session.State) session.State {
		convs := make([]session.Conversation, 0, len(users))
		for _, u := range users {
			if u.ID == r.selfID {
				continue
			}
			conv := session.Conversation{
				PeerID:         u.ID,
				FullName:       u.FullName,
				Avatar:         u.Avatar,
				Bio:            u.Bio,
				LastActivityAt: u.LastActivityAt,
				HasChatted:     u.HasChatted,
			}
			if prev, ok := st.Conversation(u.ID); ok {
				if prev.LastActivityAt > conv.LastActivityAt {
					conv.LastActivityAt = prev.LastActivityAt
				}
				conv.HasChatted = conv.HasChatted || prev.HasChatted
			}
			if n, ok := unseen[u.ID]; ok && n > 0 {
				conv.UnseenCount = n
			}
			convs = append(convs, conv)
		}
		st.Conversations = convs
		sortConversations(st.Conversations)
		return st
	})
}

// ApplyInboundMessage 处理推送通道到达的新消息
// 服务端会把消息同时回推给发送者自己的连接（多端一致性），
// 发送路径已经乐观追加过，这里必须先按 senderId 丢弃自回显
func (r *Reconciler) ApplyInboundMessage(msg model.Message) {
	if msg.SenderID == r.selfID {
		r.logger.Debug("Dropping self-echo push", "messageId", msg.ID)
		return
	}

	var ackID string
	r.store.Apply(func(st session.State) session.State {
		at := msg.CreatedAt
		if at == 0 {
			at = r.now()
		}

		if msg.SenderID == st.ActivePeerID {
			if !st.HasMessage(msg.ID) {
				msg.Seen = true
				st.Messages = append(st.Messages, msg)
				ackID = msg.ID
			}
		} else {
			st = bumpUnseen(st, msg.SenderID)
		}

		st = touchConversation(st, msg.SenderID, at)
		sortConversations(st.Conversations)
		return st
	})

	if ackID != "" && r.acker != nil {
		// 已读回执是尽力而为的：失败只会让对端的已读状态短暂滞后
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.acker.MarkSeen(ctx, ackID); err != nil {
				r.logger.Debug("Seen ack failed", "messageId", ackID, "error", err)
			}
		}()
	}
}

// ApplyOutboundEcho 应用服务端确认的己方消息（携带规范 ID 与时间戳）
func (r *Reconciler) ApplyOutboundEcho(msg model.Message) {
	r.store.Apply(func(st session.State) session.State {
		if !st.HasMessage(msg.ID) {
			st.Messages = append(st.Messages, msg)
		}

		at := msg.CreatedAt
		if at == 0 {
			at = r.now()
		}
		st = touchConversation(st, msg.ReceiverID, at)

		// 主动发消息清零己方对该会话的未读
		for i := range st.Conversations {
			if st.Conversations[i].PeerID == msg.ReceiverID {
				st.Conversations[i].UnseenCount = 0
			}
		}
		sortConversations(st.Conversations)
		return st
	})
}

// ApplyChatDeleted 应用会话删除，幂等：双方都会收到通知，
// 本地触发删除的一方还会先行应用一次
func (r *Reconciler) ApplyChatDeleted(partnerID string) {
	r.store.Apply(func(st session.State) session.State {
		for i := range st.Conversations {
			if st.Conversations[i].PeerID == partnerID {
				st.Conversations[i].UnseenCount = 0
				st.Conversations[i].LastActivityAt = 0
				st.Conversations[i].HasChatted = false
			}
		}
		if st.ActivePeerID == partnerID {
			st.ActivePeerID = ""
			st.Messages = nil
		}
		sortConversations(st.Conversations)
		return st
	})
}

// ApplyPresence 全量替换在线名单，绝不增量合并
func (r *Reconciler) ApplyPresence(roster []string) {
	r.store.Apply(func(st session.State) session.State {
		online := make(map[string]bool, len(roster))
		for _, id := range roster {
			online[id] = true
		}
		st.Online = online
		return st
	})
}

// SetActiveConversation 切换活跃会话，peerID 为空表示取消选择
// 未读数立即清零（乐观更新，与用户意图一致，下次快照自纠正）
func (r *Reconciler) SetActiveConversation(peerID string) {
	r.store.Apply(func(st session.State) session.State {
		st.ActivePeerID = peerID
		st.Messages = nil
		if peerID != "" {
			for i := range st.Conversations {
				if st.Conversations[i].PeerID == peerID {
					st.Conversations[i].UnseenCount = 0
				}
			}
		}
		return st
	})
}

// ApplyHistory 应用历史消息拉取结果
// 响应返回时会话可能已经切走，此时整批丢弃（迟到响应失效规则）
func (r *Reconciler) ApplyHistory(peerID string, msgs []model.Message) {
	r.store.Apply(func(st session.State) session.State {
		if st.ActivePeerID != peerID {
			r.logger.Debug("Dropping stale history response", "peerId", peerID)
			return st
		}
		buf := make([]model.Message, 0, len(msgs))
		seen := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			buf = append(buf, m)
		}
		st.Messages = buf
		return st
	})
}

// touchConversation 更新某对端的最近活跃时间，没有会话条目则隐式创建
func touchConversation(st session.State, peerID string, at int64) session.State {
	for i := range st.Conversations {
		if st.Conversations[i].PeerID == peerID {
			if at > st.Conversations[i].LastActivityAt {
				st.Conversations[i].LastActivityAt = at
			}
			st.Conversations[i].HasChatted = true
			return st
		}
	}
	st.Conversations = append(st.Conversations, session.Conversation{
		PeerID:         peerID,
		LastActivityAt: at,
		HasChatted:     true,
	})
	return st
}

// bumpUnseen 非活跃会话未读数 +1，没有条目则隐式创建
func bumpUnseen(st session.State, peerID string) session.State {
	for i := range st.Conversations {
		if st.Conversations[i].PeerID == peerID {
			st.Conversations[i].UnseenCount++
			return st
		}
	}
	st.Conversations = append(st.Conversations, session.Conversation{
		PeerID:      peerID,
		UnseenCount: 1,
	})
	return st
}

// sortConversations 全量重排：LastActivityAt 降序，0（从未聊过）排末尾，
// 稳定排序保留并列项的原有相对顺序
func sortConversations(convs []session.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivityAt > convs[j].LastActivityAt
	})
}
