package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"sudooom.chat/internal/repository"
	chaterrors "sudooom.chat/pkg/errors"
	"sudooom.chat/pkg/model"
	"sudooom.chat/pkg/proto"
	"sudooom.chat/pkg/snowflake"
)

// Fanout 下行推送通道，生产实现经 NATS 广播到推送网关
type Fanout interface {
	PushToUsers(userIDs []string, frame []byte) error
}

// MessageService 消息服务：落库、维护会话状态、向双方连接扇出推送
type MessageService struct {
	messages *repository.MessageRepository
	users    *repository.UserRepository
	convs    *ConversationService
	fanout   Fanout
	ids      *snowflake.Node
	logger   *slog.Logger
}

// NewMessageService 创建消息服务
func NewMessageService(
	messages *repository.MessageRepository,
	users *repository.UserRepository,
	convs *ConversationService,
	fanout Fanout,
	ids *snowflake.Node,
) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		convs:    convs,
		fanout:   fanout,
		ids:      ids,
		logger:   slog.Default(),
	}
}

// Contacts 会话列表快照：除本人外的全部用户 + 未读计数
// 有过消息往来的用户按活跃时间降序排在前面，其余保持注册顺序
func (s *MessageService) Contacts(ctx context.Context, selfID string) ([]model.User, map[string]int, error) {
	users, err := s.users.ListOthers(ctx, selfID)
	if err != nil {
		return nil, nil, chaterrors.ErrDBError.Wrap(err)
	}

	index, err := s.convs.ActivityIndex(ctx, selfID)
	if err != nil {
		return nil, nil, err
	}
	unseen, err := s.convs.UnseenCounts(ctx, selfID)
	if err != nil {
		return nil, nil, err
	}

	for i := range users {
		if at, ok := index[users[i].ID]; ok {
			users[i].LastActivityAt = at
			users[i].HasChatted = true
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].LastActivityAt > users[j].LastActivityAt
	})

	return users, unseen, nil
}

// History 拉取与某对端的消息历史
// 副作用：对端发来的未读消息在服务端置为已读，未读计数清零
func (s *MessageService) History(ctx context.Context, selfID, peerID string) ([]model.Message, error) {
	msgs, err := s.messages.ListBetween(ctx, selfID, peerID)
	if err != nil {
		return nil, chaterrors.ErrDBError.Wrap(err)
	}

	if _, err := s.messages.MarkConversationSeen(ctx, peerID, selfID); err != nil {
		s.logger.Error("Failed to mark conversation seen", "error", err)
	}
	if err := s.convs.MarkRead(ctx, selfID, peerID); err != nil {
		s.logger.Error("Failed to reset unseen count", "error", err)
	}
	return msgs, nil
}

// Send 发送消息：落库、更新双方会话状态、向双方连接扇出
// 发送者自己的连接也会收到推送（自回显），用于多端一致性
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, text, image string) (*model.Message, error) {
	if text == "" && image == "" {
		return nil, chaterrors.ErrEmptyMessage
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		if err == repository.ErrUserNotFound {
			return nil, chaterrors.ErrUserNotFound
		}
		return nil, chaterrors.ErrDBError.Wrap(err)
	}

	now := time.Now().UnixMilli()
	msg := &model.Message{
		ID:         s.ids.Generate().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  now,
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, chaterrors.ErrDBError.Wrap(err)
	}

	// 会话状态更新不在关键路径上，失败只记日志
	if err := s.convs.TouchForSender(ctx, senderID, receiverID, msg.ID, now); err != nil {
		s.logger.Error("Failed to touch sender conversation", "error", err)
	}
	if err := s.convs.TouchForReceiver(ctx, receiverID, senderID, msg.ID, now); err != nil {
		s.logger.Error("Failed to touch receiver conversation", "error", err)
	}

	frame, err := proto.EncodeNewMessage(msg)
	if err != nil {
		s.logger.Error("Failed to encode newMessage frame", "error", err)
		return msg, nil
	}
	if err := s.fanout.PushToUsers([]string{receiverID, senderID}, frame); err != nil {
		s.logger.Error("Failed to fan out newMessage", "messageId", msg.ID, "error", err)
	}

	s.logger.Debug("Message sent",
		"messageId", msg.ID, "senderId", senderID, "receiverId", receiverID)
	return msg, nil
}

// MarkSeen 标记单条消息已读（客户端的尽力而为回执）
func (s *MessageService) MarkSeen(ctx context.Context, messageID string) error {
	if err := s.messages.MarkSeen(ctx, messageID); err != nil {
		return chaterrors.ErrDBError.Wrap(err)
	}
	return nil
}

// DeleteChat 删除双方之间的全部消息并通知双方连接
// 会话不会从联系人视图中消失，只是回到"从未聊过"的状态
func (s *MessageService) DeleteChat(ctx context.Context, selfID, peerID string) (int64, error) {
	count, err := s.messages.DeleteBetween(ctx, selfID, peerID)
	if err != nil {
		return 0, chaterrors.ErrDBError.Wrap(err)
	}

	if err := s.convs.Clear(ctx, selfID, peerID); err != nil {
		s.logger.Error("Failed to clear conversation state", "error", err)
	}
	if err := s.convs.Clear(ctx, peerID, selfID); err != nil {
		s.logger.Error("Failed to clear peer conversation state", "error", err)
	}

	frame, err := proto.EncodeChatDeleted(&proto.ChatDeleted{
		DeletedBy: selfID,
		PartnerID: peerID,
	})
	if err != nil {
		s.logger.Error("Failed to encode chatDeleted frame", "error", err)
		return count, nil
	}
	if err := s.fanout.PushToUsers([]string{peerID, selfID}, frame); err != nil {
		s.logger.Error("Failed to fan out chatDeleted", "error", err)
	}

	s.logger.Info("Chat deleted",
		"selfId", selfID, "peerId", peerID, "deletedCount", count)
	return count, nil
}
