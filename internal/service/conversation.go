package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ConversationService 会话状态服务（基于 Redis）
// 每个用户维护一个按活跃时间排序的会话索引和逐会话的未读计数，
// 快照接口的 unseenMessages 和 lastActivityAt 都来自这里
type ConversationService struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewConversationService 创建会话状态服务
func NewConversationService(redisClient *redis.Client) *ConversationService {
	return &ConversationService{
		redisClient: redisClient,
		logger:      slog.Default(),
	}
}

// TouchForSender 更新发送者侧会话（发消息时，不增加未读）
func (s *ConversationService) TouchForSender(ctx context.Context, userID, peerID, msgID string, at int64) error {
	convKey := BuildConversationKey(userID, peerID)
	idxKey := BuildConversationIndexKey(userID)

	pipe := s.redisClient.Pipeline()
	pipe.HSet(ctx, convKey, "last_msg_id", msgID)
	pipe.ZAdd(ctx, idxKey, redis.Z{Score: float64(at), Member: peerID})
	_, err := pipe.Exec(ctx)
	return err
}

// TouchForReceiver 更新接收者侧会话（收到消息时，未读 +1）
func (s *ConversationService) TouchForReceiver(ctx context.Context, userID, peerID, msgID string, at int64) error {
	convKey := BuildConversationKey(userID, peerID)
	idxKey := BuildConversationIndexKey(userID)

	pipe := s.redisClient.Pipeline()
	pipe.HSet(ctx, convKey, "last_msg_id", msgID)
	pipe.HIncrBy(ctx, convKey, "unseen_count", 1)
	pipe.ZAdd(ctx, idxKey, redis.Z{Score: float64(at), Member: peerID})
	_, err := pipe.Exec(ctx)
	return err
}

// MarkRead 清零某会话的未读计数
func (s *ConversationService) MarkRead(ctx context.Context, userID, peerID string) error {
	convKey := BuildConversationKey(userID, peerID)
	return s.redisClient.HSet(ctx, convKey, "unseen_count", 0).Err()
}

// Clear 删除某会话的状态（详情 + 索引项），删除聊天时双方各调用一次
func (s *ConversationService) Clear(ctx context.Context, userID, peerID string) error {
	convKey := BuildConversationKey(userID, peerID)
	idxKey := BuildConversationIndexKey(userID)

	pipe := s.redisClient.Pipeline()
	pipe.Del(ctx, convKey)
	pipe.ZRem(ctx, idxKey, peerID)
	_, err := pipe.Exec(ctx)
	return err
}

// UnseenCounts 获取用户全部会话的未读计数，只返回非零项
func (s *ConversationService) UnseenCounts(ctx context.Context, userID string) (map[string]int, error) {
	idxKey := BuildConversationIndexKey(userID)

	peers, err := s.redisClient.ZRange(ctx, idxKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	if len(peers) == 0 {
		return counts, nil
	}

	pipe := s.redisClient.Pipeline()
	cmds := make([]*redis.StringCmd, len(peers))
	for i, peer := range peers {
		cmds[i] = pipe.HGet(ctx, BuildConversationKey(userID, peer), "unseen_count")
	}
	_, _ = pipe.Exec(ctx)

	for i, cmd := range cmds {
		n, err := cmd.Result()
		if err != nil {
			continue
		}
		if count, err := strconv.Atoi(n); err == nil && count > 0 {
			counts[peers[i]] = count
		}
	}
	return counts, nil
}

// ActivityIndex 获取用户会话索引：peerId -> 最近活跃毫秒时间戳
func (s *ConversationService) ActivityIndex(ctx context.Context, userID string) (map[string]int64, error) {
	idxKey := BuildConversationIndexKey(userID)

	entries, err := s.redisClient.ZRangeWithScores(ctx, idxKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int64, len(entries))
	for _, entry := range entries {
		peer, ok := entry.Member.(string)
		if !ok {
			continue
		}
		index[peer] = int64(entry.Score)
	}
	return index, nil
}
