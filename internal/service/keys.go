package service

import "fmt"

// Redis Key 约定：
//   chat:conv:{userId}:{peerId}  HASH  last_msg_id / unseen_count
//   chat:conv:index:{userId}     ZSET  member = peerId, score = 最近活跃毫秒时间戳

// BuildConversationKey 构建会话详情 Key
func BuildConversationKey(userID, peerID string) string {
	return fmt.Sprintf("chat:conv:%s:%s", userID, peerID)
}

// BuildConversationIndexKey 构建会话索引 Key
func BuildConversationIndexKey(userID string) string {
	return fmt.Sprintf("chat:conv:index:%s", userID)
}
