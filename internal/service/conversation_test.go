package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// 注意：这些测试需要一个运行中的 Redis 实例
// 如果没有 Redis，测试将被跳过

func getTestRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("跳过测试：无法连接 Redis: %v", err)
	}

	// 清理测试数据库
	client.FlushDB(ctx)

	return client
}

func TestConversationService_TouchForSender(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewConversationService(client)
	ctx := context.Background()

	if err := svc.TouchForSender(ctx, "u-1", "u-2", "m-1", 1000); err != nil {
		t.Fatalf("TouchForSender failed: %v", err)
	}

	// 验证会话索引已创建
	members, err := client.ZRange(ctx, BuildConversationIndexKey("u-1"), 0, -1).Result()
	if err != nil {
		t.Fatalf("Failed to get index: %v", err)
	}
	if len(members) != 1 || members[0] != "u-2" {
		t.Errorf("Expected index member 'u-2', got %v", members)
	}

	// 发送不增加未读
	counts, err := svc.UnseenCounts(ctx, "u-1")
	if err != nil {
		t.Fatalf("UnseenCounts failed: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("Sender side must not accumulate unseen, got %v", counts)
	}
}

func TestConversationService_TouchForReceiver(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewConversationService(client)
	ctx := context.Background()

	if err := svc.TouchForReceiver(ctx, "u-1", "u-2", "m-1", 1000); err != nil {
		t.Fatalf("TouchForReceiver failed: %v", err)
	}
	if err := svc.TouchForReceiver(ctx, "u-1", "u-2", "m-2", 1001); err != nil {
		t.Fatalf("Second TouchForReceiver failed: %v", err)
	}

	counts, err := svc.UnseenCounts(ctx, "u-1")
	if err != nil {
		t.Fatalf("UnseenCounts failed: %v", err)
	}
	if counts["u-2"] != 2 {
		t.Errorf("Expected unseen 2, got %d", counts["u-2"])
	}
}

func TestConversationService_MarkRead(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewConversationService(client)
	ctx := context.Background()

	if err := svc.TouchForReceiver(ctx, "u-1", "u-2", "m-1", 1000); err != nil {
		t.Fatalf("TouchForReceiver failed: %v", err)
	}
	if err := svc.MarkRead(ctx, "u-1", "u-2"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	counts, err := svc.UnseenCounts(ctx, "u-1")
	if err != nil {
		t.Fatalf("UnseenCounts failed: %v", err)
	}
	// 清零后不再出现在非零映射中
	if _, ok := counts["u-2"]; ok {
		t.Errorf("Expected zero unseen to be omitted, got %v", counts)
	}
}

func TestConversationService_Clear(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewConversationService(client)
	ctx := context.Background()

	if err := svc.TouchForReceiver(ctx, "u-1", "u-2", "m-1", 1000); err != nil {
		t.Fatalf("TouchForReceiver failed: %v", err)
	}
	if err := svc.Clear(ctx, "u-1", "u-2"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	index, err := svc.ActivityIndex(ctx, "u-1")
	if err != nil {
		t.Fatalf("ActivityIndex failed: %v", err)
	}
	if len(index) != 0 {
		t.Errorf("Expected empty index after clear, got %v", index)
	}

	// Clear 幂等
	if err := svc.Clear(ctx, "u-1", "u-2"); err != nil {
		t.Errorf("Repeated clear must not fail: %v", err)
	}
}

func TestConversationService_ActivityIndex(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewConversationService(client)
	ctx := context.Background()

	if err := svc.TouchForSender(ctx, "u-1", "u-2", "m-1", 1000); err != nil {
		t.Fatalf("TouchForSender failed: %v", err)
	}
	if err := svc.TouchForSender(ctx, "u-1", "u-3", "m-2", 2000); err != nil {
		t.Fatalf("TouchForSender failed: %v", err)
	}
	// 同一对端的更新覆盖旧的活跃时间
	if err := svc.TouchForSender(ctx, "u-1", "u-2", "m-3", 3000); err != nil {
		t.Fatalf("TouchForSender failed: %v", err)
	}

	index, err := svc.ActivityIndex(ctx, "u-1")
	if err != nil {
		t.Fatalf("ActivityIndex failed: %v", err)
	}
	if index["u-2"] != 3000 || index["u-3"] != 2000 {
		t.Errorf("Unexpected index: %v", index)
	}
}
