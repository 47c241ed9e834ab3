package nats

import (
	"encoding/json"
	"log/slog"

	"sudooom.chat/pkg/proto"
)

// NATS Subject 常量定义
const (
	// SubjectPushDownstream 服务层 -> 推送网关 下行事件，广播到所有网关节点
	SubjectPushDownstream = "chat.push.downstream"
)

// PushPublisher 下行推送发布器
type PushPublisher struct {
	client *Client
	logger *slog.Logger
}

// NewPushPublisher 创建下行推送发布器
func NewPushPublisher(client *Client) *PushPublisher {
	return &PushPublisher{
		client: client,
		logger: slog.Default(),
	}
}

// PushToUsers 把事件帧广播到所有网关节点，由持有目标连接的节点投递
func (p *PushPublisher) PushToUsers(userIDs []string, frame []byte) error {
	data, err := json.Marshal(proto.Downstream{
		UserIDs: userIDs,
		Frame:   frame,
	})
	if err != nil {
		p.logger.Error("Failed to marshal downstream", "error", err)
		return err
	}

	if err := p.client.Publish(SubjectPushDownstream, data); err != nil {
		p.logger.Error("Failed to publish downstream", "error", err)
		return err
	}

	p.logger.Debug("Published downstream", "userIds", userIDs)
	return nil
}
