package proto

import (
	"encoding/json"
	"fmt"

	"sudooom.chat/pkg/model"
)

// 推送通道事件名
const (
	EventNewMessage  = "newMessage"
	EventChatDeleted = "chatDeleted"
	EventOnlineUsers = "getOnlineUsers"
)

// Frame 推送通道上的事件帧
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatDeleted chatDeleted 事件载荷，双方连接收到相同内容
type ChatDeleted struct {
	DeletedBy string `json:"deletedBy"`
	PartnerID string `json:"partnerId"`
}

// PushEvent 推送事件联合体，至多一个字段非空
type PushEvent struct {
	NewMessage  *model.Message
	ChatDeleted *ChatDeleted
	Presence    []string
}

// DecodeFrame 解析事件帧为类型化事件
func DecodeFrame(data []byte) (*PushEvent, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode push frame: %w", err)
	}

	switch frame.Event {
	case EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", frame.Event, err)
		}
		return &PushEvent{NewMessage: &msg}, nil
	case EventChatDeleted:
		var del ChatDeleted
		if err := json.Unmarshal(frame.Data, &del); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", frame.Event, err)
		}
		return &PushEvent{ChatDeleted: &del}, nil
	case EventOnlineUsers:
		var roster []string
		if err := json.Unmarshal(frame.Data, &roster); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", frame.Event, err)
		}
		if roster == nil {
			roster = []string{}
		}
		return &PushEvent{Presence: roster}, nil
	default:
		return nil, fmt.Errorf("unknown push event %q", frame.Event)
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// EncodeNewMessage 构建 newMessage 事件帧
func EncodeNewMessage(msg *model.Message) ([]byte, error) {
	return encodeFrame(EventNewMessage, msg)
}

// EncodeChatDeleted 构建 chatDeleted 事件帧
func EncodeChatDeleted(del *ChatDeleted) ([]byte, error) {
	return encodeFrame(EventChatDeleted, del)
}

// EncodeOnlineUsers 构建在线用户全量事件帧
func EncodeOnlineUsers(roster []string) ([]byte, error) {
	if roster == nil {
		roster = []string{}
	}
	return encodeFrame(EventOnlineUsers, roster)
}

// Downstream 服务层到推送网关的下行封装（经 NATS 广播到所有网关节点）
type Downstream struct {
	UserIDs []string        `json:"userIds"`
	Frame   json.RawMessage `json:"frame"`
}
