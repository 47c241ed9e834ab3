package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	chaterrors "sudooom.chat/pkg/errors"
	"sudooom.chat/pkg/model"
	"sudooom.chat/pkg/proto"
)

// Client 请求/响应通道的 HTTP 客户端
// 失败映射到统一错误码：网络错误 → ErrTransport，401 → ErrUnauthorized，
// 413 → ErrPayloadTooLarge。不做自动重试，重试策略留给调用方
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
	logger  *slog.Logger
}

// New 创建客户端，baseURL 形如 http://host:port
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
}

// GetUsers 拉取会话列表快照
func (c *Client) GetUsers(ctx context.Context) (*proto.UsersResponse, error) {
	var resp proto.UsersResponse
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &resp); err != nil {
		return nil, err
	}
	if resp.UnseenMessages == nil {
		resp.UnseenMessages = make(map[string]int)
	}
	return &resp, nil
}

// GetMessages 拉取与某对端的消息历史（服务端顺带将入站消息置为已读）
func (c *Client) GetMessages(ctx context.Context, peerID string) ([]model.Message, error) {
	var resp proto.MessagesResponse
	path := "/api/messages/" + url.PathEscape(peerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage 发送消息，返回服务端确认的规范消息
func (c *Client) SendMessage(ctx context.Context, peerID string, req proto.SendRequest) (*model.Message, error) {
	var resp proto.SendResponse
	path := "/api/messages/send/" + url.PathEscape(peerID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.NewMessage == nil {
		return nil, chaterrors.ErrTransport.Wrap(fmt.Errorf("send response missing newMessage"))
	}
	return resp.NewMessage, nil
}

// MarkSeen 标记单条消息已读
func (c *Client) MarkSeen(ctx context.Context, messageID string) error {
	var resp proto.StatusResponse
	path := "/api/messages/mark/" + url.PathEscape(messageID)
	return c.do(ctx, http.MethodPut, path, nil, &resp)
}

// DeleteChat 删除与某对端的全部消息，返回删除条数
func (c *Client) DeleteChat(ctx context.Context, peerID string) (int64, error) {
	var resp proto.DeleteResponse
	path := "/api/messages/delete/" + url.PathEscape(peerID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return chaterrors.ErrInvalidParams.Wrap(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return chaterrors.ErrTransport.Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.hc.Do(req)
	if err != nil {
		return chaterrors.ErrTransport.Wrap(err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusUnauthorized:
		return chaterrors.ErrUnauthorized
	case http.StatusRequestEntityTooLarge:
		return chaterrors.ErrPayloadTooLarge
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return chaterrors.ErrTransport.Wrap(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return chaterrors.ErrTransport.Wrap(fmt.Errorf("decode %s %s response: %w", method, path, err))
	}

	// 服务端业务失败统一携带 success=false 和 message
	var status struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &status); err == nil && !status.Success {
		msg := status.Message
		if msg == "" {
			msg = "request rejected"
		}
		return chaterrors.ErrTransport.Wrap(fmt.Errorf("%s %s: %s", method, path, msg))
	}
	return nil
}
