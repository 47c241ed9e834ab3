// Package client 实现会话同步引擎的客户端侧：
// 内存会话存储、合并请求/响应通道与推送通道的协调器、
// 推送分发器和出站管线，对外提供一个稳定的会话视图。
package client

import (
	"context"
	"log/slog"

	"sudooom.chat/client/api"
	"sudooom.chat/client/dispatch"
	"sudooom.chat/client/outbound"
	"sudooom.chat/client/push"
	"sudooom.chat/client/reconcile"
	"sudooom.chat/client/session"
	"sudooom.chat/pkg/proto"
)

// Config 客户端配置
type Config struct {
	// BaseURL 服务端地址，形如 http://host:port
	BaseURL string
	// UserID 本端身份 ID
	UserID string
	// Token 请求/响应通道的凭证（签发由外部认证系统负责）
	Token string
}

// Client 会话客户端门面
type Client struct {
	cfg      Config
	store    *session.Store
	rec      *reconcile.Reconciler
	disp     *dispatch.Dispatcher
	pipeline *outbound.Pipeline
	api      *api.Client
	channel  *push.Channel
	logger   *slog.Logger
}

// New 组装客户端（不建立连接）
func New(cfg Config) *Client {
	store := session.NewStore()
	restClient := api.New(cfg.BaseURL, cfg.Token)
	rec := reconcile.New(store, cfg.UserID, restClient)

	return &Client{
		cfg:      cfg,
		store:    store,
		rec:      rec,
		disp:     dispatch.New(rec),
		pipeline: outbound.New(restClient, store, rec),
		api:      restClient,
		logger:   slog.Default(),
	}
}

// Start 拉取首个快照并接入推送通道
func (c *Client) Start(ctx context.Context) error {
	resp, err := c.api.GetUsers(ctx)
	if err != nil {
		return err
	}
	c.rec.ApplySnapshot(resp.Users, resp.UnseenMessages)

	c.disp.Start()

	channel, err := push.Dial(ctx, c.cfg.BaseURL, c.cfg.UserID, c.cfg.Token, c.disp)
	if err != nil {
		c.disp.Close()
		return err
	}
	c.channel = channel
	return nil
}

// State 当前会话状态的副本
func (c *Client) State() session.State {
	return c.store.State()
}

// RefreshSnapshot 重新拉取会话列表快照
func (c *Client) RefreshSnapshot(ctx context.Context) error {
	resp, err := c.api.GetUsers(ctx)
	if err != nil {
		return err
	}
	c.rec.ApplySnapshot(resp.Users, resp.UnseenMessages)
	return nil
}

// SetActiveConversation 切换活跃会话并异步拉取历史
// 未读数立即清零；历史响应返回时若会话已切走则被协调器丢弃
func (c *Client) SetActiveConversation(ctx context.Context, peerID string) {
	c.rec.SetActiveConversation(peerID)
	if peerID == "" {
		return
	}
	go func() {
		msgs, err := c.api.GetMessages(ctx, peerID)
		if err != nil {
			c.logger.Warn("History fetch failed", "peerId", peerID, "error", err)
			return
		}
		c.rec.ApplyHistory(peerID, msgs)
	}()
}

// Send 向当前活跃会话发送消息
func (c *Client) Send(ctx context.Context, text, image string) error {
	_, err := c.pipeline.Send(ctx, proto.SendRequest{Text: text, Image: image})
	return err
}

// DeleteActiveConversation 删除当前活跃会话
func (c *Client) DeleteActiveConversation(ctx context.Context) (int64, error) {
	return c.pipeline.DeleteActiveConversation(ctx)
}

// Close 断开推送通道并停止分发器，不留下悬挂的事件处理器
func (c *Client) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	c.disp.Close()
}
