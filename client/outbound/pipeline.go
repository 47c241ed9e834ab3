package outbound

import (
	"context"
	"log/slog"

	"sudooom.chat/client/reconcile"
	"sudooom.chat/client/session"
	chaterrors "sudooom.chat/pkg/errors"
	"sudooom.chat/pkg/model"
	"sudooom.chat/pkg/proto"
)

// API 发送侧依赖的请求/响应通道
type API interface {
	SendMessage(ctx context.Context, peerID string, req proto.SendRequest) (*model.Message, error)
	DeleteChat(ctx context.Context, peerID string) (int64, error)
	GetUsers(ctx context.Context) (*proto.UsersResponse, error)
}

// Pipeline 出站管线：组装并提交消息，把服务端回显喂回协调器
// 失败时不做任何本地状态变更，UI 不会展示假的"已发送"
type Pipeline struct {
	api    API
	store  *session.Store
	rec    *reconcile.Reconciler
	logger *slog.Logger
}

// New 创建出站管线
func New(api API, store *session.Store, rec *reconcile.Reconciler) *Pipeline {
	return &Pipeline{
		api:    api,
		store:  store,
		rec:    rec,
		logger: slog.Default(),
	}
}

// Send 向当前活跃会话发送消息
// 无活跃会话时快速失败，不发起网络调用
func (p *Pipeline) Send(ctx context.Context, req proto.SendRequest) (*model.Message, error) {
	if req.Text == "" && req.Image == "" {
		return nil, chaterrors.ErrEmptyMessage
	}

	peerID := p.store.State().ActivePeerID
	if peerID == "" {
		return nil, chaterrors.ErrNoRecipient
	}

	msg, err := p.api.SendMessage(ctx, peerID, req)
	if err != nil {
		return nil, err
	}

	p.rec.ApplyOutboundEcho(*msg)
	return msg, nil
}

// DeleteActiveConversation 删除当前活跃会话的全部消息
// 成功后本地先行应用删除（对端经由各自的推送通知得到同样效果），
// 再拉一次快照兜底，保证本地乐观更新偏离服务端时最终一致
func (p *Pipeline) DeleteActiveConversation(ctx context.Context) (int64, error) {
	peerID := p.store.State().ActivePeerID
	if peerID == "" {
		return 0, chaterrors.ErrNoRecipient
	}

	count, err := p.api.DeleteChat(ctx, peerID)
	if err != nil {
		return 0, err
	}

	p.rec.ApplyChatDeleted(peerID)

	if resp, err := p.api.GetUsers(ctx); err != nil {
		p.logger.Warn("Snapshot refresh after delete failed", "error", err)
	} else {
		p.rec.ApplySnapshot(resp.Users, resp.UnseenMessages)
	}
	return count, nil
}
