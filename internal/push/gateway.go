package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	chatnats "sudooom.chat/internal/nats"
	"sudooom.chat/internal/presence"
	"sudooom.chat/internal/workerpool"
	"sudooom.chat/pkg/proto"
)

// Gateway 推送网关：WebSocket 接入 + NATS 下行消费
// 连接建立/断开驱动注册表和在线名单广播；
// 服务层发布的下行事件经 NATS 到达后投递给本节点持有的连接
type Gateway struct {
	registry   *presence.Registry
	natsClient *chatnats.Client
	pool       *workerpool.Pool
	logger     *slog.Logger
}

// New 创建推送网关
func New(registry *presence.Registry, natsClient *chatnats.Client, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry:   registry,
		natsClient: natsClient,
		pool:       workerpool.New(8, 1024, logger),
		logger:     logger,
	}
}

// Start 订阅下行 Subject
func (g *Gateway) Start() error {
	return g.natsClient.Subscribe(chatnats.SubjectPushDownstream, func(data []byte) {
		g.pool.Submit(func() {
			g.handleDownstream(data)
		})
	})
}

func (g *Gateway) handleDownstream(data []byte) {
	var down proto.Downstream
	if err := json.Unmarshal(data, &down); err != nil {
		g.logger.Error("Failed to unmarshal downstream", "error", err)
		return
	}

	for _, userID := range down.UserIDs {
		if !g.registry.SendToUser(userID, down.Frame) {
			g.logger.Debug("User has no live connection", "userId", userID)
		}
	}
}

// HandleWS 处理推送通道握手，身份由 userId 查询参数携带
func (g *Gateway) HandleWS(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, proto.StatusResponse{
			Success: false,
			Message: "missing userId",
		})
		return
	}

	sock, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		g.logger.Warn("WebSocket accept failed", "userId", userID, "error", err)
		return
	}

	conn := presence.NewWSConnection(userID, sock, g.logger)

	// 同身份的旧连接被新连接顶替并关闭
	if prev := g.registry.Register(conn); prev != nil {
		g.logger.Info("Superseding stale connection",
			"userId", userID, "prevConnId", prev.ID())
		prev.Close()
	}
	g.registry.BroadcastRoster()

	defer func() {
		conn.Close()
		// 迟到的断开不能移除新连接的注册
		if g.registry.UnregisterIfCurrent(conn) {
			g.registry.BroadcastRoster()
		}
	}()

	// 推送通道是单向的：读循环只用于感知断开，入站帧一律丢弃
	g.readUntilClosed(c.Request.Context(), sock)
}

func (g *Gateway) readUntilClosed(ctx context.Context, sock *websocket.Conn) {
	for {
		if _, _, err := sock.Read(ctx); err != nil {
			return
		}
	}
}

// Shutdown 停止下行消费
func (g *Gateway) Shutdown() {
	g.pool.Stop()
}
