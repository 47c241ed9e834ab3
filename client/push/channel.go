package push

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"sudooom.chat/client/dispatch"
	"sudooom.chat/pkg/proto"
)

// 图片消息以 data URL 内联，读上限与服务端请求体上限保持一致
const readLimit = 10 << 20

// Channel 推送通道：服务端主动下发事件的 WebSocket 连接
// 读循环把事件帧解码为类型化事件后交给分发器；
// 单个坏帧只丢弃并告警，不中断通道
type Channel struct {
	conn       *websocket.Conn
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

// Dial 建立推送通道，握手以 userId 查询参数携带身份
func Dial(ctx context.Context, baseURL, userID, token string, d *dispatch.Dispatcher) (*Channel, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) +
		"/ws?userId=" + url.QueryEscape(userID)

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)

	loopCtx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		conn:       conn,
		dispatcher: d,
		logger:     slog.Default(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go ch.readLoop(loopCtx)
	return ch, nil
}

func (ch *Channel) readLoop(ctx context.Context) {
	defer close(ch.done)
	for {
		_, data, err := ch.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				ch.logger.Info("Push channel closed", "error", err)
			}
			return
		}
		ev, err := proto.DecodeFrame(data)
		if err != nil {
			ch.logger.Warn("Dropping malformed push frame", "error", err)
			continue
		}
		ch.dispatcher.Dispatch(ev)
	}
}

// Done 通道关闭时被 close，可用于感知断开
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

// Close 关闭通道并停止读循环
func (ch *Channel) Close() {
	ch.closeOnce.Do(func() {
		ch.cancel()
		_ = ch.conn.Close(websocket.StatusNormalClosure, "client shutdown")
	})
	<-ch.done
}
