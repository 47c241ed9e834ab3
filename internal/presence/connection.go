package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

var ErrConnectionClosed = errors.New("connection closed")

const writeTimeout = 5 * time.Second

var connIDCounter int64

// Connection 注册表中的一条活跃连接
type Connection interface {
	ID() int64
	UserID() string
	Send(data []byte) error
	Close()
}

// WSConnection WebSocket 连接，带缓冲写队列
// 所有写入都经由 writeLoop 串行化，队列满时丢帧并告警，
// 慢消费者不会阻塞广播路径
type WSConnection struct {
	id         int64
	userID     string
	sock       *websocket.Conn
	logger     *slog.Logger
	writeChan  chan []byte
	closeChan  chan struct{}
	closeOnce  sync.Once
	createTime time.Time
}

// NewWSConnection 包装一条已升级的 WebSocket 连接并启动写循环
func NewWSConnection(userID string, sock *websocket.Conn, logger *slog.Logger) *WSConnection {
	c := &WSConnection{
		id:         atomic.AddInt64(&connIDCounter, 1),
		userID:     userID,
		sock:       sock,
		logger:     logger,
		writeChan:  make(chan []byte, 64),
		closeChan:  make(chan struct{}),
		createTime: time.Now(),
	}
	go c.writeLoop()
	return c
}

func (c *WSConnection) ID() int64 {
	return c.id
}

func (c *WSConnection) UserID() string {
	return c.userID
}

func (c *WSConnection) CreateTime() time.Time {
	return c.createTime
}

// Send 数据入队，连接已关闭返回 ErrConnectionClosed，队列满丢帧
func (c *WSConnection) Send(data []byte) error {
	select {
	case <-c.closeChan:
		return ErrConnectionClosed
	case c.writeChan <- data:
		return nil
	default:
		c.logger.Warn("Write queue full, dropping frame",
			"connId", c.id, "userId", c.userID)
		return nil
	}
}

func (c *WSConnection) writeLoop() {
	for {
		select {
		case data := <-c.writeChan:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.sock.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.logger.Error("Failed to write to connection",
					"connId", c.id, "userId", c.userID, "error", err)
			}
		case <-c.closeChan:
			return
		}
	}
}

func (c *WSConnection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		_ = c.sock.Close(websocket.StatusNormalClosure, "connection closed")
	})
}
