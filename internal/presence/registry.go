package presence

import (
	"log/slog"
	"sort"
	"sync"

	"sudooom.chat/pkg/proto"
)

// Registry 在线注册表：每个身份至多保留一条活跃连接
// 生命周期由服务进程持有，启动时构建，停机时 Shutdown
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Connection
	logger *slog.Logger
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Connection),
		logger: slog.Default(),
	}
}

// Register 记录身份到连接的映射，覆盖同身份的旧连接
// 返回被顶替的旧连接（可能为 nil），由调用方负责关闭
func (r *Registry) Register(conn Connection) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[conn.UserID()]
	r.conns[conn.UserID()] = conn
	r.logger.Info("Connection registered",
		"userId", conn.UserID(), "connId", conn.ID(), "online", len(r.conns))
	return prev
}

// UnregisterIfCurrent 仅当该连接仍是当前注册的那条时移除映射
// 旧连接迟到的断开事件不能踢掉新连接的注册
func (r *Registry) UnregisterIfCurrent(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[conn.UserID()]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(r.conns, conn.UserID())
	r.logger.Info("Connection unregistered",
		"userId", conn.UserID(), "connId", conn.ID(), "online", len(r.conns))
	return true
}

// Roster 当前在线身份全量名单
func (r *Registry) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SendToUser 投递数据到某身份的活跃连接，不在线返回 false
func (r *Registry) SendToUser(userID string, data []byte) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	if err := conn.Send(data); err != nil {
		r.logger.Warn("Failed to send to user", "userId", userID, "error", err)
		return false
	}
	return true
}

// BroadcastRoster 向所有连接推送在线名单全量事件
// 每次连接建立和断开后都要调用
func (r *Registry) BroadcastRoster() {
	frame, err := proto.EncodeOnlineUsers(r.Roster())
	if err != nil {
		r.logger.Error("Failed to encode roster", "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conn := range r.conns {
		if err := conn.Send(frame); err != nil {
			r.logger.Warn("Failed to broadcast roster",
				"userId", conn.UserID(), "error", err)
		}
	}
}

// Count 当前连接数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Shutdown 关闭全部连接并清空注册表
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		conn.Close()
	}
	r.conns = make(map[string]Connection)
}
