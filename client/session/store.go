package session

import "sync"

// Store 会话状态存储
// 唯一的写入口是 Apply：每次更新都建立在最近一次更新的结果之上，
// 避免两个相邻回调各自基于旧状态计算而互相覆盖
type Store struct {
	mu    sync.Mutex
	state State
}

// NewStore 创建空状态的存储
func NewStore() *Store {
	return &Store{
		state: State{Online: make(map[string]bool)},
	}
}

// State 返回当前状态的副本
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Apply 以函数式方式更新状态：fn 收到最新状态的副本，返回新状态
func (s *Store) Apply(fn func(State) State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state.Clone())
}
