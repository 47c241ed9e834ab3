package dispatch

import (
	"log/slog"
	"sync"

	"sudooom.chat/pkg/proto"
)

// Handler 推送事件的处理方
type Handler interface {
	HandlePush(ev *proto.PushEvent)
}

// Dispatcher 推送分发器
// 单个事件循环 goroutine 顺序消费事件，处理函数之间不会并发执行；
// 每个事件单独兜底 panic，一条坏事件不会拖垮后续分发
type Dispatcher struct {
	handler   Handler
	logger    *slog.Logger
	events    chan *proto.PushEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New 创建分发器
func New(handler Handler) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		logger:  slog.Default(),
		events:  make(chan *proto.PushEvent, 64),
		done:    make(chan struct{}),
	}
}

// Start 启动事件循环
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.loop()
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case ev := <-d.events:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev *proto.PushEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Push handler panic recovered", "panic", r)
		}
	}()
	d.handler.HandlePush(ev)
}

// Dispatch 投递一个事件，分发器已关闭时静默丢弃
func (d *Dispatcher) Dispatch(ev *proto.PushEvent) {
	if ev == nil {
		return
	}
	select {
	case <-d.done:
	case d.events <- ev:
	}
}

// Close 停止事件循环并等待退出，之后的 Dispatch 全部丢弃
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
