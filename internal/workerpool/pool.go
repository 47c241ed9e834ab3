package workerpool

import (
	"context"
	"log/slog"
	"sync"
)

// Task 任务函数
type Task func()

// Pool 固定大小的 worker 池，下行投递经由它执行，
// 单个任务 panic 被捕获，不影响其余 worker
type Pool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// New 创建并启动 Worker Pool
func New(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 8
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		taskQueue: make(chan Task, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Info("Worker pool started", "workers", workers, "queue_size", queueSize)
	return pool
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						p.logger.Error("Task panic recovered", "worker_id", id, "panic", r)
					}
				}()
				task()
			}()
		}
	}
}

// Submit 提交任务，队列满时丢弃并告警
func (p *Pool) Submit(task Task) {
	select {
	case <-p.ctx.Done():
	case p.taskQueue <- task:
	default:
		p.logger.Warn("Task queue full, dropping task")
	}
}

// Stop 停止所有 worker 并等待退出
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
