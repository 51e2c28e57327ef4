package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stock-tracker-go/infrastructure/logger"
)

// Pruner 删除早于 before 的 K 线，返回删除数量。
type Pruner interface {
	Prune(before time.Time) int
}

// Metrics 是定时任务上报的指标（可选）。
type Metrics interface {
	RecordPruned(n int)
}

var errNotStarted = errors.New("scheduler not started")

// Scheduler 定期清理超过保留期的 K 线，也可注册其他巡检任务。
type Scheduler struct {
	Cron      *cron.Cron
	Pruner    Pruner
	Retention time.Duration
	log       *logger.Logger
	metrics   Metrics
	now       func() time.Time

	mu      sync.Mutex
	started bool
}

func New(p Pruner, retention time.Duration, log *logger.Logger, metrics Metrics) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		Cron:      cron.New(),
		Pruner:    p,
		Retention: retention,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register 注册清理任务；Retention <= 0 表示永久保留，不注册。
func (s *Scheduler) Register(pruneCron string) error {
	if s.Retention <= 0 {
		s.log.Info("candle retention disabled, prune task not registered")
		return nil
	}
	if _, err := s.Cron.AddFunc(pruneCron, s.PruneNow); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

// AddTask 注册额外的定时任务。
func (s *Scheduler) AddTask(name, expr string, fn func()) error {
	if _, err := s.Cron.AddFunc(expr, fn); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.log.Info(fmt.Sprintf("task %s registered (%s)", name, expr))
	return nil
}

// PruneNow 立即执行一次清理。
func (s *Scheduler) PruneNow() {
	cutoff := s.now().Add(-s.Retention)
	n := s.Pruner.Prune(cutoff)
	if s.metrics != nil {
		s.metrics.RecordPruned(n)
	}
	if n > 0 {
		s.log.Info(fmt.Sprintf("pruned %d candles older than %s", n, cutoff.Format(time.RFC3339)))
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.Cron.Start()
	s.started = true
	s.log.Info("scheduler started")
	return nil
}

// Stop 等待正在执行的任务结束。
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	<-s.Cron.Stop().Done()
	s.started = false
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errNotStarted
	}
	return nil
}
