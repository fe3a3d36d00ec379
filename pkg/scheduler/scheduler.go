package scheduler

import (
	"edumate_backend/pkg/logger"
	"edumate_backend/pkg/monitoring"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job 后台任务，返回的错误只记录日志
type Job func() error

type Scheduler struct {
	scheduler *gocron.Scheduler
}

func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// 同一任务上一次未结束时跳过本次
	s.SingletonModeAll()
	return &Scheduler{scheduler: s}
}

// Every 按固定间隔注册任务，interval 非正数时不注册
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		logger.Log.Warn("Background job disabled", zap.String("job", name))
		return nil
	}
	_, err := s.scheduler.Every(interval).Tag(name).Do(func() {
		start := time.Now()
		if err := job(); err != nil {
			logger.Log.Error("Background job failed", zap.String("job", name), zap.Error(err))
		}
		monitoring.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	})
	return err
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs 返回已注册的任务名
func (s *Scheduler) Jobs() []string {
	var names []string
	for _, j := range s.scheduler.Jobs() {
		names = append(names, j.Tags()...)
	}
	return names
}
