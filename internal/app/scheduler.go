package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/metrics"
	"go.uber.org/zap"
)

// Locker распределённая блокировка, чтобы задача выполнялась одним экземпляром сервиса
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// Task периодическая фоновая задача
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type taskState struct {
	Task
	running atomic.Bool
}

// RunStatus результат запуска задачи
type RunStatus int

const (
	RunCompleted RunStatus = iota
	RunFailed
	RunSkipped
)

// ErrUnknownTask задача с таким именем не зарегистрирована
var ErrUnknownTask = errors.New("unknown task")

// Scheduler управляет фоновыми задачами. Каждая задача выполняется не более
// чем в одном экземпляре одновременно: тик, пришедший во время работы
// предыдущего, пропускается.
type Scheduler struct {
	tasks     map[string]*taskState
	locker    Locker
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// NewScheduler создаёт новый планировщик. locker может быть nil.
func NewScheduler(logger *zap.Logger, locker Locker) *Scheduler {
	return &Scheduler{
		tasks:    make(map[string]*taskState),
		locker:   locker,
		logger:   logger,
		stopChan: make(chan struct{}),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Add регистрирует задачу. Вызывать до Start.
func (s *Scheduler) Add(task Task) {
	s.tasks[task.Name] = &taskState{Task: task}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Int("tasks", len(s.tasks)))

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// RunNow запускает задачу вне расписания с теми же гарантиями single-flight
func (s *Scheduler) RunNow(ctx context.Context, name string) (RunStatus, error) {
	t, ok := s.tasks[name]
	if !ok {
		return RunFailed, ErrUnknownTask
	}
	return s.execute(ctx, t)
}

func (s *Scheduler) loop(ctx context.Context, t *taskState) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.execute(ctx, t)

	ticks, stop := s.newTicker(t.Interval)
	defer stop()

	for {
		select {
		case <-ticks:
			s.execute(ctx, t)
		case <-s.stopChan:
			s.logger.Info("Background task stopped", zap.String("task", t.Name))
			return
		case <-ctx.Done():
			s.logger.Info("Background task cancelled", zap.String("task", t.Name))
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, t *taskState) (RunStatus, error) {
	log := s.logger.With(zap.String("task", t.Name))

	if !t.running.CompareAndSwap(false, true) {
		log.Warn("Previous run still in progress, skipping tick")
		metrics.TaskRuns.WithLabelValues(t.Name, "skipped").Inc()
		return RunSkipped, nil
	}
	defer t.running.Store(false)

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, "master_scheduler:task:"+t.Name, t.Interval)
		if err != nil {
			log.Error("Failed to acquire task lock", zap.Error(err))
			metrics.TaskRuns.WithLabelValues(t.Name, "error").Inc()
			return RunFailed, err
		}
		if !ok {
			log.Debug("Task is running on another instance, skipping tick")
			metrics.TaskRuns.WithLabelValues(t.Name, "skipped").Inc()
			return RunSkipped, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release task lock", zap.Error(err))
			}
		}()
	}

	started := time.Now()
	err := t.Run(ctx)
	metrics.TaskDuration.WithLabelValues(t.Name).Observe(time.Since(started).Seconds())

	if err != nil {
		log.Error("Background task failed", zap.Error(err))
		metrics.TaskRuns.WithLabelValues(t.Name, "error").Inc()
		return RunFailed, err
	}

	metrics.TaskRuns.WithLabelValues(t.Name, "ok").Inc()
	return RunCompleted, nil
}
