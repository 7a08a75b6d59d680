package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"apartment-locator/internal/config"
)

// ConflictSyncer rebuilds the conflict review index
type ConflictSyncer interface {
	Sync(ctx context.Context) (int, error)
}

// RunStatus describes the last index sync
type RunStatus struct {
	LastRunAt   time.Time `json:"last_run_at"`
	LastIndexed int       `json:"last_indexed"`
	LastError   string    `json:"last_error,omitempty"`
	Running     bool      `json:"running"`
}

// Scheduler runs the periodic conflict index sync
type Scheduler struct {
	cron      *cron.Cron
	syncer    ConflictSyncer
	config    config.SchedulerConfig
	logger    *zap.Logger
	isRunning bool

	mu     sync.Mutex
	status RunStatus
}

// NewScheduler creates a new scheduler
func NewScheduler(syncer ConflictSyncer, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(cfg.Location())),
		syncer: syncer,
		config: cfg,
		logger: logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("scheduler disabled in configuration")
		return nil
	}

	spec := cronSpec(s.config.ConflictSyncCron)
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunNow(context.Background()); err != nil {
			s.logger.Warn("scheduled conflict index sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid conflict_sync_cron %q: %w", spec, err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("scheduler started", zap.String("cron", spec), zap.String("timezone", s.config.Location().String()))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		s.logger.Info("scheduler stopped")
	}
}

// RunNow syncs the conflict index immediately. Overlapping runs are skipped.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		return 0, fmt.Errorf("conflict index sync already running")
	}
	s.status.Running = true
	s.mu.Unlock()

	n, err := s.syncer.Sync(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.LastRunAt = time.Now()
	s.status.LastIndexed = n
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
		return n, err
	}
	s.logger.Info("conflict index sync completed", zap.Int("unresolved_conflicts", n))
	return n, nil
}

// Status returns the last run summary
func (s *Scheduler) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// cronSpec accepts a cron expression or a daily HH:MM time
// Example: "02:00" -> "0 2 * * *"
func cronSpec(spec string) string {
	if spec == "" {
		return "*/10 * * * *"
	}
	var hour, minute int
	var rest string
	if n, _ := fmt.Sscanf(spec, "%d:%d%s", &hour, &minute, &rest); n == 2 && hour < 24 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}
	return spec
}
