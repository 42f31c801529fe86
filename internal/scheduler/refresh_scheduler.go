package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Refresher 상점에서 최신 상태를 다시 읽음
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshScheduler 로그인 세션 자동 새로고침 스케줄러
// 다른 기기에서의 변경 사항을 반영
type RefreshScheduler struct {
	cron      *cron.Cron
	spec      string
	timeout   time.Duration
	refresher Refresher
	log       *logger.Logger
}

func NewRefreshScheduler(refresher Refresher, spec string, timeout time.Duration, log *logger.Logger) *RefreshScheduler {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RefreshScheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:      spec,
		timeout:   timeout,
		refresher: refresher,
		log:       log.Component("scheduler"),
	}
}

func (s *RefreshScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		s.log.Error("Failed to add cron job for refresh", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	s.log.Info("Refresh scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce 새로고침 1회 실행
func (s *RefreshScheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.log.Debug("Starting scheduled refresh")
	if err := s.refresher.Refresh(ctx); err != nil {
		s.log.Warn("Scheduled refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.log.Debug("Scheduled refresh done")
}

// Stop 스케줄러 중지 (실행 중인 작업 완료 대기)
func (s *RefreshScheduler) Stop() {
	s.log.Info("Stopping refresh scheduler...")
	<-s.cron.Stop().Done()
	s.log.Info("Refresh scheduler stopped")
}

// Entries 등록된 작업 수
func (s *RefreshScheduler) Entries() int {
	return len(s.cron.Entries())
}
