package service

import (
	"context"
	"time"

	apprepository "github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	"go.uber.org/zap"
)

const defaultPruneInterval = time.Hour

// AccessEventPruner periodically deletes access events older than the retention window.
type AccessEventPruner struct {
	logger    *zap.Logger
	repo      apprepository.AccessEventRepository
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
	now       func() time.Time
}

// NewAccessEventPruner creates a new pruner.
func NewAccessEventPruner(logger *zap.Logger, repo apprepository.AccessEventRepository, retention, interval time.Duration) *AccessEventPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &AccessEventPruner{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  interval,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins periodic pruning.
func (p *AccessEventPruner) Start() {
	go p.run()
}

// Stop stops the periodic pruning.
func (p *AccessEventPruner) Stop() {
	close(p.stopChan)
}

func (p *AccessEventPruner) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune(context.Background())
		case <-p.stopChan:
			p.logger.Info("access event pruner stopped")
			return
		}
	}
}

func (p *AccessEventPruner) prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)

	affected, err := p.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune access events", zap.Error(err))
		return 0
	}

	if affected > 0 {
		p.logger.Info("pruned access events",
			zap.Int64("count", affected),
			zap.Time("before", cutoff),
		)
	}
	return affected
}
