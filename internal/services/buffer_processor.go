package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/infrastructure/buffer"
	"github.com/taskflow/backend/repository"
	"github.com/taskflow/backend/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// HealthFunc adapts a function to ConnectionHealth.
type HealthFunc func() bool

func (f HealthFunc) IsOnline() bool { return f() }

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	MaxAge     time.Duration
}

// ReplayTargets are the repositories buffered writes are replayed into.
type ReplayTargets struct {
	Projects repository.ProjectRepository
	Tasks    repository.TaskRepository
	Comments repository.CommentRepository
}

// BufferProcessor replays buffered document writes once Postgres is reachable.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	targets ReplayTargets
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	targets ReplayTargets,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		targets: targets,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@hourly", func() {
		removed, err := bp.store.Cleanup(time.Now().Add(-cfg.MaxAge))
		if err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			bp.logger.Warn("expired buffered writes dropped", zap.Int("count", removed))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch. Writes rejected by a domain rule are dropped;
// storage failures are retried up to MaxRetries.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := bp.replay(ctx, item)
		switch {
		case err == nil:
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge replayed buffer item", zap.Error(err))
			}
		case !usecase.IsOutage(err):
			bp.logger.Warn("dropping rejected buffer item",
				zap.String("entity", item.Entity),
				zap.String("document_id", item.DocumentID),
				zap.Error(err))
			_ = bp.store.Remove(item)
		default:
			item.Retries++
			bp.logger.Error("failed to replay buffer item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.Int("retries", item.Retries),
				zap.Error(err))
			if item.Retries >= bp.cfg.MaxRetries {
				bp.logger.Warn("dropping buffer item (max retries reached)", zap.String("item_id", item.ID))
				_ = bp.store.Remove(item)
				continue
			}
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(err))
			}
		}
	}
	return nil
}

// BufferOperation tries the write once more when the monitor reports the
// store online and persists it otherwise.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}

	if bp.monitor == nil || bp.monitor.IsOnline() {
		err := bp.replay(ctx, item)
		if err == nil {
			return nil
		}
		bp.logger.Warn("immediate replay failed, buffering", zap.String("entity", item.Entity), zap.Error(err))
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

// Pending returns buffered item counts per entity.
func (bp *BufferProcessor) Pending() map[string]int {
	if bp == nil || bp.store == nil {
		return nil
	}
	counts, err := bp.store.CountByEntity()
	if err != nil {
		bp.logger.Warn("failed to count buffer items", zap.Error(err))
		return nil
	}
	return counts
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	switch item.Entity {
	case buffer.EntityProject:
		var project domain.Project
		if err := json.Unmarshal(item.Data, &project); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffered project", err)
		}
		return replayWrite(ctx, item.Operation, &project, project.ID,
			bp.targets.Projects.Create, bp.targets.Projects.Update, bp.targets.Projects.Delete)
	case buffer.EntityTask:
		var task domain.Task
		if err := json.Unmarshal(item.Data, &task); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffered task", err)
		}
		return replayWrite(ctx, item.Operation, &task, task.ID,
			bp.targets.Tasks.Create, bp.targets.Tasks.Update, bp.targets.Tasks.Delete)
	case buffer.EntityComment:
		var comment domain.Comment
		if err := json.Unmarshal(item.Data, &comment); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffered comment", err)
		}
		return replayWrite(ctx, item.Operation, &comment, comment.ID,
			bp.targets.Comments.Create, bp.targets.Comments.Update, bp.targets.Comments.Delete)
	default:
		return domain.NewError(domain.ErrCodeInvalid, "unsupported entity "+item.Entity)
	}
}

func replayWrite[T any](
	ctx context.Context,
	operation string,
	doc *T,
	id string,
	create func(context.Context, *T) (*T, error),
	update func(context.Context, *T) error,
	remove func(context.Context, string) error,
) error {
	switch operation {
	case buffer.OperationCreate:
		_, err := create(ctx, doc)
		return err
	case buffer.OperationUpdate:
		return update(ctx, doc)
	case buffer.OperationDelete:
		return remove(ctx, id)
	default:
		return domain.NewError(domain.ErrCodeInvalid, "unsupported operation "+operation)
	}
}
